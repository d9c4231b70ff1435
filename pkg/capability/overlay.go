package capability

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// overlayFile is the on-disk catalog overlay format.
type overlayFile struct {
	Models []Capability `yaml:"models"`
}

// LoadOverlay reads a catalog overlay file. Unknown fields are rejected so
// that typos in capability flags do not silently fall back to false.
func LoadOverlay(path string) ([]Capability, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model catalog %q: %w", path, err)
	}
	return ParseOverlay(data)
}

// ParseOverlay decodes overlay YAML.
func ParseOverlay(data []byte) ([]Capability, error) {
	var f overlayFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if strings.TrimSpace(string(data)) == "" {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse model catalog: %w", err)
	}

	seen := make(map[string]bool, len(f.Models))
	for i, m := range f.Models {
		id := strings.TrimSpace(m.ID)
		if id == "" {
			return nil, fmt.Errorf("models[%d]: id is required", i)
		}
		key := strings.ToLower(id)
		if seen[key] {
			return nil, fmt.Errorf("models[%d]: duplicate id %q", i, id)
		}
		seen[key] = true
		if m.MaxContext < 0 {
			return nil, fmt.Errorf("models[%d]: max_context must be >= 0", i)
		}
		f.Models[i].ID = id
	}
	return f.Models, nil
}

// Load builds a table from the built-in catalog plus the overlay at path,
// if any.
func Load(path string, unknownImageCapable bool) (*Table, error) {
	entries := Builtin()
	if path != "" {
		overlay, err := LoadOverlay(path)
		if err != nil {
			return nil, err
		}
		entries = Merge(entries, overlay)
	}
	return NewTable(entries, unknownImageCapable), nil
}

// Reload re-reads the overlay at path and swaps the table's catalog. On
// error the current catalog is kept.
func (t *Table) Reload(path string) error {
	overlay, err := LoadOverlay(path)
	if err != nil {
		return err
	}
	t.Replace(Merge(Builtin(), overlay))
	return nil
}
