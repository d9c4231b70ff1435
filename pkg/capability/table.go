// Package capability maps model names to what the backend can do with them.
//
// The table is leaf data: a lookup never fails. Names missing from the
// catalog resolve to a conservative default that uses the text fallback for
// tools and passes the name through to the backend unchanged.
package capability

import (
	"sort"
	"strings"
	"sync/atomic"
)

// ModelCreated is the fixed "created" timestamp reported for every model,
// so that the model list is identical across requests and restarts.
const ModelCreated int64 = 1735689600 // 2025-01-01T00:00:00Z

// Capability describes one model.
type Capability struct {
	// ID is the client-facing model id.
	ID string `yaml:"id" json:"id"`

	// BackendName is the bot queried upstream.
	BackendName string `yaml:"backend_name" json:"backend_name"`

	// OwnedBy is reported in the model list.
	OwnedBy string `yaml:"owned_by" json:"owned_by"`

	// NativeTools reports backend-native tool calling support.
	NativeTools bool `yaml:"native_tools" json:"native_tools"`

	// ImageCapable reports whether image and file parts are accepted.
	ImageCapable bool `yaml:"image_capable" json:"image_capable"`

	// Reasoning marks models that emit thinking progress.
	Reasoning bool `yaml:"reasoning" json:"reasoning"`

	// MaxContext is a context size hint in tokens; 0 when unknown.
	MaxContext int `yaml:"max_context" json:"max_context"`

	// Known is false for names resolved by the default rule.
	Known bool `yaml:"-" json:"-"`
}

// snapshot is an immutable view of the catalog.
type snapshot struct {
	entries []Capability
	index   map[string]int
}

func newSnapshot(entries []Capability) *snapshot {
	sorted := make([]Capability, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	s := &snapshot{entries: sorted, index: make(map[string]int, 2*len(sorted))}
	for i := range s.entries {
		s.entries[i].Known = true
		if s.entries[i].BackendName == "" {
			s.entries[i].BackendName = s.entries[i].ID
		}
		if s.entries[i].OwnedBy == "" {
			s.entries[i].OwnedBy = "poe"
		}
		// Backend names are registered first so a client id always wins a
		// collision with another entry's backend name.
		s.index[strings.ToLower(s.entries[i].BackendName)] = i
	}
	for i := range s.entries {
		s.index[strings.ToLower(s.entries[i].ID)] = i
	}
	return s
}

// Table is a concurrency-safe capability table. Reads see a consistent
// snapshot; Replace swaps the whole catalog atomically.
type Table struct {
	current      atomic.Pointer[snapshot]
	unknownImage bool
}

// NewTable returns a table over entries. unknownImageCapable decides
// whether models missing from the catalog accept non-text parts.
func NewTable(entries []Capability, unknownImageCapable bool) *Table {
	t := &Table{unknownImage: unknownImageCapable}
	t.current.Store(newSnapshot(entries))
	return t
}

// Lookup resolves a client id or backend name, case-insensitively.
func (t *Table) Lookup(model string) Capability {
	s := t.current.Load()
	if i, ok := s.index[strings.ToLower(strings.TrimSpace(model))]; ok {
		return s.entries[i]
	}
	return Capability{
		ID:           model,
		BackendName:  model,
		OwnedBy:      "poe",
		ImageCapable: t.unknownImage,
	}
}

// List returns every entry sorted by client id.
func (t *Table) List() []Capability {
	s := t.current.Load()
	out := make([]Capability, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of catalog entries.
func (t *Table) Len() int {
	return len(t.current.Load().entries)
}

// Replace swaps in a new catalog.
func (t *Table) Replace(entries []Capability) {
	t.current.Store(newSnapshot(entries))
}

// Merge returns base with overlay applied: entries with the same ID are
// replaced, new IDs are added.
func Merge(base, overlay []Capability) []Capability {
	out := make([]Capability, 0, len(base)+len(overlay))
	pos := make(map[string]int, len(base))
	for _, c := range base {
		pos[strings.ToLower(c.ID)] = len(out)
		out = append(out, c)
	}
	for _, c := range overlay {
		key := strings.ToLower(c.ID)
		if i, ok := pos[key]; ok {
			out[i] = c
			continue
		}
		pos[key] = len(out)
		out = append(out, c)
	}
	return out
}
