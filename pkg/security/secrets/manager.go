package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
)

// secretRef matches ${secret:name} references in configuration values.
var secretRef = regexp.MustCompile(`\$\{secret:([^}]+)\}`)

// Manager resolves secrets from an ordered list of providers. The first
// provider that returns a value wins.
type Manager struct {
	providers []Provider
}

// NewManager returns a manager trying providers in order.
func NewManager(providers ...Provider) *Manager {
	return &Manager{providers: providers}
}

// GetSecret returns the value of name from the first provider that has it.
func (m *Manager) GetSecret(ctx context.Context, name string) (string, error) {
	var lastErr error
	for _, p := range m.providers {
		value, err := p.GetSecret(ctx, name)
		if err == nil {
			slog.DebugContext(ctx, "secret resolved", "provider", p.Provider(), "name", redactName(name))
			return value, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("%s provider: %w", p.Provider(), err)
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%w: %s (no providers configured)", ErrNotFound, name)
	}
	return "", lastErr
}

// Expand replaces every ${secret:name} reference in value. A value without
// references is returned unchanged.
func (m *Manager) Expand(ctx context.Context, value string) (string, error) {
	var firstErr error
	out := secretRef.ReplaceAllStringFunc(value, func(ref string) string {
		if firstErr != nil {
			return ref
		}
		name := secretRef.FindStringSubmatch(ref)[1]
		resolved, err := m.GetSecret(ctx, name)
		if err != nil {
			firstErr = err
			return ref
		}
		return resolved
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// HasReference reports whether value contains a ${secret:...} reference.
func HasReference(value string) bool {
	return secretRef.MatchString(value)
}

func redactName(name string) string {
	if len(name) <= 4 {
		return "****"
	}
	return name[:4] + "****"
}
