package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"mercator-hq/poebridge/pkg/apierror"
	"mercator-hq/poebridge/pkg/config"
)

// Error codes.
const (
	CodeMissingKey = "missing_api_key"
	CodeInvalidKey = "invalid_api_key"
)

// KeySource describes where a credential is read from.
type KeySource struct {
	Header string
	Scheme string // "Bearer" or empty for the raw value
}

// DefaultSources are checked in order.
var DefaultSources = []KeySource{
	{Header: "Authorization", Scheme: "Bearer"},
	{Header: "X-API-Key"},
	{Header: "Authorization"},
}

// Guard checks requests against the local API key.
type Guard struct {
	key     []byte
	keyID   string
	sources []KeySource
}

// NewGuard returns a guard for the configured key.
func NewGuard(cfg config.SecurityConfig) *Guard {
	return &Guard{
		key:     []byte(cfg.LocalAPIKey),
		keyID:   Fingerprint(cfg.LocalAPIKey),
		sources: DefaultSources,
	}
}

// Check returns nil when r carries the local key, or a KindAuth error.
func (g *Guard) Check(r *http.Request) error {
	presented, ok := g.extract(r)
	if !ok {
		return &apierror.Error{
			Kind:    apierror.KindAuth,
			Message: "Missing API key. Provide it as a Bearer token or in the x-api-key header.",
			Code:    CodeMissingKey,
		}
	}
	if len(g.key) == 0 || subtle.ConstantTimeCompare([]byte(presented), g.key) != 1 {
		return &apierror.Error{
			Kind:    apierror.KindAuth,
			Message: "Invalid API key provided.",
			Code:    CodeInvalidKey,
		}
	}
	return nil
}

// extract returns the first credential found.
func (g *Guard) extract(r *http.Request) (string, bool) {
	for _, src := range g.sources {
		value := strings.TrimSpace(r.Header.Get(src.Header))
		if value == "" {
			continue
		}
		if src.Scheme == "" {
			return value, true
		}
		prefix := src.Scheme + " "
		if len(value) > len(prefix) && strings.EqualFold(value[:len(prefix)], prefix) {
			return strings.TrimSpace(value[len(prefix):]), true
		}
	}
	return "", false
}

// Fingerprint returns a short, loggable identifier for a key.
func Fingerprint(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:4])
}
