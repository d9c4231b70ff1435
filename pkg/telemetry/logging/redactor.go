package logging

import (
	"log/slog"
	"regexp"
	"strings"
)

// Redactor masks credentials in log attribute values.
type Redactor struct {
	patterns []redactPattern
	secrets  []string
}

type redactPattern struct {
	regex       *regexp.Regexp
	replacement string
}

// Built-in patterns. Only credentials are masked; prompts and completions are
// never logged in the first place.
var defaultPatterns = []redactPattern{
	{regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9\-._~+/]+=*`), "Bearer ***"},
	{regexp.MustCompile(`sk-[a-zA-Z0-9_\-]{4,}`), "sk-***"},
	{regexp.MustCompile(`(?i)(api[-_]?key|access_key)["']?\s*[:=]\s*["']?[a-zA-Z0-9_\-]+`), "$1=***"},
}

// sensitiveKeys are attribute keys whose value is masked outright.
var sensitiveKeys = []string{
	"authorization", "api_key", "apikey", "secret", "access_token", "password",
}

// NewRedactor returns a redactor for the built-in patterns plus the given
// literal secrets. Secrets shorter than 8 bytes are ignored so short values
// do not mask unrelated text.
func NewRedactor(secrets []string) *Redactor {
	r := &Redactor{patterns: defaultPatterns}
	for _, s := range secrets {
		if len(s) >= 8 {
			r.secrets = append(r.secrets, s)
		}
	}
	return r
}

// RedactString masks every credential found in value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	for _, s := range r.secrets {
		value = strings.ReplaceAll(value, s, RedactAPIKey(s))
	}
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}

// ReplaceAttr is a slog.HandlerOptions.ReplaceAttr hook.
func (r *Redactor) ReplaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey || a.Key == slog.LevelKey || a.Key == slog.SourceKey {
		return a
	}
	if a.Value.Kind() == slog.KindString && isSensitiveKey(a.Key) {
		return slog.String(a.Key, RedactAPIKey(a.Value.String()))
	}

	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, r.RedactString(a.Value.String()))
	case slog.KindAny:
		// Errors often wrap upstream messages that echo request headers.
		if err, ok := a.Value.Any().(error); ok {
			return slog.String(a.Key, r.RedactString(err.Error()))
		}
	}
	return a
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// RedactAPIKey keeps a short prefix of a key for identification.
func RedactAPIKey(apiKey string) string {
	if len(apiKey) <= 8 {
		return "***"
	}
	return apiKey[:4] + "***"
}
