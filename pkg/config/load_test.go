package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_address: "0.0.0.0:8000"
  read_timeout: "45s"
  cors:
    enabled: false
security:
  local_api_key: "sk-local-test"
backend:
  api_key: "poe-test"
files:
  backend: "sqlite"
  sqlite:
    path: "./files.db"
    driver: "sqlite3"
embeddings:
  model_map:
    custom-embedder: "GPT-4o-Mini"
telemetry:
  logging:
    level: "debug"
    format: "text"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:8000" {
		t.Errorf("ListenAddress = %q, want %q", cfg.Server.ListenAddress, "0.0.0.0:8000")
	}
	if cfg.Server.ReadTimeout != 45*time.Second {
		t.Errorf("ReadTimeout = %v, want 45s", cfg.Server.ReadTimeout)
	}
	if cfg.Server.WriteTimeout != DefaultWriteTimeout {
		t.Errorf("WriteTimeout = %v, want default %v", cfg.Server.WriteTimeout, DefaultWriteTimeout)
	}
	if cfg.Server.CORS.Enabled {
		t.Error("CORS.Enabled = true, want explicit false to survive defaults")
	}
	if cfg.Files.SQLite.Driver != "sqlite3" {
		t.Errorf("SQLite.Driver = %q, want sqlite3", cfg.Files.SQLite.Driver)
	}
	if got := cfg.Embeddings.ModelMap["custom-embedder"]; got != "GPT-4o-Mini" {
		t.Errorf("ModelMap[custom-embedder] = %q, want GPT-4o-Mini", got)
	}
	if got := cfg.Embeddings.ModelMap["text-embedding-3-large"]; got != "Claude-3.5-Sonnet" {
		t.Errorf("default model map entry lost, got %q", got)
	}
	if !cfg.Telemetry.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want default true")
	}
	if cfg.Housekeeping.Schedule != DefaultHousekeepingSchedule {
		t.Errorf("Housekeeping.Schedule = %q, want default", cfg.Housekeeping.Schedule)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("LoadConfig() error = nil, want error for missing file")
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [unterminated")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("LoadConfig() error = nil, want parse error")
	}
}

func TestLoadConfig_RequiresKeys(t *testing.T) {
	_, err := LoadConfig("")
	if err == nil {
		t.Fatal("LoadConfig(\"\") error = nil, want missing key errors")
	}

	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error type = %T, want ValidationError", err)
	}

	fields := map[string]bool{}
	for _, fe := range verr.Errors {
		fields[fe.Field] = true
	}
	for _, want := range []string{"security.local_api_key", "backend.api_key"} {
		if !fields[want] {
			t.Errorf("missing field error for %s in %v", want, verr.Errors)
		}
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeConfig(t, `
security:
  local_api_key: "from-file"
backend:
  api_key: "from-file"
`)

	t.Setenv("LOCAL_API_KEY", "sk-local-env")
	t.Setenv("POE_API_KEY", "poe-env")
	t.Setenv("MAX_FILE_SIZE_MB", "5")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("POEBRIDGE_SERVER_LISTEN_ADDRESS", "0.0.0.0:9999")
	t.Setenv("POEBRIDGE_HOUSEKEEPING_SCHEDULE", "")
	t.Setenv("POEBRIDGE_MODELS_WATCH", "true")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() error = %v", err)
	}

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"local key", cfg.Security.LocalAPIKey, "sk-local-env"},
		{"backend key", cfg.Backend.APIKey, "poe-env"},
		{"max file size", cfg.Limits.MaxFileSizeMB, 5},
		{"log level", cfg.Telemetry.Logging.Level, "debug"},
		{"listen address", cfg.Server.ListenAddress, "0.0.0.0:9999"},
		{"housekeeping disabled", cfg.Housekeeping.Schedule, ""},
		{"models watch", cfg.Models.Watch, true},
		{"attachment limit", cfg.Limits.AttachmentLimit(), int64(5 * 1024 * 1024)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestLoadConfigWithEnvOverrides_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	env := "LOCAL_API_KEY=sk-local-dotenv\nPOE_API_KEY=poe-dotenv\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o600); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}
	// godotenv never overrides variables that are already set, so make sure
	// the test environment does not carry them.
	t.Setenv("LOCAL_API_KEY", "")
	os.Unsetenv("LOCAL_API_KEY")
	t.Setenv("POE_API_KEY", "")
	os.Unsetenv("POE_API_KEY")

	cfg, err := LoadConfigWithEnvOverrides("")
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() error = %v", err)
	}
	if cfg.Security.LocalAPIKey != "sk-local-dotenv" {
		t.Errorf("LocalAPIKey = %q, want value from .env", cfg.Security.LocalAPIKey)
	}
	if cfg.Backend.APIKey != "poe-dotenv" {
		t.Errorf("APIKey = %q, want value from .env", cfg.Backend.APIKey)
	}
}

func TestLoadConfig_SecretReferences(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "poe-api-key"), []byte("poe-from-file\n"), 0o600); err != nil {
		t.Fatalf("failed to write secret: %v", err)
	}
	t.Setenv("POEBRIDGE_SECRET_LOCAL_KEY", "sk-local-from-env")

	path := writeConfig(t, `
security:
  local_api_key: "${secret:local-key}"
  secrets:
    dir: "`+dir+`"
backend:
  api_key: "${secret:poe-api-key}"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Security.LocalAPIKey != "sk-local-from-env" {
		t.Errorf("LocalAPIKey = %q, want %q", cfg.Security.LocalAPIKey, "sk-local-from-env")
	}
	if cfg.Backend.APIKey != "poe-from-file" {
		t.Errorf("APIKey = %q, want %q", cfg.Backend.APIKey, "poe-from-file")
	}
}

func TestLoadConfig_UnresolvedSecret(t *testing.T) {
	path := writeConfig(t, `
security:
  local_api_key: "${secret:never-set-anywhere}"
backend:
  api_key: "poe"
`)
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "security.local_api_key") {
		t.Errorf("LoadConfig() error = %v, want unresolved security.local_api_key", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Defaults()
		cfg.Security.LocalAPIKey = "sk-local-test"
		cfg.Backend.APIKey = "poe"
		return cfg
	}

	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{"valid", func(*Config) {}, ""},
		{"placeholder key", func(c *Config) { c.Security.LocalAPIKey = PlaceholderLocalAPIKey }, "security.local_api_key"},
		{"bad listen address", func(c *Config) { c.Server.ListenAddress = "nope" }, "server.listen_address"},
		{"bad base url", func(c *Config) { c.Backend.BaseURL = "ftp://poe" }, "backend.base_url"},
		{"bad files backend", func(c *Config) { c.Files.Backend = "redis" }, "files.backend"},
		{"bad sqlite driver", func(c *Config) { c.Files.Backend = "sqlite"; c.Files.SQLite.Driver = "pg" }, "files.sqlite.driver"},
		{"bad log level", func(c *Config) { c.Telemetry.Logging.Level = "trace" }, "telemetry.logging.level"},
		{"bad sample ratio", func(c *Config) {
			c.Telemetry.Tracing.Enabled = true
			c.Telemetry.Tracing.SampleRatio = 2
		}, "telemetry.tracing.sample_ratio"},
		{"tls without key", func(c *Config) { c.Server.TLS.Enabled = true; c.Server.TLS.CertFile = "cert.pem" }, "server.tls.key_file"},
		{"bad tls version", func(c *Config) { c.Server.TLS.MinVersion = "1.0" }, "server.tls.min_version"},
		{"tiny lookahead", func(c *Config) { c.Chat.ToolLookaheadBytes = 8 }, "chat.tool_lookahead_bytes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() error = nil, want error on %s", tt.wantField)
			}
			if !strings.Contains(err.Error(), tt.wantField) {
				t.Errorf("Validate() error = %v, want mention of %s", err, tt.wantField)
			}
		})
	}
}

func TestValidationError_Error(t *testing.T) {
	single := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}}}
	if got := single.Error(); got != "configuration validation failed: a: bad" {
		t.Errorf("Error() = %q", got)
	}

	multi := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}, {Field: "b", Message: "worse"}}}
	if got := multi.Error(); !strings.Contains(got, "2 errors") {
		t.Errorf("Error() = %q, want count of errors", got)
	}
}
