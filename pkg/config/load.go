package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"mercator-hq/poebridge/pkg/security/secrets"
)

// EnvPrefix is the prefix of the structured environment overrides.
const EnvPrefix = "POEBRIDGE_"

// LoadConfig loads configuration from a YAML file at the specified path.
// The document is decoded on top of Defaults, then zero values are filled in
// and the result is validated. An empty path yields the defaults alone.
func LoadConfig(path string) (*Config, error) {
	cfg, err := decode(path)
	if err != nil {
		return nil, err
	}

	if err := resolveSecrets(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. A .env file in the working directory is
// loaded first; variables already present in the environment win over it.
//
// The loading sequence is:
// 1. Load .env (missing file ignored)
// 2. Decode YAML on top of defaults
// 3. Apply environment variable overrides
// 4. Resolve ${secret:name} references
// 5. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg, err := decode(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := resolveSecrets(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

func decode(path string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(cfg)
	return cfg, nil
}

// resolveSecrets expands ${secret:name} references in the two key fields.
func resolveSecrets(cfg *Config) error {
	targets := []struct {
		field string
		value *string
	}{
		{"security.local_api_key", &cfg.Security.LocalAPIKey},
		{"backend.api_key", &cfg.Backend.APIKey},
	}

	var manager *secrets.Manager
	for _, target := range targets {
		if !secrets.HasReference(*target.value) {
			continue
		}
		if manager == nil {
			m, err := newSecretManager(cfg.Security.Secrets)
			if err != nil {
				return err
			}
			manager = m
		}
		resolved, err := manager.Expand(context.Background(), *target.value)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", target.field, err)
		}
		*target.value = resolved
	}
	return nil
}

func newSecretManager(cfg SecretsConfig) (*secrets.Manager, error) {
	providers := []secrets.Provider{secrets.NewEnvProvider(cfg.EnvPrefix)}
	if cfg.Dir != "" {
		fp, err := secrets.NewFileProvider(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("invalid security.secrets.dir: %w", err)
		}
		providers = append(providers, fp)
	}
	return secrets.NewManager(providers...), nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// The bare names used by existing deployments (LOCAL_API_KEY, POE_API_KEY,
// MAX_FILE_SIZE_MB, LOG_LEVEL) are honored first; POEBRIDGE_SECTION_FIELD
// names take precedence over them.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("LOCAL_API_KEY"); val != "" {
		cfg.Security.LocalAPIKey = val
	}
	if val := os.Getenv("POE_API_KEY"); val != "" {
		cfg.Backend.APIKey = val
	}
	if val := os.Getenv("MAX_FILE_SIZE_MB"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Limits.MaxFileSizeMB = i
		}
	}
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = strings.ToLower(val)
	}

	// Server overrides
	envString("SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	envDuration("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	envDuration("SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	envDuration("SERVER_REQUEST_TIMEOUT", &cfg.Server.RequestTimeout)

	// Security and backend overrides
	envString("SECURITY_LOCAL_API_KEY", &cfg.Security.LocalAPIKey)
	envString("SECURITY_SECRETS_DIR", &cfg.Security.Secrets.Dir)
	envString("BACKEND_BASE_URL", &cfg.Backend.BaseURL)
	envString("BACKEND_UPLOAD_URL", &cfg.Backend.UploadURL)
	envString("BACKEND_API_KEY", &cfg.Backend.APIKey)
	envDuration("BACKEND_TIMEOUT", &cfg.Backend.Timeout)

	// Models overrides
	envString("MODELS_CATALOG_FILE", &cfg.Models.CatalogFile)
	envBool("MODELS_WATCH", &cfg.Models.Watch)
	envBool("MODELS_UNKNOWN_IMAGE_CAPABLE", &cfg.Models.UnknownImageCapable)

	// Limits overrides
	envInt("LIMITS_MAX_FILE_SIZE_MB", &cfg.Limits.MaxFileSizeMB)
	if val := os.Getenv(EnvPrefix + "LIMITS_MAX_ATTACHMENT_BYTES"); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Limits.MaxAttachmentBytes = i
		}
	}

	// Files overrides
	envString("FILES_BACKEND", &cfg.Files.Backend)
	envString("FILES_SQLITE_PATH", &cfg.Files.SQLite.Path)
	envString("FILES_SQLITE_DRIVER", &cfg.Files.SQLite.Driver)

	// Housekeeping overrides
	if val, ok := os.LookupEnv(EnvPrefix + "HOUSEKEEPING_SCHEDULE"); ok {
		cfg.Housekeeping.Schedule = val
	}

	// Telemetry overrides
	envString("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	envBool("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	envString("TELEMETRY_TRACING_SAMPLER", &cfg.Telemetry.Tracing.Sampler)
	if val := os.Getenv(EnvPrefix + "TELEMETRY_TRACING_SAMPLE_RATIO"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Telemetry.Tracing.SampleRatio = f
		}
	}
}

func envString(key string, dst *string) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		*dst = val
	}
}

func envInt(key string, dst *int) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envBool(key string, dst *bool) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
