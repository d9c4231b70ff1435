package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 60 * time.Second
	DefaultWriteTimeout    = 10 * time.Minute
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultRequestTimeout  = 10 * time.Minute
	DefaultMaxHeaderBytes  = 1048576  // 1MB
	DefaultMaxBodyBytes    = 67108864 // 64MB

	// TLS defaults
	DefaultTLSMinVersion     = "1.2"
	DefaultTLSReloadInterval = 5 * time.Minute

	// CORS defaults
	DefaultCORSEnabled = true
	DefaultCORSMaxAge  = 3600 // 1 hour

	// Security defaults
	PlaceholderLocalAPIKey  = "your-local-api-key"
	DefaultSecretsEnvPrefix = "POEBRIDGE_SECRET_"

	// Backend defaults
	DefaultBackendBaseURL         = "https://api.poe.com/bot/"
	DefaultBackendUploadURL       = "https://www.quora.com/poe_api/file_upload_3RD_PARTY_POST"
	DefaultBackendTimeout         = 10 * time.Minute
	DefaultBackendMaxIdleConns    = 100
	DefaultBackendIdleConnTimeout = 90 * time.Second

	// Limits defaults
	DefaultMaxFileSizeMB = 50

	// Attachment defaults
	DefaultAttachmentFetchTimeout = 15 * time.Second

	// Chat defaults
	DefaultToolLookaheadBytes = 8192

	// Embeddings defaults
	DefaultEmbeddingDimensions       = 1536
	DefaultEmbeddingPromptDimensions = 100
	DefaultEmbeddingBackendModel     = "Claude-3-Haiku"

	// Moderation defaults
	DefaultModerationBackendModel = "gpt-4o-mini"
	DefaultModerationModel        = "text-moderation-latest"

	// Image defaults
	DefaultImageModel           = "dall-e-3"
	DefaultImageDownloadTimeout = 30 * time.Second

	// Files defaults
	DefaultFilesBackend       = "memory"
	DefaultSQLitePath         = "data/files.db"
	DefaultSQLiteDriver       = "sqlite"
	DefaultSQLiteMaxOpenConns = 10
	DefaultSQLiteWALMode      = true
	DefaultSQLiteBusyTimeout  = 5 * time.Second

	// Assistants defaults
	DefaultRunTimeout = 5 * time.Minute

	// Housekeeping defaults
	DefaultHousekeepingSchedule = "*/5 * * * *"

	// Telemetry defaults
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "json"
	DefaultLogRedactSecrets   = true
	DefaultMetricsEnabled     = true
	DefaultMetricsPath        = "/metrics"
	DefaultMetricsNamespace   = "poebridge"
	DefaultTracingEnabled     = false
	DefaultTracingSampler     = "ratio"
	DefaultTracingSampleRatio = 0.1
	DefaultTracingEndpoint    = "localhost:4317"
	DefaultTracingInsecure    = true
	DefaultTracingServiceName = "poebridge"
	DefaultHealthCheckTimeout = 5 * time.Second
)

// DefaultAllowedFileTypes is the upload MIME allowlist.
var DefaultAllowedFileTypes = []string{
	"text/plain",
	"text/markdown",
	"text/csv",
	"application/pdf",
	"application/json",
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
}

// DefaultEmbeddingModelMap maps OpenAI embedding models to backend bots.
var DefaultEmbeddingModelMap = map[string]string{
	"text-embedding-ada-002": "Claude-3-Haiku",
	"text-embedding-3-small": "Claude-3-Haiku",
	"text-embedding-3-large": "Claude-3.5-Sonnet",
}

// DefaultImageModelMap maps OpenAI image models to backend bots.
var DefaultImageModelMap = map[string]string{
	"dall-e-2":            "DALL-E-3",
	"dall-e-3":            "DALL-E-3",
	"stable-diffusion":    "StableDiffusionXL",
	"stable-diffusion-xl": "StableDiffusionXL",
	"stable-diffusion-3":  "StableDiffusion3",
	"playground-v2":       "Playground-v2",
}

// DefaultRequestDurationBuckets is tuned for LLM latencies (100ms to 2m).
var DefaultRequestDurationBuckets = []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120}

// Defaults returns a configuration with every field set to its default.
// Boolean fields that default to true are set here so that a YAML document
// decoded on top of the result can still turn them off explicitly.
func Defaults() *Config {
	cfg := &Config{}
	cfg.Server.CORS.Enabled = DefaultCORSEnabled
	cfg.Files.SQLite.WALMode = DefaultSQLiteWALMode
	cfg.Telemetry.Logging.RedactSecrets = DefaultLogRedactSecrets
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	cfg.Telemetry.Tracing.Enabled = DefaultTracingEnabled
	cfg.Telemetry.Tracing.Insecure = DefaultTracingInsecure
	// An explicit empty schedule disables housekeeping, so it is not
	// covered by ApplyDefaults.
	cfg.Housekeeping.Schedule = DefaultHousekeepingSchedule
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills every zero-valued field with its default value.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}
	applyCORSDefaults(&cfg.Server.CORS)
	if cfg.Server.TLS.MinVersion == "" {
		cfg.Server.TLS.MinVersion = DefaultTLSMinVersion
	}
	if cfg.Server.TLS.ReloadInterval == 0 {
		cfg.Server.TLS.ReloadInterval = DefaultTLSReloadInterval
	}

	if cfg.Security.Secrets.EnvPrefix == "" {
		cfg.Security.Secrets.EnvPrefix = DefaultSecretsEnvPrefix
	}

	// Backend defaults
	if cfg.Backend.BaseURL == "" {
		cfg.Backend.BaseURL = DefaultBackendBaseURL
	}
	if cfg.Backend.UploadURL == "" {
		cfg.Backend.UploadURL = DefaultBackendUploadURL
	}
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = DefaultBackendTimeout
	}
	if cfg.Backend.MaxIdleConns == 0 {
		cfg.Backend.MaxIdleConns = DefaultBackendMaxIdleConns
	}
	if cfg.Backend.IdleConnTimeout == 0 {
		cfg.Backend.IdleConnTimeout = DefaultBackendIdleConnTimeout
	}

	// Limits
	if cfg.Limits.MaxFileSizeMB == 0 {
		cfg.Limits.MaxFileSizeMB = DefaultMaxFileSizeMB
	}
	if cfg.Attachments.FetchTimeout == 0 {
		cfg.Attachments.FetchTimeout = DefaultAttachmentFetchTimeout
	}
	if cfg.Chat.ToolLookaheadBytes == 0 {
		cfg.Chat.ToolLookaheadBytes = DefaultToolLookaheadBytes
	}

	// Simulated endpoints
	if cfg.Embeddings.DefaultDimensions == 0 {
		cfg.Embeddings.DefaultDimensions = DefaultEmbeddingDimensions
	}
	if cfg.Embeddings.PromptDimensions == 0 {
		cfg.Embeddings.PromptDimensions = DefaultEmbeddingPromptDimensions
	}
	if cfg.Embeddings.BackendModel == "" {
		cfg.Embeddings.BackendModel = DefaultEmbeddingBackendModel
	}
	cfg.Embeddings.ModelMap = mergeDefaults(cfg.Embeddings.ModelMap, DefaultEmbeddingModelMap)
	if cfg.Moderations.BackendModel == "" {
		cfg.Moderations.BackendModel = DefaultModerationBackendModel
	}
	if cfg.Moderations.DefaultModel == "" {
		cfg.Moderations.DefaultModel = DefaultModerationModel
	}

	// Images
	if cfg.Images.DefaultModel == "" {
		cfg.Images.DefaultModel = DefaultImageModel
	}
	if cfg.Images.DownloadTimeout == 0 {
		cfg.Images.DownloadTimeout = DefaultImageDownloadTimeout
	}
	cfg.Images.ModelMap = mergeDefaults(cfg.Images.ModelMap, DefaultImageModelMap)

	// Files
	if cfg.Files.Backend == "" {
		cfg.Files.Backend = DefaultFilesBackend
	}
	if len(cfg.Files.AllowedTypes) == 0 {
		cfg.Files.AllowedTypes = append([]string(nil), DefaultAllowedFileTypes...)
	}
	if cfg.Files.SQLite.Path == "" {
		cfg.Files.SQLite.Path = DefaultSQLitePath
	}
	if cfg.Files.SQLite.Driver == "" {
		cfg.Files.SQLite.Driver = DefaultSQLiteDriver
	}
	if cfg.Files.SQLite.MaxOpenConns == 0 {
		cfg.Files.SQLite.MaxOpenConns = DefaultSQLiteMaxOpenConns
	}
	if cfg.Files.SQLite.BusyTimeout == 0 {
		cfg.Files.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}

	if cfg.Assistants.RunTimeout == 0 {
		cfg.Assistants.RunTimeout = DefaultRunTimeout
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if len(cfg.Telemetry.Metrics.RequestDurationBuckets) == 0 {
		cfg.Telemetry.Metrics.RequestDurationBuckets = append([]float64(nil), DefaultRequestDurationBuckets...)
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Telemetry.Tracing.Endpoint == "" {
		cfg.Telemetry.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Telemetry.Health.CheckTimeout == 0 {
		cfg.Telemetry.Health.CheckTimeout = DefaultHealthCheckTimeout
	}
}

func applyCORSDefaults(cors *CORSConfig) {
	if len(cors.AllowedOrigins) == 0 {
		cors.AllowedOrigins = []string{"*"}
	}
	if len(cors.AllowedMethods) == 0 {
		cors.AllowedMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	}
	if len(cors.AllowedHeaders) == 0 {
		cors.AllowedHeaders = []string{"Authorization", "Content-Type", "X-API-Key", "X-Request-ID", "OpenAI-Beta"}
	}
	if len(cors.ExposedHeaders) == 0 {
		cors.ExposedHeaders = []string{"X-Request-ID"}
	}
	if cors.MaxAge == 0 {
		cors.MaxAge = DefaultCORSMaxAge
	}
}

// mergeDefaults returns m with every key of defaults that m does not set.
func mergeDefaults(m, defaults map[string]string) map[string]string {
	if m == nil {
		m = make(map[string]string, len(defaults))
	}
	for k, v := range defaults {
		if _, ok := m[k]; !ok {
			m[k] = v
		}
	}
	return m
}
