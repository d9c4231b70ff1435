package config

import "time"

// Config is the root configuration structure for poebridge.
// It contains every section needed to serve the OpenAI-compatible API on top
// of the Poe backend: the HTTP server, local authentication, the backend
// client, the model catalog, limits, the simulated endpoints, the in-memory
// stores and telemetry.
type Config struct {
	// Server contains HTTP server configuration including listen address,
	// timeouts, body limits and CORS.
	Server ServerConfig `yaml:"server"`

	// Security contains the local API key clients must present.
	Security SecurityConfig `yaml:"security"`

	// Backend contains configuration for the Poe bot-query API client.
	Backend BackendConfig `yaml:"backend"`

	// Models contains configuration for the model capability table.
	Models ModelsConfig `yaml:"models"`

	// Limits contains upload and attachment size limits.
	Limits LimitsConfig `yaml:"limits"`

	// Attachments contains remote attachment fetching configuration.
	Attachments AttachmentsConfig `yaml:"attachments"`

	// Chat contains chat completion adapter configuration.
	Chat ChatConfig `yaml:"chat"`

	// Embeddings contains configuration for the simulated embeddings endpoint.
	Embeddings EmbeddingsConfig `yaml:"embeddings"`

	// Moderations contains configuration for the simulated moderation endpoint.
	Moderations ModerationsConfig `yaml:"moderations"`

	// Images contains configuration for the image endpoints.
	Images ImagesConfig `yaml:"images"`

	// Files contains configuration for the file registry.
	Files FilesConfig `yaml:"files"`

	// Assistants contains configuration for the assistants state store.
	Assistants AssistantsConfig `yaml:"assistants"`

	// Housekeeping contains the periodic statistics job schedule.
	Housekeeping HousekeepingConfig `yaml:"housekeeping"`

	// Telemetry contains configuration for logging, metrics, tracing and health.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8080", "0.0.0.0:8000").
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body.
	// Default: 60s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. Streaming completions hold the connection open, so this is
	// intentionally generous.
	// Default: 10m
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// RequestTimeout bounds the handling of a single request, including
	// the backend call and any streamed response.
	// Default: 10m
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing the request header.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// MaxBodyBytes caps JSON request bodies. Multipart uploads are capped by
	// limits.max_file_size_mb instead.
	// Default: 67108864 (64MB)
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// CORS contains Cross-Origin Resource Sharing configuration.
	CORS CORSConfig `yaml:"cors"`

	// TLS enables HTTPS termination.
	TLS TLSConfig `yaml:"tls"`
}

// TLSConfig contains HTTPS configuration.
type TLSConfig struct {
	// Enabled serves HTTPS instead of plain HTTP.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// CertFile is the PEM certificate chain.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the PEM private key.
	KeyFile string `yaml:"key_file"`

	// MinVersion is the lowest accepted protocol version.
	// Options: "1.2", "1.3"
	// Default: "1.2"
	MinVersion string `yaml:"min_version"`

	// ReloadInterval is how often the key pair is checked for changes.
	// Default: 5m
	ReloadInterval time.Duration `yaml:"reload_interval"`
}

// CORSConfig contains CORS configuration.
type CORSConfig struct {
	// Enabled controls whether CORS headers are added.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// AllowedOrigins is a list of allowed origins. Use ["*"] to allow all.
	// Default: ["*"]
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods is a list of allowed HTTP methods.
	// Default: ["GET", "POST", "DELETE", "OPTIONS"]
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders is a list of allowed request headers.
	// Default: ["Authorization", "Content-Type", "X-API-Key", "X-Request-ID", "OpenAI-Beta"]
	AllowedHeaders []string `yaml:"allowed_headers"`

	// ExposedHeaders is a list of headers exposed to browsers.
	// Default: ["X-Request-ID"]
	ExposedHeaders []string `yaml:"exposed_headers"`

	// MaxAge is the preflight cache duration in seconds.
	// Default: 3600
	MaxAge int `yaml:"max_age"`

	// AllowCredentials controls Access-Control-Allow-Credentials.
	// Default: false
	AllowCredentials bool `yaml:"allow_credentials"`
}

// SecurityConfig contains local authentication configuration.
type SecurityConfig struct {
	// LocalAPIKey is the single secret clients must present as a bearer
	// token, an x-api-key header or a raw Authorization value.
	// Environment: LOCAL_API_KEY
	// Required. The placeholder "your-local-api-key" is rejected.
	LocalAPIKey string `yaml:"local_api_key"`

	// Secrets configures how ${secret:name} references in local_api_key and
	// backend.api_key are resolved.
	Secrets SecretsConfig `yaml:"secrets"`
}

// SecretsConfig lists the sources consulted for ${secret:name} references.
// Environment variables are tried before the secrets directory.
type SecretsConfig struct {
	// EnvPrefix is prepended to the upper-cased secret name.
	// Default: "POEBRIDGE_SECRET_"
	EnvPrefix string `yaml:"env_prefix"`

	// Dir is a directory holding one file per secret, such as a Docker or
	// Kubernetes secrets mount. Empty disables file lookups.
	Dir string `yaml:"dir"`
}

// BackendConfig contains configuration for the Poe backend client.
type BackendConfig struct {
	// BaseURL is the bot-query endpoint prefix. The bot name is appended.
	// Default: "https://api.poe.com/bot/"
	BaseURL string `yaml:"base_url"`

	// UploadURL is the attachment upload endpoint.
	// Default: "https://www.quora.com/poe_api/file_upload_3RD_PARTY_POST"
	UploadURL string `yaml:"upload_url"`

	// APIKey is the Poe API key.
	// Environment: POE_API_KEY
	// Required.
	APIKey string `yaml:"api_key"`

	// Timeout bounds a single backend call including the whole event stream.
	// Default: 10m
	Timeout time.Duration `yaml:"timeout"`

	// MaxIdleConns is the size of the idle connection pool.
	// Default: 100
	MaxIdleConns int `yaml:"max_idle_conns"`

	// IdleConnTimeout is how long idle pooled connections are kept.
	// Default: 90s
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

// ModelsConfig contains configuration for the model capability table.
type ModelsConfig struct {
	// CatalogFile is an optional YAML file that adds or overrides catalog
	// entries on top of the built-in table.
	// Default: "" (built-in table only)
	CatalogFile string `yaml:"catalog_file"`

	// Watch reloads CatalogFile when it changes on disk.
	// Default: false
	Watch bool `yaml:"watch"`

	// UnknownImageCapable controls whether models missing from the catalog
	// accept image and file content parts.
	// Default: false
	UnknownImageCapable bool `yaml:"unknown_image_capable"`
}

// LimitsConfig contains size limits.
type LimitsConfig struct {
	// MaxFileSizeMB is the maximum size of an uploaded file in megabytes.
	// Environment: MAX_FILE_SIZE_MB
	// Default: 50
	MaxFileSizeMB int `yaml:"max_file_size_mb"`

	// MaxAttachmentBytes is the maximum decoded size of a single chat
	// attachment. Zero means the same limit as uploaded files.
	// Default: 0
	MaxAttachmentBytes int64 `yaml:"max_attachment_bytes"`
}

// FileSizeLimit returns the upload limit in bytes.
func (l LimitsConfig) FileSizeLimit() int64 {
	return int64(l.MaxFileSizeMB) * 1024 * 1024
}

// AttachmentLimit returns the effective per-attachment limit in bytes.
func (l LimitsConfig) AttachmentLimit() int64 {
	if l.MaxAttachmentBytes > 0 {
		return l.MaxAttachmentBytes
	}
	return l.FileSizeLimit()
}

// AttachmentsConfig contains remote attachment fetching configuration.
type AttachmentsConfig struct {
	// FetchTimeout bounds fetching a remote_url attachment.
	// Default: 15s
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// ChatConfig contains chat completion adapter configuration.
type ChatConfig struct {
	// ToolLookaheadBytes is the maximum number of bytes withheld from a
	// stream while deciding whether they belong to fallback tool-call syntax.
	// Default: 8192
	ToolLookaheadBytes int `yaml:"tool_lookahead_bytes"`
}

// EmbeddingsConfig contains configuration for the simulated embeddings endpoint.
type EmbeddingsConfig struct {
	// DefaultDimensions is the vector length when the request omits dimensions.
	// Default: 1536
	DefaultDimensions int `yaml:"default_dimensions"`

	// PromptDimensions caps how many values the backend is asked for; the
	// remainder is padded deterministically.
	// Default: 100
	PromptDimensions int `yaml:"prompt_dimensions"`

	// BackendModel is the bot used when the requested model is not mapped.
	// Default: "Claude-3-Haiku"
	BackendModel string `yaml:"backend_model"`

	// ModelMap maps OpenAI embedding model names to backend bots.
	ModelMap map[string]string `yaml:"model_map"`
}

// ModerationsConfig contains configuration for the simulated moderation endpoint.
type ModerationsConfig struct {
	// BackendModel is the bot asked for the safety verdict.
	// Default: "gpt-4o-mini"
	BackendModel string `yaml:"backend_model"`

	// DefaultModel is echoed when the request omits model.
	// Default: "text-moderation-latest"
	DefaultModel string `yaml:"default_model"`
}

// ImagesConfig contains configuration for the image endpoints.
type ImagesConfig struct {
	// DefaultModel is used when the request omits model.
	// Default: "dall-e-3"
	DefaultModel string `yaml:"default_model"`

	// ModelMap maps OpenAI image model names to backend bots.
	ModelMap map[string]string `yaml:"model_map"`

	// DownloadTimeout bounds downloading a generated image for b64_json.
	// Default: 30s
	DownloadTimeout time.Duration `yaml:"download_timeout"`
}

// FilesConfig contains configuration for the file registry.
type FilesConfig struct {
	// Backend selects where uploaded bytes are kept.
	// Options: "memory", "sqlite"
	// Default: "memory"
	Backend string `yaml:"backend"`

	// AllowedTypes is the MIME type allowlist for uploads.
	// Default: text/plain, text/markdown, text/csv, application/pdf,
	// application/json, image/jpeg, image/png, image/gif, image/webp
	AllowedTypes []string `yaml:"allowed_types"`

	// SQLite contains SQLite store configuration.
	SQLite SQLiteConfig `yaml:"sqlite"`
}

// SQLiteConfig contains SQLite database configuration.
type SQLiteConfig struct {
	// Path is the database file path.
	// Default: "data/files.db"
	Path string `yaml:"path"`

	// Driver selects the database/sql driver.
	// Options: "sqlite" (pure Go), "sqlite3" (cgo)
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// WALMode enables Write-Ahead Logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// AssistantsConfig contains configuration for the assistants state store.
type AssistantsConfig struct {
	// RunTimeout bounds the backend call made for one run.
	// Default: 5m
	RunTimeout time.Duration `yaml:"run_timeout"`
}

// HousekeepingConfig contains configuration for the periodic statistics job.
type HousekeepingConfig struct {
	// Schedule is a standard cron expression. Empty disables the job.
	// Default: "*/5 * * * *"
	Schedule string `yaml:"schedule"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`

	// Health contains health check configuration.
	Health HealthConfig `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Environment: LOG_LEVEL
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactSecrets masks API keys and bearer tokens in log attributes.
	// Default: true
	RedactSecrets bool `yaml:"redact_secrets"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and exposed.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "poebridge"
	Namespace string `yaml:"namespace"`

	// RequestDurationBuckets defines histogram buckets in seconds.
	// Default: [0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120]
	RequestDurationBuckets []float64 `yaml:"request_duration_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether spans are exported.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS to the collector.
	// Default: true
	Insecure bool `yaml:"insecure"`

	// ServiceName is the service name in traces.
	// Default: "poebridge"
	ServiceName string `yaml:"service_name"`
}

// HealthConfig contains health check configuration.
type HealthConfig struct {
	// CheckTimeout bounds each readiness check.
	// Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}
