// Package config provides configuration management for poebridge.
//
// Configuration is loaded once at startup and treated as immutable data: the
// resulting *Config is passed explicitly to the components that need it
// (auth guard, backend client, stores) rather than read from global state.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only (an empty path yields defaults):
//     cfg, err := config.LoadConfig("config.yaml")
//
//  2. From a YAML file with .env and environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// # Environment Variable Overrides
//
// The bare variable names LOCAL_API_KEY, POE_API_KEY, MAX_FILE_SIZE_MB and
// LOG_LEVEL are honored. Structured overrides follow the naming convention
// POEBRIDGE_SECTION_FIELD and take precedence. For example:
//
//   - POEBRIDGE_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - POEBRIDGE_FILES_BACKEND overrides files.backend
//   - POEBRIDGE_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Configuration Precedence
//
// Values are applied in the following order (later overrides earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from the YAML file
//  3. Variables from a .env file, unless already set in the environment
//  4. Environment variable overrides
//  5. Validation (fails fast if invalid)
//
// # Example Configuration
//
//	server:
//	  listen_address: "0.0.0.0:8000"
//	security:
//	  local_api_key: "sk-local-..."
//	backend:
//	  api_key: "..."
//	files:
//	  backend: "sqlite"
//	  sqlite:
//	    path: "data/files.db"
//	telemetry:
//	  logging:
//	    level: "debug"
package config
