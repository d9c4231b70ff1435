// Package secrets resolves ${secret:name} references in configuration
// values. Names are looked up in an ordered list of providers: environment
// variables (POEBRIDGE_SECRET_<NAME>) and a directory of secret files such
// as a Docker or Kubernetes secrets mount.
//
//	m := secrets.NewManager(secrets.NewEnvProvider(secrets.DefaultEnvPrefix), fileProvider)
//	key, err := m.Expand(ctx, "${secret:poe-api-key}")
package secrets
