/*
Package security groups the transport and credential concerns of poebridge.

# TLS

Subpackage tls builds the server's *tls.Config from the server.tls section
and reloads the certificate pair when the files change on disk:

	tlsCfg, err := tls.ServerConfig(ctx, cfg.Server.TLS)

# Secrets

Subpackage secrets resolves ${secret:name} references in the local and
backend API keys from environment variables or a secrets directory.

# Local authentication

Subpackage auth checks the local API key on every /v1 request. A key is
accepted as a bearer token, an x-api-key header or a raw Authorization
value, and comparisons are constant time:

	guard := auth.NewGuard(cfg.Security)
	handler := guard.Handle(next, proxy.WriteError)
*/
package security
