/*
Package auth guards the API with the single local API key.

Clients may present the key in any of three places, checked in order:

	Authorization: Bearer <key>
	x-api-key: <key>
	Authorization: <key>

The comparison is constant-time. A request without any credential fails
with code "missing_api_key"; a wrong credential fails with
"invalid_api_key". Both are 401.

# Basic Usage

	guard := auth.NewGuard(cfg.Security)
	handler := guard.Handle(next, writeError)

Inside a guarded handler the key fingerprint is available for logging:

	id, _ := auth.KeyID(r.Context())
*/
package auth
