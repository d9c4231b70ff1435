// Package server assembles the poebridge service graph and runs the HTTP
// listener.
//
// New builds every component from a *config.Config: the Poe backend client,
// the model capability table and its watcher, the file registry, the chat
// adapter, the simulated endpoints, the image generator, the assistants
// store, health checks, the local-key guard and the metrics collector. All
// API routes go through one handlers.Dispatcher; the Prometheus endpoint is
// mounted beside it when metrics are enabled.
//
// The middleware chain, outermost first:
//
//	Recovery -> RequestID -> Logging -> Tracing -> CORS -> Timeout -> mux
//
// # Usage
//
//	srv, err := server.New(ctx, cfg, version)
//	if err != nil {
//	    return err
//	}
//	// Blocks until ctx is cancelled, then shuts down gracefully.
//	return srv.Start(ctx)
//
// Tests mount Handler in an httptest.Server and pass WithBackend to replace
// the Poe client.
package server
