// Package metrics exposes Prometheus metrics for poebridge.
//
// A single Collector implements the observer interfaces used across the
// server, so wiring is one value passed to several constructors:
//
//	collector := metrics.NewCollector(cfg.Telemetry.Metrics, nil)
//	client := backend.New(cfg.Backend, backend.WithObserver(collector))
//	dispatcher := handlers.NewDispatcher(handlers.Deps{Observer: collector, ...})
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// # Metrics
//
//   - poebridge_http_requests_total{route,status}
//   - poebridge_http_request_duration_seconds{route}
//   - poebridge_backend_requests_total{bot,outcome}
//   - poebridge_backend_request_duration_seconds{bot}
//   - poebridge_stream_chunks_total
//   - poebridge_tool_calls_total{mode}
//   - poebridge_files_stored, poebridge_files_bytes
//   - poebridge_assistants_records{kind}
//   - poebridge_housekeeping_runs_total{result}
//
// The bot label is capped at 500 distinct values; later bots are counted
// under "other".
package metrics
