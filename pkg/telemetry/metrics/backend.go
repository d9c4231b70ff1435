package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/poebridge/pkg/config"
)

// BackendMetrics tracks calls to the Poe backend.
//
// Metrics:
//   - poebridge_backend_requests_total{bot,outcome}
//   - poebridge_backend_request_duration_seconds{bot}
//   - poebridge_stream_chunks_total
//   - poebridge_tool_calls_total{mode}
type BackendMetrics struct {
	requests     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	streamChunks prometheus.Counter
	toolCalls    *prometheus.CounterVec
}

// NewBackendMetrics creates and registers backend metrics.
func NewBackendMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *BackendMetrics {
	bm := &BackendMetrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "backend",
				Name:      "requests_total",
				Help:      "Total number of backend calls by bot and outcome",
			},
			[]string{"bot", "outcome"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "backend",
				Name:      "request_duration_seconds",
				Help:      "Duration of backend calls in seconds",
				Buckets:   cfg.RequestDurationBuckets,
			},
			[]string{"bot"},
		),
		streamChunks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "stream_chunks_total",
				Help:      "Total number of chunks sent to streaming clients",
			},
		),
		toolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "tool_calls_total",
				Help:      "Total number of tool calls recovered from replies",
			},
			[]string{"mode"},
		),
	}

	registry.MustRegister(bm.requests, bm.latency, bm.streamChunks, bm.toolCalls)
	return bm
}

// Record records one backend call.
func (bm *BackendMetrics) Record(bot, outcome string, d time.Duration) {
	bm.requests.WithLabelValues(bot, outcome).Inc()
	bm.latency.WithLabelValues(bot).Observe(d.Seconds())
}
