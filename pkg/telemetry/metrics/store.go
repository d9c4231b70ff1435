package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/poebridge/pkg/config"
)

// StoreMetrics exposes the size of the local stores. The gauges are set by
// the housekeeping job rather than on every write.
//
// Metrics:
//   - poebridge_files_stored
//   - poebridge_files_bytes
//   - poebridge_assistants_records{kind}
//   - poebridge_housekeeping_runs_total{result}
type StoreMetrics struct {
	files   prometheus.Gauge
	bytes   prometheus.Gauge
	records *prometheus.GaugeVec
	runs    *prometheus.CounterVec
}

// NewStoreMetrics creates and registers store metrics.
func NewStoreMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *StoreMetrics {
	sm := &StoreMetrics{
		files: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: "files",
			Name:      "stored",
			Help:      "Number of files held by the file registry",
		}),
		bytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: "files",
			Name:      "bytes",
			Help:      "Total size of files held by the file registry",
		}),
		records: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: "assistants",
			Name:      "records",
			Help:      "Number of assistants, threads, messages and runs held in memory",
		}, []string{"kind"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "housekeeping",
			Name:      "runs_total",
			Help:      "Number of housekeeping runs by result",
		}, []string{"result"}),
	}

	registry.MustRegister(sm.files, sm.bytes, sm.records, sm.runs)
	return sm
}

// SetFiles sets the file registry gauges.
func (sm *StoreMetrics) SetFiles(count int, bytes int64) {
	sm.files.Set(float64(count))
	sm.bytes.Set(float64(bytes))
}

// RecordRun counts one housekeeping run.
func (sm *StoreMetrics) RecordRun(ok bool) {
	result := "success"
	if !ok {
		result = "error"
	}
	sm.runs.WithLabelValues(result).Inc()
}
