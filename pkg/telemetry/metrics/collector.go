package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"mercator-hq/poebridge/pkg/config"
)

// overflowLabel replaces label values once the cardinality limit is reached.
const overflowLabel = "other"

// Collector owns every poebridge metric. It satisfies the observer
// interfaces of the dispatcher, the backend client, the stream multiplexer
// and the chat adapter, so one value can be handed to all of them.
//
// A disabled collector still accepts calls and records nothing.
type Collector struct {
	config   config.MetricsConfig
	registry *prometheus.Registry

	requests *RequestMetrics
	backend  *BackendMetrics
	store    *StoreMetrics

	// Bot names come from client input, so they are capped.
	bots *CardinalityLimiter
}

// NewCollector creates a collector registered on registry. If registry is
// nil a fresh one is created, which also carries the Go runtime and process
// collectors.
func NewCollector(cfg config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "poebridge"
	}
	if len(cfg.RequestDurationBuckets) == 0 {
		cfg.RequestDurationBuckets = []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120}
	}

	return &Collector{
		config:   cfg,
		registry: registry,
		requests: NewRequestMetrics(cfg, registry),
		backend:  NewBackendMetrics(cfg, registry),
		store:    NewStoreMetrics(cfg, registry),
		bots:     NewCardinalityLimiter(500),
	}
}

// ObserveRequest records one finished HTTP request.
func (c *Collector) ObserveRequest(route string, status int, d time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.requests.Record(route, strconv.Itoa(status), d)
}

// ObserveBackend records one backend call.
func (c *Collector) ObserveBackend(bot, outcome string, d time.Duration) {
	if !c.config.Enabled {
		return
	}
	if !c.bots.Allow(bot) {
		bot = overflowLabel
	}
	c.backend.Record(bot, outcome, d)
}

// ObserveStreamChunk counts one chunk emitted to a streaming client.
func (c *Collector) ObserveStreamChunk() {
	if !c.config.Enabled {
		return
	}
	c.backend.streamChunks.Inc()
}

// ObserveToolCalls counts tool calls recovered from a reply.
func (c *Collector) ObserveToolCalls(mode string, n int) {
	if !c.config.Enabled || n <= 0 {
		return
	}
	c.backend.toolCalls.WithLabelValues(mode).Add(float64(n))
}

// SetFileStats publishes the file registry totals.
func (c *Collector) SetFileStats(count int, bytes int64) {
	if !c.config.Enabled {
		return
	}
	c.store.SetFiles(count, bytes)
}

// SetRecords publishes the number of stored records of one kind.
func (c *Collector) SetRecords(kind string, n int) {
	if !c.config.Enabled {
		return
	}
	c.store.records.WithLabelValues(kind).Set(float64(n))
}

// ObserveHousekeeping records one run of the statistics job.
func (c *Collector) ObserveHousekeeping(ok bool) {
	if !c.config.Enabled {
		return
	}
	c.store.RecordRun(ok)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of distinct values one label may take.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a limiter admitting at most maxCardinality
// distinct values.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether value is already tracked or can still be admitted.
func (cl *CardinalityLimiter) Allow(value string) bool {
	cl.mu.RLock()
	_, exists := cl.current[value]
	cl.mu.RUnlock()
	if exists {
		return true
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()
	if _, exists := cl.current[value]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[value] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
