// Package metrics provides diamond metrics collection.
// It wraps Prometheus collectors to provide structured telemetry for
// registry cuts, routed calls, rollbacks, journal commits and the HTTP surface.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector provides diamond metrics collection.
type Collector struct {
	registry *prometheus.Registry

	// Registry metrics
	cutsTotal      *prometheus.CounterVec
	cutSelectors   *prometheus.CounterVec
	cutLatency     *prometheus.HistogramVec
	selectorsGauge prometheus.Gauge
	facetsGauge    prometheus.Gauge

	// Routing metrics
	callsTotal  *prometheus.CounterVec
	callLatency *prometheus.HistogramVec
	rollbacks   *prometheus.CounterVec

	// Journal metrics
	journalCommits *prometheus.CounterVec
	journalLatency prometheus.Histogram

	// HTTP metrics
	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec

	uptime    prometheus.Gauge
	startTime time.Time

	mu sync.RWMutex
}

// NewCollector creates a new diamond metrics collector.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "diamond"
	}

	c := &Collector{
		registry:  prometheus.NewRegistry(),
		startTime: time.Now(),
	}

	c.cutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "cuts_total",
			Help:      "Total number of cut batches by result",
		},
		[]string{"result"},
	)

	c.cutSelectors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "cut_selectors_total",
			Help:      "Total number of selectors changed by committed cuts",
		},
		[]string{"action"},
	)

	c.cutLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "cut_duration_seconds",
			Help:      "Time taken to apply a cut batch",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14), // 100us to ~1.6s
		},
		[]string{"result"},
	)

	c.selectorsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "selectors",
			Help:      "Number of registered selectors",
		},
	)

	c.facetsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "facets",
			Help:      "Number of distinct facets with at least one selector",
		},
	)

	c.callsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "calls_total",
			Help:      "Total number of top-level routed calls",
		},
		[]string{"selector", "result"},
	)

	c.callLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "call_duration_seconds",
			Help:      "Time taken by a top-level routed call",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		},
		[]string{"selector"},
	)

	c.rollbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "rollbacks_total",
			Help:      "Total number of discarded state overlays by failure kind",
		},
		[]string{"kind"},
	)

	c.journalCommits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "commits_total",
			Help:      "Total number of journal commits by result",
		},
		[]string{"result"},
	)

	c.journalLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "commit_duration_seconds",
			Help:      "Time taken to persist a committed change set",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
	)

	c.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	c.httpLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	c.uptime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Diamond uptime in seconds",
		},
	)

	c.registry.MustRegister(
		c.cutsTotal,
		c.cutSelectors,
		c.cutLatency,
		c.selectorsGauge,
		c.facetsGauge,
		c.callsTotal,
		c.callLatency,
		c.rollbacks,
		c.journalCommits,
		c.journalLatency,
		c.httpRequests,
		c.httpLatency,
		c.uptime,
	)

	return c
}

// Registry returns the Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordCut records a cut batch. changes maps action name to selector count
// and is only counted for successful batches.
func (c *Collector) RecordCut(changes map[string]int, duration time.Duration, err error) {
	r := result(err)
	c.cutsTotal.WithLabelValues(r).Inc()
	c.cutLatency.WithLabelValues(r).Observe(duration.Seconds())
	if err != nil {
		return
	}
	for action, n := range changes {
		c.cutSelectors.WithLabelValues(action).Add(float64(n))
	}
}

// RecordRegistrySize records the current registry size.
func (c *Collector) RecordRegistrySize(selectors, facets int) {
	c.selectorsGauge.Set(float64(selectors))
	c.facetsGauge.Set(float64(facets))
}

// RecordCall records a top-level routed call.
func (c *Collector) RecordCall(selector string, duration time.Duration, err error) {
	c.callsTotal.WithLabelValues(selector, result(err)).Inc()
	c.callLatency.WithLabelValues(selector).Observe(duration.Seconds())
}

// RecordRollback records a discarded state overlay.
func (c *Collector) RecordRollback(kind string) {
	c.rollbacks.WithLabelValues(kind).Inc()
}

// RecordJournalCommit records a journal write.
func (c *Collector) RecordJournalCommit(duration time.Duration, err error) {
	c.journalCommits.WithLabelValues(result(err)).Inc()
	c.journalLatency.Observe(duration.Seconds())
}

// RecordHTTPRequest records a served HTTP request.
func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, statusClass(status)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// UpdateUptime updates the uptime metric.
func (c *Collector) UpdateUptime() {
	c.mu.RLock()
	start := c.startTime
	c.mu.RUnlock()
	c.uptime.Set(time.Since(start).Seconds())
}

// Reset resets gauges and the uptime origin.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selectorsGauge.Set(0)
	c.facetsGauge.Set(0)
	c.startTime = time.Now()
}

// NoOpCollector is a metrics collector that discards all metrics.
type NoOpCollector struct{}

// NewNoOpCollector creates a no-op metrics collector.
func NewNoOpCollector() *NoOpCollector {
	return &NoOpCollector{}
}

func (*NoOpCollector) RecordCut(map[string]int, time.Duration, error)         {}
func (*NoOpCollector) RecordRegistrySize(selectors, facets int)              {}
func (*NoOpCollector) RecordCall(string, time.Duration, error)                {}
func (*NoOpCollector) RecordRollback(kind string)                            {}
func (*NoOpCollector) RecordJournalCommit(time.Duration, error)               {}
func (*NoOpCollector) RecordHTTPRequest(string, string, int, time.Duration)   {}
func (*NoOpCollector) UpdateUptime()                                         {}
func (*NoOpCollector) Reset()                                                {}

// MetricsCollector is the interface for metrics collection.
type MetricsCollector interface {
	RecordCut(changes map[string]int, duration time.Duration, err error)
	RecordRegistrySize(selectors, facets int)
	RecordCall(selector string, duration time.Duration, err error)
	RecordRollback(kind string)
	RecordJournalCommit(duration time.Duration, err error)
	RecordHTTPRequest(method, route string, status int, duration time.Duration)
	UpdateUptime()
	Reset()
}

// Verify interface compliance
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = (*NoOpCollector)(nil)
)
