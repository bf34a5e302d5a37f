// Package monitoring holds the prometheus collectors of the ordering engine.
package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry and the engine's metrics.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry  *prometheus.Registry
	metrics   map[string]prometheus.Collector
	startTime time.Time
}

// NewCollector creates and registers every metric
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	turnDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "maitred_turn_duration_seconds",
			Help:    "Time taken to handle one conversation turn",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		},
		[]string{"event", "state"},
	)

	extractions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maitred_extractions_total",
			Help: "Extraction attempts by outcome",
		},
		[]string{"status"},
	)

	extractionDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "maitred_extraction_duration_seconds",
			Help:    "Latency of the extraction backend",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)

	upsells := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maitred_upsell_events_total",
			Help: "Upsell suggestions by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	conflicts := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "maitred_session_conflicts_total",
			Help: "Turns that found their conversation busy",
		},
	)

	sessions := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "maitred_active_sessions",
			Help: "Conversation sessions held in memory",
		},
	)

	accuracy := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "maitred_intent_accuracy_ratio",
			Help: "Share of rated intents marked correct, as of the last query",
		},
		[]string{"tenant"},
	)

	metrics := map[string]prometheus.Collector{
		"turn_duration":       turnDuration,
		"extractions":         extractions,
		"extraction_duration": extractionDuration,
		"upsells":             upsells,
		"conflicts":           conflicts,
		"sessions":            sessions,
		"accuracy":            accuracy,
	}
	for _, metric := range metrics {
		registry.MustRegister(metric)
	}

	return &Collector{
		registry:  registry,
		metrics:   metrics,
		startTime: time.Now(),
	}
}

// Registry exposes the private registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Uptime is the time since the collector was created
func (c *Collector) Uptime() time.Duration {
	if c == nil {
		return 0
	}
	return time.Since(c.startTime)
}

// RecordTurn observes the handling time of a turn
func (c *Collector) RecordTurn(event, state string, d time.Duration) {
	if c == nil {
		return
	}
	if h, ok := c.metrics["turn_duration"].(*prometheus.HistogramVec); ok {
		h.WithLabelValues(event, state).Observe(d.Seconds())
	}
}

// RecordExtraction counts an extraction attempt; d is zero when no backend call was made
func (c *Collector) RecordExtraction(status string, d time.Duration) {
	if c == nil {
		return
	}
	if counter, ok := c.metrics["extractions"].(*prometheus.CounterVec); ok {
		counter.WithLabelValues(status).Inc()
	}
	if d > 0 {
		if h, ok := c.metrics["extraction_duration"].(prometheus.Histogram); ok {
			h.Observe(d.Seconds())
		}
	}
}

// RecordUpsell counts a shown or resolved suggestion
func (c *Collector) RecordUpsell(source, outcome string) {
	if c == nil {
		return
	}
	if counter, ok := c.metrics["upsells"].(*prometheus.CounterVec); ok {
		counter.WithLabelValues(source, outcome).Inc()
	}
}

// RecordConflict counts a busy-session collision
func (c *Collector) RecordConflict() {
	if c == nil {
		return
	}
	if counter, ok := c.metrics["conflicts"].(prometheus.Counter); ok {
		counter.Inc()
	}
}

// SetActiveSessions reports the session store size
func (c *Collector) SetActiveSessions(n int) {
	if c == nil {
		return
	}
	if g, ok := c.metrics["sessions"].(prometheus.Gauge); ok {
		g.Set(float64(n))
	}
}

// RecordAccuracy publishes the tenant's latest accuracy ratio
func (c *Collector) RecordAccuracy(tenant string, ratio float64) {
	if c == nil {
		return
	}
	if g, ok := c.metrics["accuracy"].(*prometheus.GaugeVec); ok {
		g.WithLabelValues(tenant).Set(ratio)
	}
}
