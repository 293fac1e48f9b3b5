// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Collector holds the process metrics.
type Collector struct {
	// Pipeline metrics
	turnsTotal     prometheus.Counter
	turnDuration   prometheus.Histogram
	interruptions  prometheus.Counter
	pipelineErrors prometheus.Counter

	// Reward metrics
	rewardsRecorded *prometheus.CounterVec

	// RAG metrics
	contextUpdates  prometheus.Counter
	retrievalTotal  *prometheus.CounterVec
	retrievalChunks prometheus.Histogram

	// Control API metrics
	httpRequestsTotal *prometheus.CounterVec

	registry *prometheus.Registry
	logger   *zap.Logger
}

// NewCollector creates a collector with its own registry, so tests can run
// multiple collectors without duplicate-registration panics.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := prometheus.NewRegistry()
	factory := func(opts prometheus.CounterOpts) prometheus.Counter {
		c := prometheus.NewCounter(opts)
		registry.MustRegister(c)
		return c
	}

	c := &Collector{
		registry: registry,
		logger:   logger.With(zap.String("component", "metrics")),
	}

	c.turnsTotal = factory(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "turns_total",
		Help:      "Total number of completed conversation turns",
	})
	c.interruptions = factory(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "interruptions_total",
		Help:      "Total number of user interruptions",
	})
	c.pipelineErrors = factory(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pipeline_errors_total",
		Help:      "Total number of pipeline errors",
	})
	c.contextUpdates = factory(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "context_updates_total",
		Help:      "Total number of RAG context updates",
	})

	c.turnDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "turn_duration_seconds",
		Help:      "Duration of conversation turns in seconds",
		Buckets:   prometheus.DefBuckets,
	})
	registry.MustRegister(c.turnDuration)

	c.rewardsRecorded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rewards_recorded_total",
		Help:      "Total number of rewards recorded, by backend",
	}, []string{"backend"})
	registry.MustRegister(c.rewardsRecorded)

	c.retrievalTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "retrievals_total",
		Help:      "Total number of knowledge retrievals, by outcome",
	}, []string{"outcome"})
	registry.MustRegister(c.retrievalTotal)

	c.retrievalChunks = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "retrieval_chunks",
		Help:      "Number of chunks returned per retrieval",
		Buckets:   []float64{0, 1, 2, 3, 5, 10},
	})
	registry.MustRegister(c.retrievalChunks)

	c.httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of control API requests",
	}, []string{"method", "path", "status"})
	registry.MustRegister(c.httpRequestsTotal)

	return c
}

// Registry exposes the underlying registry for the /metrics handler.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordTurn counts one completed exchange and its duration.
func (c *Collector) RecordTurn(d time.Duration) {
	c.turnsTotal.Inc()
	c.turnDuration.Observe(d.Seconds())
}

// RecordInterruption counts one user interruption.
func (c *Collector) RecordInterruption() {
	c.interruptions.Inc()
}

// RecordPipelineError counts one pipeline error.
func (c *Collector) RecordPipelineError() {
	c.pipelineErrors.Inc()
}

// RecordContextUpdate counts one RAG context replacement.
func (c *Collector) RecordContextUpdate() {
	c.contextUpdates.Inc()
}

// RecordReward counts one reward write. backend is "persistent" or "memory".
func (c *Collector) RecordReward(backend string) {
	c.rewardsRecorded.WithLabelValues(backend).Inc()
}

// RecordRetrieval counts one retrieval and its hit count.
// outcome is "ok" or "error".
func (c *Collector) RecordRetrieval(outcome string, chunks int) {
	c.retrievalTotal.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		c.retrievalChunks.Observe(float64(chunks))
	}
}

// RecordHTTPRequest counts one control API request.
func (c *Collector) RecordHTTPRequest(method, path, status string) {
	c.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
}
