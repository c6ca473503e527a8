// Package monitoring exposes Prometheus metrics for the HTTP surface and
// the task engine.
package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "leadsearch"

// Step outcomes recorded by the engine
const (
	OutcomeAdvanced  = "advanced"
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeTerminal  = "terminal_noop"
	OutcomeError     = "error"
)

// MetricsCollector owns a private registry so several collectors can
// coexist in one process.
type MetricsCollector struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	activeRequests      prometheus.Gauge

	tasksCreated       prometheus.Counter
	stepsTotal         *prometheus.CounterVec
	stepDuration       prometheus.Histogram
	influencersStored  prometheus.Counter
	candidatesFiltered prometheus.Counter
}

// NewMetricsCollector registers all collectors plus the Go and process collectors
func NewMetricsCollector() *MetricsCollector {
	mc := &MetricsCollector{registry: prometheus.NewRegistry()}

	mc.httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"method", "endpoint", "status"})

	mc.httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	mc.activeRequests = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "http_active_requests",
		Help:      "Number of in-flight HTTP requests",
	})

	mc.tasksCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_created_total",
		Help:      "Search tasks created",
	})

	mc.stepsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "task_steps_total",
		Help:      "Task advance calls by outcome",
	}, []string{"outcome"})

	mc.stepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "task_step_duration_seconds",
		Help:      "Duration of a single keyword step",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	mc.influencersStored = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "influencers_stored_total",
		Help:      "Influencer rows newly stored",
	})

	mc.candidatesFiltered = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "candidates_filtered_total",
		Help:      "Search candidates rejected by thresholds or missing statistics",
	})

	mc.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		mc.httpRequestsTotal,
		mc.httpRequestDuration,
		mc.activeRequests,
		mc.tasksCreated,
		mc.stepsTotal,
		mc.stepDuration,
		mc.influencersStored,
		mc.candidatesFiltered,
	)

	return mc
}

// Registry exposes the underlying registry, mainly for tests
func (mc *MetricsCollector) Registry() *prometheus.Registry {
	return mc.registry
}

// MetricsMiddleware returns middleware that collects HTTP metrics
func (mc *MetricsCollector) MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		mc.activeRequests.Inc()
		defer mc.activeRequests.Dec()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		status := strconv.Itoa(c.Writer.Status())

		mc.httpRequestsTotal.WithLabelValues(c.Request.Method, endpoint, status).Inc()
		mc.httpRequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// Handler returns the Prometheus exposition handler
func (mc *MetricsCollector) Handler() gin.HandlerFunc {
	handler := promhttp.HandlerFor(mc.registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		handler.ServeHTTP(c.Writer, c.Request)
	}
}

// Engine hooks. All are safe on a nil collector.

func (mc *MetricsCollector) IncTasksCreated() {
	if mc == nil {
		return
	}
	mc.tasksCreated.Inc()
}

func (mc *MetricsCollector) ObserveStep(outcome string, duration time.Duration) {
	if mc == nil {
		return
	}
	mc.stepsTotal.WithLabelValues(outcome).Inc()
	if outcome != OutcomeTerminal {
		mc.stepDuration.Observe(duration.Seconds())
	}
}

func (mc *MetricsCollector) AddInfluencersStored(n int64) {
	if mc == nil || n <= 0 {
		return
	}
	mc.influencersStored.Add(float64(n))
}

func (mc *MetricsCollector) AddCandidatesFiltered(n int) {
	if mc == nil || n <= 0 {
		return
	}
	mc.candidatesFiltered.Add(float64(n))
}
