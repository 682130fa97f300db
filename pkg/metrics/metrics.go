// Package metrics provides Prometheus metrics for the conversation store and
// the HTTP ops surface.
package metrics

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lewisedginton/conversation_store/pkg/logger"
)

const (
	subsystem = "store"

	// Outcome label values.
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Metrics owns a private registry. A nil *Metrics is valid and records nothing,
// so components can take one optionally.
type Metrics struct {
	reg *prometheus.Registry

	StoreOperations *prometheus.CounterVec
	StoreDuration   *prometheus.HistogramVec
	MemoryResults   prometheus.Histogram
	PreferenceCache *prometheus.CounterVec

	TotalHTTPRequestsCounter prometheus.Counter
	HTTPDurationHistogram    prometheus.Histogram

	httpMu               sync.Mutex
	HTTPRequestsCounters map[int]prometheus.Counter

	namespace string
	log       logger.Logger
}

// NewMetrics builds and registers every collector under namespace. runtime
// adds the Go and process collectors.
func NewMetrics(namespace string, runtime bool, l logger.Logger) *Metrics {
	if l == nil {
		l = logger.NewNopLogger()
	}
	m := &Metrics{
		reg:                  prometheus.NewRegistry(),
		namespace:            namespace,
		log:                  l,
		HTTPRequestsCounters: make(map[int]prometheus.Counter),
	}

	m.StoreOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "operations_total",
		Help:      "Session store operations by operation and outcome",
	}, []string{"operation", "outcome"})
	m.StoreDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "operation_duration_seconds",
		Help:      "Session store operation duration in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.3, 0.5, 1.0, 3.0},
	}, []string{"operation"})
	m.MemoryResults = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "memory",
		Name:      "search_results",
		Help:      "Entries returned per memory search",
		Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
	})
	m.PreferenceCache = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "preferences",
		Name:      "cache_lookups_total",
		Help:      "Preference cache lookups by result",
	}, []string{"result"})

	m.TotalHTTPRequestsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests",
	})
	m.HTTPDurationHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   []float64{0.1, 0.3, 0.5, 0.7, 1.0, 3.0, 5.0, 7.0, 10.0},
	})

	m.reg.MustRegister(
		m.StoreOperations,
		m.StoreDuration,
		m.MemoryResults,
		m.PreferenceCache,
		m.TotalHTTPRequestsCounter,
		m.HTTPDurationHistogram,
	)
	if runtime {
		m.reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{
		ErrorLog: promLogger{m.log},
	})
}

// AddCustomMetric registers a custom Prometheus collector.
func (m *Metrics) AddCustomMetric(c prometheus.Collector) {
	m.reg.MustRegister(c)
}

// ObserveStoreOp records one store operation that started at start. outcome
// is one of the Outcome constants.
func (m *Metrics) ObserveStoreOp(op, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.StoreOperations.WithLabelValues(op, outcome).Inc()
	m.StoreDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// ObserveMemoryResults records the size of one search result.
func (m *Metrics) ObserveMemoryResults(n int) {
	if m == nil {
		return
	}
	m.MemoryResults.Observe(float64(n))
}

// PreferenceLookup counts a cache lookup; result is "hit", "miss" or "error".
func (m *Metrics) PreferenceLookup(result string) {
	if m == nil {
		return
	}
	m.PreferenceCache.WithLabelValues(result).Inc()
}

// IncrementHTTPResponseCounter increments the counter for the given HTTP status code.
func (m *Metrics) IncrementHTTPResponseCounter(code int) {
	m.httpMu.Lock()
	c, ok := m.HTTPRequestsCounters[code]
	if !ok {
		c = newTotalHTTPReqMetric(m.namespace, code)
		m.HTTPRequestsCounters[code] = c
		m.reg.MustRegister(c)
	}
	m.httpMu.Unlock()
	c.Inc()
}

func newTotalHTTPReqMetric(namespace string, code int) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      fmt.Sprintf("total_%d_responses", code),
		Help:      fmt.Sprintf("Total %s HTTP responses returned", http.StatusText(code)),
	})
}

// HTTPMiddleware returns a Chi-compatible middleware that tracks HTTP metrics
func (m *Metrics) HTTPMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.TotalHTTPRequestsCounter.Inc()

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			m.HTTPDurationHistogram.Observe(time.Since(start).Seconds())
			m.IncrementHTTPResponseCounter(rw.statusCode)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

type promLogger struct {
	log logger.Logger
}

func (p promLogger) Println(v ...any) {
	p.log.Error("Metrics handler error", logger.StringField("detail", fmt.Sprint(v...)))
}
