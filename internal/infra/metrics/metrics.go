// Package metrics exposes Prometheus collectors for diagnoses and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cropdoctor"

// Metrics holds every collector on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	Analyses         *prometheus.CounterVec
	AnalysisDuration *prometheus.HistogramVec
	CacheLookups     *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	RateLimited      prometheus.Counter
	HistoryRecorded  *prometheus.CounterVec
}

// New registers all collectors, plus the Go and process collectors, on a
// fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Analyses: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "analyses_total",
				Help:      "Total number of diagnosis requests by input mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		AnalysisDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "analysis_duration_seconds",
				Help:      "Duration of diagnosis requests in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60},
			},
			[]string{"mode"},
		),
		CacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Diagnosis cache lookups by result",
			},
			[]string{"result"},
		),
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by method, route pattern and status",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by method and route pattern",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		}),
		HistoryRecorded: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "history_records_total",
				Help:      "History writes by result",
			},
			[]string{"result"},
		),
	}
}

// ObserveAnalysis records one diagnosis call.
func (m *Metrics) ObserveAnalysis(mode, outcome string, elapsed time.Duration) {
	m.Analyses.WithLabelValues(mode, outcome).Inc()
	m.AnalysisDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
}

// ObserveCache records a cache hit or miss.
func (m *Metrics) ObserveCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// ObserveHTTP records one finished HTTP request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveRateLimited counts one rejected request.
func (m *Metrics) ObserveRateLimited() {
	m.RateLimited.Inc()
}

// ObserveHistory counts one history write.
func (m *Metrics) ObserveHistory(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.HistoryRecorded.WithLabelValues(result).Inc()
}

// WatchEventBus exposes dropped, the event bus's count of skipped
// deliveries, as cropdoctor_events_dropped_total. Call it at most once.
func (m *Metrics) WatchEventBus(dropped func() uint64) {
	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Event deliveries skipped because a subscriber buffer was full",
		},
		func() float64 { return float64(dropped()) },
	))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
