package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP layer
// and the enrollment/payout domain.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	enrollmentsTotal *prometheus.CounterVec
	promotionsTotal  prometheus.Counter
	payoutsTotal     prometheus.Counter
	payoutAmount     prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	enrollmentsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "academy_enrollments_total",
		Help: "Enrollment attempts by resulting state",
	}, []string{"outcome"})

	promotionsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "academy_waitlist_promotions_total",
		Help: "Waitlisted enrollments promoted into freed seats",
	})

	payoutsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "academy_payouts_computed_total",
		Help: "Payout blocks computed",
	})

	payoutAmount := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "academy_payout_amount_minor_units_total",
		Help: "Total payout amount in minor currency units",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheHits, cacheMisses,
		enrollmentsTotal, promotionsTotal, payoutsTotal, payoutAmount, goroutines)

	return &MetricsService{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		cacheLatency:     cacheLatency,
		cacheHits:        cacheHits,
		cacheMisses:      cacheMisses,
		enrollmentsTotal: enrollmentsTotal,
		promotionsTotal:  promotionsTotal,
		payoutsTotal:     payoutsTotal,
		payoutAmount:     payoutAmount,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// RecordEnrollment counts an enrollment attempt by its resulting state.
func (m *MetricsService) RecordEnrollment(outcome string) {
	if m == nil {
		return
	}
	m.enrollmentsTotal.WithLabelValues(outcome).Inc()
}

// RecordPromotion counts a waitlist promotion.
func (m *MetricsService) RecordPromotion() {
	if m == nil {
		return
	}
	m.promotionsTotal.Inc()
}

// RecordPayout counts a computed payout block and its amount.
func (m *MetricsService) RecordPayout(amount int64) {
	if m == nil {
		return
	}
	m.payoutsTotal.Inc()
	if amount > 0 {
		m.payoutAmount.Add(float64(amount))
	}
}
