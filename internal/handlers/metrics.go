package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Darkdragonzxs/Proxy/internal/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus counts requests by status code, method and route pattern.
type Prometheus struct {
	requestsInFlight *prometheus.GaugeVec
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	rateLimited      prometheus.Counter
}

func NewPrometheus(r prometheus.Registerer, namespace string) *Prometheus {
	if r == nil {
		r = prometheus.NewRegistry() // discarded
	}
	f := promauto.With(r)

	labels := []string{"method"}
	labelsWithStatus := []string{"code", "method", "route"}

	return &Prometheus{
		requestsInFlight: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being served.",
		}, labels),
		requestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests processed.",
		}, labelsWithStatus),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "The HTTP request latencies in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, labelsWithStatus),
		rateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
	}
}

// Wrap instruments h. The route label is the matched mux pattern, so it
// must wrap the mux itself or a handler registered on it.
func (p *Prometheus) Wrap(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.requestsInFlight.WithLabelValues(r.Method).Inc()
		defer p.requestsInFlight.WithLabelValues(r.Method).Dec()

		sw := &web.StatusWriter{ResponseWriter: w, Code: 200}
		start := time.Now()
		h.ServeHTTP(sw, r)
		elapsed := time.Since(start).Seconds()

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		labels := []string{strconv.Itoa(sw.Code), r.Method, route}
		p.requestsTotal.WithLabelValues(labels...).Inc()
		p.requestDuration.WithLabelValues(labels...).Observe(elapsed)
	})
}

// RateLimited is a RateLimiter.OnLimited hook.
func (p *Prometheus) RateLimited(*http.Request) {
	p.rateLimited.Inc()
}
