// Package metrics provides Prometheus metrics for the litestore server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "litestore_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "litestore_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Content store metrics
	contentOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "litestore_content_operation_duration_seconds",
			Help:    "Content store operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	contentOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "litestore_content_operations_total",
			Help: "Total content store operations",
		},
		[]string{"backend", "operation", "status"},
	)

	// Async task metrics
	tasksInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "litestore_tasks_in_flight",
			Help: "Number of async tasks still pending",
		},
	)

	tasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "litestore_tasks_total",
			Help: "Total finished async tasks",
		},
		[]string{"label", "state"},
	)

	// Sharing metrics
	linkRedemptionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "litestore_link_redemptions_total",
			Help: "Total share link redemption attempts",
		},
		[]string{"result"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordContentOperation records a content store call that started at start.
func RecordContentOperation(backend, operation string, start time.Time, err error) {
	contentOperationDuration.WithLabelValues(backend, operation).Observe(time.Since(start).Seconds())
	status := "success"
	if err != nil {
		status = "error"
	}
	contentOperationsTotal.WithLabelValues(backend, operation, status).Inc()
}

// TaskSubmitted marks one more async task as pending.
func TaskSubmitted() {
	tasksInFlight.Inc()
}

// RecordTaskFinished records the terminal state of an async task.
func RecordTaskFinished(label, state string) {
	tasksInFlight.Dec()
	tasksTotal.WithLabelValues(label, state).Inc()
}

// RecordLinkRedemption records a share link redemption attempt.
// result is "granted", "not_found", "error" or the denial reason.
func RecordLinkRedemption(result string) {
	linkRedemptionsTotal.WithLabelValues(result).Inc()
}

// Middleware returns HTTP middleware that records request metrics.
// Requests are labelled with the chi route pattern to keep cardinality bounded.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RecordHTTPRequest(r.Method, route, status, time.Since(start))
	})
}
