package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rights_api_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rights_api_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Workflow metrics
	requestsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rights_api_requests_created_total",
			Help: "Total number of rights requests created",
		},
	)

	reviewAssignments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rights_api_review_assignments_total",
			Help: "Total number of review assignments",
		},
		[]string{"mode"}, // "self" or "manager"
	)

	statusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rights_api_status_transitions_total",
			Help: "Total number of review status transitions",
		},
		[]string{"status", "actor"},
	)

	notificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rights_api_notifications_sent_total",
			Help: "Total number of notification writes",
		},
		[]string{"outcome"}, // "ok" or "error"
	)
)

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(method, endpoint string, statusCode int, durationSeconds float64) {
	status := "unknown"
	switch {
	case statusCode >= 200 && statusCode < 300:
		status = "2xx"
	case statusCode >= 300 && statusCode < 400:
		status = "3xx"
	case statusCode >= 400 && statusCode < 500:
		status = "4xx"
	case statusCode >= 500:
		status = "5xx"
	}

	httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordRequestCreated records a created rights request
func RecordRequestCreated() {
	requestsCreated.Inc()
}

// RecordAssignment records a review assignment by mode
func RecordAssignment(mode string) {
	reviewAssignments.WithLabelValues(mode).Inc()
}

// RecordStatusTransition records a review status transition
func RecordStatusTransition(status, actor string) {
	statusTransitions.WithLabelValues(status, actor).Inc()
}

// RecordNotification records a notification write outcome
func RecordNotification(outcome string) {
	notificationsSent.WithLabelValues(outcome).Inc()
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
