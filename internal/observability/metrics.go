package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Domain collectors. HTTP traffic is instrumented separately by
// middleware.Metrics; these cover what happens behind the handlers.
var (
	// orchestrations counts StartConsultation outcomes by service type.
	// outcome is one of: started, active_session, upstream_error,
	// requires_subscription, failed.
	orchestrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrations_total",
			Help: "Consultation orchestration attempts by outcome.",
		},
		[]string{"service_type", "outcome"},
	)

	// cacheRequests counts lookup cache reads; result is hit, miss or error.
	cacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookup_cache_requests_total",
			Help: "Lookup cache reads by cache name and result.",
		},
		[]string{"cache", "result"},
	)

	// providerLat records upstream call latency by logical endpoint
	// (e.g. "consultation.doctor", "specialties").
	providerLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_request_duration_seconds",
			Help:    "Duration of upstream provider calls in seconds.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint", "status"},
	)

	// notifications counts best-effort notification writes by outcome.
	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Notification writes by outcome (notified, failed).",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(orchestrations, cacheRequests, providerLat, notifications)
}

// ObserveOrchestration records one orchestration outcome.
func ObserveOrchestration(serviceType, outcome string) {
	orchestrations.WithLabelValues(serviceType, outcome).Inc()
}

// ObserveCache records one lookup cache read.
func ObserveCache(cache, result string) {
	cacheRequests.WithLabelValues(cache, result).Inc()
}

// ObserveProvider records the latency of one upstream call. status is the
// HTTP status code as a string, or "error" for transport failures.
func ObserveProvider(endpoint, status string, seconds float64) {
	providerLat.WithLabelValues(endpoint, status).Observe(seconds)
}

// ObserveNotification records a notification write outcome.
func ObserveNotification(outcome string) {
	notifications.WithLabelValues(outcome).Inc()
}
