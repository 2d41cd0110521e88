// Package metrics provides Prometheus metrics for GuardianVault.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "guardianvault",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks HTTP request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "guardianvault",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// ConsentTransitionsTotal counts consent state transitions by edge.
	ConsentTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "guardianvault",
			Name:      "consent_transitions_total",
			Help:      "Total number of consent state transitions",
		},
		[]string{"from", "to"},
	)

	// AccessDeniedTotal counts denied access attempts by the reported status.
	AccessDeniedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "guardianvault",
			Name:      "access_denied_total",
			Help:      "Total number of denied item access attempts",
		},
		[]string{"status"},
	)

	// VaultReadsTotal counts successful decrypting vault reads.
	VaultReadsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "guardianvault",
			Name:      "vault_reads_total",
			Help:      "Total number of successful vault reads",
		},
	)
)

// ConsentTransition records one state machine edge. Creation uses an empty
// "from" label.
func ConsentTransition(from, to string) {
	ConsentTransitionsTotal.WithLabelValues(from, to).Inc()
}

// AccessDenied records a denied access attempt.
func AccessDenied(status string) {
	AccessDeniedTotal.WithLabelValues(status).Inc()
}

// VaultRead records a successful vault read.
func VaultRead() {
	VaultReadsTotal.Inc()
}
