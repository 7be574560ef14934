package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OrdersCreated counts payment orders by outcome.
	OrdersCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "academy",
		Subsystem: "payments",
		Name:      "orders_created_total",
		Help:      "Payment orders by outcome (created, reused, rejected, failed).",
	}, []string{"outcome"})

	// Captures counts capture calls by provider status.
	Captures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "academy",
		Subsystem: "payments",
		Name:      "captures_total",
		Help:      "Capture results by provider status.",
	}, []string{"status"})

	// ProviderRequestDuration tracks latency of payment provider calls.
	ProviderRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "academy",
		Subsystem: "payments",
		Name:      "provider_request_duration_seconds",
		Help:      "Payment provider request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	// Enrollments counts ledger writes by source and result.
	Enrollments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "academy",
		Subsystem: "enrollments",
		Name:      "writes_total",
		Help:      "Enrollment writes by source and result (created, existing, pending).",
	}, []string{"source", "result"})

	// ReconciliationTasks counts reconciliation outcomes.
	ReconciliationTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "academy",
		Subsystem: "enrollments",
		Name:      "reconciliation_tasks_total",
		Help:      "Reconciliation task transitions (opened, resolved, retried, abandoned).",
	}, []string{"outcome"})

	// ContentGenerated counts generated course content by result.
	ContentGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "academy",
		Subsystem: "content",
		Name:      "generated_total",
		Help:      "Course content generation results (updated, failed).",
	}, []string{"result"})
)

var (
	// HTTPRequests counts handled requests by route and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "academy",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	// HTTPRequestDuration tracks handler latency by route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "academy",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
)
