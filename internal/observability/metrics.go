package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsInbound = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "fleet_dispatch", Name: "events_inbound_total", Help: "Inbound events accepted, by type"},
		[]string{"type"},
	)
	EventsInvalid       = promauto.NewCounter(prometheus.CounterOpts{Namespace: "fleet_dispatch", Name: "events_invalid_total", Help: "Inbound events dropped as malformed"})
	UnauthorizedUpdates = promauto.NewCounter(prometheus.CounterOpts{Namespace: "fleet_dispatch", Name: "unauthorized_updates_total", Help: "Availability updates dropped for non-member senders"})

	RequestsCreated   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "fleet_dispatch", Name: "requests_created_total", Help: "Requests admitted into the store"})
	RequestsDuplicate = promauto.NewCounter(prometheus.CounterOpts{Namespace: "fleet_dispatch", Name: "requests_duplicate_total", Help: "Request creations rejected as duplicates"})
	NoCandidates      = promauto.NewCounter(prometheus.CounterOpts{Namespace: "fleet_dispatch", Name: "no_candidates_total", Help: "Requests answered with NO_DRIVERS_AVAILABLE"})

	OffersSent       = promauto.NewCounter(prometheus.CounterOpts{Namespace: "fleet_dispatch", Name: "offers_sent_total", Help: "Offer events handed to the transport"})
	OfferSkips       = promauto.NewCounter(prometheus.CounterOpts{Namespace: "fleet_dispatch", Name: "offer_skips_total", Help: "Candidates skipped because the worker went unavailable"})
	Assignments      = promauto.NewCounter(prometheus.CounterOpts{Namespace: "fleet_dispatch", Name: "assignments_total", Help: "Requests transitioned to ASSIGNED"})
	NotifyFailures   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "fleet_dispatch", Name: "notify_failures_total", Help: "Outbound sends that returned an error"})
	RequestsStalled  = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "fleet_dispatch", Name: "requests_stalled", Help: "Pending requests with an exhausted candidate cursor"})
	WorkersAvailable = promauto.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: "fleet_dispatch", Name: "workers_available", Help: "Workers currently AVAILABLE with a known location"},
		[]string{"class"},
	)

	MembershipRefreshFailures = promauto.NewCounter(prometheus.CounterOpts{Namespace: "fleet_dispatch", Name: "membership_refresh_failures_total", Help: "Directory refreshes that failed and kept the previous set"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "fleet_dispatch", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fleet_dispatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
