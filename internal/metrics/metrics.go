package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "parley_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	UsersProvisioned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parley_users_provisioned_total",
			Help: "Total users provisioned",
		},
	)

	ConversationsOpened = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parley_conversations_opened_total",
			Help: "Total create-or-get conversation calls",
		},
	)

	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parley_messages_sent_total",
			Help: "Total messages recorded",
		},
	)

	TypingUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_typing_updates_total",
			Help: "Total typing slot writes",
		},
		[]string{"kind"}, // "set" or "clear"
	)

	UnreadCleared = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parley_unread_cleared_total",
			Help: "Total mark-read actions",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)
)
