package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	ClientsRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parley_clients_registered_total",
			Help: "Total client IDs handed out",
		},
	)

	Logins = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parley_logins_total",
			Help: "Total successful logins",
		},
	)

	SessionsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parley_sessions_evicted_total",
			Help: "Total sessions forcibly removed by a superseding login",
		},
	)

	// Routing metrics
	MessagesDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_messages_delivered_total",
			Help: "Total messages pushed to a live client",
		},
		[]string{"kind"}, // "direct" or "group"
	)

	MessagesQueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_messages_queued_total",
			Help: "Total messages appended to an offline queue",
		},
		[]string{"kind"},
	)

	MessagesDrained = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parley_messages_drained_total",
			Help: "Total queued messages delivered on drain",
		},
	)

	DuplicateSends = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parley_duplicate_sends_total",
			Help: "Total send requests rejected as retransmits",
		},
	)

	PushFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parley_push_failures_total",
			Help: "Total pushes dropped because the client was unreachable",
		},
	)

	// Transport metrics
	Connections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "parley_connections",
			Help: "Currently open client connections",
		},
	)
)
