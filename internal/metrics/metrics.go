// Package metrics defines and registers all custom Prometheus metrics for
// the relay. It is the single source of truth for metric names, labels, and
// help strings.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "skycall"

// ConnectionsActive tracks the current number of live WebSocket connections,
// announced or not.
var ConnectionsActive = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connections_active",
		Help:      "Current number of live WebSocket connections.",
	},
)

// UsersOnline tracks the current number of identities with a bound session.
var UsersOnline = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "users_online",
		Help:      "Current number of identities with a bound session.",
	},
)

// SignalsRelayedTotal counts call signals successfully forwarded to a target.
// Label:
//   - kind: call_invite, call_offer, call_answer, ice_candidate, call_end
var SignalsRelayedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "signals_relayed_total",
		Help:      "Total number of call signals forwarded to their target.",
	},
	[]string{"kind"},
)

// SignalsDroppedTotal counts call signals that could not be forwarded.
// Labels:
//   - kind: the signal kind
//   - reason: "not_logged_in" or "user_offline"
var SignalsDroppedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "signals_dropped_total",
		Help:      "Total number of call signals dropped, by reason.",
	},
	[]string{"kind", "reason"},
)

// MessagesPersistedTotal counts chat messages durably written to the archive.
var MessagesPersistedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_persisted_total",
		Help:      "Total number of chat messages written to the archive.",
	},
)

// MessagesDeliveredTotal counts chat messages forwarded live to an online
// recipient. Always <= messages_persisted_total.
var MessagesDeliveredTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_delivered_total",
		Help:      "Total number of chat messages forwarded live to an online recipient.",
	},
)

// ArchiveWriteDuration measures the latency of a single archive append.
var ArchiveWriteDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "archive_write_duration_seconds",
		Help:      "Duration of a single message archive append.",
		Buckets:   prometheus.DefBuckets,
	},
)

// RosterBroadcastsTotal counts full-roster pushes to all connections.
var RosterBroadcastsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "roster_broadcasts_total",
		Help:      "Total number of roster snapshots pushed to all connections.",
	},
)
