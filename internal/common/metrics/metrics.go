// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifecycle_state_transitions_total",
			Help: "Total number of entity state transitions applied",
		},
		[]string{"entity", "status"},
	)

	TransitionConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifecycle_transition_conflicts_total",
			Help: "Transitions refused because the entity was already past the gate",
		},
		[]string{"entity", "status"},
	)

	NotificationsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_dispatched_total",
			Help: "Notification deliveries attempted, by event type and outcome",
		},
		[]string{"event", "status"},
	)

	OracleCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoring_oracle_calls_total",
			Help: "Scoring oracle calls, by outcome",
		},
		[]string{"status"},
	)

	OracleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "scoring_oracle_duration_seconds",
			Help: "Duration of scoring oracle calls in seconds",
		},
	)

	TierRecomputations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tier_recomputations_total",
			Help: "Total tier recomputation runs",
		},
	)

	TierUpgrades = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tier_upgrades_total",
			Help: "Total tier level increases observed during recomputation",
		},
	)
)
