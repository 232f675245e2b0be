// Package metrics exposes prometheus counters for engine activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	OutcomeApplied  = "applied"
	OutcomeFailed   = "failed"
	OutcomeRejected = "rejected"
	OutcomeInvalid  = "invalid"
	OutcomeReverted = "reverted"
)

var (
	ActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_actions_total",
			Help: "Plan actions processed by the executor",
		},
		[]string{"resource", "kind", "outcome"},
	)

	RevertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_reverts_total",
			Help: "Change records processed by the revert engine",
		},
		[]string{"resource", "kind", "outcome"},
	)

	PlansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_plans_total",
			Help: "Plans persisted, by resulting status",
		},
		[]string{"status"},
	)

	SnapshotFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_snapshot_failures_total",
			Help: "Collections reported as zero-state because they could not be read",
		},
		[]string{"resource"},
	)
)

// ObserveAction counts one executed action.
func ObserveAction(resource, kind, outcome string) {
	ActionsTotal.WithLabelValues(resource, kind, outcome).Inc()
}

// ObserveRevert counts one attempted revert step.
func ObserveRevert(resource, kind, outcome string) {
	RevertsTotal.WithLabelValues(resource, kind, outcome).Inc()
}

// ObservePlan counts a plan reaching status.
func ObservePlan(status string) {
	PlansTotal.WithLabelValues(status).Inc()
}

func ObserveSnapshotFailure(resource string) {
	SnapshotFailures.WithLabelValues(resource).Inc()
}
