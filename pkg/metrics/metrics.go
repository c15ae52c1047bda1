// Package metrics exposes the engine's Prometheus collectors: a
// per-operation duration timer with success/error outcome labels, which
// the snapshot/clone engine reports against, and a gauge for the number of
// nexus children in each lifecycle state. Nothing in this module sets the
// gauge; pkg/nexus does not update it.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lvs_core",
			Name:      "operation_duration_seconds",
			Help:      "Duration of snapshot/clone/nexus engine operations.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"component", "operation", "outcome"},
	)

	// NexusChildState tracks the number of nexus children currently in
	// each (state, reason) pair. reason is empty for non-Faulted states.
	NexusChildState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "lvs_core",
			Name:      "nexus_child_state",
			Help:      "Number of nexus children currently in a given state.",
		},
		[]string{"state", "reason"},
	)
)

func init() {
	prometheus.MustRegister(operationDuration, NexusChildState)
}

// OperationTimer measures one operation's wall-clock duration and records
// it under "success" or "error" once the caller reports the outcome.
// Mirrors the teacher's VolumeOperationTimer: construct at the top of an
// operation, call ObserveSuccess or ObserveError exactly once before
// returning.
type OperationTimer struct {
	component string
	operation string
	start     time.Time
}

// NewOperationTimer starts a timer for component/operation.
func NewOperationTimer(component, operation string) *OperationTimer {
	return &OperationTimer{component: component, operation: operation, start: time.Now()}
}

// ObserveSuccess records the elapsed duration under the "success" outcome.
func (t *OperationTimer) ObserveSuccess() {
	t.observe("success")
}

// ObserveError records the elapsed duration under the "error" outcome.
func (t *OperationTimer) ObserveError() {
	t.observe("error")
}

func (t *OperationTimer) observe(outcome string) {
	operationDuration.WithLabelValues(t.component, t.operation, outcome).Observe(time.Since(t.start).Seconds())
}
