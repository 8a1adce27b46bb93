package statemachine

import (
	"fmt"

	"k8s.io/klog/v2"
)

// RunStatus is the lifecycle state of a generation run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"   // created, not yet handed to the pool
	RunStatusQueued    RunStatus = "queued"    // waiting for a worker
	RunStatusRunning   RunStatus = "running"   // generation in progress
	RunStatusSucceeded RunStatus = "succeeded" // proposal assembled and persisted
	RunStatusFailed    RunStatus = "failed"    // aborted on error
	RunStatusCanceled  RunStatus = "canceled"  // stopped on request
)

// RunTransition is one edge of the run lifecycle.
type RunTransition struct {
	From RunStatus
	To   RunStatus
}

// RunStateMachine validates run status transitions. Runs are immutable
// history: terminal states have no outgoing edges, a retry is a new run.
type RunStateMachine struct {
	allowedTransitions map[RunTransition]bool
}

func NewRunStateMachine() *RunStateMachine {
	sm := &RunStateMachine{
		allowedTransitions: make(map[RunTransition]bool),
	}

	// pending -> queued -> running -> succeeded/failed
	// queued -> failed (pool submission gave up)
	// pending/queued/running -> canceled (user cancel)
	transitions := []RunTransition{
		{RunStatusPending, RunStatusQueued},
		{RunStatusQueued, RunStatusRunning},
		{RunStatusRunning, RunStatusSucceeded},
		{RunStatusRunning, RunStatusFailed},

		{RunStatusQueued, RunStatusFailed},

		{RunStatusPending, RunStatusCanceled},
		{RunStatusQueued, RunStatusCanceled},
		{RunStatusRunning, RunStatusCanceled},
	}

	for _, t := range transitions {
		sm.allowedTransitions[t] = true
	}

	return sm
}

// CanTransition reports whether from -> to is a legal edge. Staying in
// the same state is never a transition.
func (sm *RunStateMachine) CanTransition(from, to RunStatus) bool {
	if from == to {
		return false
	}
	return sm.allowedTransitions[RunTransition{From: from, To: to}]
}

// ValidateTransition returns an InvalidStateTransitionError for an
// illegal edge.
func (sm *RunStateMachine) ValidateTransition(from, to RunStatus) error {
	if !sm.CanTransition(from, to) {
		return &InvalidStateTransitionError{
			From: string(from),
			To:   string(to),
		}
	}
	return nil
}

// Transition validates and logs one status change for a run.
func (sm *RunStateMachine) Transition(from, to RunStatus, runID string) error {
	if err := sm.ValidateTransition(from, to); err != nil {
		klog.V(6).Infof("run transition rejected: runID=%s, %s -> %s, error=%v",
			runID, from, to, err)
		return err
	}

	klog.V(6).Infof("run transition: runID=%s, %s -> %s", runID, from, to)
	return nil
}

// InvalidStateTransitionError reports an illegal run status change.
type InvalidStateTransitionError struct {
	From string
	To   string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid run state transition: %s -> %s", e.From, e.To)
}

// IsTerminal reports whether a run can never change status again.
func IsTerminal(status RunStatus) bool {
	return status == RunStatusSucceeded || status == RunStatusFailed || status == RunStatusCanceled
}

// IsActive reports whether the run still occupies or awaits a worker.
func IsActive(status RunStatus) bool {
	return status == RunStatusPending || status == RunStatusQueued || status == RunStatusRunning
}
