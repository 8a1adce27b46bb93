package statemachine

import (
	"errors"
	"testing"
)

func TestRunLifecycleEdges(t *testing.T) {
	sm := NewRunStateMachine()

	allowed := []RunTransition{
		{RunStatusPending, RunStatusQueued},
		{RunStatusQueued, RunStatusRunning},
		{RunStatusRunning, RunStatusSucceeded},
		{RunStatusRunning, RunStatusFailed},
		{RunStatusQueued, RunStatusFailed},
		{RunStatusPending, RunStatusCanceled},
		{RunStatusQueued, RunStatusCanceled},
		{RunStatusRunning, RunStatusCanceled},
	}
	for _, tr := range allowed {
		if !sm.CanTransition(tr.From, tr.To) {
			t.Errorf("%s -> %s should be allowed", tr.From, tr.To)
		}
	}

	denied := []RunTransition{
		{RunStatusPending, RunStatusRunning}, // must pass through queued
		{RunStatusPending, RunStatusSucceeded},
		{RunStatusQueued, RunStatusSucceeded},
		{RunStatusSucceeded, RunStatusPending}, // runs are never reset
		{RunStatusFailed, RunStatusQueued},
		{RunStatusCanceled, RunStatusRunning},
		{RunStatusRunning, RunStatusRunning}, // same state is not a transition
	}
	for _, tr := range denied {
		if sm.CanTransition(tr.From, tr.To) {
			t.Errorf("%s -> %s should be denied", tr.From, tr.To)
		}
	}
}

func TestValidateTransitionError(t *testing.T) {
	sm := NewRunStateMachine()

	err := sm.ValidateTransition(RunStatusSucceeded, RunStatusRunning)
	if err == nil {
		t.Fatalf("terminal state accepted an outgoing transition")
	}

	var invalid *InvalidStateTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("error type = %T, want *InvalidStateTransitionError", err)
	}
	if invalid.From != "succeeded" || invalid.To != "running" {
		t.Errorf("error fields = %s -> %s", invalid.From, invalid.To)
	}

	if err := sm.Transition(RunStatusQueued, RunStatusRunning, "run-1"); err != nil {
		t.Errorf("legal transition rejected: %v", err)
	}
}

func TestTerminalAndActive(t *testing.T) {
	for _, status := range []RunStatus{RunStatusSucceeded, RunStatusFailed, RunStatusCanceled} {
		if !IsTerminal(status) {
			t.Errorf("%s should be terminal", status)
		}
		if IsActive(status) {
			t.Errorf("%s should not be active", status)
		}
	}
	for _, status := range []RunStatus{RunStatusPending, RunStatusQueued, RunStatusRunning} {
		if IsTerminal(status) {
			t.Errorf("%s should not be terminal", status)
		}
		if !IsActive(status) {
			t.Errorf("%s should be active", status)
		}
	}
}
