package model

import "fmt"

// Phase is the lifecycle position of a job. Phases only move forward:
// SCHEDULED -> RECORDING -> {COMPLETE, PARTIAL, FAILED}, with CANCELLED
// reachable only from SCHEDULED. Terminal phases are absorbing.
type Phase string

const (
	PhaseScheduled Phase = "SCHEDULED"
	PhaseRecording Phase = "RECORDING"
	PhaseComplete  Phase = "COMPLETE"
	PhasePartial   Phase = "PARTIAL"
	PhaseFailed    Phase = "FAILED"
	PhaseCancelled Phase = "CANCELLED"
)

// JobState is the tagged lifecycle state of a job. Interrupted marks a
// recording that was restarted after an unclean shutdown; an interrupted
// capture can finish as PARTIAL but never as COMPLETE. Reason carries the
// diagnostic for PARTIAL and FAILED.
type JobState struct {
	Phase       Phase
	Interrupted bool
	Reason      string
}

// Scheduled returns the initial state of a new job.
func Scheduled() JobState {
	return JobState{Phase: PhaseScheduled}
}

// Terminal reports whether the state absorbs all further transitions.
func (s JobState) Terminal() bool {
	switch s.Phase {
	case PhaseComplete, PhasePartial, PhaseFailed, PhaseCancelled:
		return true
	}
	return false
}

// Active reports whether the job may still be started: SCHEDULED, or
// RECORDING left over from a previous process.
func (s JobState) Active() bool {
	return s.Phase == PhaseScheduled || s.Phase == PhaseRecording
}

// Start moves the job into RECORDING. Starting an already-RECORDING job is
// allowed (restart after reconciliation) and keeps the interrupted tag.
func (s JobState) Start() (JobState, error) {
	if !s.Active() {
		return s, fmt.Errorf("cannot start job in phase %s", s.Phase)
	}
	return JobState{Phase: PhaseRecording, Interrupted: s.Interrupted}, nil
}

// MarkInterrupted tags an in-flight recording as interrupted.
func (s JobState) MarkInterrupted() (JobState, error) {
	if s.Phase != PhaseRecording {
		return s, fmt.Errorf("cannot mark phase %s interrupted", s.Phase)
	}
	s.Interrupted = true
	return s, nil
}

// Succeed resolves a finished capture: COMPLETE when the recording ran
// uninterrupted, PARTIAL otherwise.
func (s JobState) Succeed() (JobState, error) {
	if s.Phase != PhaseRecording {
		return s, fmt.Errorf("cannot complete job in phase %s", s.Phase)
	}
	if s.Interrupted {
		return JobState{Phase: PhasePartial, Interrupted: true, Reason: "interrupted"}, nil
	}
	return JobState{Phase: PhaseComplete}, nil
}

// Fail resolves the job as FAILED with a diagnostic.
func (s JobState) Fail(reason string) (JobState, error) {
	if s.Terminal() {
		return s, fmt.Errorf("cannot fail job in terminal phase %s", s.Phase)
	}
	return JobState{Phase: PhaseFailed, Interrupted: s.Interrupted, Reason: reason}, nil
}

// Cancel removes a job that has not started.
func (s JobState) Cancel() (JobState, error) {
	if s.Phase != PhaseScheduled {
		return s, fmt.Errorf("cannot cancel job in phase %s", s.Phase)
	}
	return JobState{Phase: PhaseCancelled}, nil
}

func (s JobState) String() string {
	return string(s.Phase)
}
