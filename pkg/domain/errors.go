package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownStep is returned when a flow's continuation names a step it does not define.
	ErrUnknownStep = errors.New("unknown step label")

	// ErrUnknownFlow is returned when a flow key is not registered.
	ErrUnknownFlow = errors.New("unknown flow")

	// ErrNoActiveFlow is returned when a continuation trigger arrives with no flow running.
	ErrNoActiveFlow = errors.New("no active flow")

	// ErrFlowBusy is returned when a flow is started while another is still active.
	ErrFlowBusy = errors.New("another flow is active")

	// ErrStateMismatch is returned when a flow is resumed with state it did not create.
	ErrStateMismatch = errors.New("continuation state does not belong to flow")

	// ErrPreloadUnsupported is returned by flows that cannot be started programmatically.
	ErrPreloadUnsupported = errors.New("flow does not support preload")

	// ErrPreloadRequired is returned by flows that can only be started programmatically.
	ErrPreloadRequired = errors.New("flow requires preload")

	// ErrFlowDisabled is returned when a flow's enablement predicate rejects the context.
	ErrFlowDisabled = errors.New("flow is not enabled in this context")

	// ErrJobRunning is returned when a background job is already active for the session.
	ErrJobRunning = errors.New("background job already running")

	// ErrCancelled signals cooperative cancellation of a background job. It is not a failure.
	ErrCancelled = errors.New("cancelled")

	// ErrNothingToUndo is returned when the undo stack is empty.
	ErrNothingToUndo = errors.New("nothing to undo")

	// ErrNothingToRedo is returned when the redo stack is empty.
	ErrNothingToRedo = errors.New("nothing to redo")

	// ErrSessionNotFound is returned when a session ID cannot be found.
	ErrSessionNotFound = errors.New("session not found")
)

// StepError reports a step label missing from a flow's step table.
type StepError struct {
	Flow  string
	Label string
}

func (e *StepError) Error() string {
	return fmt.Sprintf("flow %q: %v: %q", e.Flow, ErrUnknownStep, e.Label)
}

func (e *StepError) Unwrap() error {
	return ErrUnknownStep
}

// BoundsError reports a requested value outside the range its model allows.
type BoundsError struct {
	ItemID string
	Reason string
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("%s: %s", e.ItemID, e.Reason)
}

// IsConfigError reports whether err is a programming error that must abort the operation.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrUnknownStep) ||
		errors.Is(err, ErrNoActiveFlow) ||
		errors.Is(err, ErrStateMismatch) ||
		errors.Is(err, ErrUnknownFlow)
}
