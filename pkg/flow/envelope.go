package flow

import (
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/worker"
)

// Envelope is what a step returns: a progress code, the continuation state and
// an optional payload for the host.
type Envelope struct {
	Progress domain.Progress
	State    State

	// Click is the outcome reported for a click trigger.
	Click domain.ClickResult
	// Mode and Spec are set when the flow asks to wait for pointer input.
	Mode domain.Mode
	Spec *ModeSpec
	// Feedback is set with ProgressHaveFeedback.
	Feedback *domain.Feedback
	// Floater is a preview object for the host to draw.
	Floater any
	// Job and Owner are set with ProgressDoneOnThread; the harness launches them.
	Job   worker.Job
	Owner worker.Owner
	Err   error
}

// Terminal reports whether the envelope ends the flow.
func (e Envelope) Terminal() bool { return e.Progress.Terminal() }

// KeepGoing runs the next step immediately.
func KeepGoing(st State) Envelope {
	return Envelope{Progress: domain.ProgressKeepGoing, State: st}
}

// Done ends the flow successfully.
func Done(st State) Envelope {
	return Envelope{Progress: domain.ProgressDone, State: st}
}

// Cancel ends the flow with no net effect.
func Cancel(st State) Envelope {
	return Envelope{Progress: domain.ProgressUserCancel, State: st}
}

// Fail ends the flow with err.
func Fail(st State, err error) Envelope {
	return Envelope{Progress: domain.ProgressError, State: st, Err: err, Click: domain.ClickError}
}

// Ask pauses the flow until the host answers fb.
func Ask(st State, fb domain.Feedback) Envelope {
	return Envelope{Progress: domain.ProgressHaveFeedback, State: st, Feedback: &fb}
}

// AwaitClicks pauses the flow until pointer input arrives in spec's mode.
func AwaitClicks(st State, spec ModeSpec) Envelope {
	return Envelope{Progress: domain.ProgressMouseMode, State: st, Mode: spec.Mode, Spec: &spec, Floater: floaterOf(st)}
}

// OnThread hands the rest of the work to a background job.
func OnThread(st State, job worker.Job, owner worker.Owner) Envelope {
	return Envelope{Progress: domain.ProgressDoneOnThread, State: st, Job: job, Owner: owner}
}

// ClickAccept takes the click and waits for more input.
func ClickAccept(st State) Envelope {
	return Envelope{Progress: domain.ProgressMouseMode, State: st, Click: domain.ClickAccept, Floater: floaterOf(st)}
}

// ClickReject refuses the click; the mode stays active.
func ClickReject(st State) Envelope {
	return Envelope{Progress: domain.ProgressMouseMode, State: st, Click: domain.ClickReject}
}

// ClickUnselected reports a click that hit nothing usable.
func ClickUnselected(st State) Envelope {
	return Envelope{Progress: domain.ProgressMouseMode, State: st, Click: domain.ClickUnselected}
}

// ClickDone completes the flow on this click.
func ClickDone(st State) Envelope {
	return Envelope{Progress: domain.ProgressDone, State: st, Click: domain.ClickProcessed}
}

// ClickCancel abandons the flow on this click.
func ClickCancel(st State) Envelope {
	return Envelope{Progress: domain.ProgressUserCancel, State: st, Click: domain.ClickCancelled}
}

// ClickDelayed accepts the click; the result arrives from a background job.
func ClickDelayed(st State, job worker.Job, owner worker.Owner) Envelope {
	return Envelope{Progress: domain.ProgressDoneOnThread, State: st, Click: domain.ClickAcceptDelayed, Job: job, Owner: owner}
}

// Floating is implemented by states that carry a preview object.
type Floating interface {
	Floater() any
}

func floaterOf(st State) any {
	if f, ok := st.(Floating); ok {
		return f.Floater()
	}
	return nil
}
