package flow

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/tapestry/pkg/domain"
)

// maxSteps bounds one drive of the step loop. A flow that keeps going this
// long without pausing is stuck on a label cycle.
const maxSteps = 256

// Flow is a registered operation descriptor.
type Flow interface {
	Key() string
	Name() string
	IsEnabled(c Context) bool
	IsValid(target Intersection, c Context) bool
	NewState(env *Env) (State, error)
	EmptyStateForPreload(env *Env) (State, error)
	// Step drives st from its current label until the envelope leaves the
	// continue category.
	Step(ctx context.Context, st State, trig domain.Trigger) (Envelope, error)
}

// StepFunc is one labelled handler of a flow.
type StepFunc[S State] func(ctx context.Context, st S, trig domain.Trigger) (Envelope, error)

// Definition implements Flow over a concrete state type.
type Definition[S State] struct {
	FlowKey string
	Label   string
	// Enabled defaults to always enabled.
	Enabled func(c Context) bool
	// Valid defaults to rejecting every intersection.
	Valid func(target Intersection, c Context) bool
	// Start builds the state for a normal start. Nil means preload only.
	Start func(env *Env) (S, error)
	// Preload builds an empty state for scripted starts. Nil means the flow
	// cannot be preloaded.
	Preload func(env *Env) (S, error)
	Steps   map[string]StepFunc[S]
}

func (d *Definition[S]) Key() string { return d.FlowKey }

func (d *Definition[S]) Name() string {
	if d.Label == "" {
		return d.FlowKey
	}
	return d.Label
}

func (d *Definition[S]) IsEnabled(c Context) bool {
	if d.Enabled == nil {
		return true
	}
	return d.Enabled(c)
}

func (d *Definition[S]) IsValid(target Intersection, c Context) bool {
	if d.Valid == nil {
		return false
	}
	return d.Valid(target, c)
}

func (d *Definition[S]) NewState(env *Env) (State, error) {
	if d.Start == nil {
		return nil, fmt.Errorf("flow %q: %w", d.FlowKey, domain.ErrPreloadRequired)
	}
	st, err := d.Start(env)
	if err != nil {
		return nil, err
	}
	Bind(st, env)
	return st, nil
}

func (d *Definition[S]) EmptyStateForPreload(env *Env) (State, error) {
	if d.Preload == nil {
		return nil, fmt.Errorf("flow %q: %w", d.FlowKey, domain.ErrPreloadUnsupported)
	}
	st, err := d.Preload(env)
	if err != nil {
		return nil, err
	}
	Bind(st, env)
	return st, nil
}

func (d *Definition[S]) Step(ctx context.Context, st State, trig domain.Trigger) (Envelope, error) {
	typed, ok := st.(S)
	if !ok || st == nil {
		return Envelope{Progress: domain.ProgressError, State: st}, fmt.Errorf("flow %q: %w", d.FlowKey, domain.ErrStateMismatch)
	}
	b := st.base()

	for i := 0; i < maxSteps; i++ {
		label := b.next
		fn, ok := d.Steps[label]
		if !ok {
			err := &domain.StepError{Flow: d.FlowKey, Label: label}
			return Envelope{Progress: domain.ProgressError, State: st, Err: err}, err
		}

		env, err := fn(ctx, typed, trig)
		if env.State == nil {
			env.State = st
		}
		if err != nil {
			env.Progress = domain.ProgressError
			env.Err = err
		}
		d.notifyStep(ctx, b.env, label, env.Progress, err)
		if err != nil {
			return env, fmt.Errorf("flow %q step %q: %w", d.FlowKey, label, err)
		}
		if !env.Progress.KeepLooping() {
			return env, nil
		}
		// Only the first step sees the external trigger.
		trig = domain.Trigger{}
	}
	err := fmt.Errorf("flow %q: no pause after %d steps at %q", d.FlowKey, maxSteps, b.next)
	return Envelope{Progress: domain.ProgressError, State: st, Err: err}, err
}

func (d *Definition[S]) notifyStep(ctx context.Context, env *Env, label string, p domain.Progress, err error) {
	if env == nil {
		return
	}
	if env.Hooks.OnStep != nil {
		env.Hooks.OnStep(ctx, &domain.FlowEvent{
			Timestamp: time.Now(),
			Flow:      d.FlowKey,
			Step:      label,
			Progress:  p,
			Err:       err,
		})
	}
	if env.Logger != nil {
		env.Logger.Debug("Step executed", "flow", d.FlowKey, "step", label, "progress", p)
	}
}

// ProcessNextStep resumes f. With a nil last it starts a fresh state;
// otherwise it continues last.State.
func ProcessNextStep(ctx context.Context, f Flow, env *Env, trig domain.Trigger, last *Envelope) (Envelope, error) {
	var st State
	if last == nil || last.State == nil {
		var err error
		st, err = f.NewState(env)
		if err != nil {
			return Envelope{Progress: domain.ProgressError, Err: err}, err
		}
	} else {
		st = last.State
		Bind(st, env)
	}
	return f.Step(ctx, st, trig)
}
