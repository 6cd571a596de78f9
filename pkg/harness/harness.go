// Package harness owns the active flow of a session and drives it.
//
// Interactive front ends and headless callers meet here: both start flows and
// feed triggers through the same entry points and get the same Envelope back.
package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/tapestry/internal/logging"
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/flow"
	"github.com/aretw0/tapestry/pkg/registry"
	"github.com/aretw0/tapestry/pkg/worker"
	"github.com/mitchellh/mapstructure"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// maxAnswers bounds how many feedback requests a headless responder may
// answer in one drive.
const maxAnswers = 32

// ErrNoJobClient is returned when a flow hands work to a background job but
// the environment has no worker client.
var ErrNoJobClient = errors.New("no background job client configured")

// ResetListener is told when the active flow ends, so pointer modes can reset.
type ResetListener func(p domain.Progress)

// Harness drives at most one active flow.
type Harness struct {
	env      *flow.Env
	registry *registry.Registry
	logger   *slog.Logger
	tracer   trace.Tracer
	reset    ResetListener
	now      func() time.Time

	active  flow.Flow
	state   flow.State
	last    *flow.Envelope
	started time.Time
	pending *worker.Handle
	lastJob *worker.Handle
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = logger
	}
}

// WithTracer sets the tracer used for harness spans.
func WithTracer(t trace.Tracer) Option {
	return func(h *Harness) {
		h.tracer = t
	}
}

// WithResetListener registers the callback run when a flow ends.
func WithResetListener(fn ResetListener) Option {
	return func(h *Harness) {
		h.reset = fn
	}
}

// New creates a harness over env that resolves flow keys through reg.
func New(env *flow.Env, reg *registry.Registry, opts ...Option) *Harness {
	h := &Harness{
		env:      env,
		registry: reg,
		logger:   env.Logger,
		tracer:   otel.Tracer("github.com/aretw0/tapestry/pkg/harness"),
		now:      time.Now,
	}
	if h.logger == nil {
		h.logger = logging.NewNop()
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetResetListener replaces the reset callback.
func (h *Harness) SetResetListener(fn ResetListener) { h.reset = fn }

// Env returns the environment flows run in.
func (h *Harness) Env() *flow.Env { return h.env }

// Registry returns the flow registry.
func (h *Harness) Registry() *registry.Registry { return h.registry }

// Active reports whether a flow is running.
func (h *Harness) Active() bool { return h.active != nil }

// Current returns the active flow and its last envelope, or nil.
func (h *Harness) Current() (flow.Flow, *flow.Envelope) {
	return h.active, h.last
}

// Pending reports whether a flow's background job is still outstanding.
func (h *Harness) Pending() bool { return h.pending != nil }

// Job returns the outstanding background job, or nil.
func (h *Harness) Job() *worker.Handle { return h.pending }

// LastJob returns the most recently launched job, settled or not.
func (h *Harness) LastJob() *worker.Handle { return h.lastJob }

// PreHarness is a flow with an empty state ready for scripted start.
type PreHarness struct {
	Flow  flow.Flow
	State flow.State
	// Values are handed to the first step as Trigger.Preload.
	Values map[string]any
}

// Decode fills the state's exported fields from values.
func (p *PreHarness) Decode(values map[string]any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           p.State,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(values); err != nil {
		return fmt.Errorf("preload %s: %w", p.Flow.Key(), err)
	}
	if p.Values == nil {
		p.Values = make(map[string]any, len(values))
	}
	for k, v := range values {
		p.Values[k] = v
	}
	return nil
}

// BuildHarness prepares key for programmatic start.
func (h *Harness) BuildHarness(key string) (*PreHarness, error) {
	f, err := h.registry.Get(key)
	if err != nil {
		return nil, err
	}
	st, err := f.EmptyStateForPreload(h.env)
	if err != nil {
		return nil, err
	}
	return &PreHarness{Flow: f, State: st}, nil
}

// RunHarness starts a preloaded flow and drives it until it pauses or ends.
func (h *Harness) RunHarness(ctx context.Context, pre *PreHarness) (flow.Envelope, error) {
	if pre == nil || pre.Flow == nil || pre.State == nil {
		return flow.Envelope{Progress: domain.ProgressError}, fmt.Errorf("run harness: %w", domain.ErrStateMismatch)
	}
	return h.begin(ctx, pre.Flow, pre.State, domain.Trigger{Kind: domain.TriggerStart, Preload: pre.Values})
}

// Start runs key from its normal start state.
func (h *Harness) Start(ctx context.Context, key string) (flow.Envelope, error) {
	f, err := h.registry.Get(key)
	if err != nil {
		return flow.Envelope{Progress: domain.ProgressError}, err
	}
	if !f.IsEnabled(h.env.Context()) {
		return flow.Envelope{Progress: domain.ProgressError}, fmt.Errorf("%q: %w", key, domain.ErrFlowDisabled)
	}
	if err := h.admit(); err != nil {
		return flow.Envelope{Progress: domain.ProgressError}, err
	}
	st, err := f.NewState(h.env)
	if err != nil {
		return flow.Envelope{Progress: domain.ProgressError}, err
	}
	return h.begin(ctx, f, st, domain.Trigger{Kind: domain.TriggerStart})
}

// ProcessNextStep resumes the active flow with trig. A nil last continues
// from the harness's own last envelope.
func (h *Harness) ProcessNextStep(ctx context.Context, trig domain.Trigger, last *flow.Envelope) (flow.Envelope, error) {
	if h.active == nil {
		if h.pending != nil {
			return flow.Envelope{Progress: domain.ProgressError}, domain.ErrJobRunning
		}
		return flow.Envelope{Progress: domain.ProgressError}, domain.ErrNoActiveFlow
	}
	if last == nil {
		last = h.last
	}
	if last == nil || last.State != h.state {
		return flow.Envelope{Progress: domain.ProgressError}, fmt.Errorf("flow %q: %w", h.active.Key(), domain.ErrStateMismatch)
	}
	return h.drive(ctx, trig)
}

// HandleClick resumes the active flow with a click.
func (h *Harness) HandleClick(ctx context.Context, pt domain.Point, shifted bool, pixDiam float64) (flow.Envelope, error) {
	return h.ProcessNextStep(ctx, domain.Click(pt, shifted, pixDiam), nil)
}

// HandleMotion resumes the active flow with a pointer move.
func (h *Harness) HandleMotion(ctx context.Context, pt domain.Point) (flow.Envelope, error) {
	return h.ProcessNextStep(ctx, domain.Motion(pt), nil)
}

// Answer resumes a flow paused on feedback.
func (h *Harness) Answer(ctx context.Context, a domain.Answer) (flow.Envelope, error) {
	return h.ProcessNextStep(ctx, domain.Reply(a), nil)
}

// ClearFlow drops the active flow and rolls back what it left open.
// It does not notify the reset listener.
func (h *Harness) ClearFlow(ctx context.Context) {
	if h.active == nil {
		return
	}
	key := h.active.Key()
	if n, err := flow.Abandon(h.state); err != nil {
		h.logger.Error("Rollback failed", "flow", key, "err", err)
	} else if n > 0 {
		h.logger.Debug("Rolled back open transactions", "flow", key, "count", n)
	}
	h.end(ctx, domain.ProgressUserCancel, nil)
}

func (h *Harness) admit() error {
	if h.pending != nil {
		return domain.ErrJobRunning
	}
	if h.active != nil {
		return fmt.Errorf("%q: %w", h.active.Key(), domain.ErrFlowBusy)
	}
	return nil
}

func (h *Harness) begin(ctx context.Context, f flow.Flow, st flow.State, trig domain.Trigger) (flow.Envelope, error) {
	if err := h.admit(); err != nil {
		return flow.Envelope{Progress: domain.ProgressError}, err
	}
	flow.Bind(st, h.env)
	h.active = f
	h.state = st
	h.last = nil
	h.started = h.now()

	if h.env.Hooks.OnFlowStart != nil {
		h.env.Hooks.OnFlowStart(ctx, &domain.FlowEvent{Timestamp: h.started, Flow: f.Key()})
	}
	h.logger.Info("Flow started", "flow", f.Key())
	return h.drive(ctx, trig)
}

func (h *Harness) drive(ctx context.Context, trig domain.Trigger) (flow.Envelope, error) {
	key := h.active.Key()
	ctx, span := h.tracer.Start(ctx, "harness.step", trace.WithAttributes(
		attribute.String("flow.key", key),
		attribute.String("trigger.kind", trig.Kind.String()),
	))
	defer span.End()

	env, err := h.active.Step(ctx, h.state, trig)
	for answered := 0; err == nil; answered++ {
		if env.Progress != domain.ProgressHaveFeedback || !h.env.Headless || h.env.Dialogs == nil || answered >= maxAnswers {
			break
		}
		var ans domain.Answer
		ans, err = h.env.Dialogs.Ask(ctx, *env.Feedback)
		if err != nil {
			break
		}
		env, err = h.active.Step(ctx, h.state, domain.Reply(ans))
	}
	span.SetAttributes(attribute.String("flow.progress", env.Progress.String()))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		env.Progress = domain.ProgressError
		env.Err = err
		h.abandon(key)
		h.end(ctx, domain.ProgressError, err)
		h.notify(domain.ProgressError)
		return env, err
	}

	switch env.Progress.Category() {
	case domain.CategoryTerminal:
		if n := h.abandonCount(key); n > 0 && env.Progress == domain.ProgressDone {
			h.logger.Warn("Flow finished with open transactions", "flow", key, "count", n)
		}
		h.end(ctx, env.Progress, env.Err)
		h.notify(env.Progress)
	case domain.CategoryDeferred:
		if env.Progress == domain.ProgressDoneOnThread {
			return h.handOff(ctx, env)
		}
		h.last = &env
	case domain.CategoryContinue:
		// Step never returns a continue envelope.
		h.last = &env
	}
	return env, nil
}

// handOff launches the envelope's job and ends the interactive part of the flow.
func (h *Harness) handOff(ctx context.Context, env flow.Envelope) (flow.Envelope, error) {
	key := h.active.Key()
	if n := h.abandonCount(key); n > 0 {
		h.logger.Warn("Flow handed off with open transactions", "flow", key, "count", n)
	}
	if h.env.Jobs == nil || env.Job == nil {
		h.end(ctx, domain.ProgressError, ErrNoJobClient)
		h.notify(domain.ProgressError)
		env.Progress = domain.ProgressError
		env.Err = ErrNoJobClient
		return env, ErrNoJobClient
	}
	owner := env.Owner
	if owner == nil {
		owner = worker.OwnerFuncs{}
	}
	var handle *worker.Handle
	settle := func(p domain.Progress) {
		if h.pending == handle {
			h.pending = nil
		}
		h.logger.Info("Flow job settled", "flow", key, "progress", p)
		h.notify(p)
	}
	reconcile := worker.OwnerFuncs{
		OnRemoteError:  func(error) bool { settle(domain.ProgressError); return false },
		OnCancellation: func() { settle(domain.ProgressUserCancel) },
		OnPostRepaint:  func(any) { settle(domain.ProgressDone) },
	}
	handle, err := h.env.Jobs.Launch(ctx, env.Job, worker.Chain(owner, reconcile))
	if err != nil {
		h.end(ctx, domain.ProgressError, err)
		h.notify(domain.ProgressError)
		env.Progress = domain.ProgressError
		env.Err = err
		return env, err
	}
	h.pending = handle
	h.lastJob = handle
	h.end(ctx, domain.ProgressDoneOnThread, nil)
	return env, nil
}

func (h *Harness) abandon(key string) {
	if _, err := flow.Abandon(h.state); err != nil {
		h.logger.Error("Rollback failed", "flow", key, "err", err)
	}
}

func (h *Harness) abandonCount(key string) int {
	n, err := flow.Abandon(h.state)
	if err != nil {
		h.logger.Error("Rollback failed", "flow", key, "err", err)
	}
	return n
}

func (h *Harness) end(ctx context.Context, p domain.Progress, err error) {
	key := h.active.Key()
	if h.env.Hooks.OnFlowEnd != nil {
		h.env.Hooks.OnFlowEnd(ctx, &domain.FlowEvent{Timestamp: h.now(), Flow: key, Progress: p, Err: err})
	}
	if err != nil {
		h.logger.Error("Flow ended", "flow", key, "progress", p, "duration", h.now().Sub(h.started), "err", err)
	} else {
		h.logger.Info("Flow ended", "flow", key, "progress", p, "duration", h.now().Sub(h.started))
	}
	h.active = nil
	h.state = nil
	h.last = nil
}

func (h *Harness) notify(p domain.Progress) {
	if h.reset != nil {
		h.reset(p)
	}
}
