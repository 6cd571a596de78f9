package tapestry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/aretw0/tapestry/internal/logging"
	"github.com/aretw0/tapestry/pkg/changelog"
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/flow"
	"github.com/aretw0/tapestry/pkg/flows"
	"github.com/aretw0/tapestry/pkg/harness"
	"github.com/aretw0/tapestry/pkg/layout"
	"github.com/aretw0/tapestry/pkg/loop"
	"github.com/aretw0/tapestry/pkg/mode"
	"github.com/aretw0/tapestry/pkg/model"
	"github.com/aretw0/tapestry/pkg/ports"
	"github.com/aretw0/tapestry/pkg/registry"
	"github.com/aretw0/tapestry/pkg/worker"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// Engine is the high-level entry point for the Tapestry library.
// It wires one session's network, change log, harness, dispatcher and
// interaction loop together.
//
// Engine methods run on the interaction goroutine. Inline callers use them
// directly and pump background jobs with Await; served engines run Serve on
// a goroutine of their own and reach the session through Do.
type Engine struct {
	ID string

	net        *model.Network
	log        *changelog.Log
	env        *flow.Env
	harness    *harness.Harness
	dispatcher *mode.Dispatcher
	loop       *loop.Loop
	jobs       *worker.Client
	registry   *registry.Registry

	controls ports.Controls
	dialogs  ports.Dialogs
	journal  ports.Journal
	stamper  layout.Stamper
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	tracer   trace.Tracer
	headless bool
	extra    []flow.Flow
	sinks    []changelog.EventSink
	progress func(jobID string, fraction float64)

	serving atomic.Bool
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithSessionID sets the session ID used for journaling and logs.
func WithSessionID(id string) Option {
	return func(e *Engine) {
		e.ID = id
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithControls sets the UI sink the dispatcher and jobs drive.
func WithControls(c ports.Controls) Option {
	return func(e *Engine) {
		e.controls = c
	}
}

// WithDialogs sets the feedback responder.
func WithDialogs(d ports.Dialogs) Option {
	return func(e *Engine) {
		e.dialogs = d
	}
}

// WithHeadless makes the harness answer feedback through the Dialogs
// responder instead of returning it to the caller.
func WithHeadless(headless bool) Option {
	return func(e *Engine) {
		e.headless = headless
	}
}

// WithJournal appends every commit, undo and redo to j.
func WithJournal(j ports.Journal) Option {
	return func(e *Engine) {
		e.journal = j
	}
}

// WithStamper replaces the layout service used by layout jobs.
func WithStamper(s layout.Stamper) Option {
	return func(e *Engine) {
		e.stamper = s
	}
}

// WithFlows registers flows next to the built-in ones.
func WithFlows(fs ...flow.Flow) Option {
	return func(e *Engine) {
		e.extra = append(e.extra, fs...)
	}
}

// WithEventSink adds a listener for change log events.
func WithEventSink(sink changelog.EventSink) Option {
	return func(e *Engine) {
		e.sinks = append(e.sinks, sink)
	}
}

// WithTracer sets the tracer for harness and job spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = t
	}
}

// WithProgressListener receives background job progress.
func WithProgressListener(fn func(jobID string, fraction float64)) Option {
	return func(e *Engine) {
		e.progress = fn
	}
}

// New builds an engine editing net.
func New(net *model.Network, opts ...Option) (*Engine, error) {
	if net == nil {
		return nil, errors.New("network is required")
	}
	eng := &Engine{net: net}
	for _, opt := range opts {
		opt(eng)
	}
	if eng.ID == "" {
		eng.ID = uuid.NewString()
	}
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	eng.logger = eng.logger.With("session_id", eng.ID)

	reg, err := registry.NewRegistry(append(flows.All(), eng.extra...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to register flows: %w", err)
	}
	eng.registry = reg

	logOpts := []changelog.Option{
		changelog.WithHooks(eng.hooks),
		changelog.WithLogger(eng.logger),
		changelog.WithEventSink(changelog.EventSinkFunc(eng.publish)),
	}
	if eng.journal != nil {
		logOpts = append(logOpts, changelog.WithJournal(eng.journal, eng.ID))
	}
	eng.log = changelog.New(net, logOpts...)

	eng.loop = loop.New(loop.WithLogger(eng.logger))
	jobOpts := []worker.Option{
		worker.WithHooks(eng.hooks),
		worker.WithLogger(eng.logger),
	}
	if eng.controls != nil {
		jobOpts = append(jobOpts, worker.WithControls(eng.controls))
	}
	if eng.tracer != nil {
		jobOpts = append(jobOpts, worker.WithTracer(eng.tracer))
	}
	if eng.progress != nil {
		jobOpts = append(jobOpts, worker.WithProgressListener(eng.progress))
	}
	eng.jobs = worker.NewClient(eng.loop, jobOpts...)

	env := flow.NewEnv(net, eng.log)
	env.Controls = eng.controls
	env.Dialogs = eng.dialogs
	env.Jobs = eng.jobs
	env.Hooks = eng.hooks
	env.Logger = eng.logger
	env.Headless = eng.headless
	if eng.stamper != nil {
		env.Layout = eng.stamper
	}
	eng.env = env

	hOpts := []harness.Option{harness.WithLogger(eng.logger)}
	if eng.tracer != nil {
		hOpts = append(hOpts, harness.WithTracer(eng.tracer))
	}
	eng.harness = harness.New(env, reg, hOpts...)
	eng.dispatcher = mode.New(eng.harness, eng.controls, mode.WithLogger(eng.logger))
	return eng, nil
}

func (e *Engine) publish(ev changelog.Event) {
	for _, s := range e.sinks {
		s.Publish(ev)
	}
}

func (e *Engine) Network() *model.Network      { return e.net }
func (e *Engine) Log() *changelog.Log          { return e.log }
func (e *Engine) Env() *flow.Env               { return e.env }
func (e *Engine) Harness() *harness.Harness    { return e.harness }
func (e *Engine) Dispatcher() *mode.Dispatcher { return e.dispatcher }
func (e *Engine) Registry() *registry.Registry { return e.registry }
func (e *Engine) Loop() *loop.Loop             { return e.loop }
func (e *Engine) Selection() *flow.Selection   { return e.env.Selection }
func (e *Engine) Flows() []flow.Flow           { return e.registry.All() }
func (e *Engine) EnabledFlows() []flow.Flow    { return e.registry.Enabled(e.env.Context()) }
func (e *Engine) Context() flow.Context        { return e.env.Context() }
func (e *Engine) Mode() domain.Mode            { return e.dispatcher.Mode() }
func (e *Engine) Busy() bool                   { return e.dispatcher.Busy() }
func (e *Engine) Job() *worker.Handle          { return e.harness.Job() }
func (e *Engine) Logger() *slog.Logger         { return e.logger }
func (e *Engine) Serving() bool                { return e.serving.Load() }

// Invoke starts a flow the way a menu item would.
func (e *Engine) Invoke(ctx context.Context, key string) (flow.Envelope, error) {
	return e.dispatcher.Invoke(ctx, key)
}

// Preload starts a flow programmatically with values decoded into its
// preload state. A flow that asks for a pointer mode enters it.
func (e *Engine) Preload(ctx context.Context, key string, values map[string]any) (flow.Envelope, error) {
	return e.dispatcher.Preload(ctx, key, values)
}

// Click feeds a pointer click to the dispatcher.
func (e *Engine) Click(ctx context.Context, pt domain.Point, shifted bool) (domain.ClickResult, error) {
	return e.dispatcher.ProcessClick(ctx, pt, shifted, 1)
}

// Motion feeds pointer motion to the dispatcher.
func (e *Engine) Motion(ctx context.Context, pt domain.Point) error {
	return e.dispatcher.ProcessMotion(ctx, pt)
}

// Answer resumes a flow waiting on feedback.
func (e *Engine) Answer(ctx context.Context, a domain.Answer) (flow.Envelope, error) {
	return e.dispatcher.Answer(ctx, a)
}

// Select selects every item inside rect.
func (e *Engine) Select(ctx context.Context, rect domain.Rect, shifted bool) (flow.Envelope, error) {
	return e.dispatcher.SelectItems(ctx, rect, shifted)
}

// CancelMode abandons the active mode and flow.
func (e *Engine) CancelMode(which ports.CancelMask) {
	e.dispatcher.CancelMode(which)
}

// CancelJob asks the pending background job to stop.
func (e *Engine) CancelJob() bool {
	job := e.harness.Job()
	if job == nil {
		return false
	}
	job.Cancel()
	return true
}

// Undo reverts the last committed transaction.
func (e *Engine) Undo(ctx context.Context) (changelog.Entry, error) {
	return e.step(ctx, e.log.Undo)
}

// Redo reapplies the last undone transaction.
func (e *Engine) Redo(ctx context.Context) (changelog.Entry, error) {
	return e.step(ctx, e.log.Redo)
}

func (e *Engine) step(ctx context.Context, fn func(context.Context) (*changelog.Transaction, error)) (changelog.Entry, error) {
	if e.harness.Pending() {
		return changelog.Entry{}, domain.ErrJobRunning
	}
	if e.harness.Active() {
		return changelog.Entry{}, domain.ErrFlowBusy
	}
	tx, err := fn(ctx)
	if err != nil {
		return changelog.Entry{}, err
	}
	if e.controls != nil {
		e.controls.Redraw()
	}
	return changelog.Entry{ID: tx.ID(), Label: tx.Label(), Changes: describe(tx.Changes())}, nil
}

func describe(cs []changelog.Change) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Describe()
	}
	return out
}

// Await blocks until the most recently launched background job has settled
// and returns its handle, or nil when no job was ever launched. Inline
// engines pump the interaction loop while waiting.
func (e *Engine) Await(ctx context.Context) (*worker.Handle, error) {
	if e.serving.Load() {
		var job *worker.Handle
		if err := e.loop.Call(ctx, func() error { job = e.harness.LastJob(); return nil }); err != nil {
			return nil, err
		}
		if job == nil {
			return nil, nil
		}
		select {
		case <-job.Done():
			return job, nil
		case <-ctx.Done():
			return job, ctx.Err()
		}
	}
	job := e.harness.LastJob()
	if job == nil {
		e.loop.Drain()
		return nil, nil
	}
	return job, e.loop.RunUntil(ctx, job.Done())
}

// ErrServing is returned when the interaction loop is already being served.
var ErrServing = errors.New("engine already serving")

// Serve runs the interaction loop until ctx ends or Close is called.
func (e *Engine) Serve(ctx context.Context) error {
	if !e.serving.CompareAndSwap(false, true) {
		return ErrServing
	}
	defer e.serving.Store(false)
	return e.loop.Run(ctx)
}

// StartServing switches the engine to served mode and runs the interaction
// loop on a new goroutine. The returned channel yields Serve's result.
func (e *Engine) StartServing(ctx context.Context) (<-chan error, error) {
	if !e.serving.CompareAndSwap(false, true) {
		return nil, ErrServing
	}
	done := make(chan error, 1)
	go func() {
		defer e.serving.Store(false)
		done <- e.loop.Run(ctx)
		close(done)
	}()
	return done, nil
}

// Do runs fn on the interaction goroutine. Inline engines run it directly.
func (e *Engine) Do(ctx context.Context, fn func() error) error {
	if e.serving.Load() {
		return e.loop.Call(ctx, fn)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn()
}

// Close cancels any pending job and stops the interaction loop.
func (e *Engine) Close() {
	if job := e.jobs.Active(); job != nil {
		job.Cancel()
	}
	e.loop.Close()
}
