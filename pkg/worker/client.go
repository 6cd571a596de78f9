package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/tapestry/internal/logging"
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/loop"
	"github.com/aretw0/tapestry/pkg/ports"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Client launches jobs for one session. At most one job is active at a time.
type Client struct {
	loop     *loop.Loop
	controls ports.Controls
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	tracer   trace.Tracer
	progress func(jobID string, fraction float64)
	now      func() time.Time

	mu     sync.Mutex
	active *Handle
}

// Option configures a Client.
type Option func(*Client)

// WithControls sets the UI sink disabled while a job runs.
func WithControls(c ports.Controls) Option {
	return func(cl *Client) {
		cl.controls = c
	}
}

// WithHooks registers lifecycle hooks.
func WithHooks(h domain.LifecycleHooks) Option {
	return func(cl *Client) {
		cl.hooks = h
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = logger
	}
}

// WithTracer sets the tracer used for job spans.
func WithTracer(t trace.Tracer) Option {
	return func(cl *Client) {
		cl.tracer = t
	}
}

// WithProgressListener receives overall progress updates from the job goroutine.
func WithProgressListener(fn func(jobID string, fraction float64)) Option {
	return func(cl *Client) {
		cl.progress = fn
	}
}

// NewClient creates a client that reconciles on l.
func NewClient(l *loop.Loop, opts ...Option) *Client {
	c := &Client{
		loop:   l,
		logger: logging.NewNop(),
		tracer: otel.Tracer("github.com/aretw0/tapestry/pkg/worker"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Active returns the running job, or nil.
func (c *Client) Active() *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Launch starts job.RunCore on a new goroutine and returns immediately.
// Cancellation of ctx does not stop the job; use Handle.Cancel.
func (c *Client) Launch(ctx context.Context, job Job, owner Owner) (*Handle, error) {
	if owner == nil {
		owner = OwnerFuncs{}
	}

	c.mu.Lock()
	if c.active != nil {
		c.mu.Unlock()
		return nil, domain.ErrJobRunning
	}
	jctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	h := &Handle{
		id:      uuid.NewString(),
		name:    job.Name(),
		cancel:  cancel,
		done:    make(chan struct{}),
		started: c.now(),
	}
	var listener func(float64)
	if c.progress != nil {
		listener = func(f float64) { c.progress(h.id, f) }
	}
	h.monitor = newMonitor(jctx, c.loop, listener)
	c.active = h
	c.mu.Unlock()

	if c.controls != nil {
		c.controls.DisableControls(ports.MaskAll)
		c.controls.SetCursor(ports.CursorWait)
	}
	if c.hooks.OnJobLaunch != nil {
		c.hooks.OnJobLaunch(ctx, &domain.JobEvent{Timestamp: h.started, ID: h.id, Name: h.name})
	}
	c.logger.Info("Background job launched", "job", h.name, "job_id", h.id)

	go func() {
		sctx, span := c.tracer.Start(jctx, "worker.run_core", trace.WithAttributes(
			attribute.String("job.name", h.name),
			attribute.String("job.id", h.id),
		))
		result, err := c.runCore(sctx, job, h.monitor)
		if err != nil && !errors.Is(err, domain.ErrCancelled) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		c.loop.Post(func() {
			c.complete(jctx, h, job, owner, result, err)
		})
	}()
	return h, nil
}

func (c *Client) runCore(ctx context.Context, job Job, m *Monitor) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name(), r)
		}
	}()
	return job.RunCore(ctx, m)
}

// complete runs on the interaction loop.
func (c *Client) complete(jctx context.Context, h *Handle, job Job, owner Owner, result any, err error) {
	outcome := domain.JobSucceeded
	switch {
	case errors.Is(err, domain.ErrCancelled), err == nil && jctx.Err() != nil:
		outcome = domain.JobCancelled
		owner.HandleCancellation()
	case err != nil:
		outcome = domain.JobFailed
		if !owner.HandleRemoteError(err) {
			c.logger.Error("Background job failed", "job", h.name, "job_id", h.id, "err", err)
		}
	default:
		if perr := job.PostRunCore(jctx, result); perr != nil {
			err = perr
			outcome = domain.JobFailed
			if !owner.HandleRemoteError(perr) {
				c.logger.Error("Background job post-processing failed", "job", h.name, "job_id", h.id, "err", perr)
			}
		} else {
			owner.CleanUpPreEnable(result)
		}
	}

	if c.controls != nil {
		c.controls.EnableControls()
		c.controls.SetCursor(ports.CursorDefault)
		c.controls.Redraw()
	}
	if outcome == domain.JobSucceeded {
		owner.CleanUpPostRepaint(result)
	}

	duration := c.now().Sub(h.started)
	if c.hooks.OnJobDone != nil {
		c.hooks.OnJobDone(jctx, &domain.JobEvent{
			Timestamp: c.now(),
			ID:        h.id,
			Name:      h.name,
			Outcome:   outcome,
			Duration:  duration,
		})
	}
	c.logger.Info("Background job finished", "job", h.name, "job_id", h.id, "outcome", outcome, "duration", duration)

	c.mu.Lock()
	if c.active == h {
		c.active = nil
	}
	c.mu.Unlock()
	h.finish(result, err, outcome)
}

// Handle tracks one launched job.
type Handle struct {
	id      string
	name    string
	cancel  context.CancelFunc
	done    chan struct{}
	monitor *Monitor
	started time.Time

	mu      sync.Mutex
	result  any
	err     error
	outcome string
}

// ID returns the job's unique ID.
func (h *Handle) ID() string { return h.id }

// Name returns the job's name.
func (h *Handle) Name() string { return h.name }

// Cancel requests cooperative cancellation. It is safe to call repeatedly.
func (h *Handle) Cancel() { h.cancel() }

// Done is closed after the completion callbacks ran on the interaction loop.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the job completes. It must not be called from the
// interaction loop goroutine, which has to keep pumping for completion.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Progress returns overall progress in [0,1].
func (h *Handle) Progress() float64 { return h.monitor.Progress() }

// Err returns the failure, domain.ErrCancelled, or nil.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Outcome returns one of the domain.Job* outcomes, or empty while running.
func (h *Handle) Outcome() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.outcome
}

// Result returns the RunCore result once the job succeeded.
func (h *Handle) Result() any {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result
}

func (h *Handle) finish(result any, err error, outcome string) {
	h.mu.Lock()
	h.result = result
	h.outcome = outcome
	h.err = err
	if outcome == domain.JobCancelled {
		h.err = domain.ErrCancelled
	}
	h.mu.Unlock()
	h.cancel()
	close(h.done)
}
