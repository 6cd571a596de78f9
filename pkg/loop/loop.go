// Package loop provides the interaction loop: the single goroutine allowed to
// mutate a session's model, run flow steps and drive the mode dispatcher.
//
// Other goroutines hand work to it with Post (fire and forget) or Call (wait
// for the result). The loop either runs on its own goroutine (Run) or is pumped
// by the goroutine that owns the session (Drain, RunUntil).
package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/tapestry/internal/logging"
)

// ErrClosed is returned by Call once the loop has been closed.
var ErrClosed = errors.New("interaction loop closed")

// Loop is an unbounded FIFO of tasks executed one at a time.
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	wake   chan struct{}
	closed chan struct{}
	once   sync.Once
	logger *slog.Logger
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger used to report task panics.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		l.logger = logger
	}
}

// New creates an idle loop.
func New(opts ...Option) *Loop {
	l := &Loop{
		wake:   make(chan struct{}, 1),
		closed: make(chan struct{}),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Post enqueues fn. It never blocks. Tasks posted after Close are dropped.
func (l *Loop) Post(fn func()) {
	select {
	case <-l.closed:
		return
	default:
	}
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Call runs fn on the loop and waits for its result. If ctx is already done
// when the task comes up, fn is skipped and ctx.Err() returned. Call must not
// be used from the loop goroutine itself.
func (l *Loop) Call(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	l.Post(func() {
		if err := ctx.Err(); err != nil {
			done <- err
			return
		}
		done <- fn()
	})
	select {
	case err := <-done:
		return err
	case <-l.closed:
		return ErrClosed
	}
}

// Pending returns the number of queued tasks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Drain runs queued tasks, including ones they post, until the queue is empty.
// It returns the number of tasks run.
func (l *Loop) Drain() int {
	n := 0
	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()
		if len(batch) == 0 {
			return n
		}
		for _, fn := range batch {
			l.run(fn)
			n++
		}
	}
}

// RunUntil pumps the loop until done is closed or ctx ends.
func (l *Loop) RunUntil(ctx context.Context, done <-chan struct{}) error {
	for {
		l.Drain()
		select {
		case <-l.wake:
		case <-done:
			l.Drain()
			return nil
		case <-l.closed:
			return ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Run pumps the loop until ctx ends or the loop is closed.
func (l *Loop) Run(ctx context.Context) error {
	err := l.RunUntil(ctx, nil)
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrClosed) {
		return nil
	}
	return err
}

// Close stops accepting tasks and releases pending Call waiters.
func (l *Loop) Close() {
	l.once.Do(func() {
		close(l.closed)
		l.mu.Lock()
		l.queue = nil
		l.mu.Unlock()
	})
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Interaction task panicked", "err", fmt.Sprint(r))
		}
	}()
	fn()
}
