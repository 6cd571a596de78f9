package worker

import (
	"context"
	"sync"

	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/loop"
)

// Monitor is the cancellation token and progress reporter handed to RunCore.
// A Monitor may be narrowed with Span or Partition so that a sub-unit reports
// 0..1 locally while overall progress stays linear.
type Monitor struct {
	ctx        context.Context
	loop       *loop.Loop
	shared     *progress
	start, end float64
}

type progress struct {
	mu       sync.Mutex
	value    float64
	listener func(float64)
}

func newMonitor(ctx context.Context, l *loop.Loop, listener func(float64)) *Monitor {
	return &Monitor{
		ctx:    ctx,
		loop:   l,
		shared: &progress{listener: listener},
		start:  0,
		end:    1,
	}
}

// KeepGoing reports whether the job should continue.
func (m *Monitor) KeepGoing() bool {
	return m.ctx.Err() == nil
}

// Checkpoint returns domain.ErrCancelled once cancellation was requested.
func (m *Monitor) Checkpoint() error {
	if m.ctx.Err() != nil {
		return domain.ErrCancelled
	}
	return nil
}

// Update reports local progress in [0,1]. Overall progress never goes backwards.
func (m *Monitor) Update(local float64) {
	if local < 0 {
		local = 0
	}
	if local > 1 {
		local = 1
	}
	global := m.start + local*(m.end-m.start)

	m.shared.mu.Lock()
	if global <= m.shared.value {
		m.shared.mu.Unlock()
		return
	}
	m.shared.value = global
	listener := m.shared.listener
	m.shared.mu.Unlock()

	if listener != nil {
		listener(global)
	}
}

// Progress returns overall progress in [0,1].
func (m *Monitor) Progress() float64 {
	m.shared.mu.Lock()
	defer m.shared.mu.Unlock()
	return m.shared.value
}

// Span narrows the monitor to the local range [start,end].
func (m *Monitor) Span(start, end float64) *Monitor {
	width := m.end - m.start
	return &Monitor{
		ctx:    m.ctx,
		loop:   m.loop,
		shared: m.shared,
		start:  m.start + start*width,
		end:    m.start + end*width,
	}
}

// Partition returns the i-th of n equal shares of the monitor.
func (m *Monitor) Partition(i, n int) *Monitor {
	if n <= 0 {
		return m
	}
	return m.Span(float64(i)/float64(n), float64(i+1)/float64(n))
}

// Commit runs fn on the interaction loop and waits for it. It refuses to start
// once cancellation has been requested, returning domain.ErrCancelled.
func (m *Monitor) Commit(fn func() error) error {
	if err := m.Checkpoint(); err != nil {
		return err
	}
	err := m.loop.Call(m.ctx, fn)
	if err != nil && m.ctx.Err() != nil && err == m.ctx.Err() {
		return domain.ErrCancelled
	}
	return err
}
