package domain

import (
	"context"
	"time"
)

// FlowEvent describes a flow boundary or step.
type FlowEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Flow      string    `json:"flow"`
	Step      string    `json:"step,omitempty"`
	Progress  Progress  `json:"progress"`
	Err       error     `json:"-"`
}

// TransactionEvent describes a change log operation.
type TransactionEvent struct {
	Timestamp time.Time `json:"timestamp"`
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	Changes   int       `json:"changes"`
}

// JobEvent describes a background job boundary.
type JobEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Outcome   string        `json:"outcome,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
}

// Job outcomes reported in JobEvent.Outcome.
const (
	JobSucceeded = "succeeded"
	JobCancelled = "cancelled"
	JobFailed    = "failed"
)

// LifecycleHooks defines callbacks for engine observability. Nil hooks are skipped.
type LifecycleHooks struct {
	OnFlowStart func(context.Context, *FlowEvent)
	OnStep      func(context.Context, *FlowEvent)
	OnFlowEnd   func(context.Context, *FlowEvent)
	OnCommit    func(context.Context, *TransactionEvent)
	OnUndo      func(context.Context, *TransactionEvent)
	OnRedo      func(context.Context, *TransactionEvent)
	OnJobLaunch func(context.Context, *JobEvent)
	OnJobDone   func(context.Context, *JobEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnFlowStart: chainFlow(h.OnFlowStart, other.OnFlowStart),
		OnStep:      chainFlow(h.OnStep, other.OnStep),
		OnFlowEnd:   chainFlow(h.OnFlowEnd, other.OnFlowEnd),
		OnCommit:    chainTx(h.OnCommit, other.OnCommit),
		OnUndo:      chainTx(h.OnUndo, other.OnUndo),
		OnRedo:      chainTx(h.OnRedo, other.OnRedo),
		OnJobLaunch: chainJob(h.OnJobLaunch, other.OnJobLaunch),
		OnJobDone:   chainJob(h.OnJobDone, other.OnJobDone),
	}
}

func chainFlow(a, b func(context.Context, *FlowEvent)) func(context.Context, *FlowEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *FlowEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}

func chainTx(a, b func(context.Context, *TransactionEvent)) func(context.Context, *TransactionEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *TransactionEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}

func chainJob(a, b func(context.Context, *JobEvent)) func(context.Context, *JobEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *JobEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}
