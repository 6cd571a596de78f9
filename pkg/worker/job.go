package worker

import "context"

// Job is a unit of deferred work.
type Job interface {
	Name() string
	// RunCore computes the result off the interaction loop. It must not touch
	// shared mutable state except through Monitor.Commit.
	RunCore(ctx context.Context, m *Monitor) (any, error)
	// PostRunCore runs on the interaction loop after a successful RunCore.
	PostRunCore(ctx context.Context, result any) error
}

// Owner receives the completion callbacks of a launched job.
type Owner interface {
	// HandleRemoteError reports a RunCore or PostRunCore failure. Returning true
	// marks it handled; otherwise the client logs it.
	HandleRemoteError(err error) bool
	CleanUpPreEnable(result any)
	HandleCancellation()
	CleanUpPostRepaint(result any)
}

// OwnerFuncs adapts optional functions to Owner. Nil fields are no-ops.
type OwnerFuncs struct {
	OnRemoteError  func(err error) bool
	OnPreEnable    func(result any)
	OnCancellation func()
	OnPostRepaint  func(result any)
}

func (o OwnerFuncs) HandleRemoteError(err error) bool {
	if o.OnRemoteError == nil {
		return false
	}
	return o.OnRemoteError(err)
}

func (o OwnerFuncs) CleanUpPreEnable(result any) {
	if o.OnPreEnable != nil {
		o.OnPreEnable(result)
	}
}

func (o OwnerFuncs) HandleCancellation() {
	if o.OnCancellation != nil {
		o.OnCancellation()
	}
}

func (o OwnerFuncs) CleanUpPostRepaint(result any) {
	if o.OnPostRepaint != nil {
		o.OnPostRepaint(result)
	}
}

// Chain returns an Owner that calls first and then next. The remote error
// counts as handled if either handles it.
func Chain(first, next Owner) Owner {
	return chained{first, next}
}

type chained struct{ a, b Owner }

func (c chained) HandleRemoteError(err error) bool {
	ha := c.a.HandleRemoteError(err)
	hb := c.b.HandleRemoteError(err)
	return ha || hb
}

func (c chained) CleanUpPreEnable(result any) {
	c.a.CleanUpPreEnable(result)
	c.b.CleanUpPreEnable(result)
}

func (c chained) HandleCancellation() {
	c.a.HandleCancellation()
	c.b.HandleCancellation()
}

func (c chained) CleanUpPostRepaint(result any) {
	c.a.CleanUpPostRepaint(result)
	c.b.CleanUpPostRepaint(result)
}

// JobFunc builds a Job from two functions. A nil post is a no-op.
func JobFunc(name string, run func(context.Context, *Monitor) (any, error), post func(context.Context, any) error) Job {
	return funcJob{name: name, run: run, post: post}
}

type funcJob struct {
	name string
	run  func(context.Context, *Monitor) (any, error)
	post func(context.Context, any) error
}

func (j funcJob) Name() string { return j.name }

func (j funcJob) RunCore(ctx context.Context, m *Monitor) (any, error) { return j.run(ctx, m) }

func (j funcJob) PostRunCore(ctx context.Context, result any) error {
	if j.post == nil {
		return nil
	}
	return j.post(ctx, result)
}
