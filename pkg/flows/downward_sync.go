package flows

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/tapestry/pkg/changelog"
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/flow"
	"github.com/aretw0/tapestry/pkg/layout"
	"github.com/aretw0/tapestry/pkg/model"
	"github.com/aretw0/tapestry/pkg/worker"
	"github.com/mitchellh/mapstructure"
)

// SyncOptions selects what a downward sync touches.
type SyncOptions struct {
	Targets []string       `mapstructure:"targets" json:"targets"`
	Layout  layout.Options `mapstructure:",squash" json:"layout"`
}

// SyncReport is the result of a downward sync job.
type SyncReport struct {
	Synced    []layout.Report   `json:"synced"`
	Failed    map[string]string `json:"failed,omitempty"`
	Cancelled bool              `json:"cancelled,omitempty"`
}

type downSyncState struct {
	flow.Base
	SyncOptions `mapstructure:",squash"`

	Report    *SyncReport
	preloaded bool
}

func newDownSync(preloaded bool) func(env *flow.Env) (*downSyncState, error) {
	return func(env *flow.Env) (*downSyncState, error) {
		st := &downSyncState{preloaded: preloaded}
		st.Init(env, "options")
		return st, nil
	}
}

// DownwardSync stamps the root layout onto instance models in a background
// job. Each instance is committed in its own transaction, so cancelling or
// failing part way leaves earlier instances synced and later ones untouched.
var DownwardSync = &flow.Definition[*downSyncState]{
	FlowKey: KeyDownSync,
	Label:   "Sync layouts to instances",
	Enabled: func(c flow.Context) bool {
		return c.IsRoot() && c.ModelCount > 1 && !c.JobRunning
	},
	Start:   newDownSync(false),
	Preload: newDownSync(true),
	Steps: map[string]flow.StepFunc[*downSyncState]{
		"options": func(_ context.Context, st *downSyncState, _ domain.Trigger) (flow.Envelope, error) {
			if st.preloaded {
				st.Goto("launch")
				return flow.KeepGoing(st), nil
			}
			st.Goto("answer")
			return flow.Ask(st, domain.Feedback{
				Kind:    domain.FeedbackChoice,
				Title:   "Sync layouts",
				Message: "Choose the instance models to lay out from the root model.",
				Options: map[string]any{"targets": st.Env().Net.Instances()},
			}), nil
		},
		"answer": func(_ context.Context, st *downSyncState, trig domain.Trigger) (flow.Envelope, error) {
			if trig.Kind != domain.TriggerAnswer || trig.Answer.Declined() {
				return flow.Cancel(st), nil
			}
			if err := mapstructure.WeakDecode(trig.Answer.Values, &st.SyncOptions); err != nil {
				return flow.Envelope{}, fmt.Errorf("sync options: %w", err)
			}
			st.Goto("launch")
			return flow.KeepGoing(st), nil
		},
		"launch": stepLaunchSync,
	},
}

func stepLaunchSync(_ context.Context, st *downSyncState, _ domain.Trigger) (flow.Envelope, error) {
	env := st.Env()
	if len(st.Targets) == 0 {
		st.Targets = env.Net.Instances()
	}
	for _, id := range st.Targets {
		if k, err := env.Net.Kind(id); err != nil {
			return flow.Envelope{}, err
		} else if k == model.KindRoot {
			return flow.Envelope{}, fmt.Errorf("sync target %q is the root model", id)
		}
	}
	job := &syncJob{env: env, snapshot: env.Net.Snapshot(), opts: st.SyncOptions}
	owner := worker.OwnerFuncs{
		OnPostRepaint: func(result any) {
			st.Report = result.(*SyncReport)
			env.Logger.Info("Layouts synced", "count", len(st.Report.Synced), "failed", len(st.Report.Failed))
		},
		OnCancellation: func() {
			st.Report = &SyncReport{}
			if job.report != nil {
				st.Report = job.report
			}
			st.Report.Cancelled = true
		},
	}
	return flow.OnThread(st, job, owner), nil
}

// syncJob reads a snapshot off the interaction loop and commits one
// transaction per target through the monitor.
type syncJob struct {
	env      *flow.Env
	snapshot *model.Network
	opts     SyncOptions
	report   *SyncReport
}

func (j *syncJob) Name() string { return KeyDownSync }

func (j *syncJob) RunCore(ctx context.Context, m *worker.Monitor) (any, error) {
	j.report = &SyncReport{Failed: map[string]string{}}
	root, _ := j.snapshot.Layout(j.snapshot.RootID())

	for i, target := range j.opts.Targets {
		if err := m.Checkpoint(); err != nil {
			return j.report, err
		}
		unit := m.Partition(i, len(j.opts.Targets))
		tm, _ := j.snapshot.Model(target)
		current, _ := j.snapshot.Layout(target)

		next, rep, err := j.env.Layout.Stamp(ctx, root, tm, current, j.opts.Layout, unit)
		if errors.Is(err, domain.ErrCancelled) {
			return j.report, err
		}
		if err != nil {
			j.report.Failed[target] = err.Error()
			unit.Update(1)
			continue
		}

		err = m.Commit(func() error {
			tx := j.env.Log.Begin("undo.downwardSync")
			defer tx.Discard()
			c, err := changelog.LayoutSwap(j.env.Net, next)
			if err != nil {
				return err
			}
			if err := tx.Apply(c); err != nil {
				return err
			}
			if err := tx.AddEvent(changelog.LayoutChanged(target)); err != nil {
				return err
			}
			return tx.Finish(ctx)
		})
		if errors.Is(err, domain.ErrCancelled) {
			return j.report, err
		}
		if err != nil {
			j.report.Failed[target] = err.Error()
			continue
		}
		j.report.Synced = append(j.report.Synced, rep)
		unit.Update(1)
	}
	return j.report, nil
}

func (j *syncJob) PostRunCore(context.Context, any) error { return nil }
