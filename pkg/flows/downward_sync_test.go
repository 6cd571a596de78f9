package flows

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/layout"
	"github.com/aretw0/tapestry/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedStamper copies layouts but can cancel the job or fail on a chosen unit.
type scriptedStamper struct {
	mu       sync.Mutex
	calls    int
	cancel   func()
	cancelAt int
	failOn   string
}

func (s *scriptedStamper) arm(cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel = cancel
}

func (s *scriptedStamper) Stamp(ctx context.Context, root model.Layout, target model.Model, current model.Layout, opts layout.Options, p layout.Progress) (model.Layout, layout.Report, error) {
	s.mu.Lock()
	s.calls++
	n, cancel := s.calls, s.cancel
	s.mu.Unlock()

	if n == s.cancelAt && cancel != nil {
		cancel()
		if err := p.Checkpoint(); err != nil {
			return model.Layout{}, layout.Report{}, err
		}
	}
	if target.ID == s.failOn {
		return model.Layout{}, layout.Report{}, errors.New("no room for stamp")
	}
	return layout.CopyStamper{}.Stamp(ctx, root, target, current, opts, p)
}

var shifted = map[string]any{"offset": map[string]any{"x": 5, "y": 0}}

func TestDownwardSync_CommitsEveryInstance(t *testing.T) {
	f := newFixture(t, "root")

	env := f.preload(t, KeyDownSync, shifted)
	require.Equal(t, domain.ProgressDoneOnThread, env.Progress)
	f.wait(t)

	st := env.State.(*downSyncState)
	require.NotNil(t, st.Report)
	assert.Len(t, st.Report.Synced, 3)
	assert.Empty(t, st.Report.Failed)
	assert.Len(t, f.env.Log.History(), 3, "one transaction per instance")
	for _, id := range []string{"inst1", "inst2", "inst3"} {
		pos, _ := f.env.Net.Position(id, "a")
		assert.Equal(t, domain.Point{X: 15, Y: 10}, pos, id)
	}
	assert.False(t, f.h.Pending())
}

func TestDownwardSync_CancelKeepsCommittedUnits(t *testing.T) {
	f := newFixture(t, "root")
	stamper := &scriptedStamper{cancelAt: 3}
	f.env.Layout = stamper
	before := f.env.Net.Snapshot()

	env := f.preload(t, KeyDownSync, shifted)
	require.Equal(t, domain.ProgressDoneOnThread, env.Progress)
	stamper.arm(f.h.Job().Cancel)
	job := f.h.Job()
	f.wait(t)

	assert.Equal(t, domain.JobCancelled, job.Outcome())
	st := env.State.(*downSyncState)
	require.NotNil(t, st.Report)
	assert.True(t, st.Report.Cancelled)
	assert.Len(t, st.Report.Synced, 2)
	assert.Len(t, f.env.Log.History(), 2)

	pos, _ := f.env.Net.Position("inst2", "a")
	assert.Equal(t, domain.Point{X: 15, Y: 10}, pos)
	after, _ := f.env.Net.Layout("inst3")
	untouched, _ := before.Layout("inst3")
	assert.Equal(t, untouched, after, "the cancelled unit is not committed")
}

func TestDownwardSync_CancelBeforeFirstCommit(t *testing.T) {
	f := newFixture(t, "root")
	before := f.env.Net.Snapshot()

	env := f.preload(t, KeyDownSync, shifted)
	require.Equal(t, domain.ProgressDoneOnThread, env.Progress)
	job := f.h.Job()
	job.Cancel()
	f.wait(t)

	assert.Equal(t, domain.JobCancelled, job.Outcome())
	assert.True(t, f.env.Net.Equal(before), "network matches its pre-launch state")
	assert.False(t, f.env.Log.CanUndo())
	assert.True(t, env.State.(*downSyncState).Report.Cancelled)
}

func TestDownwardSync_FailedUnitDoesNotStopOthers(t *testing.T) {
	f := newFixture(t, "root")
	f.env.Layout = &scriptedStamper{failOn: "inst2"}

	env := f.preload(t, KeyDownSync, shifted)
	f.wait(t)

	st := env.State.(*downSyncState)
	require.NotNil(t, st.Report)
	assert.Len(t, st.Report.Synced, 2)
	assert.Contains(t, st.Report.Failed, "inst2")
	pos, _ := f.env.Net.Position("inst2", "a")
	assert.Equal(t, domain.Point{X: 10, Y: 10}, pos)
}

func TestDownwardSync_AsksForTargets(t *testing.T) {
	f := newFixture(t, "root")
	ctx := context.Background()

	env, err := f.h.Start(ctx, KeyDownSync)
	require.NoError(t, err)
	require.Equal(t, domain.ProgressHaveFeedback, env.Progress)
	assert.Equal(t, domain.FeedbackChoice, env.Feedback.Kind)
	assert.Equal(t, []string{"inst1", "inst2", "inst3"}, env.Feedback.Options["targets"])

	env, err = f.h.Answer(ctx, domain.Answer{Choice: domain.AnswerOK, Values: map[string]any{
		"targets": []any{"inst3"},
		"offset":  map[string]any{"x": 0, "y": 7},
	}})
	require.NoError(t, err)
	require.Equal(t, domain.ProgressDoneOnThread, env.Progress)
	f.wait(t)

	pos, _ := f.env.Net.Position("inst3", "a")
	assert.Equal(t, domain.Point{X: 10, Y: 17}, pos)
	pos, _ = f.env.Net.Position("inst1", "a")
	assert.Equal(t, domain.Point{X: 10, Y: 10}, pos)
}

func TestDownwardSync_RootTargetRefused(t *testing.T) {
	f := newFixture(t, "root")
	pre, err := f.h.BuildHarness(KeyDownSync)
	require.NoError(t, err)
	require.NoError(t, pre.Decode(map[string]any{"targets": []string{"root"}}))

	env, err := f.h.RunHarness(context.Background(), pre)
	require.Error(t, err)
	assert.Equal(t, domain.ProgressError, env.Progress)
	assert.False(t, f.h.Pending())
}
