package harness_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/tapestry/internal/testutils"
	"github.com/aretw0/tapestry/pkg/adapters/headless"
	"github.com/aretw0/tapestry/pkg/changelog"
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/flow"
	"github.com/aretw0/tapestry/pkg/harness"
	"github.com/aretw0/tapestry/pkg/loop"
	"github.com/aretw0/tapestry/pkg/model"
	"github.com/aretw0/tapestry/pkg/registry"
	"github.com/aretw0/tapestry/pkg/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type placeState struct {
	flow.Base
	At domain.Point `mapstructure:"at"`
	ID string       `mapstructure:"id"`
}

func startAt(label string) func(env *flow.Env) (*placeState, error) {
	return func(env *flow.Env) (*placeState, error) {
		st := &placeState{ID: "n1"}
		st.Init(env, label)
		return st, nil
	}
}

func place(_ context.Context, st *placeState, trig domain.Trigger) (flow.Envelope, error) {
	if trig.Kind == domain.TriggerClick {
		st.At = trig.Point
	}
	tx := st.Begin("undo.place")
	if err := tx.Apply(changelog.NodeCreate(st.Env().ModelID(), model.Node{ID: st.ID}, &st.At)); err != nil {
		return flow.Envelope{}, err
	}
	return flow.ClickDone(st), tx.Finish(context.Background())
}

// placeFlow waits for one click and creates a node there. Preloaded starts
// skip the click.
var placeFlow = &flow.Definition[*placeState]{
	FlowKey: "place",
	Start:   startAt("start"),
	Preload: startAt("place"),
	Steps: map[string]flow.StepFunc[*placeState]{
		"start": func(_ context.Context, st *placeState, _ domain.Trigger) (flow.Envelope, error) {
			st.Goto("place")
			return flow.AwaitClicks(st, flow.ModeSpec{Mode: domain.ModeAddNode, Clicks: 1}), nil
		},
		"place": place,
	},
}

// leakyFlow applies a change and then jumps to a label it never defined.
var leakyFlow = &flow.Definition[*placeState]{
	FlowKey: "leaky",
	Start:   startAt("apply"),
	Steps: map[string]flow.StepFunc[*placeState]{
		"apply": func(_ context.Context, st *placeState, _ domain.Trigger) (flow.Envelope, error) {
			tx := st.Begin("undo.leak")
			if err := tx.Apply(changelog.NodeCreate(st.Env().ModelID(), model.Node{ID: "leak"}, &domain.Point{X: 1, Y: 1})); err != nil {
				return flow.Envelope{}, err
			}
			st.Goto("nowhere")
			return flow.KeepGoing(st), nil
		},
	},
}

// askFlow asks for confirmation before creating a node.
var askFlow = &flow.Definition[*placeState]{
	FlowKey: "ask",
	Start:   startAt("ask"),
	Steps: map[string]flow.StepFunc[*placeState]{
		"ask": func(_ context.Context, st *placeState, _ domain.Trigger) (flow.Envelope, error) {
			st.Goto("answer")
			return flow.Ask(st, domain.Feedback{Kind: domain.FeedbackYesNo, Message: "really?"}), nil
		},
		"answer": func(ctx context.Context, st *placeState, trig domain.Trigger) (flow.Envelope, error) {
			if trig.Answer.Declined() {
				return flow.Cancel(st), nil
			}
			return place(ctx, st, trig)
		},
	},
}

// threadFlow hands its work to a background job.
var threadFlow = &flow.Definition[*placeState]{
	FlowKey: "thread",
	Start:   startAt("launch"),
	Steps: map[string]flow.StepFunc[*placeState]{
		"launch": func(_ context.Context, st *placeState, _ domain.Trigger) (flow.Envelope, error) {
			env := st.Env()
			job := worker.JobFunc("thread",
				func(ctx context.Context, m *worker.Monitor) (any, error) {
					m.Update(1)
					return domain.Point{X: 7, Y: 7}, nil
				},
				func(ctx context.Context, result any) error {
					pt := result.(domain.Point)
					tx := env.Log.Begin("undo.thread")
					defer tx.Discard()
					if err := tx.Apply(changelog.NodeCreate(env.ModelID(), model.Node{ID: "bg"}, &pt)); err != nil {
						return err
					}
					return tx.Finish(ctx)
				},
			)
			return flow.OnThread(st, job, nil), nil
		},
	},
}

type fixture struct {
	env    *flow.Env
	h      *harness.Harness
	loop   *loop.Loop
	resets []domain.Progress
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	net := testutils.At(t, testutils.NewNetwork(t), "inst1")
	env := flow.NewEnv(net, changelog.New(net))
	l := loop.New()
	env.Jobs = worker.NewClient(l)
	reg, err := registry.NewRegistry(placeFlow, leakyFlow, askFlow, threadFlow)
	require.NoError(t, err)

	f := &fixture{env: env, loop: l}
	f.h = harness.New(env, reg, harness.WithResetListener(func(p domain.Progress) {
		f.resets = append(f.resets, p)
	}))
	return f
}

func TestHarness_StartAndClick(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	env, err := f.h.Start(ctx, "place")
	require.NoError(t, err)
	assert.Equal(t, domain.ProgressMouseMode, env.Progress)
	assert.True(t, f.h.Active())

	env, err = f.h.HandleClick(ctx, domain.Point{X: 10, Y: 20}, false, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.ProgressDone, env.Progress)
	assert.False(t, f.h.Active())
	assert.Equal(t, []domain.Progress{domain.ProgressDone}, f.resets)

	pos, ok := f.env.Net.Position("inst1", "n1")
	require.True(t, ok)
	assert.Equal(t, domain.Point{X: 10, Y: 20}, pos)
}

func TestHarness_PreloadMatchesInteractive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pre, err := f.h.BuildHarness("place")
	require.NoError(t, err)
	require.NoError(t, pre.Decode(map[string]any{"at": map[string]any{"x": 10, "y": "20"}, "id": "n1"}))

	env, err := f.h.RunHarness(ctx, pre)
	require.NoError(t, err)
	assert.Equal(t, domain.ProgressDone, env.Progress)

	pos, ok := f.env.Net.Position("inst1", "n1")
	require.True(t, ok)
	assert.Equal(t, domain.Point{X: 10, Y: 20}, pos)
	assert.Len(t, f.env.Log.History(), 1)
}

func TestHarness_PreloadUnsupported(t *testing.T) {
	f := newFixture(t)
	_, err := f.h.BuildHarness("ask")
	assert.ErrorIs(t, err, domain.ErrPreloadUnsupported)

	_, err = f.h.BuildHarness("missing")
	assert.ErrorIs(t, err, domain.ErrUnknownFlow)
}

func TestHarness_OneFlowAtATime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.h.Start(ctx, "place")
	require.NoError(t, err)
	_, err = f.h.Start(ctx, "ask")
	assert.ErrorIs(t, err, domain.ErrFlowBusy)
}

func TestHarness_UnknownLabelRollsBack(t *testing.T) {
	f := newFixture(t)
	before := f.env.Net.Snapshot()

	env, err := f.h.Start(context.Background(), "leaky")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownStep)
	assert.Equal(t, domain.ProgressError, env.Progress)
	assert.False(t, f.h.Active())
	assert.True(t, f.env.Net.Equal(before), "open transaction must be discarded")
	assert.Equal(t, 0, f.env.Log.Open())
	assert.Equal(t, []domain.Progress{domain.ProgressError}, f.resets)
}

func TestHarness_ContinueWithoutFlow(t *testing.T) {
	f := newFixture(t)
	_, err := f.h.HandleClick(context.Background(), domain.Point{}, false, 1)
	assert.ErrorIs(t, err, domain.ErrNoActiveFlow)
}

func TestHarness_StaleEnvelopeRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stale, err := f.h.Start(ctx, "place")
	require.NoError(t, err)
	f.h.ClearFlow(ctx)
	_, err = f.h.Start(ctx, "place")
	require.NoError(t, err)

	_, err = f.h.ProcessNextStep(ctx, domain.Click(domain.Point{}, false, 1), &stale)
	assert.ErrorIs(t, err, domain.ErrStateMismatch)
}

func TestHarness_FeedbackRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		answer domain.AnswerChoice
		want   domain.Progress
		nodes  bool
	}{
		{"accepted", domain.AnswerYes, domain.ProgressDone, true},
		{"declined", domain.AnswerNo, domain.ProgressUserCancel, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			env, err := f.h.Start(ctx, "ask")
			require.NoError(t, err)
			require.Equal(t, domain.ProgressHaveFeedback, env.Progress)
			require.NotNil(t, env.Feedback)

			env, err = f.h.Answer(ctx, domain.Answer{Choice: tt.answer})
			require.NoError(t, err)
			assert.Equal(t, tt.want, env.Progress)
			_, ok := f.env.Net.Node("inst1", "n1")
			assert.Equal(t, tt.nodes, ok)
		})
	}
}

func TestHarness_HeadlessDialogsAnswerInline(t *testing.T) {
	f := newFixture(t)
	dialogs := headless.NewDialogs(domain.Answer{Choice: domain.AnswerYes})
	f.env.Dialogs = dialogs
	f.env.Headless = true

	env, err := f.h.Start(context.Background(), "ask")
	require.NoError(t, err)
	assert.Equal(t, domain.ProgressDone, env.Progress)
	assert.Len(t, dialogs.Asked(), 1)
}

func TestHarness_DoneOnThread(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	env, err := f.h.Start(ctx, "thread")
	require.NoError(t, err)
	assert.Equal(t, domain.ProgressDoneOnThread, env.Progress)
	assert.False(t, f.h.Active())
	require.True(t, f.h.Pending())

	_, err = f.h.Start(ctx, "place")
	assert.ErrorIs(t, err, domain.ErrJobRunning)

	job := f.h.Job()
	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, f.loop.RunUntil(wctx, job.Done()))

	assert.False(t, f.h.Pending())
	assert.Equal(t, []domain.Progress{domain.ProgressDone}, f.resets)
	_, ok := f.env.Net.Node("inst1", "bg")
	assert.True(t, ok)
}

func TestHarness_DoneOnThreadWithoutClient(t *testing.T) {
	f := newFixture(t)
	f.env.Jobs = nil

	_, err := f.h.Start(context.Background(), "thread")
	assert.True(t, errors.Is(err, harness.ErrNoJobClient))
	assert.False(t, f.h.Active())
	assert.False(t, f.h.Pending())
}

func TestHarness_HooksFire(t *testing.T) {
	f := newFixture(t)
	var events []string
	f.env.Hooks = domain.LifecycleHooks{
		OnFlowStart: func(_ context.Context, e *domain.FlowEvent) { events = append(events, "start:"+e.Flow) },
		OnStep:      func(_ context.Context, e *domain.FlowEvent) { events = append(events, "step:"+e.Step) },
		OnFlowEnd:   func(_ context.Context, e *domain.FlowEvent) { events = append(events, "end:"+e.Progress.String()) },
	}

	pre, err := f.h.BuildHarness("place")
	require.NoError(t, err)
	_, err = f.h.RunHarness(context.Background(), pre)
	require.NoError(t, err)

	assert.Equal(t, []string{"start:place", "step:place", "end:done"}, events)
}
