package mode_test

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
	"github.com/aretw0/tapestry/pkg/flows"
	"github.com/aretw0/tapestry/pkg/harness"
	"github.com/aretw0/tapestry/pkg/loop"
	"github.com/aretw0/tapestry/pkg/mode"
	"github.com/aretw0/tapestry/pkg/model"
	"github.com/aretw0/tapestry/pkg/ports"
	"github.com/aretw0/tapestry/pkg/registry"
	"github.com/aretw0/tapestry/pkg/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubState struct {
	flow.Base
}

// stubFlow builds a flow that enters spec's mode and runs click on every click.
func stubFlow(key string, spec flow.ModeSpec, click flow.StepFunc[*stubState]) flow.Flow {
	return &flow.Definition[*stubState]{
		FlowKey: key,
		Start: func(env *flow.Env) (*stubState, error) {
			st := &stubState{}
			st.Init(env, "start")
			return st, nil
		},
		Steps: map[string]flow.StepFunc[*stubState]{
			"start": func(_ context.Context, st *stubState, _ domain.Trigger) (flow.Envelope, error) {
				st.Goto("click")
				return flow.AwaitClicks(st, spec), nil
			},
			"click": click,
		},
	}
}

// commitOnce finishes after a single click, whatever its mode declared.
func commitOnce(ctx context.Context, st *stubState, trig domain.Trigger) (flow.Envelope, error) {
	env := st.Env()
	tx := st.Begin("undo.stub")
	if err := tx.Apply(changelog.NodeCreate(env.ModelID(), model.Node{ID: "stub"}, &trig.Point)); err != nil {
		return flow.Envelope{}, err
	}
	if err := tx.Finish(ctx); err != nil {
		return flow.Envelope{}, err
	}
	return flow.ClickDone(st), nil
}

// confirmFlow asks before it starts collecting a point.
var confirmFlow = &flow.Definition[*stubState]{
	FlowKey: "confirm",
	Start: func(env *flow.Env) (*stubState, error) {
		st := &stubState{}
		st.Init(env, "ask")
		return st, nil
	},
	Steps: map[string]flow.StepFunc[*stubState]{
		"ask": func(_ context.Context, st *stubState, _ domain.Trigger) (flow.Envelope, error) {
			st.Goto("answer")
			return flow.Ask(st, domain.Feedback{Kind: domain.FeedbackYesNo, Message: "place a node?"}), nil
		},
		"answer": func(_ context.Context, st *stubState, trig domain.Trigger) (flow.Envelope, error) {
			if trig.Answer.Declined() {
				return flow.Cancel(st), nil
			}
			st.Goto("click")
			return flow.AwaitClicks(st, flow.ModeSpec{Mode: domain.ModeAddNode, Clicks: 1}), nil
		},
		"click": commitOnce,
	},
}

type fixture struct {
	env      *flow.Env
	h        *harness.Harness
	d        *mode.Dispatcher
	loop     *loop.Loop
	controls *headless.Controls
}

func newFixture(t *testing.T, modelID string) *fixture {
	t.Helper()
	net := testutils.At(t, testutils.NewNetwork(t), modelID)
	env := flow.NewEnv(net, changelog.New(net))
	l := loop.New()
	env.Jobs = worker.NewClient(l)

	all := append(flows.All(),
		stubFlow("short", flow.ModeSpec{Mode: domain.ModeAddLink, Clicks: 2}, commitOnce),
		stubFlow("strict", flow.ModeSpec{Mode: domain.ModeAddNode, NoSubModels: true, Clicks: 1}, commitOnce),
		stubFlow("bare", flow.ModeSpec{Mode: domain.ModeAddNode, Clicks: 1, Floater: flow.FloaterObject}, commitOnce),
		confirmFlow,
	)
	reg, err := registry.NewRegistry(all...)
	require.NoError(t, err)

	f := &fixture{env: env, loop: l, controls: headless.NewControls()}
	f.h = harness.New(env, reg)
	f.d = mode.New(f.h, f.controls)
	return f
}

func (f *fixture) click(t *testing.T, x, y float64) domain.ClickResult {
	t.Helper()
	res, err := f.d.ProcessClick(context.Background(), domain.Point{X: x, Y: y}, false, 1)
	require.NoError(t, err)
	return res
}

func TestDispatcher_InvokeEntersMode(t *testing.T) {
	f := newFixture(t, "inst1")

	env, err := f.d.Invoke(context.Background(), flows.KeyAddNode)
	require.NoError(t, err)
	assert.Equal(t, domain.ProgressMouseMode, env.Progress)
	assert.Equal(t, domain.ModeAddNode, f.d.Mode())
	assert.Equal(t, ports.MaskAll, f.controls.Disabled())
	assert.Equal(t, ports.CursorMode, f.controls.Cursor())
	assert.NotNil(t, f.controls.Floater())
	assert.True(t, f.d.Busy())

	assert.Equal(t, domain.ClickProcessed, f.click(t, 10, 40))
	assert.Equal(t, domain.ModeNone, f.d.Mode())
	assert.Equal(t, ports.MaskNone, f.controls.Disabled())
	assert.Equal(t, ports.CursorDefault, f.controls.Cursor())
	assert.Nil(t, f.controls.Floater())
	assert.False(t, f.d.Busy())
}

func TestDispatcher_CancelModeIsIdempotent(t *testing.T) {
	f := newFixture(t, "inst1")
	_, err := f.d.Invoke(context.Background(), flows.KeyAddNode)
	require.NoError(t, err)

	f.d.CancelMode(ports.CancelAddsAllModes)
	f.d.CancelMode(ports.CancelSkipPullDowns)

	assert.Equal(t, domain.ModeNone, f.d.Mode())
	assert.False(t, f.h.Active())
	assert.Equal(t, ports.MaskNone, f.controls.Disabled())
	assert.Equal(t, []ports.CancelMask{ports.CancelAddsAllModes, ports.CancelSkipPullDowns}, f.controls.CancelledModals())
	assert.False(t, f.env.Log.CanUndo())
}

func TestDispatcher_MultiClickCollectsPoints(t *testing.T) {
	f := newFixture(t, "inst2")
	_, err := f.d.Invoke(context.Background(), flows.KeyDefineRegion)
	require.NoError(t, err)
	require.Equal(t, domain.ModeDrawGroup, f.d.Mode())
	assert.Equal(t, 2, f.d.Handler().Capabilities().Clicks)

	assert.Equal(t, domain.ClickAccept, f.click(t, 0, 0))
	assert.Equal(t, domain.ModeDrawGroup, f.d.Mode(), "one corner is not enough")
	assert.Equal(t, domain.Point{}, f.controls.Floater())

	assert.Equal(t, domain.ClickProcessed, f.click(t, 60, 60))
	assert.Equal(t, domain.ModeNone, f.d.Mode())
	m, _ := f.env.Net.Model("inst2")
	assert.Len(t, m.Regions, 1)
}

func TestDispatcher_MultiClickCancelDiscards(t *testing.T) {
	f := newFixture(t, "inst2")
	before := f.env.Net.Snapshot()
	_, err := f.d.Invoke(context.Background(), flows.KeyDefineRegion)
	require.NoError(t, err)
	f.click(t, 0, 0)

	f.d.CancelMode(ports.CancelAddsAllModes)
	assert.Equal(t, domain.ModeNone, f.d.Mode())
	assert.True(t, f.env.Net.Equal(before))
}

func TestDispatcher_MultiClickFinishedShort(t *testing.T) {
	f := newFixture(t, "inst1")
	before := f.env.Net.Snapshot()

	_, err := f.d.Invoke(context.Background(), flows.KeyAddNode)
	require.NoError(t, err)
	require.Equal(t, domain.ClickProcessed, f.click(t, 10, 40))
	_, err = f.env.Log.Undo(context.Background())
	require.NoError(t, err)

	_, err = f.d.Invoke(context.Background(), "short")
	require.NoError(t, err)

	res, err := f.d.ProcessClick(context.Background(), domain.Point{X: 30, Y: 30}, false, 1)
	var short *mode.ShortClickError
	require.True(t, errors.As(err, &short))
	assert.Equal(t, 2, short.Need)
	assert.Equal(t, domain.ClickError, res)
	assert.Equal(t, domain.ModeNone, f.d.Mode())
	assert.True(t, f.env.Net.Equal(before), "the premature commit is taken back")
	assert.Equal(t, 1, f.controls.ErrorFeedbacks())
	assert.Empty(t, f.env.Log.History())

	redo := f.env.Log.RedoHistory()
	require.Len(t, redo, 1, "earlier redo entries survive")
	assert.Equal(t, "undo.addNode", redo[0].Label)
	tx, err := f.env.Log.Redo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "undo.addNode", tx.Label())
	_, hasStub := f.env.Net.Node("inst1", "stub")
	assert.False(t, hasStub, "the rejected commit cannot be redone")
	assert.False(t, f.env.Log.CanRedo())
}

func TestDispatcher_EntryRulesRefuse(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		modelID string
	}{
		{"sub model not admitted", "strict", "sub1"},
		{"object floater missing", "bare", "inst1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.modelID)
			env, err := f.d.Invoke(context.Background(), tt.key)
			assert.ErrorIs(t, err, mode.ErrModeRefused)
			assert.Equal(t, domain.ProgressUserCancel, env.Progress)
			assert.Equal(t, domain.ModeNone, f.d.Mode())
			assert.False(t, f.h.Active())
			assert.Equal(t, ports.MaskNone, f.controls.Disabled())
		})
	}
}

func TestDispatcher_DefaultHandlerSelects(t *testing.T) {
	f := newFixture(t, "inst1")

	assert.Equal(t, domain.ClickProcessed, f.click(t, 50, 10))
	assert.Equal(t, []string{"b"}, f.env.Selection.Nodes())

	assert.Equal(t, domain.ClickUnselected, f.click(t, 70, 70))
	assert.Empty(t, f.env.Selection.Nodes())
	assert.Equal(t, 1, f.controls.ErrorFeedbacks())
	assert.Equal(t, domain.ModeNone, f.d.Mode())
}

func TestDispatcher_SelectItems(t *testing.T) {
	f := newFixture(t, "inst1")
	env, err := f.d.SelectItems(context.Background(), domain.Rect{Max: domain.Point{X: 100, Y: 100}}, false)
	require.NoError(t, err)
	assert.Equal(t, domain.ProgressDone, env.Progress)
	assert.Equal(t, []string{"a", "b", "c"}, f.env.Selection.Nodes())
}

func TestDispatcher_IncrementalModeStays(t *testing.T) {
	f := newFixture(t, "inst1")
	_, err := f.d.Invoke(context.Background(), flows.KeyAddToRegion)
	require.NoError(t, err)
	require.True(t, f.d.Handler().Capabilities().NeverSelfExits)

	assert.Equal(t, domain.ClickProcessed, f.click(t, 50, 10))
	assert.Equal(t, domain.ModeAddToNetModule, f.d.Mode())
	assert.True(t, f.h.Active(), "the flow restarts for the next unit")

	assert.Equal(t, domain.ClickProcessed, f.click(t, 90, 10))
	assert.Equal(t, domain.ModeAddToNetModule, f.d.Mode())

	f.d.CancelMode(ports.CancelSkipModuleAdds)
	assert.Equal(t, domain.ModeNone, f.d.Mode())
	r, _ := f.env.Net.Region("inst1", "r1")
	assert.Equal(t, []string{"a", "b", "c"}, r.Members)
	assert.Len(t, f.env.Log.History(), 2)
}

func TestDispatcher_PullDownNeedsInstance(t *testing.T) {
	f := newFixture(t, "inst2")
	_, err := f.d.Invoke(context.Background(), flows.KeyPullDown)
	require.NoError(t, err)
	assert.Equal(t, domain.ModePullDown, f.d.Mode())
}

func TestDispatcher_MotionPreview(t *testing.T) {
	f := newFixture(t, "inst1")
	ctx := context.Background()
	f.env.Selection.AddNodes("a")
	_, err := f.d.Invoke(ctx, flows.KeyMove)
	require.NoError(t, err)

	assert.Equal(t, domain.ClickAccept, f.click(t, 0, 0))
	require.NoError(t, f.d.ProcessMotion(ctx, domain.Point{X: 3, Y: 4}))
	preview, ok := f.controls.Floater().(map[string]domain.Point)
	require.True(t, ok)
	assert.Equal(t, domain.Point{X: 13, Y: 14}, preview["a"])

	assert.Equal(t, domain.ClickProcessed, f.click(t, 5, 5))
	assert.Equal(t, domain.ModeNone, f.d.Mode())
	a, _ := f.env.Net.Position("inst1", "a")
	assert.Equal(t, domain.Point{X: 15, Y: 15}, a)
}

func TestDispatcher_DelayedJobKeepsControlsDisabled(t *testing.T) {
	f := newFixture(t, "root")
	f.env.Dialogs = headless.NewDialogs(domain.Answer{Choice: domain.AnswerOK})
	f.env.Headless = true
	ctx := context.Background()

	env, err := f.d.Invoke(ctx, flows.KeyDownSync)
	require.NoError(t, err)
	require.Equal(t, domain.ProgressDoneOnThread, env.Progress)
	job := f.h.Job()
	require.NotNil(t, job)
	assert.Equal(t, ports.MaskAll, f.controls.Disabled())

	assert.Equal(t, domain.ClickReject, f.click(t, 10, 10), "clicks are refused while the job runs")
	_, err = f.d.Invoke(ctx, flows.KeyAddNode)
	assert.ErrorIs(t, err, domain.ErrJobRunning)

	f.d.CancelMode(ports.CancelAddsAllModes)
	assert.Equal(t, ports.MaskAll, f.controls.Disabled(), "cancel does not re-enable under a pending job")

	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, f.loop.RunUntil(wctx, job.Done()))

	assert.False(t, f.h.Pending())
	assert.Equal(t, ports.MaskNone, f.controls.Disabled())
	assert.False(t, f.d.Busy())
	assert.Len(t, f.env.Log.History(), 3)
}

func TestDispatcher_AnswerEntersMode(t *testing.T) {
	f := newFixture(t, "inst1")
	env, err := f.d.Invoke(context.Background(), "confirm")
	require.NoError(t, err)
	require.Equal(t, domain.ProgressHaveFeedback, env.Progress)
	assert.Equal(t, domain.ModeNone, f.d.Mode())

	env, err = f.d.Answer(context.Background(), domain.Answer{Choice: domain.AnswerYes})
	require.NoError(t, err)
	assert.Equal(t, domain.ProgressMouseMode, env.Progress)
	assert.Equal(t, domain.ModeAddNode, f.d.Mode())
	assert.Equal(t, ports.CursorMode, f.controls.Cursor())

	assert.Equal(t, domain.ClickProcessed, f.click(t, 30, 30))
	assert.Equal(t, domain.ModeNone, f.d.Mode())
	assert.False(t, f.h.Active())
	_, placed := f.env.Net.Node("inst1", "stub")
	assert.True(t, placed)
}

func TestDispatcher_AnswerDeclined(t *testing.T) {
	f := newFixture(t, "inst1")
	_, err := f.d.Invoke(context.Background(), "confirm")
	require.NoError(t, err)

	env, err := f.d.Answer(context.Background(), domain.Answer{Choice: domain.AnswerNo})
	require.NoError(t, err)
	assert.Equal(t, domain.ProgressUserCancel, env.Progress)
	assert.Equal(t, domain.ModeNone, f.d.Mode())
	assert.False(t, f.h.Active())
	assert.False(t, f.env.Log.CanUndo())
}
