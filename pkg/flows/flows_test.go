package flows

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/tapestry/internal/testutils"
	"github.com/aretw0/tapestry/pkg/changelog"
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/flow"
	"github.com/aretw0/tapestry/pkg/harness"
	"github.com/aretw0/tapestry/pkg/loop"
	"github.com/aretw0/tapestry/pkg/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	env    *flow.Env
	h      *harness.Harness
	loop   *loop.Loop
	events []changelog.Event
}

func newFixture(t *testing.T, modelID string) *fixture {
	t.Helper()
	f := &fixture{loop: loop.New()}
	net := testutils.At(t, testutils.NewNetwork(t), modelID)
	log := changelog.New(net, changelog.WithEventSink(changelog.EventSinkFunc(func(e changelog.Event) {
		f.events = append(f.events, e)
	})))
	f.env = flow.NewEnv(net, log)
	f.env.Jobs = worker.NewClient(f.loop)
	reg, err := NewRegistry()
	require.NoError(t, err)
	f.h = harness.New(f.env, reg)
	return f
}

func (f *fixture) preload(t *testing.T, key string, values map[string]any) flow.Envelope {
	t.Helper()
	pre, err := f.h.BuildHarness(key)
	require.NoError(t, err)
	require.NoError(t, pre.Decode(values))
	env, err := f.h.RunHarness(context.Background(), pre)
	require.NoError(t, err)
	return env
}

// wait pumps the interaction loop until the pending job settles.
func (f *fixture) wait(t *testing.T) {
	t.Helper()
	job := f.h.Job()
	require.NotNil(t, job, "expected a pending job")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.loop.RunUntil(ctx, job.Done()))
}

func (f *fixture) changes(t *testing.T) int {
	t.Helper()
	n := 0
	for _, e := range f.env.Log.History() {
		n += len(e.Changes)
	}
	return n
}

func TestRegistry_HoldsEveryFlow(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)
	assert.Len(t, reg.All(), len(All()))
	for _, f := range All() {
		got, err := reg.Get(f.Key())
		require.NoError(t, err)
		assert.Equal(t, f.Key(), got.Key())
	}
}

func TestFlows_Enablement(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		modelID string
		nodes   []string
		want    bool
	}{
		{"add node in instance", KeyAddNode, "inst1", nil, true},
		{"add node in subset", KeyAddNode, "sub1", nil, false},
		{"set inactive needs selection", KeySetInactive, "inst2", nil, false},
		{"set inactive with selection", KeySetInactive, "inst2", []string{"a"}, true},
		{"set inactive in root", KeySetInactive, "root", []string{"a"}, false},
		{"set inactive in dynamic", KeySetInactive, "dyn1", []string{"a"}, false},
		{"downward sync from root", KeyDownSync, "root", nil, true},
		{"downward sync from instance", KeyDownSync, "inst1", nil, false},
		{"pull down in instance", KeyPullDown, "inst2", nil, true},
		{"pull down in subset", KeyPullDown, "sub1", nil, false},
		{"move needs nodes", KeyMove, "inst1", nil, false},
		{"move with nodes", KeyMove, "inst1", []string{"a"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.modelID)
			f.env.Selection.AddNodes(tt.nodes...)
			fl, err := f.h.Registry().Get(tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.want, fl.IsEnabled(f.env.Context()))
		})
	}
}

func TestFlows_ContextValidity(t *testing.T) {
	f := newFixture(t, "inst1")
	region := flow.Intersection{Kind: flow.ItemRegion, ModelID: "inst1", ID: "r1"}
	none := flow.Intersection{Kind: flow.ItemNone}

	assert.True(t, IncludeAll.IsValid(region, f.env.Context()))
	assert.False(t, IncludeAll.IsValid(none, f.env.Context()))
	assert.True(t, DefineRegion.IsValid(none, f.env.Context()))
	assert.False(t, AddNode.IsValid(none, f.env.Context()))

	sub := newFixture(t, "sub1")
	assert.False(t, IncludeAll.IsValid(region, sub.env.Context()))
}

func TestHitTolerance(t *testing.T) {
	assert.Equal(t, 5.0, hitTolerance(0))
	assert.Equal(t, 5.0, hitTolerance(1))
	assert.Equal(t, 10.0, hitTolerance(2))
}

func TestAddNode_ClickPlacesNode(t *testing.T) {
	f := newFixture(t, "inst1")
	ctx := context.Background()

	env, err := f.h.Start(ctx, KeyAddNode)
	require.NoError(t, err)
	require.Equal(t, domain.ProgressMouseMode, env.Progress)
	require.NotNil(t, env.Spec)
	assert.Equal(t, domain.ModeAddNode, env.Spec.Mode)

	env, err = f.h.HandleClick(ctx, domain.Point{X: 10, Y: 20}, false, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.ProgressDone, env.Progress)
	assert.Equal(t, domain.ClickProcessed, env.Click)

	history := f.env.Log.History()
	require.Len(t, history, 1)
	assert.Len(t, history[0].Changes, 1)
	assert.Equal(t, []changelog.Event{changelog.ModelChanged("inst1")}, f.events)

	st := env.State.(*addNodeState)
	pos, ok := f.env.Net.Position("inst1", st.ID)
	require.True(t, ok)
	assert.Equal(t, domain.Point{X: 10, Y: 20}, pos)
	assert.Equal(t, []string{st.ID}, f.env.Selection.Nodes())
}

func TestAddNode_RejectsClickOnNode(t *testing.T) {
	f := newFixture(t, "inst1")
	ctx := context.Background()

	_, err := f.h.Start(ctx, KeyAddNode)
	require.NoError(t, err)
	env, err := f.h.HandleClick(ctx, domain.Point{X: 11, Y: 11}, false, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.ProgressMouseMode, env.Progress)
	assert.Equal(t, domain.ClickReject, env.Click)
	assert.True(t, f.h.Active(), "a rejected click keeps the flow waiting")
	assert.False(t, f.env.Log.CanUndo())
}

func TestAddNode_Preload(t *testing.T) {
	f := newFixture(t, "inst2")
	env := f.preload(t, KeyAddNode, map[string]any{"id": "n9", "name": "pax", "at": map[string]any{"x": 30, "y": 40}})
	assert.Equal(t, domain.ProgressDone, env.Progress)

	n, ok := f.env.Net.Node("inst2", "n9")
	require.True(t, ok)
	assert.Equal(t, "pax", n.Name)
	pos, _ := f.env.Net.Position("inst2", "n9")
	assert.Equal(t, domain.Point{X: 30, Y: 40}, pos)
}
