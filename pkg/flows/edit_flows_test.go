package flows

import (
	"context"
	"testing"

	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoveElements_AnchorMotionDrop(t *testing.T) {
	f := newFixture(t, "inst1")
	ctx := context.Background()
	f.env.Selection.AddNodes("a", "b")

	env, err := f.h.Start(ctx, KeyMove)
	require.NoError(t, err)
	require.Equal(t, domain.ProgressMouseMode, env.Progress)
	assert.True(t, env.Spec.Motion)

	env, err = f.h.HandleClick(ctx, domain.Point{X: 20, Y: 20}, false, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.ClickAccept, env.Click)

	env, err = f.h.HandleMotion(ctx, domain.Point{X: 25, Y: 30})
	require.NoError(t, err)
	preview := env.Floater.(map[string]domain.Point)
	assert.Equal(t, domain.Point{X: 15, Y: 20}, preview["a"])

	env, err = f.h.HandleClick(ctx, domain.Point{X: 30, Y: 20}, false, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.ProgressDone, env.Progress)

	a, _ := f.env.Net.Position("inst1", "a")
	b, _ := f.env.Net.Position("inst1", "b")
	c, _ := f.env.Net.Position("inst1", "c")
	assert.Equal(t, domain.Point{X: 20, Y: 10}, a)
	assert.Equal(t, domain.Point{X: 60, Y: 10}, b)
	assert.Equal(t, domain.Point{X: 90, Y: 10}, c)
	assert.Len(t, f.env.Log.History(), 1)
}

func TestMoveElements_PreloadZeroOffsetIsNoop(t *testing.T) {
	f := newFixture(t, "inst1")
	env := f.preload(t, KeyMove, map[string]any{"nodes": []string{"a"}})
	assert.Equal(t, domain.ProgressUserCancel, env.Progress)
	assert.False(t, f.env.Log.CanUndo())

	env = f.preload(t, KeyMove, map[string]any{"nodes": []string{"a"}, "offset": map[string]any{"x": 1, "y": 2}})
	assert.Equal(t, domain.ProgressDone, env.Progress)
	a, _ := f.env.Net.Position("inst1", "a")
	assert.Equal(t, domain.Point{X: 11, Y: 12}, a)
}

func TestAddToRegion_StaysInMode(t *testing.T) {
	f := newFixture(t, "inst1")
	ctx := context.Background()

	env, err := f.h.Start(ctx, KeyAddToRegion)
	require.NoError(t, err)
	require.True(t, env.Spec.NeverSelfExits)

	tests := []struct {
		name string
		at   domain.Point
		want domain.ClickResult
	}{
		{"existing member", domain.Point{X: 10, Y: 10}, domain.ClickReject},
		{"empty space", domain.Point{X: 30, Y: 50}, domain.ClickUnselected},
		{"new member", domain.Point{X: 50, Y: 10}, domain.ClickProcessed},
	}
	for _, tt := range tests {
		if !f.h.Active() {
			_, err := f.h.Start(ctx, KeyAddToRegion)
			require.NoError(t, err)
		}
		env, err := f.h.HandleClick(ctx, tt.at, false, 1)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, env.Click, tt.name)
	}

	r, _ := f.env.Net.Region("inst1", "r1")
	assert.Equal(t, []string{"a", "b"}, r.Members)
}

func TestIncludeAll_AddsNodesInsideBounds(t *testing.T) {
	f := newFixture(t, "inst1")
	env := f.preload(t, KeyIncludeAll, map[string]any{"region": "r1"})
	assert.Equal(t, domain.ProgressDone, env.Progress)

	r, _ := f.env.Net.Region("inst1", "r1")
	assert.Equal(t, []string{"a", "b", "c"}, r.Members)
	assert.Equal(t, []string{"b", "c"}, env.State.(*includeAllState).Added)

	env = f.preload(t, KeyIncludeAll, map[string]any{"region": "r1"})
	assert.Equal(t, domain.ProgressDone, env.Progress)
	assert.Len(t, f.env.Log.History(), 1, "nothing left to include")
}

func TestPullDown_CopiesParentNode(t *testing.T) {
	f := newFixture(t, "inst2")
	ctx := context.Background()
	require.NoError(t, f.env.Net.DeleteNode("inst2", "c"))

	_, err := f.h.Start(ctx, KeyPullDown)
	require.NoError(t, err)

	env, err := f.h.HandleClick(ctx, domain.Point{X: 50, Y: 10}, false, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.ClickReject, env.Click, "inst2 already has b")

	env, err = f.h.HandleClick(ctx, domain.Point{X: 91, Y: 9}, false, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.ClickProcessed, env.Click)

	n, ok := f.env.Net.Node("inst2", "c")
	require.True(t, ok)
	assert.Equal(t, "blimp", n.Name)
	pos, _ := f.env.Net.Position("inst2", "c")
	assert.Equal(t, domain.Point{X: 90, Y: 10}, pos)
}

func TestNavigate_IsUndoable(t *testing.T) {
	f := newFixture(t, "inst1")
	ctx := context.Background()

	env := f.preload(t, KeyNavigate, map[string]any{"model": "inst3"})
	assert.Equal(t, domain.ProgressDone, env.Progress)
	assert.Equal(t, "inst3", f.env.Net.Current())
	assert.Empty(t, f.events, "navigation fires no model events")

	_, err := f.env.Log.Undo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "inst1", f.env.Net.Current())

	pre, err := f.h.BuildHarness(KeyNavigate)
	require.NoError(t, err)
	require.NoError(t, pre.Decode(map[string]any{"model": "nowhere"}))
	_, err = f.h.RunHarness(ctx, pre)
	assert.Error(t, err)
}

func TestAlignLayouts_OneTransaction(t *testing.T) {
	f := newFixture(t, "root")
	l, _ := f.env.Net.Layout("inst2")
	for id, p := range l.Positions {
		l.Positions[id] = p.Add(domain.Point{X: 40, Y: 40})
	}
	require.NoError(t, f.env.Net.PutLayout(l))

	env := f.preload(t, KeyAlign, nil)
	assert.Equal(t, domain.ProgressDone, env.Progress)
	assert.Equal(t, []string{"inst2"}, env.State.(*alignState).Moved)

	a, _ := f.env.Net.Position("inst2", "a")
	assert.Equal(t, domain.Point{X: 10, Y: 10}, a)
}

func TestClickSelect(t *testing.T) {
	f := newFixture(t, "inst1")

	env := f.preload(t, KeyClickSelect, map[string]any{"at": map[string]any{"x": 49, "y": 11}, "pix_diam": 1})
	assert.Equal(t, domain.ClickProcessed, env.Click)
	assert.Equal(t, []string{"b"}, f.env.Selection.Nodes())

	f.preload(t, KeyClickSelect, map[string]any{"at": map[string]any{"x": 10, "y": 10}, "shifted": true})
	assert.Equal(t, []string{"a", "b"}, f.env.Selection.Nodes())

	env = f.preload(t, KeyClickSelect, map[string]any{"at": map[string]any{"x": 70, "y": 70}})
	assert.Equal(t, domain.ClickUnselected, env.Click)
	assert.Empty(t, f.env.Selection.Nodes())
}

func TestRectSelect(t *testing.T) {
	f := newFixture(t, "inst1")
	f.preload(t, KeyRectSelect, map[string]any{"rect": map[string]any{
		"min": map[string]any{"x": 0, "y": 0},
		"max": map[string]any{"x": 60, "y": 60},
	}})
	assert.Equal(t, []string{"a", "b"}, f.env.Selection.Nodes())
	assert.Equal(t, []string{"ab"}, f.env.Selection.Links())
}
