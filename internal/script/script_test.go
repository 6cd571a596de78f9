package script

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/tapestry/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const inlineScript = `
name: place a node
model: root
network:
  root:
    id: root
    nodes:
      - {id: a, name: gata, type: gene, at: [10, 10]}
steps:
  - flow: add-node
    expect: {progress: mouse_mode, mode: add_node}
  - click: {x: 60, y: 60}
    expect: {click: processed, history: 1}
  - undo: true
    expect: {history: 0}
`

func intp(n int) *int { return &n }

func TestParse(t *testing.T) {
	s, err := Parse([]byte(inlineScript), ".")
	require.NoError(t, err)
	assert.Equal(t, "place a node", s.Name)
	require.Len(t, s.Steps, 3)
	assert.Equal(t, "flow", s.Steps[0].Action())
	assert.Equal(t, "click", s.Steps[1].Action())
	assert.Equal(t, 1, *s.Steps[1].Expect.History)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"no network", "steps: [{undo: true}]"},
		{"two actions", "network: {root: {id: root}}\nsteps: [{undo: true, redo: true}]"},
		{"no action", "network: {root: {id: root}}\nsteps: [{expect: {mode: none}}]"},
		{"bad mask", "network: {root: {id: root}}\nsteps: [{cancel: sideways}]"},
		{"bad answer", "network: {root: {id: root}}\nanswers: [maybe]"},
		{"both networks", "network: {root: {id: root}}\nnetwork_file: net.yaml"},
		{"not yaml", "steps: ["},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), ".")
			assert.ErrorIs(t, err, ErrInvalidScript)
		})
	}
}

func TestLoad_NetworkFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "net.yaml"), []byte("root:\n  id: root\n  nodes:\n    - {id: a, at: [0, 0]}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run.yaml"), []byte("network_file: net.yaml\nsteps:\n  - flow: add-node\n"), 0o644))

	s, err := Load(filepath.Join(dir, "run.yaml"))
	require.NoError(t, err)
	spec, err := s.Spec()
	require.NoError(t, err)
	assert.Equal(t, "root", spec.Root.ID)
	require.Len(t, spec.Root.Nodes, 1)
}

func TestRunner_InlineScript(t *testing.T) {
	s, err := Parse([]byte(inlineScript), ".")
	require.NoError(t, err)

	rep, err := NewRunner().Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, rep.Failed)
	require.Len(t, rep.Steps, 3)
	assert.Equal(t, "undo.addNode", rep.Steps[2].Target)
	assert.Equal(t, "none", rep.Final.Mode)
}

func TestRunner_BackgroundJob(t *testing.T) {
	spec := testutils.NetworkSpec()
	s := &Script{
		Model:   "root",
		Network: &spec,
		Steps: []Step{
			{Flow: "downward-sync", Preload: map[string]any{"offset": map[string]any{"x": 5}}, Expect: &Expect{Progress: "done_on_thread"}},
			{Await: true, Expect: &Expect{Outcome: "succeeded", History: intp(3)}},
		},
	}
	require.NoError(t, s.Validate())

	rep, err := NewRunner(WithAwaitTimeout(5*time.Second)).Run(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, "downward-sync", rep.Steps[1].Target)
	assert.Len(t, rep.Final.History, 3)
}

func TestRunner_CancelMode(t *testing.T) {
	spec := testutils.NetworkSpec()
	mask := "all"
	s := &Script{
		Model:   "inst1",
		Network: &spec,
		Steps: []Step{
			{Flow: "define-region", Expect: &Expect{Progress: "mouse_mode"}},
			{Cancel: &mask, Expect: &Expect{Mode: "none", History: intp(0)}},
		},
	}
	rep, err := NewRunner().Run(context.Background(), s)
	require.NoError(t, err)
	assert.Len(t, rep.Steps, 2)
}

func TestRunner_ExpectedError(t *testing.T) {
	spec := testutils.NetworkSpec()
	s := &Script{
		Network: &spec,
		Steps: []Step{
			{Undo: true, Expect: &Expect{Error: "nothing to undo"}},
			{Flow: "no-such-flow", Expect: &Expect{Error: "unknown flow"}},
		},
	}
	rep, err := NewRunner().Run(context.Background(), s)
	require.NoError(t, err)
	assert.NotEmpty(t, rep.Steps[0].Err)
}

func TestRunner_StopsOnFailure(t *testing.T) {
	spec := testutils.NetworkSpec()
	s := &Script{
		Model:   "inst1",
		Network: &spec,
		Steps: []Step{
			{Flow: "add-node", Expect: &Expect{Mode: "define_region"}},
			{Undo: true},
		},
	}
	rep, err := NewRunner().Run(context.Background(), s)
	require.ErrorIs(t, err, ErrExpectation)
	assert.True(t, rep.Failed)
	assert.Len(t, rep.Steps, 1)

	s.Steps = []Step{{Undo: true}}
	rep, err = NewRunner().Run(context.Background(), s)
	assert.Error(t, err)
	assert.True(t, rep.Failed)
}
