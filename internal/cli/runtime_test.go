package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/tapestry"
	"github.com/aretw0/tapestry/internal/config"
	"github.com/aretw0/tapestry/pkg/adapters/file"
	"github.com/aretw0/tapestry/pkg/adapters/memory"
	"github.com/aretw0/tapestry/pkg/adapters/redis"
	"github.com/aretw0/tapestry/pkg/flows"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRuntime_Backends(t *testing.T) {
	mr := miniredis.RunT(t)

	rt, err := NewRuntime(config.Config{Journal: config.JournalConfig{Backend: config.JournalMemory}})
	require.NoError(t, err)
	assert.IsType(t, &memory.Journal{}, rt.Journal)
	assert.Nil(t, rt.Locker)

	rt, err = NewRuntime(config.Config{Journal: config.JournalConfig{Backend: config.JournalFile, Dir: t.TempDir()}})
	require.NoError(t, err)
	assert.IsType(t, &file.Journal{}, rt.Journal)

	rt, err = NewRuntime(config.Config{
		Journal: config.JournalConfig{Backend: config.JournalRedis},
		Redis:   config.RedisConfig{Addr: mr.Addr(), Prefix: "t:"},
		Session: config.SessionConfig{DistributedLock: true},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	assert.IsType(t, &redis.Journal{}, rt.Journal)
	assert.IsType(t, &redis.Locker{}, rt.Locker)
}

func TestNewRuntime_DistributedLockNeedsRedis(t *testing.T) {
	_, err := NewRuntime(config.Config{
		Journal: config.JournalConfig{Backend: config.JournalMemory},
		Session: config.SessionConfig{DistributedLock: true},
	})
	assert.Error(t, err)
}

func TestRuntime_SessionsRecordJournal(t *testing.T) {
	rt, err := NewRuntime(config.Config{Journal: config.JournalConfig{Backend: config.JournalMemory}})
	require.NoError(t, err)
	mgr := rt.Sessions(rt.Factory(DemoNetwork(), "early", nil))
	t.Cleanup(mgr.Close)
	ctx := context.Background()

	_, err = mgr.Create(ctx, "s1")
	require.NoError(t, err)
	err = mgr.Do(ctx, "s1", func(ctx context.Context, eng *tapestry.Engine) error {
		_, err := eng.Preload(ctx, flows.KeyAddNode, map[string]any{"id": "n1", "at": map[string]any{"x": 300, "y": 300}})
		return err
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, PrintSessions(ctx, rt.Journal, &buf))
	assert.Contains(t, buf.String(), "s1")

	buf.Reset()
	require.NoError(t, PrintJournal(ctx, rt.Journal, "s1", false, &buf))
	assert.Contains(t, buf.String(), "undo.addNode")
	assert.Contains(t, buf.String(), "commit")

	assert.Error(t, PrintJournal(ctx, rt.Journal, "nope", false, &buf))
}

func TestLoadNetwork(t *testing.T) {
	spec, err := LoadNetwork("")
	require.NoError(t, err)
	assert.Equal(t, "root", spec.Root.ID)

	path := filepath.Join(t.TempDir(), "net.yaml")
	require.NoError(t, os.WriteFile(path, []byte("root:\n  id: top\n  nodes:\n    - {id: x, at: [1, 2]}\n"), 0o644))
	spec, err = LoadNetwork(path)
	require.NoError(t, err)
	assert.Equal(t, "top", spec.Root.ID)

	require.NoError(t, os.WriteFile(path, []byte("root: [not, a, model]"), 0o644))
	_, err = LoadNetwork(path)
	assert.Error(t, err)
}

func TestRunScript(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: demo
network:
  root:
    id: root
    nodes:
      - {id: a, at: [10, 10]}
steps:
  - preload: {id: b, at: {x: 80, y: 80}}
    flow: add-node
    expect: {progress: done, history: 1}
`), 0o644))
	rt, err := NewRuntime(config.Config{Journal: config.JournalConfig{Backend: config.JournalMemory}})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, RunScript(context.Background(), rt, RunOptions{ScriptPath: path}, &buf))
	assert.Contains(t, buf.String(), "# demo")
	assert.Contains(t, buf.String(), "PASSED")

	buf.Reset()
	require.NoError(t, RunScript(context.Background(), rt, RunOptions{ScriptPath: path, JSON: true}, &buf))
	assert.Contains(t, buf.String(), `"action": "preload"`)
}
