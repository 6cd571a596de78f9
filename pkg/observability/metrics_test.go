package observability_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/tapestry"
	"github.com/aretw0/tapestry/internal/testutils"
	"github.com/aretw0/tapestry/pkg/adapters/headless"
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/flows"
	"github.com/aretw0/tapestry/pkg/observability"
	"github.com/aretw0/tapestry/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_FlowAndChangeLog(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)

	net := testutils.At(t, testutils.NewNetwork(t), "inst1")
	eng, err := tapestry.New(net, tapestry.WithLifecycleHooks(m.Hooks()), tapestry.WithControls(headless.NewControls()))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = eng.Preload(ctx, flows.KeyAddNode, map[string]any{"id": "d", "at": map[string]any{"x": 10, "y": 60}})
	require.NoError(t, err)
	_, err = eng.Undo(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FlowsStarted.WithLabelValues(flows.KeyAddNode)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FlowsEnded.WithLabelValues(flows.KeyAddNode, domain.ProgressDone.String())))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.FlowsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transactions.WithLabelValues("commit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transactions.WithLabelValues("undo")))
	assert.Positive(t, testutil.ToFloat64(m.Changes))
	assert.Positive(t, testutil.CollectAndCount(m.Steps))
}

func TestMetrics_CancelledFlowLeavesNoActiveFlow(t *testing.T) {
	m := observability.NewMetrics(nil)
	net := testutils.At(t, testutils.NewNetwork(t), "inst1")
	eng, err := tapestry.New(net, tapestry.WithLifecycleHooks(m.Hooks()), tapestry.WithControls(headless.NewControls()))
	require.NoError(t, err)

	_, err = eng.Invoke(context.Background(), flows.KeyDefineRegion)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FlowsActive))

	eng.CancelMode(ports.CancelAddsAllModes)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.FlowsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FlowsEnded.WithLabelValues(flows.KeyDefineRegion, domain.ProgressUserCancel.String())))
}

func TestMetrics_Jobs(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	net := testutils.At(t, testutils.NewNetwork(t), "root")
	eng, err := tapestry.New(net, tapestry.WithLifecycleHooks(m.Hooks()), tapestry.WithControls(headless.NewControls()))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = eng.Preload(ctx, flows.KeyDownSync, map[string]any{"offset": map[string]any{"x": 5}})
	require.NoError(t, err)
	_, err = eng.Await(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsLaunched.WithLabelValues(flows.KeyDownSync)))
	expected := `
# HELP tapestry_jobs_launched_total Background jobs launched, by job name.
# TYPE tapestry_jobs_launched_total counter
tapestry_jobs_launched_total{job="downward-sync"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "tapestry_jobs_launched_total"))
	assert.Equal(t, 1, testutil.CollectAndCount(m.JobDuration))
}
