package registry_test

import (
	"testing"

	"github.com/aretw0/tapestry/internal/testutils"
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/flow"
	"github.com/aretw0/tapestry/pkg/flows"
	"github.com/aretw0/tapestry/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keysOf(fs []flow.Flow) []string {
	out := make([]string, 0, len(fs))
	for _, f := range fs {
		out = append(out, f.Key())
	}
	return out
}

func TestRegistry_GetAndAll(t *testing.T) {
	reg, err := flows.NewRegistry()
	require.NoError(t, err)

	f, err := reg.Get(flows.KeyAddNode)
	require.NoError(t, err)
	assert.Equal(t, flows.KeyAddNode, f.Key())

	_, err = reg.Get("nope")
	assert.ErrorIs(t, err, domain.ErrUnknownFlow)

	keys := keysOf(reg.All())
	assert.Len(t, keys, len(flows.All()))
	assert.IsIncreasing(t, keys)
}

func TestRegistry_DuplicateKey(t *testing.T) {
	_, err := registry.NewRegistry(flows.AddNode, flows.AddNode)
	assert.Error(t, err)
}

func TestRegistry_EnabledDependsOnContext(t *testing.T) {
	reg, err := flows.NewRegistry()
	require.NoError(t, err)

	subset := testutils.At(t, testutils.NewNetwork(t), "sub1")
	env := flow.NewEnv(subset, nil)
	assert.NotContains(t, keysOf(reg.Enabled(env.Context())), flows.KeyAddNode)

	instance := testutils.At(t, testutils.NewNetwork(t), "inst1")
	env = flow.NewEnv(instance, nil)
	assert.Contains(t, keysOf(reg.Enabled(env.Context())), flows.KeyAddNode)
}
