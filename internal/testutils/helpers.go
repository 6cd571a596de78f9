package testutils

import (
	"testing"

	"github.com/aretw0/tapestry/pkg/model"
	"github.com/stretchr/testify/require"
)

// NetworkSpec is the fixture most tests start from:
//
//	root ── inst1 ── sub1
//	     │        └─ dyn1
//	     ├─ inst2
//	     └─ inst3
//
// Every instance holds nodes a, b and c plus links ab and bc. inst1 has a
// region r1 spanning (0,0)-(100,100).
func NetworkSpec() model.Spec {
	nodes := []model.NodeSpec{
		{ID: "a", Name: "gata", Type: "gene", At: []float64{10, 10}},
		{ID: "b", Name: "otx", Type: "gene", At: []float64{50, 10}},
		{ID: "c", Name: "blimp", Type: "gene", At: []float64{90, 10}},
	}
	links := []model.LinkSpec{
		{ID: "ab", Source: "a", Target: "b"},
		{ID: "bc", Source: "b", Target: "c"},
	}
	instance := func(id string) model.ModelSpec {
		return model.ModelSpec{ID: id, Name: id, Kind: "instance", Nodes: nodes, Links: links}
	}
	inst1 := instance("inst1")
	inst1.Regions = []model.RegionSpec{{ID: "r1", Name: "endoderm", Bounds: []float64{0, 0, 100, 100}, Members: []string{"a"}}}

	return model.Spec{
		Root: model.ModelSpec{ID: "root", Name: "full genome", Nodes: nodes, Links: links},
		Models: []model.ModelSpec{
			inst1,
			instance("inst2"),
			instance("inst3"),
			{ID: "sub1", Name: "sub1", Kind: "subset", Parent: "inst1", Nodes: nodes[:2], Links: links[:1]},
			{ID: "dyn1", Name: "dyn1", Kind: "dynamic", Parent: "inst1", Nodes: nodes[:1]},
		},
	}
}

// NewNetwork builds the standard fixture network.
func NewNetwork(t *testing.T) *model.Network {
	t.Helper()
	n, err := model.Build(NetworkSpec())
	require.NoError(t, err, "fixture network must build")
	return n
}

// At switches the fixture to modelID and returns it.
func At(t *testing.T, n *model.Network, modelID string) *model.Network {
	t.Helper()
	require.NoError(t, n.SetCurrent(modelID))
	return n
}
