package cli

import (
	"fmt"
	"os"

	"github.com/aretw0/tapestry/pkg/model"
	"gopkg.in/yaml.v3"
)

// LoadNetwork reads a YAML network spec. An empty path yields DemoNetwork.
func LoadNetwork(path string) (model.Spec, error) {
	if path == "" {
		return DemoNetwork(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Spec{}, fmt.Errorf("read network: %w", err)
	}
	var spec model.Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return model.Spec{}, fmt.Errorf("parse network %s: %w", path, err)
	}
	if _, err := model.Build(spec); err != nil {
		return model.Spec{}, fmt.Errorf("network %s: %w", path, err)
	}
	return spec, nil
}

// DemoNetwork is a small root model with two instances and a subset, used
// when no network file is given.
func DemoNetwork() model.Spec {
	nodes := []model.NodeSpec{
		{ID: "wnt8", Name: "wnt8", Type: "gene", At: []float64{40, 40}},
		{ID: "blimp1", Name: "blimp1", Type: "gene", At: []float64{120, 40}},
		{ID: "otx", Name: "otx", Type: "gene", At: []float64{200, 40}},
		{ID: "gatae", Name: "gatae", Type: "gene", At: []float64{120, 120}},
	}
	links := []model.LinkSpec{
		{ID: "wnt8-blimp1", Source: "wnt8", Target: "blimp1"},
		{ID: "blimp1-otx", Source: "blimp1", Target: "otx"},
		{ID: "otx-gatae", Source: "otx", Target: "gatae"},
	}
	instance := func(id, name string) model.ModelSpec {
		return model.ModelSpec{ID: id, Name: name, Kind: "instance", Nodes: nodes, Links: links}
	}
	early := instance("early", "early endomesoderm")
	early.Regions = []model.RegionSpec{{ID: "veg1", Name: "veg1", Bounds: []float64{0, 0, 160, 80}, Members: []string{"wnt8", "blimp1"}}}
	return model.Spec{
		Root: model.ModelSpec{ID: "root", Name: "endomesoderm", Nodes: nodes, Links: links},
		Models: []model.ModelSpec{
			early,
			instance("late", "late endomesoderm"),
			{ID: "early-core", Name: "core", Kind: "subset", Parent: "early", Nodes: nodes[:2], Links: links[:1]},
		},
	}
}
