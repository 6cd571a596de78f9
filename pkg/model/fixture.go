package model

import (
	"fmt"

	"github.com/aretw0/tapestry/pkg/domain"
)

// Spec is a declarative description of a network, used by scripts and tests.
type Spec struct {
	Root   ModelSpec   `yaml:"root" json:"root"`
	Models []ModelSpec `yaml:"models" json:"models"`
}

// ModelSpec describes one model.
type ModelSpec struct {
	ID      string       `yaml:"id" json:"id"`
	Name    string       `yaml:"name" json:"name"`
	Kind    string       `yaml:"kind" json:"kind"`
	Parent  string       `yaml:"parent" json:"parent"`
	Nodes   []NodeSpec   `yaml:"nodes" json:"nodes"`
	Links   []LinkSpec   `yaml:"links" json:"links"`
	Regions []RegionSpec `yaml:"regions" json:"regions"`
}

// NodeSpec describes a node and its position.
type NodeSpec struct {
	ID       string    `yaml:"id" json:"id"`
	Name     string    `yaml:"name" json:"name"`
	Type     string    `yaml:"type" json:"type"`
	Activity string    `yaml:"activity" json:"activity"`
	At       []float64 `yaml:"at" json:"at"`
}

// LinkSpec describes a link.
type LinkSpec struct {
	ID       string `yaml:"id" json:"id"`
	Source   string `yaml:"source" json:"source"`
	Target   string `yaml:"target" json:"target"`
	Activity string `yaml:"activity" json:"activity"`
}

// RegionSpec describes a region by two corners.
type RegionSpec struct {
	ID      string    `yaml:"id" json:"id"`
	Name    string    `yaml:"name" json:"name"`
	Bounds  []float64 `yaml:"bounds" json:"bounds"`
	Members []string  `yaml:"members" json:"members"`
}

// Build creates a Network from a Spec.
func Build(spec Spec) (*Network, error) {
	rootID := spec.Root.ID
	if rootID == "" {
		rootID = "root"
	}
	n := NewNetwork(rootID, spec.Root.Name)
	if err := fill(n, rootID, spec.Root); err != nil {
		return nil, err
	}
	for _, ms := range spec.Models {
		kind, err := ParseKind(ms.Kind)
		if err != nil {
			return nil, err
		}
		parent := ms.Parent
		if parent == "" {
			parent = rootID
		}
		if err := n.AddModel(ms.ID, ms.Name, kind, parent); err != nil {
			return nil, err
		}
		if err := fill(n, ms.ID, ms); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func fill(n *Network, modelID string, ms ModelSpec) error {
	for _, ns := range ms.Nodes {
		act, err := ParseActivity(ns.Activity)
		if err != nil {
			return fmt.Errorf("node %s: %w", ns.ID, err)
		}
		name := ns.Name
		if name == "" {
			name = ns.ID
		}
		if err := n.PutNode(modelID, Node{ID: ns.ID, Name: name, Type: ns.Type, Activity: ActivityState{Setting: act}}); err != nil {
			return err
		}
		if len(ns.At) == 2 {
			if err := n.SetPosition(modelID, ns.ID, &domain.Point{X: ns.At[0], Y: ns.At[1]}); err != nil {
				return err
			}
		}
	}
	for _, ls := range ms.Links {
		act, err := ParseActivity(ls.Activity)
		if err != nil {
			return fmt.Errorf("link %s: %w", ls.ID, err)
		}
		if err := n.PutLink(modelID, Link{ID: ls.ID, Source: ls.Source, Target: ls.Target, Activity: ActivityState{Setting: act}}); err != nil {
			return err
		}
	}
	for _, rs := range ms.Regions {
		if len(rs.Bounds) != 4 {
			return fmt.Errorf("region %s: bounds needs 4 numbers, got %d", rs.ID, len(rs.Bounds))
		}
		r := Region{
			ID:      rs.ID,
			Name:    rs.Name,
			Bounds:  domain.RectFromPoints(domain.Point{X: rs.Bounds[0], Y: rs.Bounds[1]}, domain.Point{X: rs.Bounds[2], Y: rs.Bounds[3]}),
			Members: rs.Members,
		}
		if err := n.PutRegion(modelID, r); err != nil {
			return err
		}
	}
	return nil
}
