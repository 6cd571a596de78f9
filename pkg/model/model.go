package model

import (
	"fmt"

	"github.com/aretw0/tapestry/pkg/domain"
)

// Kind classifies a model by its place in the hierarchy.
type Kind int

const (
	KindRoot Kind = iota
	KindInstance
	KindSubset
	KindDynamic
)

func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindInstance:
		return "instance"
	case KindSubset:
		return "subset"
	case KindDynamic:
		return "dynamic"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind reads a kind name.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "root":
		return KindRoot, nil
	case "instance", "":
		return KindInstance, nil
	case "subset":
		return KindSubset, nil
	case "dynamic":
		return KindDynamic, nil
	}
	return KindRoot, fmt.Errorf("unknown model kind %q", s)
}

// Activity is the activity setting of a node or link inside one model.
type Activity int

// Ordered from least to most active.
const (
	Inactive Activity = iota
	Variable
	Active
)

func (a Activity) String() string {
	switch a {
	case Inactive:
		return "inactive"
	case Variable:
		return "variable"
	case Active:
		return "active"
	default:
		return fmt.Sprintf("activity(%d)", int(a))
	}
}

// ParseActivity reads an activity name. Empty means active.
func ParseActivity(s string) (Activity, error) {
	switch s {
	case "active", "":
		return Active, nil
	case "variable":
		return Variable, nil
	case "inactive":
		return Inactive, nil
	}
	return Active, fmt.Errorf("unknown activity %q", s)
}

// ActivityState is an activity setting plus the level used when it is Variable.
type ActivityState struct {
	Setting Activity `json:"setting"`
	Level   float64  `json:"level,omitempty"`
}

// rank orders states so bounds can be compared.
func (s ActivityState) rank() float64 {
	switch s.Setting {
	case Inactive:
		return 0
	case Variable:
		return s.Level
	default:
		return 1
	}
}

// Node is a network element placed in a model.
type Node struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Type     string        `json:"type"`
	Activity ActivityState `json:"activity"`
}

// Link connects two nodes.
type Link struct {
	ID       string        `json:"id"`
	Source   string        `json:"source"`
	Target   string        `json:"target"`
	Activity ActivityState `json:"activity"`
}

// Region is a named area of a model that groups nodes.
type Region struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Bounds  domain.Rect `json:"bounds"`
	Members []string    `json:"members,omitempty"`
}

// HasMember reports whether nodeID belongs to the region.
func (r Region) HasMember(nodeID string) bool {
	for _, m := range r.Members {
		if m == nodeID {
			return true
		}
	}
	return false
}

// Model is one layer of the network.
type Model struct {
	ID      string            `json:"id"`
	Name    string            `json:"name"`
	Kind    Kind              `json:"kind"`
	Parent  string            `json:"parent,omitempty"`
	Nodes   map[string]Node   `json:"nodes"`
	Links   map[string]Link   `json:"links"`
	Regions map[string]Region `json:"regions"`
}

func newModel(id, name string, kind Kind, parent string) *Model {
	return &Model{
		ID:      id,
		Name:    name,
		Kind:    kind,
		Parent:  parent,
		Nodes:   make(map[string]Node),
		Links:   make(map[string]Link),
		Regions: make(map[string]Region),
	}
}

func (m *Model) clone() *Model {
	c := newModel(m.ID, m.Name, m.Kind, m.Parent)
	for k, v := range m.Nodes {
		c.Nodes[k] = v
	}
	for k, v := range m.Links {
		c.Links[k] = v
	}
	for k, v := range m.Regions {
		v.Members = cloneMembers(v.Members)
		c.Regions[k] = v
	}
	return c
}

// cloneMembers copies a member list, keeping nil and empty apart.
func cloneMembers(ids []string) []string {
	if ids == nil {
		return nil
	}
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// Layout holds the node positions of one model.
type Layout struct {
	ModelID   string                  `json:"model_id"`
	Positions map[string]domain.Point `json:"positions"`
}

// Clone returns an independent copy.
func (l Layout) Clone() Layout {
	c := Layout{ModelID: l.ModelID, Positions: make(map[string]domain.Point, len(l.Positions))}
	for k, v := range l.Positions {
		c.Positions[k] = v
	}
	return c
}
