package model

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"

	"github.com/aretw0/tapestry/pkg/domain"
)

var (
	// ErrModelNotFound is returned when a model ID is unknown.
	ErrModelNotFound = errors.New("model not found")
	// ErrNodeNotFound is returned when a node ID is unknown in a model.
	ErrNodeNotFound = errors.New("node not found")
	// ErrLinkNotFound is returned when a link ID is unknown in a model.
	ErrLinkNotFound = errors.New("link not found")
	// ErrRegionNotFound is returned when a region ID is unknown in a model.
	ErrRegionNotFound = errors.New("region not found")
)

// Network is the tree of models under edit.
// It is not safe for concurrent use; readers on other goroutines take a Snapshot.
type Network struct {
	root    string
	current string
	order   []string
	models  map[string]*Model
	layouts map[string]Layout
}

// NewNetwork creates a network with an empty root model.
func NewNetwork(rootID, name string) *Network {
	n := &Network{
		root:    rootID,
		current: rootID,
		models:  make(map[string]*Model),
		layouts: make(map[string]Layout),
	}
	n.models[rootID] = newModel(rootID, name, KindRoot, "")
	n.order = append(n.order, rootID)
	n.layouts[rootID] = Layout{ModelID: rootID, Positions: map[string]domain.Point{}}
	return n
}

// AddModel creates a child model. Instances hang off the root; subset and
// dynamic models hang off an instance.
func (n *Network) AddModel(id, name string, kind Kind, parent string) error {
	if _, exists := n.models[id]; exists {
		return fmt.Errorf("model %q already exists", id)
	}
	p, ok := n.models[parent]
	if !ok {
		return fmt.Errorf("parent %q: %w", parent, ErrModelNotFound)
	}
	switch kind {
	case KindRoot:
		return fmt.Errorf("model %q: only one root is allowed", id)
	case KindInstance:
		if p.Kind != KindRoot {
			return fmt.Errorf("instance %q must have the root as parent", id)
		}
	case KindSubset, KindDynamic:
		if p.Kind == KindRoot {
			return fmt.Errorf("%s model %q needs an instance parent", kind, id)
		}
	}
	n.models[id] = newModel(id, name, kind, parent)
	n.order = append(n.order, id)
	n.layouts[id] = Layout{ModelID: id, Positions: map[string]domain.Point{}}
	return nil
}

// RootID returns the ID of the root model.
func (n *Network) RootID() string { return n.root }

// Current returns the model the user is looking at.
func (n *Network) Current() string { return n.current }

// SetCurrent switches the current model.
func (n *Network) SetCurrent(id string) error {
	if _, ok := n.models[id]; !ok {
		return fmt.Errorf("%q: %w", id, ErrModelNotFound)
	}
	n.current = id
	return nil
}

// ModelIDs returns every model ID in creation order.
func (n *Network) ModelIDs() []string {
	return append([]string(nil), n.order...)
}

// ModelCount returns the number of models including the root.
func (n *Network) ModelCount() int { return len(n.order) }

// Kind returns the kind of a model.
func (n *Network) Kind(id string) (Kind, error) {
	m, ok := n.models[id]
	if !ok {
		return KindRoot, fmt.Errorf("%q: %w", id, ErrModelNotFound)
	}
	return m.Kind, nil
}

// Model returns a copy of the model.
func (n *Network) Model(id string) (Model, bool) {
	m, ok := n.models[id]
	if !ok {
		return Model{}, false
	}
	return *m.clone(), true
}

// Parent returns the parent model ID, empty for the root.
func (n *Network) Parent(id string) string {
	if m, ok := n.models[id]; ok {
		return m.Parent
	}
	return ""
}

// Children returns the direct children of a model in creation order.
func (n *Network) Children(id string) []string {
	var out []string
	for _, mid := range n.order {
		if n.models[mid].Parent == id {
			out = append(out, mid)
		}
	}
	return out
}

// Descendants returns every model below id.
func (n *Network) Descendants(id string) []string {
	var out []string
	for _, c := range n.Children(id) {
		out = append(out, c)
		out = append(out, n.Descendants(c)...)
	}
	return out
}

// Instances returns the top-level instance models.
func (n *Network) Instances() []string {
	return n.Children(n.root)
}

func (n *Network) model(id string) (*Model, error) {
	m, ok := n.models[id]
	if !ok {
		return nil, fmt.Errorf("%q: %w", id, ErrModelNotFound)
	}
	return m, nil
}

// Node returns a node of a model.
func (n *Network) Node(modelID, nodeID string) (Node, bool) {
	m, ok := n.models[modelID]
	if !ok {
		return Node{}, false
	}
	nd, ok := m.Nodes[nodeID]
	return nd, ok
}

// PutNode inserts or replaces a node.
func (n *Network) PutNode(modelID string, node Node) error {
	m, err := n.model(modelID)
	if err != nil {
		return err
	}
	m.Nodes[node.ID] = node
	return nil
}

// DeleteNode removes a node and its position.
func (n *Network) DeleteNode(modelID, nodeID string) error {
	m, err := n.model(modelID)
	if err != nil {
		return err
	}
	if _, ok := m.Nodes[nodeID]; !ok {
		return fmt.Errorf("%s/%s: %w", modelID, nodeID, ErrNodeNotFound)
	}
	delete(m.Nodes, nodeID)
	return nil
}

// Link returns a link of a model.
func (n *Network) Link(modelID, linkID string) (Link, bool) {
	m, ok := n.models[modelID]
	if !ok {
		return Link{}, false
	}
	l, ok := m.Links[linkID]
	return l, ok
}

// PutLink inserts or replaces a link.
func (n *Network) PutLink(modelID string, link Link) error {
	m, err := n.model(modelID)
	if err != nil {
		return err
	}
	m.Links[link.ID] = link
	return nil
}

// Region returns a region of a model.
func (n *Network) Region(modelID, regionID string) (Region, bool) {
	m, ok := n.models[modelID]
	if !ok {
		return Region{}, false
	}
	r, ok := m.Regions[regionID]
	if ok {
		r.Members = cloneMembers(r.Members)
	}
	return r, ok
}

// PutRegion inserts or replaces a region.
func (n *Network) PutRegion(modelID string, r Region) error {
	m, err := n.model(modelID)
	if err != nil {
		return err
	}
	r.Members = cloneMembers(r.Members)
	m.Regions[r.ID] = r
	return nil
}

// DeleteRegion removes a region.
func (n *Network) DeleteRegion(modelID, regionID string) error {
	m, err := n.model(modelID)
	if err != nil {
		return err
	}
	if _, ok := m.Regions[regionID]; !ok {
		return fmt.Errorf("%s/%s: %w", modelID, regionID, ErrRegionNotFound)
	}
	delete(m.Regions, regionID)
	return nil
}

// Layout returns a copy of a model's layout.
func (n *Network) Layout(modelID string) (Layout, bool) {
	l, ok := n.layouts[modelID]
	if !ok {
		return Layout{}, false
	}
	return l.Clone(), true
}

// PutLayout replaces a model's layout.
func (n *Network) PutLayout(l Layout) error {
	if _, err := n.model(l.ModelID); err != nil {
		return err
	}
	n.layouts[l.ModelID] = l.Clone()
	return nil
}

// Position returns where a node sits in a model's layout.
func (n *Network) Position(modelID, nodeID string) (domain.Point, bool) {
	l, ok := n.layouts[modelID]
	if !ok {
		return domain.Point{}, false
	}
	p, ok := l.Positions[nodeID]
	return p, ok
}

// SetPosition places a node. A nil point clears the position.
func (n *Network) SetPosition(modelID, nodeID string, pt *domain.Point) error {
	l, ok := n.layouts[modelID]
	if !ok {
		return fmt.Errorf("%q: %w", modelID, ErrModelNotFound)
	}
	if pt == nil {
		delete(l.Positions, nodeID)
		return nil
	}
	l.Positions[nodeID] = *pt
	return nil
}

// NodeAt returns the node closest to pt within tol, if any.
func (n *Network) NodeAt(modelID string, pt domain.Point, tol float64) (string, bool) {
	l, ok := n.layouts[modelID]
	m, mok := n.models[modelID]
	if !ok || !mok {
		return "", false
	}
	best, bestDist := "", math.MaxFloat64
	for _, id := range sortedKeys(l.Positions) {
		if _, present := m.Nodes[id]; !present {
			continue
		}
		p := l.Positions[id]
		d := math.Hypot(p.X-pt.X, p.Y-pt.Y)
		if d <= tol && d < bestDist {
			best, bestDist = id, d
		}
	}
	return best, best != ""
}

// RegionAt returns the first region (by ID) containing pt.
func (n *Network) RegionAt(modelID string, pt domain.Point) (string, bool) {
	m, ok := n.models[modelID]
	if !ok {
		return "", false
	}
	ids := make([]string, 0, len(m.Regions))
	for id := range m.Regions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if m.Regions[id].Bounds.Contains(pt) {
			return id, true
		}
	}
	return "", false
}

// Snapshot returns a deep copy for read-only use off the interaction goroutine.
func (n *Network) Snapshot() *Network {
	c := &Network{
		root:    n.root,
		current: n.current,
		order:   append([]string(nil), n.order...),
		models:  make(map[string]*Model, len(n.models)),
		layouts: make(map[string]Layout, len(n.layouts)),
	}
	for id, m := range n.models {
		c.models[id] = m.clone()
	}
	for id, l := range n.layouts {
		c.layouts[id] = l.Clone()
	}
	return c
}

// Equal reports whether two networks hold identical state.
func (n *Network) Equal(o *Network) bool {
	if n == nil || o == nil {
		return n == o
	}
	return n.root == o.root &&
		n.current == o.current &&
		reflect.DeepEqual(n.order, o.order) &&
		reflect.DeepEqual(n.models, o.models) &&
		reflect.DeepEqual(n.layouts, o.layouts)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
