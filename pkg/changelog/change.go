package changelog

import (
	"fmt"

	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/model"
)

// Change is one invertible model mutation.
type Change interface {
	Undo(net *model.Network) error
	Redo(net *model.Network) error
	Describe() string
	// ChangesModel is false for changes that only move the user around (navigation).
	ChangesModel() bool
}

// NodeChange creates, deletes or replaces a node, optionally moving its layout position with it.
// A nil Before means creation; a nil After means deletion.
type NodeChange struct {
	ModelID   string
	Before    *model.Node
	After     *model.Node
	BeforePos *domain.Point
	AfterPos  *domain.Point
}

// NodeCreate builds the change that adds node at pos.
func NodeCreate(modelID string, node model.Node, pos *domain.Point) *NodeChange {
	return &NodeChange{ModelID: modelID, After: &node, AfterPos: copyPoint(pos)}
}

// NodeReplace builds the change that swaps the current node for after.
func NodeReplace(net *model.Network, modelID string, after model.Node) (*NodeChange, error) {
	before, ok := net.Node(modelID, after.ID)
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", modelID, after.ID, model.ErrNodeNotFound)
	}
	return &NodeChange{ModelID: modelID, Before: &before, After: &after}, nil
}

// NodeDelete builds the change that removes a node and its position.
func NodeDelete(net *model.Network, modelID, nodeID string) (*NodeChange, error) {
	before, ok := net.Node(modelID, nodeID)
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", modelID, nodeID, model.ErrNodeNotFound)
	}
	c := &NodeChange{ModelID: modelID, Before: &before}
	if p, ok := net.Position(modelID, nodeID); ok {
		c.BeforePos = &p
	}
	return c, nil
}

func (c *NodeChange) Undo(net *model.Network) error {
	return c.apply(net, c.After, c.Before, c.BeforePos)
}

func (c *NodeChange) Redo(net *model.Network) error {
	return c.apply(net, c.Before, c.After, c.AfterPos)
}

func (c *NodeChange) apply(net *model.Network, from, to *model.Node, pos *domain.Point) error {
	id := c.nodeID()
	if to == nil {
		if err := net.DeleteNode(c.ModelID, id); err != nil {
			return err
		}
	} else if err := net.PutNode(c.ModelID, *to); err != nil {
		return err
	}
	if c.BeforePos != nil || c.AfterPos != nil {
		return net.SetPosition(c.ModelID, id, copyPoint(pos))
	}
	return nil
}

func (c *NodeChange) nodeID() string {
	if c.After != nil {
		return c.After.ID
	}
	return c.Before.ID
}

func (c *NodeChange) Describe() string {
	switch {
	case c.Before == nil:
		return fmt.Sprintf("create node %s/%s", c.ModelID, c.After.ID)
	case c.After == nil:
		return fmt.Sprintf("delete node %s/%s", c.ModelID, c.Before.ID)
	default:
		return fmt.Sprintf("replace node %s/%s", c.ModelID, c.After.ID)
	}
}

func (c *NodeChange) ChangesModel() bool { return true }

// LinkChange replaces a link, usually to change its activity.
type LinkChange struct {
	ModelID string
	Before  model.Link
	After   model.Link
}

// LinkActivity builds the change that sets a link's activity.
func LinkActivity(net *model.Network, modelID, linkID string, act model.ActivityState) (*LinkChange, error) {
	before, ok := net.Link(modelID, linkID)
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", modelID, linkID, model.ErrLinkNotFound)
	}
	after := before
	after.Activity = act
	return &LinkChange{ModelID: modelID, Before: before, After: after}, nil
}

func (c *LinkChange) Undo(net *model.Network) error { return net.PutLink(c.ModelID, c.Before) }
func (c *LinkChange) Redo(net *model.Network) error { return net.PutLink(c.ModelID, c.After) }
func (c *LinkChange) ChangesModel() bool            { return true }

func (c *LinkChange) Describe() string {
	return fmt.Sprintf("link %s/%s activity %s -> %s", c.ModelID, c.After.ID, c.Before.Activity.Setting, c.After.Activity.Setting)
}

// RegionChange creates, deletes or replaces a region.
type RegionChange struct {
	ModelID string
	Before  *model.Region
	After   *model.Region
}

// RegionCreate builds the change that adds r.
func RegionCreate(modelID string, r model.Region) *RegionChange {
	return &RegionChange{ModelID: modelID, After: &r}
}

// RegionReplace builds the change that swaps the current region for after.
func RegionReplace(net *model.Network, modelID string, after model.Region) (*RegionChange, error) {
	before, ok := net.Region(modelID, after.ID)
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", modelID, after.ID, model.ErrRegionNotFound)
	}
	return &RegionChange{ModelID: modelID, Before: &before, After: &after}, nil
}

func (c *RegionChange) Undo(net *model.Network) error { return c.apply(net, c.Before, c.After) }
func (c *RegionChange) Redo(net *model.Network) error { return c.apply(net, c.After, c.Before) }
func (c *RegionChange) ChangesModel() bool            { return true }

func (c *RegionChange) apply(net *model.Network, to, from *model.Region) error {
	if to == nil {
		return net.DeleteRegion(c.ModelID, from.ID)
	}
	return net.PutRegion(c.ModelID, *to)
}

func (c *RegionChange) Describe() string {
	switch {
	case c.Before == nil:
		return fmt.Sprintf("create region %s/%s", c.ModelID, c.After.ID)
	case c.After == nil:
		return fmt.Sprintf("delete region %s/%s", c.ModelID, c.Before.ID)
	default:
		return fmt.Sprintf("replace region %s/%s", c.ModelID, c.After.ID)
	}
}

// LayoutChange swaps the geometry of one model's layout.
type LayoutChange struct {
	Before model.Layout
	After  model.Layout
}

// LayoutSwap builds the change that installs after as its model's layout.
func LayoutSwap(net *model.Network, after model.Layout) (*LayoutChange, error) {
	before, ok := net.Layout(after.ModelID)
	if !ok {
		return nil, fmt.Errorf("layout %q: %w", after.ModelID, model.ErrModelNotFound)
	}
	return &LayoutChange{Before: before, After: after.Clone()}, nil
}

func (c *LayoutChange) Undo(net *model.Network) error { return net.PutLayout(c.Before) }
func (c *LayoutChange) Redo(net *model.Network) error { return net.PutLayout(c.After) }
func (c *LayoutChange) ChangesModel() bool            { return true }

func (c *LayoutChange) Describe() string {
	return fmt.Sprintf("layout %s (%d positions)", c.After.ModelID, len(c.After.Positions))
}

// NavigationChange records a switch of the current model.
type NavigationChange struct {
	Before string
	After  string
}

func (c *NavigationChange) Undo(net *model.Network) error { return net.SetCurrent(c.Before) }
func (c *NavigationChange) Redo(net *model.Network) error { return net.SetCurrent(c.After) }
func (c *NavigationChange) ChangesModel() bool            { return false }

func (c *NavigationChange) Describe() string {
	return fmt.Sprintf("navigate %s -> %s", c.Before, c.After)
}

func copyPoint(p *domain.Point) *domain.Point {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
