package model

import (
	"fmt"

	"github.com/aretw0/tapestry/pkg/domain"
)

// CheckNodeActivity validates a new activity for a node against the models
// around it. A model may not be more active than its parent, nor less active
// than any descendant that also holds the node.
func (n *Network) CheckNodeActivity(modelID, nodeID string, want ActivityState) error {
	return n.checkActivity(modelID, nodeID, want, func(m *Model) (ActivityState, bool) {
		nd, ok := m.Nodes[nodeID]
		return nd.Activity, ok
	})
}

// CheckLinkActivity is CheckNodeActivity for links.
func (n *Network) CheckLinkActivity(modelID, linkID string, want ActivityState) error {
	return n.checkActivity(modelID, linkID, want, func(m *Model) (ActivityState, bool) {
		l, ok := m.Links[linkID]
		return l.Activity, ok
	})
}

func (n *Network) checkActivity(modelID, itemID string, want ActivityState, get func(*Model) (ActivityState, bool)) error {
	m, err := n.model(modelID)
	if err != nil {
		return err
	}
	if m.Kind != KindRoot && m.Kind != KindInstance {
		if p, ok := n.models[m.Parent]; ok {
			if pa, present := get(p); present && want.rank() > pa.rank() {
				return &domain.BoundsError{
					ItemID: itemID,
					Reason: fmt.Sprintf("activity %s exceeds parent model %q (%s)", want.Setting, p.ID, pa.Setting),
				}
			}
		}
	}
	for _, d := range n.Descendants(modelID) {
		dm := n.models[d]
		if dm.Kind == KindInstance {
			continue
		}
		if da, present := get(dm); present && da.rank() > want.rank() {
			return &domain.BoundsError{
				ItemID: itemID,
				Reason: fmt.Sprintf("child model %q is %s", d, da.Setting),
			}
		}
	}
	return nil
}
