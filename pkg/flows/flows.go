package flows

import (
	"github.com/aretw0/tapestry/pkg/flow"
	"github.com/aretw0/tapestry/pkg/registry"
)

// Flow keys.
const (
	KeyAddNode      = "add-node"
	KeyDefineRegion = "define-region"
	KeySetInactive  = "set-inactive"
	KeyDownSync     = "downward-sync"
	KeyAlign        = "align-layouts"
	KeyClickSelect  = "click-select"
	KeyRectSelect   = "rect-select"
	KeyMove         = "move-elements"
	KeyAddToRegion  = "add-to-region"
	KeyPullDown     = "pull-down"
	KeyIncludeAll   = "include-all"
	KeyNavigate     = "navigate"
)

// All returns every built-in flow.
func All() []flow.Flow {
	return []flow.Flow{
		AddNode,
		DefineRegion,
		SetInactive,
		DownwardSync,
		AlignLayouts,
		ClickSelect,
		RectSelect,
		MoveElements,
		AddToRegion,
		PullDown,
		IncludeAll,
		Navigate,
	}
}

// NewRegistry returns a registry holding All.
func NewRegistry() (*registry.Registry, error) {
	return registry.NewRegistry(All()...)
}

// hitTolerance turns a pixel diameter into a pick radius in model units.
func hitTolerance(pixDiam float64) float64 {
	if pixDiam <= 0 {
		pixDiam = 1
	}
	return 5 * pixDiam
}
