package flow

import (
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/model"
	"github.com/aretw0/tapestry/pkg/ports"
)

// FloaterKind is the shape of the preview a mode draws.
type FloaterKind int

const (
	FloaterNone FloaterKind = iota
	FloaterRect
	FloaterLines
	FloaterObject
)

func (k FloaterKind) String() string {
	switch k {
	case FloaterNone:
		return "none"
	case FloaterRect:
		return "rect"
	case FloaterLines:
		return "lines"
	case FloaterObject:
		return "object"
	default:
		return "unknown"
	}
}

// ModeSpec is a flow's declaration of the pointer mode it needs.
type ModeSpec struct {
	Mode domain.Mode

	// Entry rules, checked against the current model kind.
	NoSubModels     bool
	NoInstances     bool
	MustBeDynamic   bool
	NoRootModel     bool
	CannotBeDynamic bool

	// Clicks is the number of points the flow collects before it may finish.
	Clicks int
	// NeverSelfExits keeps the mode active after each completed unit.
	NeverSelfExits bool
	Floater        FloaterKind
	Bubbles        bool
	Motion         bool
	// Mask lists the controls disabled while the mode is active.
	Mask ports.Mask
}

// Admits reports whether a model of the given kind satisfies the entry rules.
func (s ModeSpec) Admits(kind model.Kind) bool {
	sub := kind == model.KindSubset || kind == model.KindDynamic
	switch {
	case s.NoSubModels && sub:
		return false
	case s.NoInstances && kind != model.KindRoot:
		return false
	case s.MustBeDynamic && kind != model.KindDynamic:
		return false
	case s.NoRootModel && kind == model.KindRoot:
		return false
	case s.CannotBeDynamic && kind == model.KindDynamic:
		return false
	}
	return true
}
