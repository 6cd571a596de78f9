package flows

import (
	"context"

	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/flow"
)

type clickSelectState struct {
	flow.Base
	At      domain.Point `mapstructure:"at"`
	Shifted bool         `mapstructure:"shifted"`
	PixDiam float64      `mapstructure:"pix_diam"`
	Hit     string
}

// ClickSelect selects the node under a point. Shift toggles it in the current
// selection; a plain click on empty space clears the selection. It only runs
// from preload, synthesized by the no-mode pointer handler.
var ClickSelect = &flow.Definition[*clickSelectState]{
	FlowKey: KeyClickSelect,
	Label:   "Select",
	Preload: func(env *flow.Env) (*clickSelectState, error) {
		st := &clickSelectState{}
		st.Init(env, "select")
		return st, nil
	},
	Steps: map[string]flow.StepFunc[*clickSelectState]{
		"select": func(_ context.Context, st *clickSelectState, _ domain.Trigger) (flow.Envelope, error) {
			env := st.Env()
			id, hit := env.Net.NodeAt(env.ModelID(), st.At, hitTolerance(st.PixDiam))
			switch {
			case hit && st.Shifted:
				env.Selection.ToggleNode(id)
			case hit:
				env.Selection.Clear()
				env.Selection.AddNodes(id)
			case !st.Shifted:
				env.Selection.Clear()
			}
			if !hit {
				return flow.Envelope{Progress: domain.ProgressDone, State: st, Click: domain.ClickUnselected}, nil
			}
			st.Hit = id
			return flow.ClickDone(st), nil
		},
	},
}

type rectSelectState struct {
	flow.Base
	Rect    domain.Rect `mapstructure:"rect"`
	Shifted bool        `mapstructure:"shifted"`
}

// RectSelect selects every node inside a rectangle, plus the links whose ends
// are both inside. Preload only.
var RectSelect = &flow.Definition[*rectSelectState]{
	FlowKey: KeyRectSelect,
	Label:   "Select area",
	Preload: func(env *flow.Env) (*rectSelectState, error) {
		st := &rectSelectState{}
		st.Init(env, "select")
		return st, nil
	},
	Steps: map[string]flow.StepFunc[*rectSelectState]{
		"select": func(_ context.Context, st *rectSelectState, _ domain.Trigger) (flow.Envelope, error) {
			env := st.Env()
			modelID := env.ModelID()
			m, _ := env.Net.Model(modelID)
			l, _ := env.Net.Layout(modelID)
			if !st.Shifted {
				env.Selection.Clear()
			}
			inside := map[string]bool{}
			for id := range m.Nodes {
				if p, ok := l.Positions[id]; ok && st.Rect.Contains(p) {
					inside[id] = true
					env.Selection.AddNodes(id)
				}
			}
			for id, link := range m.Links {
				if inside[link.Source] && inside[link.Target] {
					env.Selection.AddLinks(id)
				}
			}
			return flow.Done(st), nil
		},
	},
}
