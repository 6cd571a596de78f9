package flows

import (
	"context"

	"github.com/aretw0/tapestry/pkg/changelog"
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/flow"
)

type moveState struct {
	flow.Base
	Nodes  []string     `mapstructure:"nodes"`
	Offset domain.Point `mapstructure:"offset"`
	anchor *domain.Point
	origin map[string]domain.Point
}

// Floater is the preview of the moved nodes at the current offset.
func (s *moveState) Floater() any {
	out := make(map[string]domain.Point, len(s.origin))
	for id, p := range s.origin {
		out[id] = p.Add(s.Offset)
	}
	return out
}

func newMove(label string, fromSelection bool) func(env *flow.Env) (*moveState, error) {
	return func(env *flow.Env) (*moveState, error) {
		st := &moveState{}
		if fromSelection {
			st.Nodes = env.Selection.Nodes()
		}
		st.Init(env, label)
		return st, nil
	}
}

var moveMode = flow.ModeSpec{
	Mode:    domain.ModeMoveElements,
	Clicks:  2,
	Motion:  true,
	Floater: flow.FloaterObject,
}

// MoveElements drags the selected nodes: the first click picks the anchor,
// motion previews the offset and the second click drops them. The whole move
// is one layout change.
var MoveElements = &flow.Definition[*moveState]{
	FlowKey: KeyMove,
	Label:   "Move",
	Enabled: func(c flow.Context) bool { return c.SelectedNodes > 0 },
	Start:   newMove("start", true),
	Preload: newMove("collect", false),
	Steps: map[string]flow.StepFunc[*moveState]{
		"start": func(_ context.Context, st *moveState, _ domain.Trigger) (flow.Envelope, error) {
			if !st.collect() {
				return flow.Cancel(st), nil
			}
			st.Goto("drag")
			return flow.AwaitClicks(st, moveMode), nil
		},
		"drag": func(_ context.Context, st *moveState, trig domain.Trigger) (flow.Envelope, error) {
			switch trig.Kind {
			case domain.TriggerMotion:
				if st.anchor != nil {
					st.Offset = trig.Point.Sub(*st.anchor)
				}
				return flow.Envelope{Progress: domain.ProgressMouseMode, State: st, Floater: st.Floater()}, nil
			case domain.TriggerClick:
				if st.anchor == nil {
					pt := trig.Point
					st.anchor = &pt
					return flow.ClickAccept(st), nil
				}
				st.Offset = trig.Point.Sub(*st.anchor)
				st.Goto("commit")
				return flow.KeepGoing(st), nil
			default:
				return flow.ClickReject(st), nil
			}
		},
		"collect": func(_ context.Context, st *moveState, _ domain.Trigger) (flow.Envelope, error) {
			if !st.collect() {
				return flow.Cancel(st), nil
			}
			st.Goto("commit")
			return flow.KeepGoing(st), nil
		},
		"commit": stepCommitMove,
	},
}

// collect records where the moving nodes start. It reports false when none of
// them has a position.
func (s *moveState) collect() bool {
	env := s.Env()
	s.origin = map[string]domain.Point{}
	for _, id := range s.Nodes {
		if p, ok := env.Net.Position(env.ModelID(), id); ok {
			s.origin[id] = p
		}
	}
	return len(s.origin) > 0
}

func stepCommitMove(ctx context.Context, st *moveState, _ domain.Trigger) (flow.Envelope, error) {
	if st.Offset == (domain.Point{}) {
		return flow.ClickCancel(st), nil
	}
	env := st.Env()
	modelID := env.ModelID()
	moved, _ := env.Net.Layout(modelID)
	for id, p := range st.origin {
		moved.Positions[id] = p.Add(st.Offset)
	}

	tx := st.Begin("undo.move")
	c, err := changelog.LayoutSwap(env.Net, moved)
	if err != nil {
		return flow.Envelope{}, err
	}
	if err := tx.Apply(c); err != nil {
		return flow.Envelope{}, err
	}
	if err := tx.AddEvent(changelog.LayoutChanged(modelID)); err != nil {
		return flow.Envelope{}, err
	}
	if err := tx.Finish(ctx); err != nil {
		return flow.Envelope{}, err
	}
	return flow.ClickDone(st), nil
}
