package flows

import (
	"context"

	"github.com/aretw0/tapestry/pkg/changelog"
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/flow"
	"github.com/aretw0/tapestry/pkg/model"
)

type pullDownState struct {
	flow.Base
	Pulled string
}

var pullDownMode = flow.ModeSpec{
	Mode:           domain.ModePullDown,
	NoRootModel:    true,
	NoSubModels:    true,
	Clicks:         1,
	NeverSelfExits: true,
}

// PullDown copies nodes from the parent model into the current instance,
// keeping their parent position. Each click pulls one node; clicking a node
// the instance already has is rejected.
var PullDown = &flow.Definition[*pullDownState]{
	FlowKey: KeyPullDown,
	Label:   "Pull down",
	Enabled: func(c flow.Context) bool { return c.Kind == model.KindInstance },
	Start: func(env *flow.Env) (*pullDownState, error) {
		st := &pullDownState{}
		st.Init(env, "start")
		return st, nil
	},
	Steps: map[string]flow.StepFunc[*pullDownState]{
		"start": func(_ context.Context, st *pullDownState, _ domain.Trigger) (flow.Envelope, error) {
			st.Goto("click")
			return flow.AwaitClicks(st, pullDownMode), nil
		},
		"click": stepPullDown,
	},
}

func stepPullDown(ctx context.Context, st *pullDownState, trig domain.Trigger) (flow.Envelope, error) {
	if trig.Kind != domain.TriggerClick {
		return flow.ClickReject(st), nil
	}
	env := st.Env()
	modelID := env.ModelID()
	parent := env.Net.Parent(modelID)
	nodeID, hit := env.Net.NodeAt(parent, trig.Point, hitTolerance(trig.PixDiam))
	if !hit {
		return flow.ClickUnselected(st), nil
	}
	if _, present := env.Net.Node(modelID, nodeID); present {
		return flow.ClickReject(st), nil
	}
	node, _ := env.Net.Node(parent, nodeID)
	pos, _ := env.Net.Position(parent, nodeID)

	tx := st.Begin("undo.pullDown")
	if err := tx.Apply(changelog.NodeCreate(modelID, node, &pos)); err != nil {
		return flow.Envelope{}, err
	}
	if err := tx.AddEvent(changelog.ModelChanged(modelID)); err != nil {
		return flow.Envelope{}, err
	}
	if err := tx.Finish(ctx); err != nil {
		return flow.Envelope{}, err
	}
	st.Pulled = nodeID
	return flow.ClickDone(st), nil
}
