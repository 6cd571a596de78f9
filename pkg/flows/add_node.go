package flows

import (
	"context"

	"github.com/aretw0/tapestry/pkg/changelog"
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/flow"
	"github.com/aretw0/tapestry/pkg/model"
	"github.com/google/uuid"
)

type addNodeState struct {
	flow.Base
	ID   string        `mapstructure:"id"`
	Name string        `mapstructure:"name"`
	Type string        `mapstructure:"type"`
	At   *domain.Point `mapstructure:"at"`
}

func (s *addNodeState) Floater() any {
	return model.Node{ID: s.ID, Name: s.Name, Type: s.Type}
}

func newAddNode(label string) func(env *flow.Env) (*addNodeState, error) {
	return func(env *flow.Env) (*addNodeState, error) {
		st := &addNodeState{Name: "new node", Type: "gene"}
		st.Init(env, label)
		return st, nil
	}
}

var addNodeMode = flow.ModeSpec{
	Mode:        domain.ModeAddNode,
	NoSubModels: true,
	Clicks:      1,
	Floater:     flow.FloaterObject,
}

// AddNode places a new node where the user clicks. Clicking on top of an
// existing node is rejected.
var AddNode = &flow.Definition[*addNodeState]{
	FlowKey: KeyAddNode,
	Label:   "Add node",
	Enabled: func(c flow.Context) bool { return !c.IsSubset() },
	Start:   newAddNode("start"),
	Preload: newAddNode("place"),
	Steps: map[string]flow.StepFunc[*addNodeState]{
		"start": func(_ context.Context, st *addNodeState, _ domain.Trigger) (flow.Envelope, error) {
			st.Goto("click")
			return flow.AwaitClicks(st, addNodeMode), nil
		},
		"click": func(_ context.Context, st *addNodeState, trig domain.Trigger) (flow.Envelope, error) {
			if trig.Kind != domain.TriggerClick {
				return flow.ClickReject(st), nil
			}
			env := st.Env()
			if _, hit := env.Net.NodeAt(env.ModelID(), trig.Point, hitTolerance(trig.PixDiam)); hit {
				return flow.ClickReject(st), nil
			}
			pt := trig.Point
			st.At = &pt
			st.Goto("place")
			return flow.KeepGoing(st), nil
		},
		"place": stepPlaceNode,
	},
}

func stepPlaceNode(ctx context.Context, st *addNodeState, _ domain.Trigger) (flow.Envelope, error) {
	if st.At == nil {
		return flow.Cancel(st), nil
	}
	env := st.Env()
	modelID := env.ModelID()
	if st.ID == "" {
		st.ID = "n-" + uuid.NewString()[:8]
	}
	if _, exists := env.Net.Node(modelID, st.ID); exists {
		return flow.ClickReject(st), nil
	}

	tx := st.Begin("undo.addNode")
	node := model.Node{ID: st.ID, Name: st.Name, Type: st.Type, Activity: model.ActivityState{Setting: model.Active}}
	if err := tx.Apply(changelog.NodeCreate(modelID, node, st.At)); err != nil {
		return flow.Envelope{}, err
	}
	if err := tx.AddEvent(changelog.ModelChanged(modelID)); err != nil {
		return flow.Envelope{}, err
	}
	if err := tx.Finish(ctx); err != nil {
		return flow.Envelope{}, err
	}
	env.Selection.Clear()
	env.Selection.AddNodes(st.ID)
	return flow.ClickDone(st), nil
}
