package flows

import (
	"context"
	"sort"

	"github.com/aretw0/tapestry/pkg/changelog"
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/flow"
	"github.com/aretw0/tapestry/pkg/model"
)

type addToRegionState struct {
	flow.Base
	Added string
}

var addToRegionMode = flow.ModeSpec{
	Mode:           domain.ModeAddToNetModule,
	NoRootModel:    true,
	Clicks:         1,
	NeverSelfExits: true,
}

// AddToRegion adds clicked nodes to the region under the click, one node per
// transaction. The mode stays active until cancelled.
var AddToRegion = &flow.Definition[*addToRegionState]{
	FlowKey: KeyAddToRegion,
	Label:   "Add to region",
	Enabled: func(c flow.Context) bool { return !c.IsRoot() },
	Start: func(env *flow.Env) (*addToRegionState, error) {
		st := &addToRegionState{}
		st.Init(env, "start")
		return st, nil
	},
	Steps: map[string]flow.StepFunc[*addToRegionState]{
		"start": func(_ context.Context, st *addToRegionState, _ domain.Trigger) (flow.Envelope, error) {
			st.Goto("click")
			return flow.AwaitClicks(st, addToRegionMode), nil
		},
		"click": func(ctx context.Context, st *addToRegionState, trig domain.Trigger) (flow.Envelope, error) {
			if trig.Kind != domain.TriggerClick {
				return flow.ClickReject(st), nil
			}
			env := st.Env()
			modelID := env.ModelID()
			nodeID, hit := env.Net.NodeAt(modelID, trig.Point, hitTolerance(trig.PixDiam))
			regionID, inRegion := env.Net.RegionAt(modelID, trig.Point)
			if !hit || !inRegion {
				return flow.ClickUnselected(st), nil
			}
			r, _ := env.Net.Region(modelID, regionID)
			if r.HasMember(nodeID) {
				return flow.ClickReject(st), nil
			}
			r.Members = append(r.Members, nodeID)
			sort.Strings(r.Members)
			if err := replaceRegion(ctx, st, "undo.addToRegion", modelID, r); err != nil {
				return flow.Envelope{}, err
			}
			st.Added = nodeID
			return flow.ClickDone(st), nil
		},
	},
}

type includeAllState struct {
	flow.Base
	Region string `mapstructure:"region"`
	Added  []string
}

// IncludeAll makes every node positioned inside a region a member of it. It
// is a context action on a region of an instance model, so it only runs from
// preload.
var IncludeAll = &flow.Definition[*includeAllState]{
	FlowKey: KeyIncludeAll,
	Label:   "Include all nodes in region",
	Enabled: func(c flow.Context) bool { return !c.IsRoot() },
	Valid: func(t flow.Intersection, c flow.Context) bool {
		return t.Kind == flow.ItemRegion && c.Kind == model.KindInstance
	},
	Preload: func(env *flow.Env) (*includeAllState, error) {
		st := &includeAllState{}
		st.Init(env, "include")
		return st, nil
	},
	Steps: map[string]flow.StepFunc[*includeAllState]{
		"include": func(ctx context.Context, st *includeAllState, _ domain.Trigger) (flow.Envelope, error) {
			env := st.Env()
			modelID := env.ModelID()
			r, ok := env.Net.Region(modelID, st.Region)
			if !ok {
				return flow.Cancel(st), nil
			}
			m, _ := env.Net.Model(modelID)
			l, _ := env.Net.Layout(modelID)
			for id := range m.Nodes {
				if p, ok := l.Positions[id]; ok && r.Bounds.Contains(p) && !r.HasMember(id) {
					st.Added = append(st.Added, id)
				}
			}
			if len(st.Added) == 0 {
				return flow.Done(st), nil
			}
			sort.Strings(st.Added)
			r.Members = append(r.Members, st.Added...)
			sort.Strings(r.Members)
			if err := replaceRegion(ctx, st, "undo.includeAll", modelID, r); err != nil {
				return flow.Envelope{}, err
			}
			return flow.Done(st), nil
		},
	},
}

// regionEditor is the slice of a state replaceRegion needs.
type regionEditor interface {
	Begin(label string) *changelog.Transaction
	Env() *flow.Env
}

func replaceRegion(ctx context.Context, st regionEditor, label, modelID string, r model.Region) error {
	c, err := changelog.RegionReplace(st.Env().Net, modelID, r)
	if err != nil {
		return err
	}
	tx := st.Begin(label)
	if err := tx.Apply(c); err != nil {
		return err
	}
	if err := tx.AddEvent(changelog.ModelChanged(modelID)); err != nil {
		return err
	}
	return tx.Finish(ctx)
}
