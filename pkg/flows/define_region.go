package flows

import (
	"context"
	"sort"

	"github.com/aretw0/tapestry/pkg/changelog"
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/flow"
	"github.com/aretw0/tapestry/pkg/model"
	"github.com/google/uuid"
)

type defineRegionState struct {
	flow.Base
	Name   string        `mapstructure:"name"`
	Rect   *domain.Rect  `mapstructure:"rect"`
	corner *domain.Point
}

func (s *defineRegionState) Floater() any {
	if s.corner == nil {
		return nil
	}
	return *s.corner
}

func newDefineRegion(label string) func(env *flow.Env) (*defineRegionState, error) {
	return func(env *flow.Env) (*defineRegionState, error) {
		st := &defineRegionState{Name: "region"}
		st.Init(env, label)
		return st, nil
	}
}

var defineRegionMode = flow.ModeSpec{
	Mode:        domain.ModeDrawGroup,
	NoRootModel: true,
	Clicks:      2,
	Floater:     flow.FloaterRect,
}

// DefineRegion draws a region from two corner clicks. Regions group nodes of
// instance and subset models; the root model has none.
var DefineRegion = &flow.Definition[*defineRegionState]{
	FlowKey: KeyDefineRegion,
	Label:   "Define region",
	Valid: func(t flow.Intersection, c flow.Context) bool {
		return t.Kind == flow.ItemNone && !c.IsRoot()
	},
	Start:   newDefineRegion("start"),
	Preload: newDefineRegion("check"),
	Steps: map[string]flow.StepFunc[*defineRegionState]{
		"start": func(_ context.Context, st *defineRegionState, _ domain.Trigger) (flow.Envelope, error) {
			if st.Env().Context().IsRoot() {
				return flow.Cancel(st), nil
			}
			st.Goto("corner")
			return flow.AwaitClicks(st, defineRegionMode), nil
		},
		"corner": func(_ context.Context, st *defineRegionState, trig domain.Trigger) (flow.Envelope, error) {
			if trig.Kind != domain.TriggerClick {
				return flow.ClickReject(st), nil
			}
			if st.corner == nil {
				pt := trig.Point
				st.corner = &pt
				return flow.ClickAccept(st), nil
			}
			r := domain.RectFromPoints(*st.corner, trig.Point)
			if r.Empty() {
				return flow.ClickReject(st), nil
			}
			st.Rect = &r
			st.Goto("commit")
			return flow.KeepGoing(st), nil
		},
		"check": func(_ context.Context, st *defineRegionState, _ domain.Trigger) (flow.Envelope, error) {
			if st.Env().Context().IsRoot() || st.Rect == nil || st.Rect.Empty() {
				return flow.Cancel(st), nil
			}
			st.Goto("commit")
			return flow.KeepGoing(st), nil
		},
		"commit": stepCommitRegion,
	},
}

func stepCommitRegion(ctx context.Context, st *defineRegionState, _ domain.Trigger) (flow.Envelope, error) {
	env := st.Env()
	modelID := env.ModelID()
	m, _ := env.Net.Model(modelID)
	layout, _ := env.Net.Layout(modelID)

	var members []string
	for id := range m.Nodes {
		if p, ok := layout.Positions[id]; ok && st.Rect.Contains(p) {
			members = append(members, id)
		}
	}
	sort.Strings(members)

	region := model.Region{ID: "r-" + uuid.NewString()[:8], Name: st.Name, Bounds: *st.Rect, Members: members}
	tx := st.Begin("undo.defineRegion")
	if err := tx.Apply(changelog.RegionCreate(modelID, region)); err != nil {
		return flow.Envelope{}, err
	}
	if err := tx.AddEvent(changelog.ModelChanged(modelID)); err != nil {
		return flow.Envelope{}, err
	}
	if err := tx.Finish(ctx); err != nil {
		return flow.Envelope{}, err
	}
	return flow.ClickDone(st), nil
}
