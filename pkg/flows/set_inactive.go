package flows

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/tapestry/pkg/changelog"
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/flow"
	"github.com/aretw0/tapestry/pkg/model"
)

type setInactiveState struct {
	flow.Base
	Nodes []string `mapstructure:"nodes"`
	Links []string `mapstructure:"links"`
	// Cascade also deactivates the items in descendant models that would
	// otherwise be more active than the edited model.
	Cascade bool `mapstructure:"cascade"`
}

func newSetInactive(fromSelection bool) func(env *flow.Env) (*setInactiveState, error) {
	return func(env *flow.Env) (*setInactiveState, error) {
		st := &setInactiveState{}
		if fromSelection {
			st.Nodes = env.Selection.Nodes()
			st.Links = env.Selection.Links()
		}
		st.Init(env, "check")
		return st, nil
	}
}

var inactive = model.ActivityState{Setting: model.Inactive}

// SetInactive marks the selected nodes and links inactive in the current
// model. If descendant models would be left more active, the user is asked
// whether to deactivate them too.
var SetInactive = &flow.Definition[*setInactiveState]{
	FlowKey: KeySetInactive,
	Label:   "Set inactive",
	Enabled: func(c flow.Context) bool {
		return c.HaveSelection() && !c.IsRoot() && !c.IsDynamic()
	},
	Start:   newSetInactive(true),
	Preload: newSetInactive(false),
	Steps: map[string]flow.StepFunc[*setInactiveState]{
		"check": func(_ context.Context, st *setInactiveState, _ domain.Trigger) (flow.Envelope, error) {
			if len(st.Nodes)+len(st.Links) == 0 {
				return flow.Cancel(st), nil
			}
			if st.Cascade {
				st.Goto("apply")
				return flow.KeepGoing(st), nil
			}
			env := st.Env()
			modelID := env.ModelID()
			var bounds *domain.BoundsError
			for _, id := range st.Nodes {
				if err := env.Net.CheckNodeActivity(modelID, id, inactive); errors.As(err, &bounds) {
					break
				} else if err != nil {
					return flow.Envelope{}, err
				}
			}
			if bounds == nil {
				for _, id := range st.Links {
					if err := env.Net.CheckLinkActivity(modelID, id, inactive); errors.As(err, &bounds) {
						break
					} else if err != nil {
						return flow.Envelope{}, err
					}
				}
			}
			if bounds == nil {
				st.Goto("apply")
				return flow.KeepGoing(st), nil
			}
			st.Goto("confirm")
			return flow.Ask(st, domain.Feedback{
				Kind:    domain.FeedbackYesNo,
				Title:   "Activity bounds",
				Message: fmt.Sprintf("%s. Set descendant models inactive too?", bounds.Error()),
			}), nil
		},
		"confirm": func(_ context.Context, st *setInactiveState, trig domain.Trigger) (flow.Envelope, error) {
			if trig.Kind != domain.TriggerAnswer || trig.Answer.Declined() {
				return flow.Cancel(st), nil
			}
			st.Cascade = true
			st.Goto("apply")
			return flow.KeepGoing(st), nil
		},
		"apply": stepApplyInactive,
	},
}

func stepApplyInactive(ctx context.Context, st *setInactiveState, _ domain.Trigger) (flow.Envelope, error) {
	env := st.Env()
	modelID := env.ModelID()
	targets := []string{modelID}
	if st.Cascade {
		for _, d := range env.Net.Descendants(modelID) {
			if k, _ := env.Net.Kind(d); k != model.KindInstance {
				targets = append(targets, d)
			}
		}
	}

	tx := st.Begin("undo.setInactive")
	for _, target := range targets {
		for _, id := range st.Nodes {
			n, ok := env.Net.Node(target, id)
			if !ok || n.Activity == inactive {
				continue
			}
			n.Activity = inactive
			c, err := changelog.NodeReplace(env.Net, target, n)
			if err != nil {
				return flow.Envelope{}, err
			}
			if err := tx.Apply(c); err != nil {
				return flow.Envelope{}, err
			}
			if err := tx.AddEvent(changelog.ModelChanged(target)); err != nil {
				return flow.Envelope{}, err
			}
		}
		for _, id := range st.Links {
			l, ok := env.Net.Link(target, id)
			if !ok || l.Activity == inactive {
				continue
			}
			c, err := changelog.LinkActivity(env.Net, target, id, inactive)
			if err != nil {
				return flow.Envelope{}, err
			}
			if err := tx.Apply(c); err != nil {
				return flow.Envelope{}, err
			}
			if err := tx.AddEvent(changelog.ModelChanged(target)); err != nil {
				return flow.Envelope{}, err
			}
		}
	}
	if err := tx.Finish(ctx); err != nil {
		return flow.Envelope{}, err
	}
	return flow.Done(st), nil
}
