package flows

import (
	"context"

	"github.com/aretw0/tapestry/pkg/changelog"
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/flow"
	"github.com/aretw0/tapestry/pkg/layout"
)

type alignState struct {
	flow.Base
	Moved []string
}

func newAlign(env *flow.Env) (*alignState, error) {
	st := &alignState{}
	st.Init(env, "align")
	return st, nil
}

// AlignLayouts shifts every instance layout so the nodes it shares with the
// root sit over the root's positions on average. One transaction covers all
// instances.
var AlignLayouts = &flow.Definition[*alignState]{
	FlowKey: KeyAlign,
	Label:   "Align instance layouts",
	Enabled: func(c flow.Context) bool { return c.ModelCount > 1 && !c.JobRunning },
	Start:   newAlign,
	Preload: newAlign,
	Steps: map[string]flow.StepFunc[*alignState]{
		"align": func(ctx context.Context, st *alignState, _ domain.Trigger) (flow.Envelope, error) {
			env := st.Env()
			root, _ := env.Net.Layout(env.Net.RootID())

			tx := st.Begin("undo.alignLayouts")
			for _, id := range env.Net.Instances() {
				current, _ := env.Net.Layout(id)
				aligned, moved := layout.AlignTo(root, current)
				if !moved {
					continue
				}
				c, err := changelog.LayoutSwap(env.Net, aligned)
				if err != nil {
					return flow.Envelope{}, err
				}
				if err := tx.Apply(c); err != nil {
					return flow.Envelope{}, err
				}
				if err := tx.AddEvent(changelog.LayoutChanged(id)); err != nil {
					return flow.Envelope{}, err
				}
				st.Moved = append(st.Moved, id)
			}
			if err := tx.Finish(ctx); err != nil {
				return flow.Envelope{}, err
			}
			return flow.Done(st), nil
		},
	},
}
