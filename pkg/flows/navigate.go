package flows

import (
	"context"
	"fmt"

	"github.com/aretw0/tapestry/pkg/changelog"
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/flow"
	"github.com/aretw0/tapestry/pkg/model"
)

type navigateState struct {
	flow.Base
	Model string `mapstructure:"model"`
}

// Navigate switches the current model. The switch is undoable but does not
// count as a model change.
var Navigate = &flow.Definition[*navigateState]{
	FlowKey: KeyNavigate,
	Label:   "Go to model",
	Preload: func(env *flow.Env) (*navigateState, error) {
		st := &navigateState{}
		st.Init(env, "go")
		return st, nil
	},
	Steps: map[string]flow.StepFunc[*navigateState]{
		"go": func(ctx context.Context, st *navigateState, _ domain.Trigger) (flow.Envelope, error) {
			env := st.Env()
			before := env.ModelID()
			if st.Model == before {
				return flow.Done(st), nil
			}
			if _, ok := env.Net.Model(st.Model); !ok {
				return flow.Envelope{}, fmt.Errorf("navigate to %q: %w", st.Model, model.ErrModelNotFound)
			}
			tx := st.Begin("undo.navigate")
			if err := tx.Apply(&changelog.NavigationChange{Before: before, After: st.Model}); err != nil {
				return flow.Envelope{}, err
			}
			if err := tx.Finish(ctx); err != nil {
				return flow.Envelope{}, err
			}
			env.Selection.Clear()
			return flow.Done(st), nil
		},
	},
}
