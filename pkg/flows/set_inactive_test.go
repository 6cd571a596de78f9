package flows

import (
	"context"
	"testing"

	"github.com/aretw0/tapestry/pkg/adapters/headless"
	"github.com/aretw0/tapestry/pkg/changelog"
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetInactive_SingleTransaction(t *testing.T) {
	f := newFixture(t, "inst2")
	ctx := context.Background()
	f.env.Selection.AddNodes("a", "b")
	f.env.Selection.AddLinks("ab")
	before := f.env.Net.Snapshot()

	env, err := f.h.Start(ctx, KeySetInactive)
	require.NoError(t, err)
	assert.Equal(t, domain.ProgressDone, env.Progress)

	history := f.env.Log.History()
	require.Len(t, history, 1)
	assert.Len(t, history[0].Changes, 3)
	assert.Equal(t, []changelog.Event{changelog.ModelChanged("inst2")}, f.events, "events are deduplicated per transaction")

	for _, id := range []string{"a", "b"} {
		n, _ := f.env.Net.Node("inst2", id)
		assert.Equal(t, model.Inactive, n.Activity.Setting, id)
	}
	l, _ := f.env.Net.Link("inst2", "ab")
	assert.Equal(t, model.Inactive, l.Activity.Setting)

	f.events = nil
	_, err = f.env.Log.Undo(ctx)
	require.NoError(t, err)
	assert.True(t, f.env.Net.Equal(before))
	assert.Equal(t, []changelog.Event{changelog.ModelChanged("inst2").Inverse()}, f.events)
}

func TestSetInactive_BoundsFeedback(t *testing.T) {
	tests := []struct {
		name    string
		answer  domain.AnswerChoice
		want    domain.Progress
		changes int
	}{
		{"cascade accepted", domain.AnswerYes, domain.ProgressDone, 3},
		{"cascade declined", domain.AnswerNo, domain.ProgressUserCancel, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "inst1")
			ctx := context.Background()
			f.env.Selection.AddNodes("a")

			env, err := f.h.Start(ctx, KeySetInactive)
			require.NoError(t, err)
			require.Equal(t, domain.ProgressHaveFeedback, env.Progress)
			assert.Equal(t, domain.FeedbackYesNo, env.Feedback.Kind)

			env, err = f.h.Answer(ctx, domain.Answer{Choice: tt.answer})
			require.NoError(t, err)
			assert.Equal(t, tt.want, env.Progress)
			assert.Equal(t, tt.changes, f.changes(t))
		})
	}
}

func TestSetInactive_CascadeReachesSubModels(t *testing.T) {
	f := newFixture(t, "inst1")
	f.env.Selection.AddNodes("a")
	f.env.Dialogs = headless.NewDialogs(domain.Answer{Choice: domain.AnswerYes})
	f.env.Headless = true

	env, err := f.h.Start(context.Background(), KeySetInactive)
	require.NoError(t, err)
	assert.Equal(t, domain.ProgressDone, env.Progress)

	for _, id := range []string{"inst1", "sub1", "dyn1"} {
		n, ok := f.env.Net.Node(id, "a")
		require.True(t, ok, id)
		assert.Equal(t, model.Inactive, n.Activity.Setting, id)
	}
	n, _ := f.env.Net.Node("inst2", "a")
	assert.Equal(t, model.Active, n.Activity.Setting, "sibling instances are untouched")
	assert.Len(t, f.events, 3)
}

func TestSetInactive_PreloadCascade(t *testing.T) {
	f := newFixture(t, "inst1")
	env := f.preload(t, KeySetInactive, map[string]any{"nodes": []string{"b"}, "cascade": "true"})
	assert.Equal(t, domain.ProgressDone, env.Progress)

	n, _ := f.env.Net.Node("sub1", "b")
	assert.Equal(t, model.Inactive, n.Activity.Setting)
}

func TestSetInactive_NothingToDo(t *testing.T) {
	f := newFixture(t, "inst2")
	env := f.preload(t, KeySetInactive, map[string]any{})
	assert.Equal(t, domain.ProgressUserCancel, env.Progress)
}
