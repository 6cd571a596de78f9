package tapestry

import (
	"sort"

	"github.com/aretw0/tapestry/pkg/changelog"
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/flow"
	"github.com/aretw0/tapestry/pkg/model"
)

// Status is a point-in-time view of a session.
type Status struct {
	SessionID string            `json:"session_id"`
	Model     string            `json:"model"`
	Kind      string            `json:"kind"`
	Mode      string            `json:"mode"`
	Flow      string            `json:"flow,omitempty"`
	Step      string            `json:"step,omitempty"`
	Progress  string            `json:"progress,omitempty"`
	Feedback  *domain.Feedback  `json:"feedback,omitempty"`
	Job       *JobStatus        `json:"job,omitempty"`
	CanUndo   bool              `json:"can_undo"`
	CanRedo   bool              `json:"can_redo"`
	History   []changelog.Entry `json:"history"`
	Selected  []string          `json:"selected,omitempty"`
}

// JobStatus describes the pending background job.
type JobStatus struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Progress float64 `json:"progress"`
}

// Status reports the session state. It must run on the interaction goroutine.
func (e *Engine) Status() Status {
	c := e.env.Context()
	s := Status{
		SessionID: e.ID,
		Model:     c.ModelID,
		Kind:      c.Kind.String(),
		Mode:      e.dispatcher.Mode().String(),
		CanUndo:   c.CanUndo,
		CanRedo:   c.CanRedo,
		History:   e.log.History(),
		Selected:  e.env.Selection.Nodes(),
	}
	if f, last := e.harness.Current(); f != nil {
		s.Flow = f.Key()
		if last != nil {
			s.Progress = last.Progress.String()
			s.Feedback = last.Feedback
			s.Step = flow.StepOf(last.State)
		}
	}
	if job := e.harness.Job(); job != nil {
		s.Job = &JobStatus{ID: job.ID(), Name: job.Name(), Progress: job.Progress()}
	}
	return s
}

// ModelSummary describes one model of the network.
type ModelSummary struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Kind    string   `json:"kind"`
	Parent  string   `json:"parent,omitempty"`
	Nodes   []string `json:"nodes"`
	Links   []string `json:"links"`
	Regions []string `json:"regions,omitempty"`
}

// Describe summarizes every model in creation order.
func (e *Engine) Describe() []ModelSummary {
	return DescribeNetwork(e.net)
}

// DescribeNetwork summarizes every model of net in creation order.
func DescribeNetwork(net *model.Network) []ModelSummary {
	ids := net.ModelIDs()
	out := make([]ModelSummary, 0, len(ids))
	for _, id := range ids {
		m, ok := net.Model(id)
		if !ok {
			continue
		}
		out = append(out, ModelSummary{
			ID:      m.ID,
			Name:    m.Name,
			Kind:    m.Kind.String(),
			Parent:  m.Parent,
			Nodes:   keys(m.Nodes),
			Links:   keys(m.Links),
			Regions: keys(m.Regions),
		})
	}
	return out
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
