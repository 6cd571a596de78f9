package flow

import (
	"log/slog"

	"github.com/aretw0/tapestry/internal/logging"
	"github.com/aretw0/tapestry/pkg/changelog"
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/layout"
	"github.com/aretw0/tapestry/pkg/model"
	"github.com/aretw0/tapestry/pkg/ports"
	"github.com/aretw0/tapestry/pkg/worker"
)

// Env is the explicit context every flow step receives: the model under edit,
// its change log, the selection and the host collaborators.
type Env struct {
	Net       *model.Network
	Log       *changelog.Log
	Selection *Selection
	Controls  ports.Controls
	Dialogs   ports.Dialogs
	Jobs      *worker.Client
	Layout    layout.Stamper
	Hooks     domain.LifecycleHooks
	Logger    *slog.Logger
	// Headless is set when no interactive shell is attached.
	Headless bool
}

// NewEnv builds an Env over net with an empty selection and no-op collaborators.
func NewEnv(net *model.Network, log *changelog.Log) *Env {
	return &Env{
		Net:       net,
		Log:       log,
		Selection: NewSelection(),
		Layout:    layout.CopyStamper{},
		Logger:    logging.NewNop(),
	}
}

// ModelID returns the current model.
func (e *Env) ModelID() string { return e.Net.Current() }

// Context captures what enablement predicates look at.
func (e *Env) Context() Context {
	id := e.Net.Current()
	kind, _ := e.Net.Kind(id)
	c := Context{
		ModelID:       id,
		Kind:          kind,
		ModelCount:    e.Net.ModelCount(),
		SelectedNodes: len(e.Selection.Nodes()),
		SelectedLinks: len(e.Selection.Links()),
	}
	if e.Log != nil {
		c.CanUndo = e.Log.CanUndo()
		c.CanRedo = e.Log.CanRedo()
	}
	if e.Jobs != nil {
		c.JobRunning = e.Jobs.Active() != nil
	}
	return c
}

// Context is a snapshot of the session for enablement checks.
type Context struct {
	ModelID       string
	Kind          model.Kind
	ModelCount    int
	SelectedNodes int
	SelectedLinks int
	CanUndo       bool
	CanRedo       bool
	JobRunning    bool
}

// HaveSelection reports whether anything is selected.
func (c Context) HaveSelection() bool { return c.SelectedNodes+c.SelectedLinks > 0 }

// IsRoot reports whether the current model is the root.
func (c Context) IsRoot() bool { return c.Kind == model.KindRoot }

// IsDynamic reports whether the current model is a dynamic instance.
func (c Context) IsDynamic() bool { return c.Kind == model.KindDynamic }

// IsSubset reports whether the current model is a subset or dynamic model.
func (c Context) IsSubset() bool { return c.Kind == model.KindSubset || c.Kind == model.KindDynamic }

// ItemKind classifies an intersection target.
type ItemKind int

const (
	ItemNone ItemKind = iota
	ItemNode
	ItemLink
	ItemRegion
)

// Intersection is the item a context-sensitive invocation targets.
type Intersection struct {
	Kind    ItemKind
	ModelID string
	ID      string
}
