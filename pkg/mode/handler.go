package mode

import (
	"context"
	"errors"

	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/flow"
	"github.com/aretw0/tapestry/pkg/harness"
)

// Capabilities is the fixed set of optional behaviours a handler may have.
type Capabilities struct {
	Floater            flow.FloaterKind
	Bubbles            bool
	Motion             bool
	NeverSelfExits     bool
	TargetsAndOverlays bool
	// Clicks is the number of points the handler collects, zero for any.
	Clicks int
}

// Click is one pointer press.
type Click struct {
	Point   domain.Point
	Shifted bool
	PixDiam float64
}

// Handler translates pointer input in one mode into harness triggers.
type Handler interface {
	Mode() domain.Mode
	Capabilities() Capabilities
	Click(ctx context.Context, h *harness.Harness, c Click) (flow.Envelope, error)
	Motion(ctx context.Context, h *harness.Harness, pt domain.Point) (flow.Envelope, error)
	// Continue is asked after a completed unit; returning false exits the mode.
	Continue(ctx context.Context, h *harness.Harness) (flow.Envelope, bool)
	// Reset drops per-mode state.
	Reset()
}

func capsOf(spec flow.ModeSpec) Capabilities {
	return Capabilities{
		Floater:            spec.Floater,
		Bubbles:            spec.Bubbles,
		Motion:             spec.Motion,
		NeverSelfExits:     spec.NeverSelfExits,
		TargetsAndOverlays: spec.Floater != flow.FloaterNone,
		Clicks:             spec.Clicks,
	}
}

// drawHandler completes on the first processed or cancelled click.
type drawHandler struct {
	mode domain.Mode
	caps Capabilities
}

func (d *drawHandler) Mode() domain.Mode          { return d.mode }
func (d *drawHandler) Capabilities() Capabilities { return d.caps }
func (d *drawHandler) Reset()                     {}

func (d *drawHandler) Click(ctx context.Context, h *harness.Harness, c Click) (flow.Envelope, error) {
	return h.HandleClick(ctx, c.Point, c.Shifted, c.PixDiam)
}

func (d *drawHandler) Motion(context.Context, *harness.Harness, domain.Point) (flow.Envelope, error) {
	return flow.Envelope{Progress: domain.ProgressMouseMode}, nil
}

func (d *drawHandler) Continue(context.Context, *harness.Harness) (flow.Envelope, bool) {
	return flow.Envelope{}, false
}

// multiClickHandler collects exactly need points. A flow that ends before
// the last point is only allowed to cancel.
type multiClickHandler struct {
	drawHandler
	need   int
	points []domain.Point
}

func (m *multiClickHandler) Points() []domain.Point {
	return append([]domain.Point(nil), m.points...)
}

func (m *multiClickHandler) Reset() { m.points = nil }

func (m *multiClickHandler) Click(ctx context.Context, h *harness.Harness, c Click) (flow.Envelope, error) {
	mark := h.Env().Log.Mark()
	env, err := h.HandleClick(ctx, c.Point, c.Shifted, c.PixDiam)
	if err != nil {
		m.Reset()
		return env, err
	}
	switch env.Click {
	case domain.ClickAccept, domain.ClickProcessed, domain.ClickAcceptDelayed:
		m.points = append(m.points, c.Point)
	case domain.ClickCancelled:
		m.Reset()
	}
	if env.Progress == domain.ProgressDone && len(m.points) < m.need {
		// Flow finished short of its declared points: take back what it committed.
		m.Reset()
		if rerr := h.Env().Log.Retract(ctx, mark); rerr != nil {
			return env, rerr
		}
		env.Click = domain.ClickError
		env.Progress = domain.ProgressError
		return env, &ShortClickError{Mode: m.mode, Need: m.need}
	}
	return env, nil
}

// motionHandler follows the pointer and exits after the first accepted click.
type motionHandler struct {
	drawHandler
}

func (m *motionHandler) Motion(ctx context.Context, h *harness.Harness, pt domain.Point) (flow.Envelope, error) {
	return h.HandleMotion(ctx, pt)
}

// incrementalHandler restarts its flow after every completed unit and only
// leaves the mode through CancelMode.
type incrementalHandler struct {
	drawHandler
	key   string
	units int
}

func (i *incrementalHandler) Continue(ctx context.Context, h *harness.Harness) (flow.Envelope, bool) {
	i.units++
	env, err := h.Start(ctx, i.key)
	if err == nil && env.Progress == domain.ProgressMouseMode {
		return env, true
	}
	if h.Active() {
		h.ClearFlow(ctx)
	}
	return env, false
}

func (i *incrementalHandler) Reset() { i.units = 0 }

// pullDownHandler is an incremental handler that needs an instance model.
type pullDownHandler struct {
	incrementalHandler
}

// defaultHandler runs in no mode: a bare click becomes a click selection.
type defaultHandler struct{}

func (defaultHandler) Mode() domain.Mode          { return domain.ModeNone }
func (defaultHandler) Capabilities() Capabilities { return Capabilities{} }
func (defaultHandler) Reset()                     {}

func (defaultHandler) Click(ctx context.Context, h *harness.Harness, c Click) (flow.Envelope, error) {
	if h.Active() || h.Pending() {
		return flow.Envelope{Progress: domain.ProgressMouseMode, Click: domain.ClickReject}, nil
	}
	pre, err := h.BuildHarness(ClickSelectFlow)
	if errors.Is(err, domain.ErrUnknownFlow) {
		// Registries without click selection just ignore bare clicks.
		return flow.Envelope{Progress: domain.ProgressUserCancel, Click: domain.ClickUnselected}, nil
	}
	if err != nil {
		return flow.Envelope{Progress: domain.ProgressError, Click: domain.ClickError}, err
	}
	if err := pre.Decode(map[string]any{"at": c.Point, "shifted": c.Shifted, "pix_diam": c.PixDiam}); err != nil {
		return flow.Envelope{Progress: domain.ProgressError, Click: domain.ClickError}, err
	}
	return h.RunHarness(ctx, pre)
}

func (defaultHandler) Motion(context.Context, *harness.Harness, domain.Point) (flow.Envelope, error) {
	return flow.Envelope{Progress: domain.ProgressMouseMode}, nil
}

func (defaultHandler) Continue(context.Context, *harness.Harness) (flow.Envelope, bool) {
	return flow.Envelope{}, false
}
