// Package mode routes pointer input to the handler of the current
// interaction mode and manages mode entry, exit and cancellation.
package mode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/tapestry/internal/logging"
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/flow"
	"github.com/aretw0/tapestry/pkg/harness"
	"github.com/aretw0/tapestry/pkg/model"
	"github.com/aretw0/tapestry/pkg/ports"
)

// Flow keys the dispatcher synthesizes on its own.
const (
	ClickSelectFlow = "click-select"
	RectSelectFlow  = "rect-select"
)

// ErrModeRefused is returned by Invoke when the flow asks for a mode the
// current model does not admit.
var ErrModeRefused = errors.New("mode not available for the current model")

// ShortClickError reports a multi-click flow that finished before collecting
// its declared number of points.
type ShortClickError struct {
	Mode domain.Mode
	Need int
}

func (e *ShortClickError) Error() string {
	return fmt.Sprintf("mode %s finished before %d points", e.Mode, e.Need)
}

type variant int

const (
	variantDraw variant = iota
	variantMultiClick
	variantMotion
	variantIncremental
	variantPullDown
)

// variants maps every mode to the handler shape that serves it.
var variants = map[domain.Mode]variant{
	domain.ModeAddGene:               variantDraw,
	domain.ModeAddNode:               variantDraw,
	domain.ModeAddNote:               variantDraw,
	domain.ModeAddExtraProxyNode:     variantDraw,
	domain.ModeRelocate:              variantDraw,
	domain.ModeRelocateSource:        variantDraw,
	domain.ModeRelocateTarget:        variantDraw,
	domain.ModeChangeSourceNode:      variantDraw,
	domain.ModeChangeTargetNode:      variantDraw,
	domain.ModeSwapPads:              variantDraw,
	domain.ModePathsFromUserSelected: variantDraw,
	domain.ModeAddLink:               variantMultiClick,
	domain.ModeDrawGroup:             variantMultiClick,
	domain.ModeAddSubGroup:           variantMultiClick,
	domain.ModeDrawNetModule:         variantMultiClick,
	domain.ModeDrawNetModuleLink:     variantMultiClick,
	domain.ModeDefineCisRegModule:    variantMultiClick,
	domain.ModeMoveGroup:             variantMotion,
	domain.ModeMoveNetModule:         variantMotion,
	domain.ModeMoveElements:          variantMotion,
	domain.ModeAddToNetModule:        variantIncremental,
	domain.ModeChangeGroupMembership: variantIncremental,
	domain.ModePullDown:              variantPullDown,
	domain.ModePullDownRootInstance:  variantPullDown,
}

func newHandler(spec flow.ModeSpec, key string) (Handler, bool) {
	v, ok := variants[spec.Mode]
	if !ok {
		return nil, false
	}
	base := drawHandler{mode: spec.Mode, caps: capsOf(spec)}
	switch v {
	case variantDraw:
		return &base, true
	case variantMultiClick:
		need := spec.Clicks
		if need < 1 {
			need = 2
		}
		base.caps.Clicks = need
		return &multiClickHandler{drawHandler: base, need: need}, true
	case variantMotion:
		base.caps.Motion = true
		return &motionHandler{drawHandler: base}, true
	case variantIncremental:
		base.caps.NeverSelfExits = true
		return &incrementalHandler{drawHandler: base, key: key}, true
	case variantPullDown:
		base.caps.NeverSelfExits = true
		return &pullDownHandler{incrementalHandler{drawHandler: base, key: key}}, true
	default:
		panic(fmt.Sprintf("mode: unknown handler variant %d", int(v)))
	}
}

// Dispatcher holds the current mode and its handler.
type Dispatcher struct {
	h        *harness.Harness
	controls ports.Controls
	logger   *slog.Logger

	mode    domain.Mode
	handler Handler
	// dispatching is set while a click or motion is inside the harness, so
	// the reset listener leaves cleanup to the dispatcher.
	dispatching bool
	delayed     bool
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// New creates a dispatcher over h and registers itself as its reset listener.
// A nil controls sink discards UI requests.
func New(h *harness.Harness, controls ports.Controls, opts ...Option) *Dispatcher {
	if controls == nil {
		controls = nopControls{}
	}
	d := &Dispatcher{
		h:        h,
		controls: controls,
		logger:   logging.NewNop(),
		mode:     domain.ModeNone,
		handler:  defaultHandler{},
	}
	for _, opt := range opts {
		opt(d)
	}
	h.SetResetListener(d.flowReset)
	return d
}

// Mode returns the current mode.
func (d *Dispatcher) Mode() domain.Mode { return d.mode }

// Handler returns the current handler; in no mode it is the default handler.
func (d *Dispatcher) Handler() Handler { return d.handler }

// Busy reports whether a mode, a flow or a background job is in progress.
func (d *Dispatcher) Busy() bool {
	return d.mode != domain.ModeNone || d.h.Active() || d.h.Pending()
}

// SetToMode enters the mode env asks for. It returns false, leaving the
// dispatcher in no mode, when the request is refused.
func (d *Dispatcher) SetToMode(env flow.Envelope, mask ports.Mask) bool {
	ctx := context.Background()
	if env.Progress != domain.ProgressMouseMode || env.Spec == nil {
		return false
	}
	spec := *env.Spec
	refuse := func(reason string) bool {
		d.logger.Debug("Mode entry refused", "mode", spec.Mode, "reason", reason)
		d.h.ClearFlow(ctx)
		d.setToNoMode(domain.ClickCancelled, false, false, false)
		return false
	}
	if d.h.Pending() {
		return refuse("job pending")
	}

	net := d.h.Env().Net
	kind, err := net.Kind(net.Current())
	if err != nil {
		return refuse(err.Error())
	}
	if !spec.Admits(kind) {
		return refuse("entry rules")
	}
	key := ""
	if f, _ := d.h.Current(); f != nil {
		key = f.Key()
	}
	handler, ok := newHandler(spec, key)
	if !ok {
		return refuse("no handler")
	}
	if _, pull := handler.(*pullDownHandler); pull && kind != model.KindInstance {
		return refuse("pull down needs an instance model")
	}
	if spec.Floater == flow.FloaterObject && env.Floater == nil {
		return refuse("no floater")
	}

	caps := handler.Capabilities()
	if caps.Bubbles {
		d.controls.PushBubbles()
	}
	d.controls.DisableControls(mask | spec.Mask)
	if caps.Floater == flow.FloaterObject {
		d.controls.SetFloater(env.Floater)
	} else {
		d.controls.SetFloater(nil)
	}
	d.controls.SetCursor(ports.CursorMode)
	if caps.TargetsAndOverlays {
		d.controls.Redraw()
	}
	d.mode = spec.Mode
	d.handler = handler
	d.logger.Info("Mode entered", "mode", spec.Mode, "flow", key)
	return true
}

// ProcessClick forwards a click to the active handler and applies the outcome.
func (d *Dispatcher) ProcessClick(ctx context.Context, pt domain.Point, shifted bool, pixDiam float64) (domain.ClickResult, error) {
	d.dispatching = true
	env, err := d.handler.Click(ctx, d.h, Click{Point: pt, Shifted: shifted, PixDiam: pixDiam})
	d.dispatching = false

	if err != nil {
		d.logger.Debug("Click failed", "mode", d.mode, "err", err)
		if d.h.Active() {
			d.h.ClearFlow(ctx)
		}
		d.controls.ErrorFeedback()
		d.setToNoMode(domain.ClickError, true, true, true)
		return domain.ClickError, err
	}
	res := clickOf(env)

	switch {
	case res.ExitsMode():
		if res == domain.ClickProcessed && d.handler.Capabilities().NeverSelfExits {
			next, ok := d.handler.Continue(ctx, d.h)
			if ok {
				d.refreshFloater(next)
				d.controls.Redraw()
				return res, nil
			}
		}
		d.setToNoMode(res, true, true, true)
	case res.NeedsErrorFeedback():
		d.controls.ErrorFeedback()
		if d.mode != domain.ModeNone && !d.h.Active() && !d.h.Pending() {
			d.setToNoMode(res, true, true, true)
		}
		return res, nil
	case res == domain.ClickAccept:
		d.refreshFloater(env)
	case res == domain.ClickAcceptDelayed:
		d.delayed = true
		d.setToNoMode(res, true, true, true)
	}
	d.controls.Redraw()
	return res, nil
}

// ProcessMotion forwards pointer motion to a motion-capable handler.
func (d *Dispatcher) ProcessMotion(ctx context.Context, pt domain.Point) error {
	if !d.handler.Capabilities().Motion {
		return nil
	}
	d.dispatching = true
	env, err := d.handler.Motion(ctx, d.h, pt)
	d.dispatching = false
	if err != nil {
		if d.h.Active() {
			d.h.ClearFlow(ctx)
		}
		d.setToNoMode(domain.ClickError, true, true, true)
		return err
	}
	if env.Progress.Terminal() {
		d.setToNoMode(clickOf(env), true, true, true)
		return nil
	}
	d.refreshFloater(env)
	return nil
}

// CancelMode tears down whatever mode is active, clears the harness flow and
// closes the host modals selected by which. Calling it again is a no-op
// beyond re-asserting the no-mode state.
func (d *Dispatcher) CancelMode(which ports.CancelMask) {
	d.h.ClearFlow(context.Background())
	d.handler.Reset()
	res := domain.ClickCancelled
	if d.h.Pending() {
		res = domain.ClickAcceptDelayed
	}
	d.setToNoMode(res, true, true, true)
	d.controls.CancelModals(which)
	d.controls.Redraw()
}

// Invoke starts key through the harness and enters its mode when asked.
func (d *Dispatcher) Invoke(ctx context.Context, key string) (flow.Envelope, error) {
	env, err := d.h.Start(ctx, key)
	if err != nil {
		return env, err
	}
	return d.follow(key, env)
}

// Preload runs key with its state filled from values, skipping the
// interactive steps the values stand in for.
func (d *Dispatcher) Preload(ctx context.Context, key string, values map[string]any) (flow.Envelope, error) {
	pre, err := d.h.BuildHarness(key)
	if err != nil {
		return flow.Envelope{Progress: domain.ProgressError}, err
	}
	if err := pre.Decode(values); err != nil {
		return flow.Envelope{Progress: domain.ProgressError}, err
	}
	env, err := d.h.RunHarness(ctx, pre)
	if err != nil {
		return env, err
	}
	return d.follow(key, env)
}

// Answer resumes a flow paused on feedback. A flow that moves on to pointer
// input enters its mode here, as it would from Invoke.
func (d *Dispatcher) Answer(ctx context.Context, a domain.Answer) (flow.Envelope, error) {
	key := ""
	if f, _ := d.h.Current(); f != nil {
		key = f.Key()
	}
	env, err := d.h.Answer(ctx, a)
	if err != nil {
		return env, err
	}
	if env.Progress == domain.ProgressMouseMode && env.Spec != nil && env.Spec.Mode == d.mode {
		d.refreshFloater(env)
		return env, nil
	}
	return d.follow(key, env)
}

// follow applies the envelope a flow returned outside a dispatched click.
func (d *Dispatcher) follow(key string, env flow.Envelope) (flow.Envelope, error) {
	switch env.Progress {
	case domain.ProgressMouseMode:
		if !d.SetToMode(env, ports.MaskAll) {
			env.Progress = domain.ProgressUserCancel
			return env, fmt.Errorf("%q: %w", key, ErrModeRefused)
		}
	case domain.ProgressDoneOnThread:
		d.delayed = true
		d.controls.DisableControls(ports.MaskAll)
	}
	return env, nil
}

// SelectItems selects everything inside rect.
func (d *Dispatcher) SelectItems(ctx context.Context, rect domain.Rect, shifted bool) (flow.Envelope, error) {
	pre, err := d.h.BuildHarness(RectSelectFlow)
	if err != nil {
		return flow.Envelope{Progress: domain.ProgressError}, err
	}
	if err := pre.Decode(map[string]any{"rect": rect, "shifted": shifted}); err != nil {
		return flow.Envelope{Progress: domain.ProgressError}, err
	}
	return d.h.RunHarness(ctx, pre)
}

// flowReset runs when the harness ends a flow outside a dispatched click,
// such as an answered dialog or a finished background job.
func (d *Dispatcher) flowReset(p domain.Progress) {
	if d.dispatching {
		return
	}
	if d.delayed && !d.h.Pending() {
		d.delayed = false
		d.setToNoMode(domain.ClickProcessed, false, false, false)
		return
	}
	if d.mode != domain.ModeNone {
		d.setToNoMode(domain.ClickProcessed, true, true, true)
	}
}

func (d *Dispatcher) refreshFloater(env flow.Envelope) {
	if d.handler.Capabilities().Floater != flow.FloaterNone && env.Floater != nil {
		d.controls.SetFloater(env.Floater)
	}
}

// setToNoMode returns to the default handler. Controls stay disabled while a
// delayed result is outstanding.
func (d *Dispatcher) setToNoMode(res domain.ClickResult, popBubbles, clearTargets, clearFloater bool) {
	caps := d.handler.Capabilities()
	if popBubbles && caps.Bubbles {
		d.controls.PopBubbles()
	}
	if clearTargets {
		d.controls.ClearTargets()
	}
	if clearFloater {
		d.controls.SetFloater(nil)
	}
	if res != domain.ClickAcceptDelayed {
		d.controls.EnableControls()
		d.controls.SetCursor(ports.CursorDefault)
	}
	if d.mode != domain.ModeNone {
		d.logger.Info("Mode exited", "mode", d.mode, "result", res)
	}
	d.mode = domain.ModeNone
	d.handler = defaultHandler{}
}

// clickOf derives a click result for envelopes that did not set one.
func clickOf(env flow.Envelope) domain.ClickResult {
	if env.Click != domain.ClickNone {
		return env.Click
	}
	switch env.Progress {
	case domain.ProgressDone:
		return domain.ClickProcessed
	case domain.ProgressUserCancel:
		return domain.ClickCancelled
	case domain.ProgressError:
		return domain.ClickError
	case domain.ProgressDoneOnThread, domain.ProgressAcceptDelayed:
		return domain.ClickAcceptDelayed
	case domain.ProgressMouseMode, domain.ProgressHaveFeedback, domain.ProgressKeepGoing:
		return domain.ClickAccept
	default:
		panic(fmt.Sprintf("mode: unknown progress %d", int(env.Progress)))
	}
}

type nopControls struct{}

func (nopControls) DisableControls(ports.Mask)    {}
func (nopControls) EnableControls()               {}
func (nopControls) SetCursor(ports.Cursor)        {}
func (nopControls) SetFloater(any)                {}
func (nopControls) ClearTargets()                 {}
func (nopControls) PushBubbles()                  {}
func (nopControls) PopBubbles()                   {}
func (nopControls) CancelModals(ports.CancelMask) {}
func (nopControls) ErrorFeedback()                {}
func (nopControls) Redraw()                       {}
