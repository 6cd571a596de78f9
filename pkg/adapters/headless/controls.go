// Package headless provides host adapters for running the engine without a UI:
// a Controls sink that records what a shell would display, and a Dialogs
// responder that answers feedback requests from a script.
package headless

import (
	"sync"

	"github.com/aretw0/tapestry/pkg/ports"
)

// Controls implements ports.Controls by recording every call.
// Safe for concurrent use.
type Controls struct {
	mu             sync.Mutex
	disabled       ports.Mask
	cursor         ports.Cursor
	floater        any
	bubbles        int
	redraws        int
	errorFeedbacks int
	targetClears   int
	cancelled      []ports.CancelMask
}

// NewControls returns a sink with every control enabled.
func NewControls() *Controls {
	return &Controls{}
}

func (c *Controls) DisableControls(mask ports.Mask) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disabled |= mask
}

func (c *Controls) EnableControls() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disabled = ports.MaskNone
}

func (c *Controls) SetCursor(cur ports.Cursor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cursor = cur
}

func (c *Controls) SetFloater(f any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.floater = f
}

func (c *Controls) ClearTargets() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.targetClears++
}

func (c *Controls) PushBubbles() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bubbles++
}

func (c *Controls) PopBubbles() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bubbles > 0 {
		c.bubbles--
	}
}

func (c *Controls) CancelModals(which ports.CancelMask) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled = append(c.cancelled, which)
}

func (c *Controls) ErrorFeedback() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errorFeedbacks++
}

func (c *Controls) Redraw() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.redraws++
}

// Disabled returns the currently disabled controls.
func (c *Controls) Disabled() ports.Mask {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disabled
}

// Cursor returns the current cursor.
func (c *Controls) Cursor() ports.Cursor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor
}

// Floater returns the armed preview object, or nil.
func (c *Controls) Floater() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.floater
}

// Bubbles returns how many bubble layers are pushed.
func (c *Controls) Bubbles() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bubbles
}

// Redraws returns how many redraws were requested.
func (c *Controls) Redraws() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.redraws
}

// ErrorFeedbacks returns how many bad-click signals were raised.
func (c *Controls) ErrorFeedbacks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errorFeedbacks
}

// CancelledModals returns the masks passed to CancelModals, in order.
func (c *Controls) CancelledModals() []ports.CancelMask {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ports.CancelMask(nil), c.cancelled...)
}
