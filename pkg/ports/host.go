package ports

import (
	"context"
	"fmt"

	"github.com/aretw0/tapestry/pkg/domain"
)

// Mask selects which host controls are disabled while a mode is active.
type Mask uint32

const (
	MaskMenus Mask = 1 << iota
	MaskToolbar
	MaskModelTree
	MaskUndo

	MaskNone Mask = 0
	MaskAll       = MaskMenus | MaskToolbar | MaskModelTree | MaskUndo
)

// CancelMask tells the host which pending modals a mode cancellation should also close.
type CancelMask int

const (
	CancelAddsAllModes CancelMask = iota
	CancelSkipPullDowns
	CancelSkipModuleAdds
)

// ParseCancelMask reads a cancel mask name. Empty means every mode.
func ParseCancelMask(s string) (CancelMask, error) {
	switch s {
	case "", "all":
		return CancelAddsAllModes, nil
	case "skip_pull_downs":
		return CancelSkipPullDowns, nil
	case "skip_module_adds":
		return CancelSkipModuleAdds, nil
	}
	return 0, fmt.Errorf("unknown cancel mask %q", s)
}

// Cursor is the pointer shape the host should show.
type Cursor int

const (
	CursorDefault Cursor = iota
	CursorMode
	CursorWait
)

// Controls is the UI sink the engine drives. Implementations must tolerate
// repeated calls (EnableControls on enabled controls, nil floaters).
type Controls interface {
	DisableControls(mask Mask)
	EnableControls()
	SetCursor(c Cursor)
	// SetFloater arms a preview object; nil clears it.
	SetFloater(floater any)
	ClearTargets()
	PushBubbles()
	PopBubbles()
	CancelModals(which CancelMask)
	ErrorFeedback()
	Redraw()
}

// Dialogs shows a Feedback request and returns the user's answer.
type Dialogs interface {
	Ask(ctx context.Context, fb domain.Feedback) (domain.Answer, error)
}
