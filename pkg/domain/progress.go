package domain

import "fmt"

// Progress is the outcome code carried by every envelope a flow step returns.
type Progress int

const (
	// ProgressKeepGoing asks the step machine to run the next step immediately.
	ProgressKeepGoing Progress = iota
	// ProgressDone ends the flow successfully.
	ProgressDone
	// ProgressUserCancel ends the flow without changes.
	ProgressUserCancel
	// ProgressError ends the flow because a step failed.
	ProgressError
	// ProgressAcceptDelayed accepts the trigger but completion arrives later.
	ProgressAcceptDelayed
	// ProgressDoneOnThread ends the interactive part; a background job finishes the work.
	ProgressDoneOnThread
	// ProgressHaveFeedback pauses the flow until the host answers a Feedback request.
	ProgressHaveFeedback
	// ProgressMouseMode pauses the flow until pointer input arrives in the requested Mode.
	ProgressMouseMode
)

// Category groups progress codes by what the harness loop does with them.
type Category int

const (
	// CategoryContinue keeps the step loop running.
	CategoryContinue Category = iota
	// CategoryTerminal ends the flow.
	CategoryTerminal
	// CategoryDeferred returns to the caller with the flow still alive.
	CategoryDeferred
)

// Category reports the loop category of the code.
func (p Progress) Category() Category {
	switch p {
	case ProgressKeepGoing:
		return CategoryContinue
	case ProgressDone, ProgressUserCancel, ProgressError:
		return CategoryTerminal
	case ProgressAcceptDelayed, ProgressDoneOnThread, ProgressHaveFeedback, ProgressMouseMode:
		return CategoryDeferred
	default:
		panic(fmt.Sprintf("domain: unknown progress code %d", int(p)))
	}
}

// KeepLooping reports whether the step loop should run another step.
func (p Progress) KeepLooping() bool {
	return p.Category() == CategoryContinue
}

// Terminal reports whether the flow is over.
func (p Progress) Terminal() bool {
	return p.Category() == CategoryTerminal
}

func (p Progress) String() string {
	switch p {
	case ProgressKeepGoing:
		return "keep_going"
	case ProgressDone:
		return "done"
	case ProgressUserCancel:
		return "user_cancel"
	case ProgressError:
		return "error"
	case ProgressAcceptDelayed:
		return "accept_delayed"
	case ProgressDoneOnThread:
		return "done_on_thread"
	case ProgressHaveFeedback:
		return "have_feedback"
	case ProgressMouseMode:
		return "mouse_mode"
	default:
		return fmt.Sprintf("progress(%d)", int(p))
	}
}

// ClickResult is the outcome of one pointer trigger.
type ClickResult int

const (
	// ClickNone means the envelope did not come from a click.
	ClickNone ClickResult = iota
	// ClickAccept takes the point and waits for more input.
	ClickAccept
	// ClickAcceptDelayed takes the point; completion is asynchronous.
	ClickAcceptDelayed
	// ClickProcessed completes the operation.
	ClickProcessed
	// ClickCancelled abandons the operation.
	ClickCancelled
	// ClickReject ignores the point; the mode stays active.
	ClickReject
	// ClickError reports a failed click; the mode stays active.
	ClickError
	// ClickUnselected means the click hit nothing that the mode can use.
	ClickUnselected
)

// ExitsMode reports whether a self-exiting handler should drop back to no mode.
func (c ClickResult) ExitsMode() bool {
	switch c {
	case ClickProcessed, ClickCancelled:
		return true
	case ClickNone, ClickAccept, ClickAcceptDelayed, ClickReject, ClickError, ClickUnselected:
		return false
	default:
		panic(fmt.Sprintf("domain: unknown click result %d", int(c)))
	}
}

// NeedsErrorFeedback reports whether the host should signal a bad click.
func (c ClickResult) NeedsErrorFeedback() bool {
	switch c {
	case ClickReject, ClickError, ClickUnselected:
		return true
	case ClickNone, ClickAccept, ClickAcceptDelayed, ClickProcessed, ClickCancelled:
		return false
	default:
		panic(fmt.Sprintf("domain: unknown click result %d", int(c)))
	}
}

func (c ClickResult) String() string {
	switch c {
	case ClickNone:
		return "none"
	case ClickAccept:
		return "accept"
	case ClickAcceptDelayed:
		return "accept_delayed"
	case ClickProcessed:
		return "processed"
	case ClickCancelled:
		return "cancelled"
	case ClickReject:
		return "reject"
	case ClickError:
		return "error"
	case ClickUnselected:
		return "unselected"
	default:
		return fmt.Sprintf("click(%d)", int(c))
	}
}
