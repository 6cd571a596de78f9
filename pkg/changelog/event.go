package changelog

import "fmt"

// EventKind classifies a notification fired when a transaction commits or replays.
type EventKind int

const (
	EventModelChange EventKind = iota
	EventLayoutChange
	EventGeneralChange
)

func (k EventKind) String() string {
	switch k {
	case EventModelChange:
		return "model_change"
	case EventLayoutChange:
		return "layout_change"
	case EventGeneralChange:
		return "general_change"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event tells listeners that part of the network changed.
type Event struct {
	Kind   EventKind `json:"kind"`
	Target string    `json:"target"`
	// Undo is set on the inverse notification fired while undoing.
	Undo bool `json:"undo,omitempty"`
}

// ModelChanged is the event for content changes in one model.
func ModelChanged(modelID string) Event {
	return Event{Kind: EventModelChange, Target: modelID}
}

// LayoutChanged is the event for geometry changes in one model.
func LayoutChanged(modelID string) Event {
	return Event{Kind: EventLayoutChange, Target: modelID}
}

// Inverse returns the event fired when the transaction is undone.
func (e Event) Inverse() Event {
	e.Undo = !e.Undo
	return e
}

// EventSink receives committed and replayed events.
type EventSink interface {
	Publish(Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(Event)

func (f EventSinkFunc) Publish(e Event) { f(e) }
