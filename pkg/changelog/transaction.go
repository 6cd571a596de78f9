package changelog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/google/uuid"
)

// ErrTransactionClosed is returned when a finished or discarded transaction is used again.
var ErrTransactionClosed = errors.New("transaction already closed")

type txState int

const (
	txOpen txState = iota
	txFinished
	txDiscarded
)

// Transaction is an ordered group of applied Changes and queued Events.
type Transaction struct {
	id     string
	label  string
	log    *Log
	edits  []Change
	events []Event
	state  txState
}

func newTransaction(l *Log, label string) *Transaction {
	return &Transaction{id: uuid.NewString(), label: label, log: l}
}

// ID returns the transaction's unique ID.
func (t *Transaction) ID() string { return t.id }

// Label returns the undo label.
func (t *Transaction) Label() string { return t.label }

// Changes returns the recorded changes in application order.
func (t *Transaction) Changes() []Change { return append([]Change(nil), t.edits...) }

// Events returns the queued events.
func (t *Transaction) Events() []Event { return append([]Event(nil), t.events...) }

// IsOpen reports whether the transaction can still take changes.
func (t *Transaction) IsOpen() bool { return t.state == txOpen }

// Apply runs c against the network and records it.
func (t *Transaction) Apply(c Change) error {
	if t.state != txOpen {
		return ErrTransactionClosed
	}
	if err := c.Redo(t.log.net); err != nil {
		return fmt.Errorf("apply %s: %w", c.Describe(), err)
	}
	t.edits = append(t.edits, c)
	return nil
}

// AddEdit records a change the caller already applied.
func (t *Transaction) AddEdit(c Change) error {
	if t.state != txOpen {
		return ErrTransactionClosed
	}
	t.edits = append(t.edits, c)
	return nil
}

// AddEvent queues an event for commit. Duplicates collapse into one.
func (t *Transaction) AddEvent(e Event) error {
	if t.state != txOpen {
		return ErrTransactionClosed
	}
	for _, have := range t.events {
		if have == e {
			return nil
		}
	}
	t.events = append(t.events, e)
	return nil
}

// Finish commits the transaction onto the undo stack and fires its events.
// A transaction with no changes fires its events but is not pushed.
func (t *Transaction) Finish(ctx context.Context) error {
	if t.state != txOpen {
		return ErrTransactionClosed
	}
	t.state = txFinished
	t.log.commit(ctx, t)
	return nil
}

// Discard undoes every applied change in reverse order and closes the
// transaction. It is a no-op once the transaction is finished or discarded.
func (t *Transaction) Discard() error {
	if t.state != txOpen {
		return nil
	}
	t.state = txDiscarded
	t.log.discarded()
	var errs []error
	for i := len(t.edits) - 1; i >= 0; i-- {
		if err := t.edits[i].Undo(t.log.net); err != nil {
			errs = append(errs, fmt.Errorf("rollback %s: %w", t.edits[i].Describe(), err))
		}
	}
	if n := len(t.edits); n > 0 {
		t.log.logger.Debug("Transaction discarded", "tx", t.id, "label", t.label, "changes", n)
	}
	t.edits = nil
	t.events = nil
	return errors.Join(errs...)
}

// revert undoes every change; on failure it restores the ones already undone.
func (t *Transaction) revert() error {
	for i := len(t.edits) - 1; i >= 0; i-- {
		if err := t.edits[i].Undo(t.log.net); err != nil {
			for j := i + 1; j < len(t.edits); j++ {
				_ = t.edits[j].Redo(t.log.net)
			}
			return err
		}
	}
	return nil
}

// replay redoes every change; on failure it rolls back the ones already redone.
func (t *Transaction) replay() error {
	for i, c := range t.edits {
		if err := c.Redo(t.log.net); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = t.edits[j].Undo(t.log.net)
			}
			return err
		}
	}
	return nil
}

func (t *Transaction) describe() []string {
	out := make([]string, 0, len(t.edits))
	for _, c := range t.edits {
		out = append(out, c.Describe())
	}
	return out
}

func (t *Transaction) event(at time.Time) *domain.TransactionEvent {
	return &domain.TransactionEvent{Timestamp: at, ID: t.id, Label: t.label, Changes: len(t.edits)}
}
