package changelog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/tapestry/internal/logging"
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/model"
	"github.com/aretw0/tapestry/pkg/ports"
)

// Log owns the undo and redo stacks of one network.
// Mutating calls must come from the interaction goroutine.
type Log struct {
	net *model.Network

	mu   sync.Mutex
	undo []*Transaction
	redo []*Transaction
	open int

	sink      EventSink
	journal   ports.Journal
	sessionID string
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Log.
type Option func(*Log)

// WithEventSink sets where committed and replayed events go.
func WithEventSink(sink EventSink) Option {
	return func(l *Log) {
		l.sink = sink
	}
}

// WithJournal appends every commit, undo and redo to j under sessionID.
func WithJournal(j ports.Journal, sessionID string) Option {
	return func(l *Log) {
		l.journal = j
		l.sessionID = sessionID
	}
}

// WithHooks registers lifecycle hooks.
func WithHooks(h domain.LifecycleHooks) Option {
	return func(l *Log) {
		l.hooks = h
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Log) {
		l.logger = logger
	}
}

// New creates an empty Log for net.
func New(net *model.Network, opts ...Option) *Log {
	l := &Log{
		net:    net,
		sink:   EventSinkFunc(func(Event) {}),
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Network returns the network the log mutates.
func (l *Log) Network() *model.Network { return l.net }

// Begin opens a transaction. It must end in Finish or Discard.
func (l *Log) Begin(label string) *Transaction {
	l.mu.Lock()
	l.open++
	l.mu.Unlock()
	return newTransaction(l, label)
}

// Open returns the number of transactions begun but not yet finished or discarded.
func (l *Log) Open() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.open
}

// CanUndo reports whether Undo has something to do.
func (l *Log) CanUndo() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.undo) > 0
}

// CanRedo reports whether Redo has something to do.
func (l *Log) CanRedo() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.redo) > 0
}

// Entry summarizes a committed transaction.
type Entry struct {
	ID      string   `json:"id"`
	Label   string   `json:"label"`
	Changes []string `json:"changes"`
}

// History returns the undo stack, oldest first.
func (l *Log) History() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return entries(l.undo)
}

// RedoHistory returns the redo stack, oldest first.
func (l *Log) RedoHistory() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return entries(l.redo)
}

func entries(txs []*Transaction) []Entry {
	out := make([]Entry, 0, len(txs))
	for _, t := range txs {
		out = append(out, Entry{ID: t.id, Label: t.label, Changes: t.describe()})
	}
	return out
}

// Undo reverts the most recent committed transaction.
func (l *Log) Undo(ctx context.Context) (*Transaction, error) {
	l.mu.Lock()
	if len(l.undo) == 0 {
		l.mu.Unlock()
		return nil, domain.ErrNothingToUndo
	}
	tx := l.undo[len(l.undo)-1]
	l.mu.Unlock()

	if err := tx.revert(); err != nil {
		return nil, fmt.Errorf("undo %q: %w", tx.label, err)
	}

	l.mu.Lock()
	l.undo = l.undo[:len(l.undo)-1]
	l.redo = append(l.redo, tx)
	l.mu.Unlock()

	for _, e := range tx.events {
		l.sink.Publish(e.Inverse())
	}
	l.record(ctx, ports.RecordUndo, tx)
	if l.hooks.OnUndo != nil {
		l.hooks.OnUndo(ctx, tx.event(l.now()))
	}
	l.logger.Debug("Transaction undone", "tx", tx.id, "label", tx.label)
	return tx, nil
}

// Redo replays the most recently undone transaction.
func (l *Log) Redo(ctx context.Context) (*Transaction, error) {
	l.mu.Lock()
	if len(l.redo) == 0 {
		l.mu.Unlock()
		return nil, domain.ErrNothingToRedo
	}
	tx := l.redo[len(l.redo)-1]
	l.mu.Unlock()

	if err := tx.replay(); err != nil {
		return nil, fmt.Errorf("redo %q: %w", tx.label, err)
	}

	l.mu.Lock()
	l.redo = l.redo[:len(l.redo)-1]
	l.undo = append(l.undo, tx)
	l.mu.Unlock()

	for _, e := range tx.events {
		l.sink.Publish(e)
	}
	l.record(ctx, ports.RecordRedo, tx)
	if l.hooks.OnRedo != nil {
		l.hooks.OnRedo(ctx, tx.event(l.now()))
	}
	l.logger.Debug("Transaction redone", "tx", tx.id, "label", tx.label)
	return tx, nil
}

// Mark is a position in the log that Retract can return to.
type Mark struct {
	depth int
	redo  []*Transaction
}

// Mark records the current undo depth and redo stack.
func (l *Log) Mark() Mark {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Mark{depth: len(l.undo), redo: append([]*Transaction(nil), l.redo...)}
}

// Retract reverts every transaction committed since m, newest first, and
// restores the redo stack m saw. Retracted transactions cannot be redone.
func (l *Log) Retract(ctx context.Context, m Mark) error {
	for {
		l.mu.Lock()
		if len(l.undo) <= m.depth {
			l.redo = m.redo
			l.mu.Unlock()
			return nil
		}
		tx := l.undo[len(l.undo)-1]
		l.mu.Unlock()

		if err := tx.revert(); err != nil {
			return fmt.Errorf("retract %q: %w", tx.label, err)
		}

		l.mu.Lock()
		l.undo = l.undo[:len(l.undo)-1]
		l.mu.Unlock()

		for _, e := range tx.events {
			l.sink.Publish(e.Inverse())
		}
		l.record(ctx, ports.RecordRetract, tx)
		l.logger.Debug("Transaction retracted", "tx", tx.id, "label", tx.label)
	}
}

// commit is called by Transaction.Finish.
func (l *Log) commit(ctx context.Context, tx *Transaction) {
	l.mu.Lock()
	l.open--
	pushed := len(tx.edits) > 0
	if pushed {
		l.undo = append(l.undo, tx)
		l.redo = nil
	}
	l.mu.Unlock()

	for _, e := range tx.events {
		l.sink.Publish(e)
	}
	if !pushed {
		return
	}
	l.record(ctx, ports.RecordCommit, tx)
	if l.hooks.OnCommit != nil {
		l.hooks.OnCommit(ctx, tx.event(l.now()))
	}
	l.logger.Debug("Transaction committed", "tx", tx.id, "label", tx.label, "changes", len(tx.edits))
}

func (l *Log) discarded() {
	l.mu.Lock()
	l.open--
	l.mu.Unlock()
}

func (l *Log) record(ctx context.Context, kind string, tx *Transaction) {
	if l.journal == nil {
		return
	}
	rec := ports.Record{
		TransactionID: tx.id,
		Kind:          kind,
		Label:         tx.label,
		Changes:       tx.describe(),
		At:            l.now(),
	}
	if err := l.journal.Append(ctx, l.sessionID, rec); err != nil && !errors.Is(err, context.Canceled) {
		l.logger.Warn("Failed to append journal record", "tx", tx.id, "kind", kind, "err", err)
	}
}
