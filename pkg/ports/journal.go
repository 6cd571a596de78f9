package ports

import (
	"context"
	"time"
)

// Record kinds.
const (
	RecordCommit  = "commit"
	RecordUndo    = "undo"
	RecordRedo    = "redo"
	RecordRetract = "retract" // reverted and dropped from history
)

// Record is one journal entry describing a change log operation.
type Record struct {
	TransactionID string    `json:"transaction_id"`
	Kind          string    `json:"kind"`
	Label         string    `json:"label"`
	Changes       []string  `json:"changes,omitempty"`
	At            time.Time `json:"at"`
}

// Journal persists an append-only history per session.
type Journal interface {
	// Append adds a record to the end of the session's history.
	Append(ctx context.Context, sessionID string, rec Record) error
	// List returns the session's records in append order.
	// An unknown session returns domain.ErrSessionNotFound.
	List(ctx context.Context, sessionID string) ([]Record, error)
	// Delete removes the session's history.
	Delete(ctx context.Context, sessionID string) error
	// Sessions returns every session with at least one record.
	Sessions(ctx context.Context) ([]string, error)
}
