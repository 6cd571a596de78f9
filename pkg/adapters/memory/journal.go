package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/ports"
)

// Journal implements ports.Journal in memory.
// Safe for concurrent use.
type Journal struct {
	data map[string][]ports.Record
	mu   sync.RWMutex
}

// NewJournal creates a new in-memory journal.
func NewJournal() *Journal {
	return &Journal{
		data: make(map[string][]ports.Record),
	}
}

// Append stores a copy of the record.
func (j *Journal) Append(ctx context.Context, sessionID string, rec ports.Record) error {
	rec.Changes = append([]string(nil), rec.Changes...)

	j.mu.Lock()
	defer j.mu.Unlock()
	j.data[sessionID] = append(j.data[sessionID], rec)
	return nil
}

// List returns a copy of the session's records.
func (j *Journal) List(ctx context.Context, sessionID string) ([]ports.Record, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	recs, ok := j.data[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	// Copy on read so callers can't mutate stored history
	out := make([]ports.Record, len(recs))
	for i, r := range recs {
		r.Changes = append([]string(nil), r.Changes...)
		out[i] = r
	}
	return out, nil
}

// Delete removes the session's history.
func (j *Journal) Delete(ctx context.Context, sessionID string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.data, sessionID)
	return nil
}

// Sessions returns the sessions with history, sorted.
func (j *Journal) Sessions(ctx context.Context) ([]string, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	sessions := make([]string, 0, len(j.data))
	for id := range j.data {
		sessions = append(sessions, id)
	}
	sort.Strings(sessions)
	return sessions, nil
}
