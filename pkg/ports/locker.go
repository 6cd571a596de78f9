package ports

import (
	"context"
	"time"
)

// Release gives a session lock back. Releasing a lock that already expired
// and was taken by another holder is a no-op.
type Release func(ctx context.Context) error

// SessionLocker serializes triggers for one session across processes sharing
// a journal backend. The in-process ordering is handled by session.Manager.
type SessionLocker interface {
	// Lock blocks until the session is held or ctx ends. The lock expires by
	// itself after ttl so a crashed holder cannot wedge the session.
	Lock(ctx context.Context, sessionID string, ttl time.Duration) (Release, error)
}
