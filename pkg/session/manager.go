package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/tapestry"
	"github.com/aretw0/tapestry/internal/logging"
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/ports"
	"github.com/google/uuid"
)

// DefaultLockTTL bounds how long a distributed session lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// Factory builds the engine for a new session.
type Factory func(ctx context.Context, sessionID string) (*tapestry.Engine, error)

// lockEntry holds the mutex and the number of callers holding or waiting on it.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager owns the live engines of a server and serializes access to each
// session. Lock entries are reference counted and dropped when unused.
type Manager struct {
	factory Factory
	journal ports.Journal

	mu       sync.Mutex
	locks    map[string]*lockEntry
	sessions map[string]*tapestry.Engine

	locker  ports.SessionLocker
	lockTTL time.Duration
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.SessionLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the distributed lock TTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithJournal lets Delete drop a session's history too.
func WithJournal(j ports.Journal) Option {
	return func(m *Manager) {
		m.journal = j
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a manager that builds sessions with factory.
func NewManager(factory Factory, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		factory:  factory,
		locks:    make(map[string]*lockEntry),
		sessions: make(map[string]*tapestry.Engine),
		lockTTL:  DefaultLockTTL,
		logger:   logging.NewNop(),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sessionID) after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// lockCount reports how many lock entries are live.
func (m *Manager) lockCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

// Create starts a session. An empty ID gets a fresh one; an existing ID
// returns the live engine.
func (m *Manager) Create(ctx context.Context, sessionID string) (*tapestry.Engine, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	var eng *tapestry.Engine
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		if existing, ok := m.lookup(sessionID); ok {
			eng = existing
			return nil
		}
		created, err := m.factory(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		if _, err := created.StartServing(m.ctx); err != nil {
			created.Close()
			return err
		}
		m.mu.Lock()
		m.sessions[sessionID] = created
		m.mu.Unlock()
		m.logger.Info("Session created", "session_id", sessionID)
		eng = created
		return nil
	})
	return eng, err
}

// Get returns the live engine for sessionID.
func (m *Manager) Get(sessionID string) (*tapestry.Engine, error) {
	if eng, ok := m.lookup(sessionID); ok {
		return eng, nil
	}
	return nil, fmt.Errorf("%q: %w", sessionID, domain.ErrSessionNotFound)
}

func (m *Manager) lookup(sessionID string) (*tapestry.Engine, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	eng, ok := m.sessions[sessionID]
	return eng, ok
}

// Do runs fn on the session's interaction goroutine while holding its lock.
func (m *Manager) Do(ctx context.Context, sessionID string, fn func(ctx context.Context, eng *tapestry.Engine) error) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		eng, err := m.Get(sessionID)
		if err != nil {
			return err
		}
		return eng.Do(ctx, func() error { return fn(ctx, eng) })
	})
}

// Delete stops the session and removes its journal history.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		m.mu.Lock()
		eng, ok := m.sessions[sessionID]
		delete(m.sessions, sessionID)
		m.mu.Unlock()
		if !ok {
			return fmt.Errorf("%q: %w", sessionID, domain.ErrSessionNotFound)
		}
		eng.Close()
		if m.journal != nil {
			if err := m.journal.Delete(ctx, sessionID); err != nil {
				return fmt.Errorf("failed to delete journal: %w", err)
			}
		}
		m.logger.Info("Session deleted", "session_id", sessionID)
		return nil
	})
}

// List returns the live session IDs in order.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Journal returns the journal sessions write to, if any.
func (m *Manager) Journal() ports.Journal {
	return m.journal
}

// Close stops every session.
func (m *Manager) Close() {
	m.cancel()
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*tapestry.Engine)
	m.mu.Unlock()
	for _, eng := range sessions {
		eng.Close()
	}
}

// WithLock executes a function while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
