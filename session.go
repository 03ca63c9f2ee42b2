package mcp

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// ErrSessionNotFound is returned by SessionStore lookups when no session
// exists for the given id. Use errors.Is to test for it.
var ErrSessionNotFound = errors.New("session not found")

// Session represents a logical client connection lifecycle, independent of
// any single TCP/HTTP connection. A session with a nil ActivatedAt is
// pending: it has completed the initialize request but not yet sent the
// notifications/initialized handshake notification.
type Session struct {
	// ID is an opaque unique token identifying the session. It is immutable
	// once created.
	ID string
	// CreatedAt is the time the session was created.
	CreatedAt time.Time
	// ActivatedAt is set when the session completes the protocol handshake.
	// Once set it never reverts to nil except by removing the session.
	ActivatedAt *time.Time
}

// Active reports whether the session has completed the protocol handshake.
func (s Session) Active() bool {
	return s.ActivatedAt != nil
}

// SessionStore tracks sessions by id. All transitions on a given id are
// atomic with respect to concurrent callers: the store is safe for
// simultaneous use from transport handlers, the broker pipeline, and stream
// readers.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session

	clock clockwork.Clock
}

// SessionStoreOption represents the options for the SessionStore.
type SessionStoreOption func(*SessionStore)

// WithSessionStoreClock sets the clock used for session timestamps. This is
// mainly useful in tests.
func WithSessionStoreClock(clock clockwork.Clock) SessionStoreOption {
	return func(s *SessionStore) {
		s.clock = clock
	}
}

// NewSessionStore creates an empty session store.
func NewSessionStore(options ...SessionStoreOption) *SessionStore {
	s := &SessionStore{
		sessions: make(map[string]Session),
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Initialize creates a new pending session with a fresh unique id and inserts
// it into the store. It never fails.
func (s *SessionStore) Initialize() Session {
	sess := Session{
		ID:        uuid.New().String(),
		CreatedAt: s.clock.Now(),
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	return sess
}

// FindByID returns the session with the given id, or an error wrapping
// ErrSessionNotFound if no such session exists.
func (s *SessionStore) FindByID(id string) (Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// ActivateByID marks the session as activated and returns the updated
// session. Activation is idempotent: repeated calls advance the activation
// timestamp but the session stays activated. Returns an error wrapping
// ErrSessionNotFound if no such session exists.
func (s *SessionStore) ActivateByID(id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	now := s.clock.Now()
	sess.ActivatedAt = &now
	s.sessions[id] = sess

	return sess, nil
}

// DeactivateByID removes the session entirely. Removing a nonexistent id is
// not an error; the call is a no-op.
func (s *SessionStore) DeactivateByID(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}
