// Package session provides a volatile SessionStore implementation storing
// sessions in a process local map. It is safe for concurrent access and best
// suited for tests or ephemeral demo servers. Each returned session is cloned
// to prevent external mutation of internal state.
package session

import (
	"fmt"
	"sync"

	"github.com/convoworks/scenariomesh/core"
)

type sessionKey struct {
	tenantID  string
	sessionID string
}

// InMemoryStore is an in-memory core.SessionStore with optimistic
// concurrency: Save is a compare-and-swap on TurnCount, so a lost update
// (two writers racing on the same session) surfaces as ErrConflict instead
// of silently clobbering state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[sessionKey]*core.Session
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: map[sessionKey]*core.Session{}}
}

// Create allocates a new session. Returns ErrConflict if one already exists.
func (s *InMemoryStore) Create(tenantID, sessionID string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sessionKey{tenantID, sessionID}
	if _, exists := s.sessions[key]; exists {
		return nil, fmt.Errorf("session %s exists: %w", sessionID, core.ErrConflict)
	}
	sess := core.NewSession(tenantID, sessionID)
	s.sessions[key] = sess
	return sess.Clone(), nil
}

// Load returns a clone of an existing session, creating it lazily when absent.
func (s *InMemoryStore) Load(tenantID, sessionID string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sessionKey{tenantID, sessionID}
	sess, ok := s.sessions[key]
	if !ok {
		sess = core.NewSession(tenantID, sessionID)
		s.sessions[key] = sess
	}
	return sess.Clone(), nil
}

// Save persists a clone of the session iff the stored TurnCount still equals
// expectedTurn.
func (s *InMemoryStore) Save(sess *core.Session, expectedTurn int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sessionKey{sess.TenantID, sess.ID}
	stored, ok := s.sessions[key]
	if !ok {
		return fmt.Errorf("session %s: %w", sess.ID, core.ErrNotFound)
	}
	if stored.TurnCount != expectedTurn {
		return fmt.Errorf("session %s at turn %d, expected %d: %w",
			sess.ID, stored.TurnCount, expectedTurn, core.ErrConflict)
	}
	s.sessions[key] = sess.Clone()
	return nil
}
