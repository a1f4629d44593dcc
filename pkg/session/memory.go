package session

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// MemoryStore implements Store using an in-memory map. It preserves
// insertion order for FindByStates so listings are stable.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	order    []string
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
	}
}

// Insert persists a new session record.
func (s *MemoryStore) Insert(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess.ID]; ok {
		return fmt.Errorf("session %s already exists", sess.ID)
	}
	cp := *sess
	s.sessions[sess.ID] = &cp
	s.order = append(s.order, sess.ID)
	return nil
}

// FindByID retrieves a session by ID. Returns nil, nil if not found.
func (s *MemoryStore) FindByID(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, nil //nolint:nilnil // Store interface specifies nil,nil for not-found
	}
	cp := *sess
	return &cp, nil
}

// FindByStates returns all sessions whose state is in the given set, in
// insertion order. An empty set matches every session.
func (s *MemoryStore) FindByStates(_ context.Context, states ...State) ([]*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Session, 0, len(s.order))
	for _, id := range s.order {
		sess := s.sessions[id]
		if len(states) == 0 || slices.Contains(states, sess.State) {
			cp := *sess
			result = append(result, &cp)
		}
	}
	return result, nil
}

// CountByStates counts sessions whose state is in the given set.
func (s *MemoryStore) CountByStates(_ context.Context, states ...State) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, sess := range s.sessions {
		if len(states) == 0 || slices.Contains(states, sess.State) {
			count++
		}
	}
	return count, nil
}

// UpdateFields applies a field-level update to the session.
func (s *MemoryStore) UpdateFields(_ context.Context, id string, fields Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("session %s not found", id)
	}
	for name, value := range fields {
		switch name {
		case FieldState:
			state, ok := value.(State)
			if !ok {
				return fmt.Errorf("field %s: expected State, got %T", name, value)
			}
			sess.State = state
		case FieldAudioTimestamp:
			ts, ok := value.(time.Time)
			if !ok {
				return fmt.Errorf("field %s: expected time.Time, got %T", name, value)
			}
			sess.AudioTimestamp = &ts
		default:
			return fmt.Errorf("unknown field %s", name)
		}
	}
	return nil
}

// Delete removes the session record.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	s.order = slices.DeleteFunc(s.order, func(existing string) bool {
		return existing == id
	})
	return nil
}

// Verify interface compliance.
var _ Store = (*MemoryStore)(nil)
