package state

import (
	"context"
	"sync"
	"time"
)

type memoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]Session
	now      func() time.Time
}

// NewMemoryStore constructs an in-process Store. Sessions are lost on restart.
func NewMemoryStore() Store {
	return &memoryStore{
		sessions: make(map[int64]Session),
		now:      time.Now,
	}
}

// Get returns a copy of the stored session, or an idle session if none exists.
func (m *memoryStore) Get(_ context.Context, chatID int64) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if s, ok := m.sessions[chatID]; ok {
		return s.Clone(), nil
	}
	return NewSession(chatID), nil
}

// Save stores a copy of s. Saving an idle session removes it.
func (m *memoryStore) Save(_ context.Context, s *Session) error {
	if s == nil {
		return ErrNilSession
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if !s.Active() {
		delete(m.sessions, s.ChatID)
		return nil
	}
	s.UpdatedAt = m.now()
	m.sessions[s.ChatID] = s.Clone()
	return nil
}

// Clear removes the entire session for a chat.
func (m *memoryStore) Clear(_ context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, chatID)
	return nil
}

// InProgress reports whether the chat has an active session.
func (m *memoryStore) InProgress(_ context.Context, chatID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[chatID]
	return ok && s.Active()
}
