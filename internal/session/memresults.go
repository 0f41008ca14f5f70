package session

import (
	"context"
	"sync"
)

// MemResults is an in-memory ResultStore used in tests and when no
// DATABASE_URL is configured.
type MemResults struct {
	mu      sync.RWMutex
	results map[string]Session
}

func NewMemResults() *MemResults {
	return &MemResults{results: make(map[string]Session)}
}

func (m *MemResults) SaveResult(_ context.Context, sess *Session) error {
	if sess == nil {
		return ErrInvalidArgs
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[sess.ID] = *sess
	return nil
}

func (m *MemResults) WinCount(_ context.Context, userID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, s := range m.results {
		if s.WinnerID == userID {
			n++
		}
	}
	return n, nil
}
