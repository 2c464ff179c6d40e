package session

import (
	"context"
	"sync"
	"time"
)

// MemoryProvider keeps session data in process memory. Used in tests and as
// the single-node fallback when Redis is not configured. Expired sessions
// are dropped by Sweep, wired to the cron manager.
type MemoryProvider struct {
	mu       sync.RWMutex
	sessions map[string]*memorySession
	ttl      time.Duration
}

type memorySession struct {
	values    map[string]string
	touchedAt time.Time
}

// NewMemoryProvider creates an in-memory session store provider
func NewMemoryProvider(ttl time.Duration) *MemoryProvider {
	return &MemoryProvider{
		sessions: make(map[string]*memorySession),
		ttl:      ttl,
	}
}

// ForSession returns the store scoped to the given session ID
func (p *MemoryProvider) ForSession(id string) Store {
	return &memoryStore{provider: p, sessionID: id}
}

// EndSession drops all state for the session
func (p *MemoryProvider) EndSession(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.sessions, id)
	return nil
}

// Sweep removes sessions idle longer than the TTL and returns how many were
// dropped
func (p *MemoryProvider) Sweep() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	removed := 0
	now := time.Now()
	for id, s := range p.sessions {
		if now.Sub(s.touchedAt) > p.ttl {
			delete(p.sessions, id)
			removed++
		}
	}
	return removed
}

func (p *MemoryProvider) session(id string, create bool) *memorySession {
	s, ok := p.sessions[id]
	if !ok && create {
		s = &memorySession{values: make(map[string]string)}
		p.sessions[id] = s
	}
	return s
}

type memoryStore struct {
	provider  *MemoryProvider
	sessionID string
}

func (s *memoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.provider.mu.RLock()
	defer s.provider.mu.RUnlock()

	sess := s.provider.session(s.sessionID, false)
	if sess == nil || time.Since(sess.touchedAt) > s.provider.ttl {
		return "", false, nil
	}
	val, ok := sess.values[key]
	return val, ok, nil
}

func (s *memoryStore) Set(_ context.Context, key, value string) error {
	s.provider.mu.Lock()
	defer s.provider.mu.Unlock()

	sess := s.provider.session(s.sessionID, true)
	sess.values[key] = value
	sess.touchedAt = time.Now()
	return nil
}

func (s *memoryStore) Remove(_ context.Context, key string) error {
	s.provider.mu.Lock()
	defer s.provider.mu.Unlock()

	sess := s.provider.session(s.sessionID, false)
	if sess != nil {
		delete(sess.values, key)
	}
	return nil
}
