package session

import (
	"context"
	"sync"
	"time"

	domain "github.com/bryanwahyu/heartscan/internal/domain/users"
)

type entry struct {
	sess    domain.Session
	expires time.Time
}

// sweepEvery bounds how often Save walks the map for expired sessions.
const sweepEvery = time.Minute

// MemoryStore is the single-process fallback when no Redis is configured.
type MemoryStore struct {
	mu        sync.RWMutex
	data      map[string]entry
	now       func() time.Time
	lastSweep time.Time
}

func NewMemory() *MemoryStore {
	return &MemoryStore{data: make(map[string]entry), now: time.Now}
}

func (m *MemoryStore) Save(ctx context.Context, s domain.Session, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if now.Sub(m.lastSweep) >= sweepEvery {
		m.sweep(now)
	}
	m.data[s.ID] = entry{sess: s, expires: now.Add(ttl)}
	return nil
}

// sweep drops sessions that expired without being read again. Callers hold mu.
func (m *MemoryStore) sweep(now time.Time) {
	for id, e := range m.data {
		if now.After(e.expires) {
			delete(m.data, id)
		}
	}
	m.lastSweep = now
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	m.mu.RLock()
	e, ok := m.data[id]
	m.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNoSession
	}
	if m.now().After(e.expires) {
		_ = m.Delete(ctx, id)
		return nil, domain.ErrNoSession
	}
	s := e.sess
	return &s, nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, id)
	return nil
}
