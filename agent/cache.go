package agent

import (
	"context"
	"sync"

	"github.com/tbxark/rneagent/types"
)

// SessionCache persists sessions under namespaced keys. Sessions live only as long as the
// process; another backend can be plugged in through NewSessionStore.
type SessionCache interface {
	Load(ctx context.Context, key string) (*types.Session, bool, error)
	Save(ctx context.Context, key string, session *types.Session) error
	Delete(ctx context.Context, key string) error
}

// MemorySessionCache keeps private copies, so a caller never shares memory with the cache.
type MemorySessionCache struct {
	mu       sync.RWMutex
	sessions map[string]*types.Session
}

func NewMemorySessionCache() *MemorySessionCache {
	return &MemorySessionCache{sessions: map[string]*types.Session{}}
}

func (m *MemorySessionCache) Load(ctx context.Context, key string) (*types.Session, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[key]
	if !ok {
		return nil, false, nil
	}
	return session.Clone(), true, nil
}

func (m *MemorySessionCache) Save(ctx context.Context, key string, session *types.Session) error {
	snapshot := session.Clone()
	m.mu.Lock()
	m.sessions[key] = snapshot
	m.mu.Unlock()
	return nil
}

func (m *MemorySessionCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.sessions, key)
	m.mu.Unlock()
	return nil
}

func (m *MemorySessionCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
