package cache

import (
	"sync"

	"go.uber.org/zap"
)

// Manager hands out the cache of the current index version. A newer
// version replaces the current cache; checkouts of the old one stay valid
// until released.
type Manager struct {
	mu      sync.Mutex
	size    int
	current *Cache
	log     *zap.Logger
}

// NewManager creates a manager whose caches hold up to size entries.
func NewManager(size int, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{size: size, log: log}
}

// Acquire checks out the cache for version. The caller must Release it.
// Versions older than the current one get a private cache that is dropped
// with its last release.
func (m *Manager) Acquire(version int64) *Cache {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.current != nil && m.current.version == version:
	case m.current != nil && version < m.current.version:
		c := newCache(version, m.size)
		c.refs.Add(1)
		return c
	default:
		if m.current != nil {
			m.log.Debug("replacing entity cache",
				zap.Int64("old_version", m.current.version),
				zap.Int64("new_version", version))
			m.current.Release()
		}
		m.current = newCache(version, m.size)
		m.current.refs.Add(1)
	}
	m.current.refs.Add(1)
	return m.current
}

// Current returns the cache of the newest version without checking it out.
func (m *Manager) Current() *Cache {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Close drops the manager's reference to the current cache.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.current.Release()
		m.current = nil
	}
}
