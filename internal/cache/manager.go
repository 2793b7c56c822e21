package cache

import (
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
)

// Manager checks the memory cache, then the disk cache, promoting disk hits
// into memory.
type Manager struct {
	l1 *MemoryCache
	l2 *DiskCache // nil when no disk path is configured

	mu         sync.Mutex
	promotions int64

	logger *log.Logger
}

// NewManager creates a cache manager from cfg.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.MemoryEntries <= 0 {
		cfg.MemoryEntries = DefaultConfig().MemoryEntries
	}

	l1, err := NewMemoryCache(cfg.MemoryEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}

	m := &Manager{
		l1:     l1,
		logger: log.Default().WithPrefix("cache"),
	}

	if cfg.DiskPath != "" {
		if cfg.DiskCapacity <= 0 {
			cfg.DiskCapacity = DefaultConfig().DiskCapacity
		}
		m.l2, err = NewDiskCache(cfg.DiskPath, cfg.DiskCapacity, cfg.CompressionLevel)
		if err != nil {
			return nil, fmt.Errorf("failed to create disk cache: %w", err)
		}
		m.logger.Debug("Disk cache ready",
			"path", cfg.DiskPath,
			"capacity", humanize.Bytes(uint64(cfg.DiskCapacity)))
	}

	return m, nil
}

// Get retrieves a payload from the cache hierarchy.
func (m *Manager) Get(key string) ([]byte, bool) {
	if data, ok := m.l1.Get(key); ok {
		return data, true
	}
	if m.l2 == nil {
		return nil, false
	}

	data, ok := m.l2.Get(key)
	if !ok {
		return nil, false
	}
	_ = m.l1.Put(key, data)

	m.mu.Lock()
	m.promotions++
	m.mu.Unlock()

	return data, true
}

// Put stores a payload in every level. An item too large for the disk cache
// is still kept in memory.
func (m *Manager) Put(key string, data []byte) error {
	if err := m.l1.Put(key, data); err != nil {
		return err
	}
	if m.l2 == nil {
		return nil
	}
	if err := m.l2.Put(key, data); err != nil && !errors.Is(err, ErrItemTooLarge) {
		return err
	}
	return nil
}

// Clear empties every level.
func (m *Manager) Clear() error {
	_ = m.l1.Clear()
	if m.l2 != nil {
		return m.l2.Clear()
	}
	return nil
}

// Stats returns per-level metrics.
func (m *Manager) Stats() (memory Stats, disk Stats, promotions int64) {
	memory = m.l1.Stats()
	if m.l2 != nil {
		disk = m.l2.Stats()
	}
	m.mu.Lock()
	promotions = m.promotions
	m.mu.Unlock()
	return memory, disk, promotions
}

// Close persists the disk index.
func (m *Manager) Close() error {
	if m.l2 == nil {
		return nil
	}
	if err := m.l2.Close(); err != nil {
		return fmt.Errorf("failed to close disk cache: %w", err)
	}
	return nil
}
