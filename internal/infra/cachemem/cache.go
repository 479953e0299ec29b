// Package cachemem is the in-process verification cache used when no
// Redis address is configured.
package cachemem

import (
	"context"
	"errors"
	"sync"
	"time"

	"notary/internal/domain"
)

type memoryCache struct {
	mu      sync.Mutex
	now     func() time.Time
	data    map[string]*memoryEntry
	maxKeys int
}

type memoryEntry struct {
	record    domain.VerificationRecord
	expiresAt time.Time
}

type Config struct {
	Now     func() time.Time
	MaxKeys int
}

func New(cfg Config) domain.VerificationCache {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = 10000
	}
	return &memoryCache{
		now:     cfg.Now,
		data:    make(map[string]*memoryEntry),
		maxKeys: cfg.MaxKeys,
	}
}

func (m *memoryCache) Get(_ context.Context, key string) (*domain.VerificationRecord, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	if now.After(entry.expiresAt) {
		delete(m.data, key)
		return nil, nil
	}
	record := entry.record
	return &record, nil
}

func (m *memoryCache) Put(_ context.Context, key string, record domain.VerificationRecord, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.data[key]; !ok && len(m.data) >= m.maxKeys {
		m.gc(now)
	}
	if _, ok := m.data[key]; !ok && len(m.data) >= m.maxKeys {
		return errors.New("verification cache capacity exceeded")
	}
	m.data[key] = &memoryEntry{
		record:    record,
		expiresAt: now.Add(ttl),
	}
	return nil
}

func (m *memoryCache) gc(now time.Time) {
	for key, entry := range m.data {
		if now.After(entry.expiresAt) {
			delete(m.data, key)
		}
	}
}
