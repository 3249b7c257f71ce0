package repository

import (
	"context"
	"sync"
	"time"
)

// MemoryStateRepository is the in-process fallback for tests and redis
// outages. Semantics match the redis repository.
type MemoryStateRepository struct {
	mu        sync.Mutex
	quotas    map[string]*quotaEntry
	processed map[string]time.Time
}

type quotaEntry struct {
	count     int
	expiresAt time.Time
}

func NewMemoryStateRepository() *MemoryStateRepository {
	return &MemoryStateRepository{
		quotas:    make(map[string]*quotaEntry),
		processed: make(map[string]time.Time),
	}
}

func (r *MemoryStateRepository) CheckQuota(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	entry, ok := r.quotas[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &quotaEntry{count: 0, expiresAt: now.Add(window)}
		r.quotas[key] = entry
	}

	entry.count++
	if entry.count > limit {
		return false, time.Until(entry.expiresAt), nil
	}
	return true, 0, nil
}

func (r *MemoryStateRepository) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if expiry, ok := r.processed[key]; ok && now.Before(expiry) {
		return false, nil
	}
	r.processed[key] = now.Add(ttl)
	return true, nil
}
