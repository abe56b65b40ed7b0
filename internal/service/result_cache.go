package service

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"votecore/internal/domain"
)

// ResultCache stores result snapshots per poll with a TTL.
//
// Every Invalidate bumps a per-poll generation. A caller reads Generation
// before computing a snapshot and passes it to Put; Put refuses to store when
// the generation has moved on, so a snapshot computed before a vote was
// committed can never overwrite the invalidation that vote caused.
type ResultCache interface {
	// Get returns the cached snapshot or domain.ErrCacheMiss
	Get(ctx context.Context, pollID string) (*domain.ResultSnapshot, error)

	// Put stores snapshot if generation is still current; it reports whether it stored
	Put(ctx context.Context, pollID string, snapshot *domain.ResultSnapshot, generation int64, ttl time.Duration) (bool, error)

	// Invalidate drops the cached snapshot and advances the generation
	Invalidate(ctx context.Context, pollID string) error

	// Generation returns the current invalidation generation for pollID
	Generation(ctx context.Context, pollID string) (int64, error)
}

// MemoryResultCache is a process-local ResultCache used when Redis is not configured
type MemoryResultCache struct {
	mu          sync.Mutex
	entries     *gocache.Cache
	generations map[string]int64
}

func NewMemoryResultCache(cleanupInterval time.Duration) *MemoryResultCache {
	return &MemoryResultCache{
		entries:     gocache.New(gocache.NoExpiration, cleanupInterval),
		generations: make(map[string]int64),
	}
}

func (c *MemoryResultCache) Get(ctx context.Context, pollID string) (*domain.ResultSnapshot, error) {
	v, ok := c.entries.Get(pollID)
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	return v.(*domain.ResultSnapshot).Clone(), nil
}

func (c *MemoryResultCache) Put(ctx context.Context, pollID string, snapshot *domain.ResultSnapshot, generation int64, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generations[pollID] != generation {
		return false, nil
	}
	c.entries.Set(pollID, snapshot.Clone(), ttl)
	return true, nil
}

func (c *MemoryResultCache) Invalidate(ctx context.Context, pollID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generations[pollID]++
	c.entries.Delete(pollID)
	return nil
}

func (c *MemoryResultCache) Generation(ctx context.Context, pollID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[pollID], nil
}
