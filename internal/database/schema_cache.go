package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fluxbase-eu/criteria/internal/observability"
	"github.com/fluxbase-eu/criteria/internal/permit"
)

// PermitSource produces the permit of a table
type PermitSource interface {
	Permit(ctx context.Context, schema, table string) (*permit.Permit, error)
}

type cachedPermit struct {
	permit    *permit.Permit
	fetchedAt time.Time
}

// PermitCache provides a thread-safe cache of introspected permits with
// TTL-based expiration and manual invalidation support.
type PermitCache struct {
	mu      sync.RWMutex
	entries map[string]cachedPermit
	source  PermitSource
	ttl     time.Duration
	metrics *observability.Metrics
	now     func() time.Time
}

// NewPermitCache creates a new permit cache with the given TTL. A TTL of
// zero or less never expires entries.
func NewPermitCache(source PermitSource, ttl time.Duration) *PermitCache {
	return &PermitCache{
		entries: make(map[string]cachedPermit),
		source:  source,
		ttl:     ttl,
		now:     time.Now,
	}
}

// SetMetrics sets the metrics instance for recording cache hits and misses
func (c *PermitCache) SetMetrics(m *observability.Metrics) {
	c.metrics = m
}

// makeKey creates a cache key from schema and table name
func makeKey(schema, table string) string {
	return fmt.Sprintf("%s.%s", schema, table)
}

func (c *PermitCache) expired(e cachedPermit) bool {
	return c.ttl > 0 && c.now().Sub(e.fetchedAt) > c.ttl
}

// Get returns the permit of schema.table, loading it from the source when it
// is missing or expired. Errors are not cached.
func (c *PermitCache) Get(ctx context.Context, schema, table string) (*permit.Permit, error) {
	key := makeKey(schema, table)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && !c.expired(entry) {
		c.record(true)
		return entry.permit, nil
	}
	c.record(false)

	p, err := c.source.Permit(ctx, schema, table)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = cachedPermit{permit: p, fetchedAt: c.now()}
	c.mu.Unlock()

	log.Debug().Str("table", key).Int("fields", p.Len()).Msg("Permit cached")

	return p, nil
}

func (c *PermitCache) record(hit bool) {
	if c.metrics != nil {
		c.metrics.RecordPermitLookup(hit)
	}
}

// Invalidate drops the cached permit of schema.table
func (c *PermitCache) Invalidate(schema, table string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, makeKey(schema, table))
}

// InvalidateAll drops every cached permit
func (c *PermitCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cachedPermit)
	log.Debug().Msg("Permit cache invalidated")
}

// Len returns the number of cached permits, expired ones included
func (c *PermitCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
