package database

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxbase-eu/criteria/internal/observability"
	"github.com/fluxbase-eu/criteria/internal/permit"
)

type stubSource struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *stubSource) Permit(ctx context.Context, schema, table string) (*permit.Permit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return permit.Strings(table + "_id"), nil
}

func (s *stubSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestMakeKey(t *testing.T) {
	tests := []struct {
		name     string
		schema   string
		table    string
		expected string
	}{
		{name: "public schema", schema: "public", table: "users", expected: "public.users"},
		{name: "custom schema", schema: "analytics", table: "events", expected: "analytics.events"},
		{name: "table with uppercase", schema: "public", table: "UserProfiles", expected: "public.UserProfiles"},
		{name: "empty schema", schema: "", table: "users", expected: ".users"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, makeKey(tt.schema, tt.table))
		})
	}
}

func TestPermitCache_Get(t *testing.T) {
	t.Run("loads once then hits", func(t *testing.T) {
		src := &stubSource{}
		cache := NewPermitCache(src, time.Minute)

		p, err := cache.Get(context.Background(), "public", "users")
		require.NoError(t, err)
		assert.True(t, p.Has("users_id"))

		again, err := cache.Get(context.Background(), "public", "users")
		require.NoError(t, err)
		assert.Same(t, p, again)
		assert.Equal(t, 1, src.Calls())
		assert.Equal(t, 1, cache.Len())
	})

	t.Run("tables are cached separately", func(t *testing.T) {
		src := &stubSource{}
		cache := NewPermitCache(src, time.Minute)

		_, _ = cache.Get(context.Background(), "public", "users")
		_, _ = cache.Get(context.Background(), "public", "orders")
		_, _ = cache.Get(context.Background(), "audit", "users")

		assert.Equal(t, 3, src.Calls())
		assert.Equal(t, 3, cache.Len())
	})

	t.Run("errors are not cached", func(t *testing.T) {
		src := &stubSource{err: ErrTableNotFound}
		cache := NewPermitCache(src, time.Minute)

		_, err := cache.Get(context.Background(), "public", "ghosts")
		assert.ErrorIs(t, err, ErrTableNotFound)
		assert.Equal(t, 0, cache.Len())

		src.err = nil
		_, err = cache.Get(context.Background(), "public", "ghosts")
		require.NoError(t, err)
		assert.Equal(t, 2, src.Calls())
	})
}

func TestPermitCache_Expiry(t *testing.T) {
	tests := []struct {
		name    string
		ttl     time.Duration
		advance time.Duration
		calls   int
	}{
		{name: "within ttl", ttl: time.Minute, advance: 30 * time.Second, calls: 1},
		{name: "past ttl", ttl: time.Minute, advance: 61 * time.Second, calls: 2},
		{name: "zero ttl never expires", ttl: 0, advance: 24 * time.Hour, calls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
			src := &stubSource{}
			cache := NewPermitCache(src, tt.ttl)
			cache.now = func() time.Time { return now }

			_, err := cache.Get(context.Background(), "public", "users")
			require.NoError(t, err)

			now = now.Add(tt.advance)
			_, err = cache.Get(context.Background(), "public", "users")
			require.NoError(t, err)

			assert.Equal(t, tt.calls, src.Calls())
		})
	}
}

func TestPermitCache_Invalidate(t *testing.T) {
	src := &stubSource{}
	cache := NewPermitCache(src, time.Minute)
	ctx := context.Background()

	_, _ = cache.Get(ctx, "public", "users")
	_, _ = cache.Get(ctx, "public", "orders")

	cache.Invalidate("public", "users")
	assert.Equal(t, 1, cache.Len())

	_, _ = cache.Get(ctx, "public", "users")
	assert.Equal(t, 3, src.Calls())

	cache.InvalidateAll()
	assert.Equal(t, 0, cache.Len())
}

func TestPermitCache_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetricsWithRegistry(reg, reg)

	cache := NewPermitCache(&stubSource{}, time.Minute)
	cache.SetMetrics(m)

	_, _ = cache.Get(context.Background(), "public", "users")
	_, _ = cache.Get(context.Background(), "public", "users")
	_, _ = cache.Get(context.Background(), "public", "users")

	families, err := reg.Gather()
	require.NoError(t, err)

	counts := map[string]float64{}
	for _, f := range families {
		if f.GetName() != "criteria_permit_lookups_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "result" {
					counts[label.GetValue()] = metric.GetCounter().GetValue()
				}
			}
		}
	}

	assert.Equal(t, map[string]float64{"hit": 2, "miss": 1}, counts)
}

func TestPermitCache_ConcurrentAccess(t *testing.T) {
	cache := NewPermitCache(&stubSource{}, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%10 == 0 {
				cache.InvalidateAll()
				return
			}
			p, err := cache.Get(context.Background(), "public", "users")
			assert.NoError(t, err)
			assert.True(t, p.Has("users_id"))
		}(i)
	}
	wg.Wait()
}
