package resolver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxbase-eu/criteria/internal/permit"
	"github.com/fluxbase-eu/criteria/internal/query"
)

func newDefaultChain(p *permit.Permit) *Chain {
	return NewDefaultChain(
		NewFilterResolver().SetPermit(p),
		NewOrderResolver().SetPermit(p),
		NewPagerResolver(),
	)
}

func TestChain_ResolveAll(t *testing.T) {
	q := query.MustParse("Id=1&order=-Name&page=2&limit=20")

	c, matched := newDefaultChain(testPermit()).ResolveAll(q, nil)
	require.NotNil(t, c)
	assert.Equal(t, []string{"filter", "order", "pager"}, matched)
	assert.Equal(t, "Id = 1", c.Where.String())
	assert.Equal(t, "Name DESC", c.Order.String())
	assert.Equal(t, 20, *c.Limit)
	assert.Equal(t, 20, *c.Offset)
	assert.Equal(t, 2, *c.Page)
}

func TestChain_NothingMatched(t *testing.T) {
	ch := newDefaultChain(testPermit())

	c, matched := ch.ResolveAll(query.Query{}, nil)
	require.NotNil(t, c)
	assert.Empty(t, matched)

	_, ok := ch.Resolve(query.Query{}, nil)
	assert.False(t, ok)
}

func TestChain_ReservesOrderAndPagerKeys(t *testing.T) {
	// Fields named like pager parameters must not become implicit filters.
	p := permit.Strings("Id", "page", "limit", "order")

	c, matched := newDefaultChain(p).ResolveAll(query.MustParse("Id=3&page=2&limit=5&order=Id"), nil)
	assert.Equal(t, []string{"filter", "order", "pager"}, matched)
	assert.Equal(t, "Id = 3", c.Where.String())

	unreserved := NewChain(NewFilterResolver().SetPermit(p))
	c, _ = unreserved.ResolveAll(query.MustParse("Id=3&page=2"), nil)
	assert.Equal(t, "Id = 3 AND page = 2", c.Where.String())
}

func TestChain_Observer(t *testing.T) {
	type call struct {
		name    string
		matched bool
	}
	var calls []call

	ch := newDefaultChain(testPermit()).SetObserver(func(name string, matched bool, elapsed time.Duration) {
		assert.GreaterOrEqual(t, elapsed, time.Duration(0))
		calls = append(calls, call{name, matched})
	})

	_, ok := ch.Resolve(query.Query{"order": "Id"}, nil)
	assert.True(t, ok)
	assert.Equal(t, []call{
		{"filter", false},
		{"order", true},
		{"pager", false},
	}, calls)
}

type unnamed struct{}

func (unnamed) Resolve(_ query.Query, c *Criteria) (*Criteria, bool) {
	c.OrderClause = "1"
	return c, true
}

func TestChain_UnnamedResolver(t *testing.T) {
	c, matched := NewChain(unnamed{}).ResolveAll(nil, nil)
	assert.Equal(t, "1", c.OrderClause)
	require.Len(t, matched, 1)
	assert.NotEmpty(t, matched[0])
	assert.Equal(t, "chain", NewChain().Name())
}
