package resolver

import (
	"time"

	"github.com/fluxbase-eu/criteria/internal/query"
)

// Observer is notified after each resolver of a chain has run.
type Observer func(name string, matched bool, elapsed time.Duration)

// Chain runs resolvers in sequence against one query and one criteria.
type Chain struct {
	resolvers []Resolver
	observer  Observer
}

// NewChain returns a chain of the given resolvers.
func NewChain(resolvers ...Resolver) *Chain {
	return &Chain{resolvers: resolvers}
}

// NewDefaultChain chains filter, order and pager resolvers and reserves the
// order and pager keys so they are never read as implicit filter fields.
func NewDefaultChain(filter *FilterResolver, order *OrderResolver, pager *PagerResolver) *Chain {
	reserved := append(order.params.QueryKeys(), pager.params.QueryKeys()...)
	filter.SetReserved(reserved...)
	return NewChain(filter, order, pager)
}

// SetObserver installs fn as the chain observer.
func (ch *Chain) SetObserver(fn Observer) *Chain {
	ch.observer = fn
	return ch
}

func (ch *Chain) Name() string { return "chain" }

// Resolve runs every resolver and reports whether any matched.
func (ch *Chain) Resolve(q query.Query, c *Criteria) (*Criteria, bool) {
	c, matched := ch.ResolveAll(q, c)
	return c, len(matched) > 0
}

// ResolveAll runs every resolver and returns the names of those that matched.
// The returned criteria is never nil.
func (ch *Chain) ResolveAll(q query.Query, c *Criteria) (*Criteria, []string) {
	c = ensure(c)
	var matched []string

	for _, r := range ch.resolvers {
		start := time.Now()
		_, ok := r.Resolve(q, c)
		if ch.observer != nil {
			ch.observer(nameOf(r), ok, time.Since(start))
		}
		if ok {
			matched = append(matched, nameOf(r))
		}
	}

	return c, matched
}
