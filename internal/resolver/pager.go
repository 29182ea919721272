package resolver

import (
	"math"
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/fluxbase-eu/criteria/internal/query"
)

// DefaultMaxLimit is the ceiling of the default bounded strategy.
const DefaultMaxLimit = 100

// DefaultPageSizes is the default page size enumeration.
var DefaultPageSizes = []int{1, 5, 10, 15, 20, 25, 50, 100, 200}

// DefaultPagerMap returns the default pager parameter map.
func DefaultPagerMap() ParameterMap {
	return ParameterMap{
		ParamLimit:  ParamLimit,
		ParamOffset: ParamOffset,
		ParamPage:   ParamPage,
	}
}

// LimitStrategy turns a requested page size into an allowed one. present is
// false when the query has no limit.
type LimitStrategy interface {
	Limit(requested int, present bool) int
}

// PageSizes allows only the enumerated sizes; anything else falls back to the
// smallest size.
type PageSizes []int

func (s PageSizes) Limit(requested int, present bool) int {
	if len(s) == 0 {
		return 1
	}
	if present {
		for _, size := range s {
			if size == requested {
				return size
			}
		}
	}
	return slices.Min(s)
}

// MaxLimit clamps the size into [1, MaxLimit].
type MaxLimit int

func (m MaxLimit) Limit(requested int, present bool) int {
	ceiling := int(m)
	if ceiling < 1 {
		ceiling = DefaultMaxLimit
	}
	if !present || requested < 1 {
		return 1
	}
	if requested > ceiling {
		return ceiling
	}
	return requested
}

// PagerResolver normalizes limit, offset and page so that
// offset == limit*(page-1). It only runs when offset or page is present.
type PagerResolver struct {
	params   ParameterMap
	strategy LimitStrategy
}

// NewPagerResolver returns a pager with the bounded strategy and a ceiling of
// DefaultMaxLimit.
func NewPagerResolver() *PagerResolver {
	return &PagerResolver{
		params:   DefaultPagerMap(),
		strategy: MaxLimit(DefaultMaxLimit),
	}
}

func (r *PagerResolver) Name() string { return "pager" }

// SetParameterMap replaces the parameter map.
func (r *PagerResolver) SetParameterMap(m ParameterMap) *PagerResolver {
	r.params = m.Clone()
	return r
}

// SetStrategy replaces the limit strategy.
func (r *PagerResolver) SetStrategy(s LimitStrategy) *PagerResolver {
	if s != nil {
		r.strategy = s
	}
	return r
}

// SetPageSizes switches to the enumerated strategy.
func (r *PagerResolver) SetPageSizes(sizes ...int) *PagerResolver {
	s := make(PageSizes, len(sizes))
	copy(s, sizes)
	return r.SetStrategy(s)
}

// SetMaxLimit switches to the bounded strategy.
func (r *PagerResolver) SetMaxLimit(ceiling int) *PagerResolver {
	return r.SetStrategy(MaxLimit(ceiling))
}

// Resolve writes Limit, Offset and Page into c. A positive c.Limit is reused.
func (r *PagerResolver) Resolve(q query.Query, c *Criteria) (*Criteria, bool) {
	offsetValue, hasOffset := present(q, r.params.Key(ParamOffset))
	pageValue, hasPage := present(q, r.params.Key(ParamPage))
	if !hasOffset && !hasPage {
		return c, false
	}

	c = ensure(c)

	var limit int
	if c.Limit != nil && *c.Limit > 0 {
		limit = *c.Limit
	} else {
		requested, hasLimit := present(q, r.params.Key(ParamLimit))
		limit = r.strategy.Limit(query.Int(requested), hasLimit)
		if hasLimit && limit != query.Int(requested) {
			log.Debug().
				Int("requested", query.Int(requested)).
				Int("limit", limit).
				Msg("Limit adjusted")
		}
	}

	var offset, page int
	if hasOffset {
		offset = query.Int(offsetValue)
		if offset < 0 {
			offset = 0
		} else if offset%limit != 0 {
			if offset > math.MaxInt-limit {
				offset = (math.MaxInt / limit) * limit
			} else {
				offset = (offset/limit + 1) * limit
			}
		}
		page = offset/limit + 1
	} else {
		page = query.Int(pageValue)
		if page < 1 {
			page = 1
		}
		if maxPage := math.MaxInt/limit + 1; page > maxPage {
			page = maxPage
		}
		offset = limit * (page - 1)
	}

	c.Limit = IntPtr(limit)
	c.Offset = IntPtr(offset)
	c.Page = IntPtr(page)

	return c, true
}

func present(q query.Query, key string) (interface{}, bool) {
	v, ok := q[key]
	return v, ok && v != nil
}
