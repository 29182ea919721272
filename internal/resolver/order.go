package resolver

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fluxbase-eu/criteria/internal/permit"
	"github.com/fluxbase-eu/criteria/internal/query"
)

// DefaultOrderLimit is the default maximum number of sort keys.
const DefaultOrderLimit = 10

// DefaultOrderMap returns the default order parameter map.
func DefaultOrderMap() ParameterMap {
	return ParameterMap{
		ParamDirection: ParamDirection,
		ParamNulls:     ParamNulls,
		ParamOrder:     ParamOrder,
	}
}

var (
	orderCallPattern  = regexp.MustCompile(`(?i)(asc|desc)\((\w+)\)`)
	orderSplitPattern = regexp.MustCompile(`\s*,\s*`)
)

// OrderResolver normalizes sort keys. It accepts:
//
//	?order=desc(Id)asc(Name)
//	?order=[{"property":"Id","direction":"desc","nulls":"last"}]
//	?order={"Id":"desc"}
//	?order=-Id,+Name
//	?order=Id&direction=desc&nulls=first
//	?order[Id]=desc
type OrderResolver struct {
	limit  int
	params ParameterMap
	permit *permit.Permit
}

// NewOrderResolver returns an order resolver with the default configuration
// and an empty permit.
func NewOrderResolver() *OrderResolver {
	return &OrderResolver{
		limit:  DefaultOrderLimit,
		params: DefaultOrderMap(),
		permit: permit.New(),
	}
}

func (r *OrderResolver) Name() string { return "order" }

// SetLimit sets the maximum number of sort keys.
func (r *OrderResolver) SetLimit(limit int) *OrderResolver {
	r.limit = limit
	return r
}

// SetParameterMap replaces the parameter map.
func (r *OrderResolver) SetParameterMap(m ParameterMap) *OrderResolver {
	r.params = m.Clone()
	return r
}

// SetPermit sets the field allow-list.
func (r *OrderResolver) SetPermit(p *permit.Permit) *OrderResolver {
	r.permit = p
	return r
}

// Resolve parses the order parameter and merges the sort keys into c.
func (r *OrderResolver) Resolve(q query.Query, c *Criteria) (*Criteria, bool) {
	raw := q[r.params.Key(ParamOrder)]
	if query.Empty(raw) {
		return c, false
	}

	var entries []query.Pair
	if s, ok := raw.(string); ok {
		entries = r.parse(s, q)
	} else {
		entries, _ = query.Entries(raw)
	}

	order := r.sanitize(entries)
	c = ensure(c)
	if order.Len() == 0 {
		return c, true
	}

	switch {
	case c.Order != nil:
		c.Order.Merge(order)
	case c.OrderClause != "":
		var sb strings.Builder
		sb.WriteString(c.OrderClause)
		for _, k := range order.Keys() {
			sb.WriteString(", " + k.Field + " " + k.Spec())
		}
		c.OrderClause = sb.String()
	default:
		c.Order = order
	}

	log.Debug().
		Str("order", order.String()).
		Msg("Order resolved")

	return c, true
}

// parse classifies an order string by shape and returns descriptor entries.
func (r *OrderResolver) parse(s string, q query.Query) []query.Pair {
	s = decode(s)

	switch {
	case strings.Contains(s, "("):
		var entries []query.Pair
		for _, m := range orderCallPattern.FindAllStringSubmatch(s, -1) {
			entries = append(entries, indexed(len(entries), query.Pairs{
				{Key: "property", Value: m[2]},
				{Key: "direction", Value: m[1]},
			}))
		}
		return entries

	case strings.Contains(s, "{"):
		decoded, err := query.DecodeJSON(s)
		if err != nil {
			log.Debug().Err(err).Msg("Order is not valid JSON")
			return nil
		}
		entries, _ := query.Entries(decoded)
		return entries

	case strings.Contains(s, ","):
		var entries []query.Pair
		for _, token := range orderSplitPattern.Split(s, -1) {
			property := strings.Trim(token, "-+ ")
			if property == "" {
				continue
			}
			direction := ASC
			if strings.HasPrefix(strings.TrimSpace(token), "-") {
				direction = DESC
			}
			entries = append(entries, indexed(len(entries), query.Pairs{
				{Key: "property", Value: property},
				{Key: "direction", Value: direction},
			}))
		}
		return entries
	}

	// A single field may carry a sign prefix instead of the direction param.
	s = strings.TrimSpace(s)
	var dir interface{} = q[r.params.Key(ParamDirection)]
	if strings.HasPrefix(s, "-") {
		dir = DESC
	} else if strings.HasPrefix(s, "+") {
		dir = ASC
	}

	return []query.Pair{indexed(0, query.Pairs{
		{Key: "property", Value: strings.TrimLeft(s, "-+ ")},
		{Key: "direction", Value: dir},
		{Key: "nulls", Value: q[r.params.Key(ParamNulls)]},
	})}
}

// sanitize keeps permitted fields, normalizes directions and nulls placement
// and stops after limit accepted keys.
func (r *OrderResolver) sanitize(entries []query.Pair) *Order {
	order := NewOrder()
	count := 0

	for _, e := range entries {
		if !query.IsIndex(e.Key) {
			if !r.permit.Has(e.Key) {
				log.Debug().Str("field", e.Key).Msg("Order field not permitted")
				continue
			}
			order.Set(e.Key, direction(e.Value), "")
		} else {
			if query.Classify(e.Value) != query.KindMap {
				continue
			}
			d := descriptor{e.Value}
			property := d.str("property")
			if property == "" || !r.permit.Has(property) {
				log.Debug().Str("field", property).Msg("Order field not permitted")
				continue
			}
			dir, _ := d.get("direction")
			nl, _ := d.get("nulls")
			order.Set(property, direction(dir), nulls(nl))
		}

		count++
		if count >= r.limit {
			break
		}
	}

	return order
}

func indexed(i int, v query.Pairs) query.Pair {
	return query.Pair{Key: query.String(i), Value: v}
}

// direction is DESC only for a case-insensitive "desc".
func direction(v interface{}) string {
	if s, ok := v.(string); ok && strings.EqualFold(s, DESC) {
		return DESC
	}
	return ASC
}

// nulls returns FIRST or LAST for a valid placement token, "" otherwise.
func nulls(v interface{}) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	switch strings.ToUpper(s) {
	case NullsFirst:
		return NullsFirst
	case NullsLast:
		return NullsLast
	}
	return ""
}
