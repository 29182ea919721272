package resolver

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/fluxbase-eu/criteria/internal/predicate"
)

// Criteria accumulates what the resolvers produce for one query.
type Criteria struct {
	Where *predicate.Set
	Order *Order
	// OrderClause is a raw ORDER BY fragment preset by the caller. When it is
	// set and Order is nil, resolved sort keys are appended to it.
	OrderClause string
	Limit       *int
	Offset      *int
	Page        *int
}

// IntPtr returns a pointer to n.
func IntPtr(n int) *int {
	return &n
}

// criteriaJSON is the wire form of Criteria.
type criteriaJSON struct {
	Where       string `json:"where,omitempty"`
	Order       *Order `json:"order,omitempty"`
	OrderClause string `json:"order_clause,omitempty"`
	Limit       *int   `json:"limit,omitempty"`
	Offset      *int   `json:"offset,omitempty"`
	Page        *int   `json:"page,omitempty"`
}

// MarshalJSON renders the predicate tree as text and the order as an object
// in sort order.
func (c *Criteria) MarshalJSON() ([]byte, error) {
	out := criteriaJSON{
		OrderClause: c.OrderClause,
		Limit:       c.Limit,
		Offset:      c.Offset,
		Page:        c.Page,
	}
	if c.Where != nil {
		out.Where = c.Where.String()
	}
	if c.Order != nil && c.Order.Len() > 0 {
		out.Order = c.Order
	}
	return json.Marshal(out)
}

// Direction values.
const (
	ASC  = "ASC"
	DESC = "DESC"
)

// Nulls placement values.
const (
	NullsFirst = "FIRST"
	NullsLast  = "LAST"
)

// SortKey is one ORDER BY entry.
type SortKey struct {
	Field     string
	Direction string
	Nulls     string
}

// Spec returns the direction with its nulls placement, e.g. "DESC NULLS LAST".
func (k SortKey) Spec() string {
	if k.Nulls == "" {
		return k.Direction
	}
	return k.Direction + " NULLS " + k.Nulls
}

// Order is an ordered mapping of field to direction. Setting a field again
// replaces its direction and keeps its position.
type Order struct {
	keys  []SortKey
	index map[string]int
}

// NewOrder returns an empty order.
func NewOrder() *Order {
	return &Order{index: map[string]int{}}
}

// Set adds or replaces the sort key for field.
func (o *Order) Set(field, direction, nulls string) *Order {
	key := SortKey{Field: field, Direction: direction, Nulls: nulls}
	if i, ok := o.index[field]; ok {
		o.keys[i] = key
		return o
	}
	if o.index == nil {
		o.index = map[string]int{}
	}
	o.index[field] = len(o.keys)
	o.keys = append(o.keys, key)
	return o
}

// Get returns the direction spec of field.
func (o *Order) Get(field string) (string, bool) {
	if o == nil {
		return "", false
	}
	i, ok := o.index[field]
	if !ok {
		return "", false
	}
	return o.keys[i].Spec(), true
}

// Keys returns the sort keys in order.
func (o *Order) Keys() []SortKey {
	if o == nil {
		return nil
	}
	out := make([]SortKey, len(o.keys))
	copy(out, o.keys)
	return out
}

// Len returns the number of sort keys.
func (o *Order) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Merge sets every key of other on o.
func (o *Order) Merge(other *Order) *Order {
	for _, k := range other.Keys() {
		o.Set(k.Field, k.Direction, k.Nulls)
	}
	return o
}

// Map returns field to direction spec.
func (o *Order) Map() map[string]string {
	out := make(map[string]string, o.Len())
	for _, k := range o.Keys() {
		out[k.Field] = k.Spec()
	}
	return out
}

// String renders "Id DESC, Name ASC".
func (o *Order) String() string {
	parts := make([]string, 0, o.Len())
	for _, k := range o.Keys() {
		parts = append(parts, k.Field+" "+k.Spec())
	}
	return strings.Join(parts, ", ")
}

// MarshalJSON writes the order as a JSON object in sort order.
func (o *Order) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		field, err := json.Marshal(k.Field)
		if err != nil {
			return nil, err
		}
		spec, err := json.Marshal(k.Spec())
		if err != nil {
			return nil, err
		}
		buf.Write(field)
		buf.WriteByte(':')
		buf.Write(spec)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
