// Package predicate models a boolean filter tree: leaf comparisons joined by
// AND/OR with bracketed sub-groups. Value operands hold already escaped SQL
// text; identifiers hold bare field names.
package predicate

import "strings"

// Join is the logical operator that links an item to the one before it.
type Join string

const (
	JoinAnd Join = "AND"
	JoinOr  Join = "OR"
)

// Expr is a node of the tree: a leaf or a nested *Set.
type Expr interface {
	String() string
}

// Item is an expression together with the join linking it to its predecessor.
// The join of the first item in a set is not rendered.
type Item struct {
	Join Join
	Expr Expr
}

// Set is an ordered group of items. The zero value is an empty set.
type Set struct {
	Items []Item
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{}
}

// Append adds expr joined by join.
func (s *Set) Append(join Join, expr Expr) {
	if expr == nil {
		return
	}
	if join != JoinOr {
		join = JoinAnd
	}
	s.Items = append(s.Items, Item{Join: join, Expr: expr})
}

// AddPredicates appends other as a single AND-joined group.
func (s *Set) AddPredicates(other *Set) {
	if other == nil || other.Len() == 0 {
		return
	}
	s.Append(JoinAnd, other)
}

// Len returns the number of leaves in the tree, counting nested sets
// recursively.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, item := range s.Items {
		if nested, ok := item.Expr.(*Set); ok {
			n += nested.Len()
			continue
		}
		n++
	}
	return n
}

// Empty reports whether the tree has no leaves.
func (s *Set) Empty() bool {
	return s.Len() == 0
}

// Identifiers returns every field name referenced by a leaf, in tree order
// and without duplicates.
func (s *Set) Identifiers() []string {
	seen := map[string]bool{}
	var out []string
	s.Walk(func(expr Expr) {
		for _, name := range identifiersOf(expr) {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	})
	return out
}

// Walk calls fn for every leaf in tree order.
func (s *Set) Walk(fn func(Expr)) {
	if s == nil {
		return
	}
	for _, item := range s.Items {
		if nested, ok := item.Expr.(*Set); ok {
			nested.Walk(fn)
			continue
		}
		fn(item.Expr)
	}
}

// String renders the tree for debugging and logging. Empty groups are
// omitted.
func (s *Set) String() string {
	if s == nil {
		return ""
	}
	var sb strings.Builder
	for _, item := range s.Items {
		text := item.Expr.String()
		if nested, ok := item.Expr.(*Set); ok {
			if nested.Len() == 0 {
				continue
			}
			text = "(" + text + ")"
		}
		if sb.Len() > 0 {
			sb.WriteString(" " + string(item.Join) + " ")
		}
		sb.WriteString(text)
	}
	return sb.String()
}
