// Package resolver turns decoded query parameters into query criteria: a
// predicate tree for WHERE, an ordered sort specification and a consistent
// limit/offset/page triple.
//
// Resolvers are configured once with their setters and are then read-only,
// so one instance may serve concurrent requests.
package resolver

import (
	"net/url"
	"sort"
	"strings"

	"github.com/fluxbase-eu/criteria/internal/query"
)

// Resolver merges its contribution for q into c. It reports false, leaving c
// untouched, when the parameters it looks for are absent. A nil c is allowed;
// a fresh Criteria is returned on match.
type Resolver interface {
	Resolve(q query.Query, c *Criteria) (*Criteria, bool)
}

// Named is implemented by resolvers that report a name for logs and metrics.
type Named interface {
	Name() string
}

// Logical parameter names.
const (
	ParamFilter    = "filter"
	ParamOrder     = "order"
	ParamDirection = "direction"
	ParamNulls     = "nulls"
	ParamLimit     = "limit"
	ParamOffset    = "offset"
	ParamPage      = "page"
)

// ParameterMap maps logical parameter names to the keys used in the query.
// The filter resolver also keeps its operator tokens here (|gte| => >=).
type ParameterMap map[string]string

// Key returns the query key for a logical name, defaulting to the name itself.
func (m ParameterMap) Key(logical string) string {
	if v, ok := m[logical]; ok && v != "" {
		return v
	}
	return logical
}

// Clone returns a copy of the map.
func (m ParameterMap) Clone() ParameterMap {
	out := make(ParameterMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Merge returns a copy of m overlaid with other.
func (m ParameterMap) Merge(other map[string]string) ParameterMap {
	out := m.Clone()
	for k, v := range other {
		out[k] = v
	}
	return out
}

// QueryKeys returns the query keys the map points at, operator tokens
// excluded, sorted.
func (m ParameterMap) QueryKeys() []string {
	keys := make([]string, 0, len(m))
	for k, v := range m {
		if isToken(k) {
			continue
		}
		keys = append(keys, v)
	}
	sort.Strings(keys)
	return keys
}

// Operators returns the operator tokens and their SQL operators.
func (m ParameterMap) Operators() map[string]string {
	ops := map[string]string{}
	for k, v := range m {
		if isToken(k) {
			ops[k] = v
		}
	}
	return ops
}

// reserves reports whether key is a logical name or a query key of the map.
func (m ParameterMap) reserves(key string) bool {
	if _, ok := m[key]; ok {
		return true
	}
	for k, v := range m {
		if !isToken(k) && v == key {
			return true
		}
	}
	return false
}

func isToken(k string) bool {
	return len(k) > 2 && strings.HasPrefix(k, "|") && strings.HasSuffix(k, "|")
}

// decode URL-decodes s once more, keeping s when it is not valid encoding.
func decode(s string) string {
	if decoded, err := url.QueryUnescape(s); err == nil {
		return decoded
	}
	return s
}

func ensure(c *Criteria) *Criteria {
	if c == nil {
		return &Criteria{}
	}
	return c
}

func nameOf(r Resolver) string {
	if n, ok := r.(Named); ok {
		return n.Name()
	}
	return "resolver"
}
