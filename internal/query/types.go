// Package query holds the raw, untyped query representation shared by the
// resolvers, the HTTP adapter and the CLI. Values are whatever a query string
// or a JSON body decodes to: strings, numbers, booleans, lists and mappings.
package query

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

// Query is a decoded query-parameter map.
type Query map[string]interface{}

// Has reports whether key is present with a non-nil value.
func (q Query) Has(key string) bool {
	v, ok := q[key]
	return ok && v != nil
}

// Pair is a single key/value entry of an ordered mapping.
type Pair struct {
	Key   string
	Value interface{}
}

// Pairs is a mapping that keeps insertion order. Bracket notation in a query
// string (filter[Id]=1) decodes to Pairs so that the order the client wrote
// is the order resolvers see.
type Pairs []Pair

// Get returns the value stored under key.
func (p Pairs) Get(key string) (interface{}, bool) {
	if i := p.index(key); i >= 0 {
		return p[i].Value, true
	}
	return nil, false
}

// Keys returns the keys in insertion order.
func (p Pairs) Keys() []string {
	keys := make([]string, len(p))
	for i, pair := range p {
		keys[i] = pair.Key
	}
	return keys
}

func (p Pairs) index(key string) int {
	for i := range p {
		if p[i].Key == key {
			return i
		}
	}
	return -1
}

// nextIndex returns the next free list index, the way a[]=x appends.
func (p Pairs) nextIndex() int {
	next := 0
	for _, pair := range p {
		if n, err := strconv.Atoi(pair.Key); err == nil && n >= next {
			next = n + 1
		}
	}
	return next
}

// Kind classifies a raw value.
type Kind int

const (
	KindNil Kind = iota
	KindString
	KindScalar
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindScalar:
		return "scalar"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "nil"
	}
}

// Classify returns the shape of a raw value.
func Classify(v interface{}) Kind {
	switch v.(type) {
	case nil:
		return KindNil
	case string:
		return KindString
	case []interface{}, []string:
		return KindList
	case map[string]interface{}, Query, Pairs:
		return KindMap
	}
	if IsScalar(v) {
		return KindScalar
	}
	return KindNil
}

// Entries returns the entries of a list or mapping. Lists are keyed by their
// index; plain Go maps are returned sorted by key since they carry no order.
func Entries(v interface{}) ([]Pair, bool) {
	switch t := v.(type) {
	case Pairs:
		return t, true
	case []interface{}:
		entries := make([]Pair, len(t))
		for i, item := range t {
			entries[i] = Pair{Key: strconv.Itoa(i), Value: item}
		}
		return entries, true
	case []string:
		entries := make([]Pair, len(t))
		for i, item := range t {
			entries[i] = Pair{Key: strconv.Itoa(i), Value: item}
		}
		return entries, true
	case map[string]interface{}:
		return sortedEntries(t), true
	case Query:
		return sortedEntries(t), true
	}
	return nil, false
}

func sortedEntries(m map[string]interface{}) []Pair {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	entries := make([]Pair, len(keys))
	for i, k := range keys {
		entries[i] = Pair{Key: k, Value: m[k]}
	}
	return entries
}

// Lookup returns the value stored under key in any mapping shape.
func Lookup(v interface{}, key string) (interface{}, bool) {
	switch t := v.(type) {
	case Pairs:
		return t.Get(key)
	case map[string]interface{}:
		val, ok := t[key]
		return val, ok
	case Query:
		val, ok := t[key]
		return val, ok
	}
	return nil, false
}

// IsIndex reports whether a mapping key is a list index.
func IsIndex(key string) bool {
	if key == "" {
		return false
	}
	for i := 0; i < len(key); i++ {
		if key[i] < '0' || key[i] > '9' {
			return false
		}
	}
	return true
}

// IsScalar reports whether v is a string, a boolean or a number.
func IsScalar(v interface{}) bool {
	switch v.(type) {
	case string, bool, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}

var numericPattern = regexp.MustCompile(`^\s*[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?\s*$`)

// IsNumeric reports whether s is a decimal number literal.
func IsNumeric(s string) bool {
	return numericPattern.MatchString(s)
}

// String converts a scalar to its string form. Non-scalars yield "".
func String(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	}
	if !IsScalar(v) {
		return ""
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return ""
	}
	return s
}

// Int converts a raw value to an int. Strings are read up to the first
// non-digit ("12abc" is 12, "abc" is 0); floats are truncated.
func Int(v interface{}) int {
	switch t := v.(type) {
	case nil:
		return 0
	case string:
		return leadingInt(t)
	case json.Number:
		return leadingInt(t.String())
	case float32:
		return int(t)
	case float64:
		return int(t)
	}
	return cast.ToInt(v)
}

func leadingInt(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

// Empty reports whether v is nil, "", "0", zero, false or an empty container.
func Empty(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == "" || t == "0"
	case bool:
		return !t
	case []interface{}:
		return len(t) == 0
	case []string:
		return len(t) == 0
	case map[string]interface{}:
		return len(t) == 0
	case Query:
		return len(t) == 0
	case Pairs:
		return len(t) == 0
	}
	if n, ok := v.(json.Number); ok {
		f, err := n.Float64()
		return err == nil && f == 0
	}
	if IsScalar(v) {
		f, err := cast.ToFloat64E(v)
		return err == nil && f == 0
	}
	return false
}
