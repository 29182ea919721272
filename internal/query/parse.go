package query

import (
	"fmt"
	"net/url"
	"strings"
)

// maxDepth bounds bracket nesting; deeper segments are folded into the last key.
const maxDepth = 16

// Parse decodes a raw query string into a Query. Bracket notation builds
// nested mappings the way PHP does:
//
//	filter[Id]=1&filter[Name]=demo   -> filter: Pairs{Id: "1", Name: "demo"}
//	CreatedAt[gte]=9/29/2014         -> CreatedAt: Pairs{gte: "9/29/2014"}
//	a[]=1&a[]=2                      -> a: Pairs{0: "1", 1: "2"}
//
// A repeated plain key keeps the last value.
func Parse(raw string) (Query, error) {
	q := Query{}
	raw = strings.TrimPrefix(raw, "?")

	for raw != "" {
		var part string
		part, raw, _ = strings.Cut(raw, "&")
		if part == "" {
			continue
		}

		rawKey, rawValue, _ := strings.Cut(part, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return nil, fmt.Errorf("invalid query key %q: %w", rawKey, err)
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, fmt.Errorf("invalid query value for %q: %w", key, err)
		}

		q.Set(key, value)
	}

	return q, nil
}

// MustParse is like Parse but panics on malformed input.
func MustParse(raw string) Query {
	q, err := Parse(raw)
	if err != nil {
		panic(fmt.Sprintf("query: Parse(%q): %v", raw, err))
	}
	return q
}

// FromValues converts url.Values, applying bracket notation to the keys.
// Multiple values under one key are appended when the key ends with [],
// otherwise the last one wins.
func FromValues(values url.Values) Query {
	q := Query{}
	for key, vals := range values {
		for _, v := range vals {
			q.Set(key, v)
		}
	}
	return q
}

// Set stores value under a possibly bracketed key.
func (q Query) Set(key, value string) {
	base, segments := splitKey(key)
	if base == "" {
		return
	}
	if len(segments) == 0 {
		q[base] = value
		return
	}
	q[base] = insert(q[base], segments, value)
}

func insert(node interface{}, segments []string, value string) interface{} {
	if len(segments) == 0 {
		return value
	}

	pairs, ok := node.(Pairs)
	if !ok {
		pairs = Pairs{}
	}

	key := segments[0]
	if key == "" {
		key = fmt.Sprint(pairs.nextIndex())
	}

	if i := pairs.index(key); i >= 0 {
		pairs[i].Value = insert(pairs[i].Value, segments[1:], value)
		return pairs
	}
	return append(pairs, Pair{Key: key, Value: insert(nil, segments[1:], value)})
}

// splitKey splits "a[b][c]" into "a" and ["b", "c"]. A key without a well
// formed bracket suffix is returned whole.
func splitKey(key string) (string, []string) {
	open := strings.IndexByte(key, '[')
	if open <= 0 {
		return key, nil
	}

	base := key[:open]
	rest := key[open:]
	var segments []string

	for rest != "" {
		if rest[0] != '[' {
			break
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return key, nil
		}
		segments = append(segments, rest[1:end])
		rest = rest[end+1:]
	}

	if len(segments) > maxDepth {
		tail := strings.Join(segments[maxDepth-1:], "][")
		segments = append(segments[:maxDepth-1], tail)
	}

	return base, segments
}
