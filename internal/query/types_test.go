package query

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Classify Tests
// =============================================================================

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  Kind
	}{
		{name: "nil", value: nil, want: KindNil},
		{name: "string", value: "demo", want: KindString},
		{name: "int", value: 17, want: KindScalar},
		{name: "float", value: 1.5, want: KindScalar},
		{name: "bool", value: true, want: KindScalar},
		{name: "json number", value: json.Number("12"), want: KindScalar},
		{name: "list", value: []interface{}{"a"}, want: KindList},
		{name: "string list", value: []string{"a"}, want: KindList},
		{name: "map", value: map[string]interface{}{"a": 1}, want: KindMap},
		{name: "pairs", value: Pairs{{Key: "a", Value: "1"}}, want: KindMap},
		{name: "unsupported type", value: struct{}{}, want: KindNil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.value))
		})
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "string", KindString.String())
	assert.Equal(t, "map", KindMap.String())
	assert.Equal(t, "nil", Kind(99).String())
}

// =============================================================================
// Entries Tests
// =============================================================================

func TestEntries(t *testing.T) {
	t.Run("pairs keep insertion order", func(t *testing.T) {
		p := Pairs{{Key: "b", Value: 1}, {Key: "a", Value: 2}}
		entries, ok := Entries(p)
		require.True(t, ok)
		assert.Equal(t, []string{"b", "a"}, Pairs(entries).Keys())
	})

	t.Run("maps are sorted by key", func(t *testing.T) {
		entries, ok := Entries(map[string]interface{}{"b": 1, "a": 2, "c": 3})
		require.True(t, ok)
		assert.Equal(t, []string{"a", "b", "c"}, Pairs(entries).Keys())
	})

	t.Run("lists are keyed by index", func(t *testing.T) {
		entries, ok := Entries([]interface{}{"x", "y"})
		require.True(t, ok)
		assert.Equal(t, []Pair{{Key: "0", Value: "x"}, {Key: "1", Value: "y"}}, entries)
	})

	t.Run("scalars have no entries", func(t *testing.T) {
		_, ok := Entries("demo")
		assert.False(t, ok)
	})
}

func TestLookup(t *testing.T) {
	v, ok := Lookup(Pairs{{Key: "predicate", Value: "like"}}, "predicate")
	assert.True(t, ok)
	assert.Equal(t, "like", v)

	v, ok = Lookup(map[string]interface{}{"predicate": "in"}, "predicate")
	assert.True(t, ok)
	assert.Equal(t, "in", v)

	_, ok = Lookup("predicate", "predicate")
	assert.False(t, ok)
}

func TestIsIndex(t *testing.T) {
	assert.True(t, IsIndex("0"))
	assert.True(t, IsIndex("12"))
	assert.False(t, IsIndex(""))
	assert.False(t, IsIndex("Id"))
	assert.False(t, IsIndex("-1"))
}

// =============================================================================
// Scalar Helper Tests
// =============================================================================

func TestIsNumeric(t *testing.T) {
	for _, s := range []string{"1", "-1", "+1.5", ".5", "1e5", " 42 "} {
		assert.True(t, IsNumeric(s), s)
	}
	for _, s := range []string{"", "abc", "0x1A", "NaN", "Inf", "1.2.3", "12abc"} {
		assert.False(t, IsNumeric(s), s)
	}
}

func TestString(t *testing.T) {
	assert.Equal(t, "demo", String("demo"))
	assert.Equal(t, "17", String(17))
	assert.Equal(t, "1.5", String(1.5))
	assert.Equal(t, "true", String(true))
	assert.Equal(t, "", String(nil))
	assert.Equal(t, "", String([]interface{}{"a"}))
}

func TestInt(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  int
	}{
		{name: "nil", value: nil, want: 0},
		{name: "numeric string", value: "101", want: 101},
		{name: "negative string", value: "-1", want: -1},
		{name: "leading digits", value: "12abc", want: 12},
		{name: "non numeric string", value: "abc", want: 0},
		{name: "leading zero is decimal", value: "010", want: 10},
		{name: "float truncates", value: 2.9, want: 2},
		{name: "int", value: 5, want: 5},
		{name: "json number", value: json.Number("2021"), want: 2021},
		{name: "bool", value: true, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Int(tt.value))
		})
	}
}

func TestEmpty(t *testing.T) {
	for _, v := range []interface{}{nil, "", "0", 0, 0.0, false, []interface{}{}, Pairs{}, map[string]interface{}{}} {
		assert.True(t, Empty(v), "%#v", v)
	}
	for _, v := range []interface{}{"a", "00", 1, true, []interface{}{1}, Pairs{{Key: "a"}}} {
		assert.False(t, Empty(v), "%#v", v)
	}
}
