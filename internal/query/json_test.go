package query

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSON(t *testing.T) {
	t.Run("objects keep key order", func(t *testing.T) {
		v, err := DecodeJSON(`{"Name":"demo","Id":1}`)
		require.NoError(t, err)
		assert.Equal(t, Pairs{
			{Key: "Name", Value: "demo"},
			{Key: "Id", Value: json.Number("1")},
		}, v)
	})

	t.Run("arrays of descriptors", func(t *testing.T) {
		v, err := DecodeJSON(`[{"predicate":"isNull","identifier":"Name"},{"predicate":"in","valueSet":["a",17,true,null]}]`)
		require.NoError(t, err)
		assert.Equal(t, []interface{}{
			Pairs{{Key: "predicate", Value: "isNull"}, {Key: "identifier", Value: "Name"}},
			Pairs{{Key: "predicate", Value: "in"}, {Key: "valueSet", Value: []interface{}{"a", json.Number("17"), true, nil}}},
		}, v)
	})

	t.Run("duplicate keys keep first position and last value", func(t *testing.T) {
		v, err := DecodeJSON(`{"a":1,"b":2,"a":3}`)
		require.NoError(t, err)
		assert.Equal(t, Pairs{
			{Key: "a", Value: json.Number("3")},
			{Key: "b", Value: json.Number("2")},
		}, v)
	})

	t.Run("empty containers", func(t *testing.T) {
		v, err := DecodeJSON(`{}`)
		require.NoError(t, err)
		assert.Equal(t, Pairs{}, v)

		v, err = DecodeJSON(`[]`)
		require.NoError(t, err)
		assert.Equal(t, []interface{}{}, v)
	})

	t.Run("invalid documents", func(t *testing.T) {
		for _, doc := range []string{`{`, `{"a":}`, `[1,]`, `{"a":1} x`, `{"a":1}{}`, ``} {
			_, err := DecodeJSON(doc)
			assert.Error(t, err, doc)
		}
	})
}
