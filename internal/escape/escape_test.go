package escape

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSanitizer_Scalar(t *testing.T) {
	s := New()

	tests := []struct {
		name  string
		value interface{}
		want  string
	}{
		{name: "plain text", value: "demo", want: "demo"},
		{name: "empty", value: "", want: ""},
		{name: "numeric string", value: "17", want: "17"},
		{name: "int", value: 17, want: "17"},
		{name: "markup is rejected", value: "<b>demo</b>", want: ""},
		{name: "script is rejected", value: "<script>alert(1)</script>x", want: ""},
		{name: "entity encoded script is rejected", value: "&lt;script&gt;alert(1)&lt;/script&gt;", want: ""},
		{name: "double encoded script is rejected", value: "&amp;lt;script&amp;gt;x", want: ""},
		{name: "tag opener inside a word is rejected", value: "x<y", want: ""},
		{name: "processing instruction is rejected", value: "?0<?1", want: ""},
		{name: "spaced comparison is kept", value: "?0 < ?1", want: "?0 < ?1"},
		{name: "greater than is kept", value: "a>b", want: "a>b"},
		{name: "less than before a digit is kept", value: "x<3", want: "x<3"},
		{name: "encoded ampersand is decoded", value: "Tom &amp; Jerry", want: "Tom & Jerry"},
		{name: "quotes survive cleaning", value: "it's", want: "it's"},
		{name: "ampersand survives cleaning", value: "Tom & Jerry", want: "Tom & Jerry"},
		{name: "control characters are removed", value: "a\x00b\x07c", want: "abc"},
		{name: "carriage returns are removed", value: "a\r\nb", want: "a\nb"},
		{name: "non scalar", value: []interface{}{"a"}, want: ""},
		{name: "nil", value: nil, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Scalar(tt.value))
		})
	}
}

func TestSanitizer_Quote(t *testing.T) {
	s := New()

	assert.Equal(t, "'demo'", s.Quote("demo"))
	assert.Equal(t, "'it''s'", s.Quote("it's"))
	assert.Equal(t, "'100%'", s.Quote("100%"), "percent is not doubled")
	assert.Equal(t, "17", s.Quote("17"))
	assert.Equal(t, "17", s.Quote(17))
	assert.Equal(t, "1.5", s.Quote(1.5))
	assert.Equal(t, "TRUE", s.Quote(true))
	assert.Equal(t, "FALSE", s.Quote(false))
	assert.Equal(t, "''", s.Quote(""))
	assert.Equal(t, "''", s.Quote(map[string]interface{}{}))
}

func TestSanitizer_Unquoted(t *testing.T) {
	s := New()

	assert.Equal(t, "demo", s.Unquoted("demo"))
	assert.Equal(t, "''demo", s.Unquoted("'demo"), "leading quote stays escaped")
	assert.Equal(t, "42", s.Unquoted(42))
}

func TestSanitizer_Date(t *testing.T) {
	s := New()

	t.Run("us date", func(t *testing.T) {
		assert.Equal(t, "'2014-09-29 00:00:00'", s.Date("9/29/2014", 0))
	})

	t.Run("end of day span", func(t *testing.T) {
		assert.Equal(t, "'2014-10-29 23:59:59'", s.Date("10/29/2014", 86399))
	})

	t.Run("iso date time", func(t *testing.T) {
		assert.Equal(t, "'2021-03-04 05:06:07'", s.Date("2021-03-04 05:06:07", 0))
	})

	t.Run("numbers are not dates", func(t *testing.T) {
		assert.Equal(t, "2021", s.Date("2021", 0))
		assert.Equal(t, "5", s.Date(5, 86399))
	})

	t.Run("text falls back to quoting", func(t *testing.T) {
		assert.Equal(t, "'ntd1712'", s.Date("ntd1712", 0))
	})

	t.Run("zone-less dates use the configured location", func(t *testing.T) {
		loc := time.FixedZone("UTC+7", 7*3600)
		parsed, ok := NewInLocation(loc).ParseDate("2014-09-29 10:00:00")
		assert.True(t, ok)
		assert.Equal(t, loc, parsed.Location())
	})
}

func TestSanitizer_Safe(t *testing.T) {
	s := New()

	tests := []struct {
		name  string
		value interface{}
		want  bool
	}{
		{name: "plain text", value: "demo", want: true},
		{name: "empty", value: "", want: true},
		{name: "number", value: 5, want: true},
		{name: "bool", value: true, want: true},
		{name: "markup", value: "a<b and more", want: false},
		{name: "entity encoded markup", value: "&lt;script&gt;x", want: false},
		{name: "non scalar", value: map[string]interface{}{}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Safe(tt.value))
		})
	}
}

func TestSanitizer_ImplementsEscaper(t *testing.T) {
	var _ Escaper = New()
	assert.NotNil(t, NewInLocation(nil).location)
}
