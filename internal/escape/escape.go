// Package escape turns untrusted scalars into text that is safe to embed in a
// SQL statement. Values carrying markup are rejected, single quotes are
// doubled and parseable dates are normalized to a timestamp literal.
package escape

import (
	"html"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/microcosm-cc/bluemonday"

	"github.com/fluxbase-eu/criteria/internal/query"
)

// TimestampLayout is the layout of rendered date literals.
const TimestampLayout = "2006-01-02 15:04:05"

// maxUnescape bounds entity decoding of nested encodings like &amp;lt;
const maxUnescape = 4

// Escaper is the escaping capability the resolvers depend on.
type Escaper interface {
	// Scalar returns the cleaned text of v without quoting. Non-scalars and
	// values carrying markup yield "".
	Scalar(v interface{}) string
	// Safe reports whether v is a scalar that Scalar keeps.
	Safe(v interface{}) bool
	// Quote returns v as a SQL literal. Numbers are returned bare.
	Quote(v interface{}) string
	// Unquoted returns the body of Quote(v) without the surrounding quotes.
	Unquoted(v interface{}) string
	// Date renders a parseable date as a quoted timestamp advanced by span
	// seconds, falling back to Quote for anything else.
	Date(v interface{}, span int) string
}

// Sanitizer is the default Escaper. It is safe for concurrent use.
type Sanitizer struct {
	policy   *bluemonday.Policy
	location *time.Location
}

// New creates a Sanitizer that interprets dates without a zone in UTC.
func New() *Sanitizer {
	return NewInLocation(time.UTC)
}

// NewInLocation creates a Sanitizer that interprets dates without a zone in loc.
func NewInLocation(loc *time.Location) *Sanitizer {
	if loc == nil {
		loc = time.UTC
	}
	return &Sanitizer{
		policy:   bluemonday.StrictPolicy(),
		location: loc,
	}
}

// Scalar decodes entities and removes control characters from a scalar.
// Text that still reads as markup yields "".
func (s *Sanitizer) Scalar(v interface{}) string {
	text, _ := s.scalar(v)
	return text
}

// Safe reports whether v is a scalar without markup.
func (s *Sanitizer) Safe(v interface{}) bool {
	_, ok := s.scalar(v)
	return ok
}

func (s *Sanitizer) scalar(v interface{}) (string, bool) {
	if !query.IsScalar(v) {
		return "", false
	}
	text := query.String(v)
	if text == "" || query.IsNumeric(text) {
		return text, true
	}
	return s.clean(text)
}

// Quote returns v as a single-quoted SQL literal. Numeric values are returned
// as-is and booleans as TRUE or FALSE.
func (s *Sanitizer) Quote(v interface{}) string {
	if b, ok := v.(bool); ok {
		if b {
			return "TRUE"
		}
		return "FALSE"
	}
	text := s.Scalar(v)
	if text != "" && query.IsNumeric(text) {
		return strings.TrimSpace(text)
	}
	return "'" + escapeLiteral(text) + "'"
}

// Unquoted returns the escaped body of v, ready to be wrapped in another
// literal such as a LIKE pattern.
func (s *Sanitizer) Unquoted(v interface{}) string {
	text := s.Scalar(v)
	if text != "" && query.IsNumeric(text) {
		return strings.TrimSpace(text)
	}
	return escapeLiteral(text)
}

// Date renders v as '2006-01-02 15:04:05' when it parses as a date.
func (s *Sanitizer) Date(v interface{}, span int) string {
	text, ok := v.(string)
	if !ok {
		return s.Quote(v)
	}
	if t, ok := s.ParseDate(text); ok {
		return "'" + t.Add(time.Duration(span)*time.Second).Format(TimestampLayout) + "'"
	}
	return s.Quote(v)
}

// ParseDate parses a date or date-time string. Numeric strings are never dates.
func (s *Sanitizer) ParseDate(text string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" || query.IsNumeric(text) {
		return time.Time{}, false
	}
	t, err := dateparse.ParseIn(text, s.location)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// clean reports false when text, once its entities are decoded, contains
// anything the policy would remove. Plain text survives the policy as its
// escaped form.
func (s *Sanitizer) clean(text string) (string, bool) {
	text = strings.Map(func(r rune) rune {
		if r == 0 || (r < 0x20 && r != '\t' && r != '\n') {
			return -1
		}
		return r
	}, text)

	for i := 0; ; i++ {
		decoded := html.UnescapeString(text)
		if decoded == text {
			break
		}
		if i == maxUnescape {
			return "", false
		}
		text = decoded
	}

	if s.policy.Sanitize(text) != html.EscapeString(text) {
		return "", false
	}
	return strings.TrimSpace(text), true
}

// escapeLiteral doubles single quotes. Percent signs are kept so that they
// still act as LIKE wildcards.
func escapeLiteral(value string) string {
	return strings.ReplaceAll(value, "'", "''")
}
