package predicate

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind names a leaf predicate. The values match the discriminators accepted
// in a filter descriptor.
type Kind string

const (
	KindEqualTo              Kind = "equalTo"
	KindNotEqualTo           Kind = "notEqualTo"
	KindLessThan             Kind = "lessThan"
	KindGreaterThan          Kind = "greaterThan"
	KindLessThanOrEqualTo    Kind = "lessThanOrEqualTo"
	KindGreaterThanOrEqualTo Kind = "greaterThanOrEqualTo"
	KindBetween              Kind = "between"
	KindNotBetween           Kind = "notBetween"
	KindIn                   Kind = "in"
	KindNotIn                Kind = "notIn"
	KindIsNull               Kind = "isNull"
	KindIsNotNull            Kind = "isNotNull"
	KindLike                 Kind = "like"
	KindNotLike              Kind = "notLike"
	KindExpression           Kind = "expression"
	KindLiteral              Kind = "literal"
)

// comparisonOperators maps comparison kinds to their SQL operator.
var comparisonOperators = map[Kind]string{
	KindEqualTo:              "=",
	KindNotEqualTo:           "<>",
	KindLessThan:             "<",
	KindGreaterThan:          ">",
	KindLessThanOrEqualTo:    "<=",
	KindGreaterThanOrEqualTo: ">=",
}

// IsComparison reports whether k is one of the binary comparison kinds.
func IsComparison(k Kind) bool {
	_, ok := comparisonOperators[k]
	return ok
}

// Operator returns the SQL operator of a comparison kind.
func Operator(k Kind) string {
	return comparisonOperators[k]
}

// OperandType tells how an operand is rendered.
type OperandType string

const (
	TypeIdentifier OperandType = "identifier"
	TypeValue      OperandType = "value"
)

// Operand is one side of a comparison. For identifiers Value is a field name,
// possibly dotted (Profile.Name), and Path is an optional JSON path extracted
// from it as text. For values Value is escaped SQL text.
type Operand struct {
	Type  OperandType
	Value string
	Path  []string
}

// Identifier returns an identifier operand.
func Identifier(name string) Operand {
	return Operand{Type: TypeIdentifier, Value: name}
}

// Value returns a value operand holding escaped SQL text.
func Value(escaped string) Operand {
	return Operand{Type: TypeValue, Value: escaped}
}

// JSONPath returns an identifier operand extracting path from a JSON field.
func JSONPath(field string, path ...string) Operand {
	return Operand{Type: TypeIdentifier, Value: field, Path: path}
}

// IsIdentifier reports whether the operand names a field.
func (o Operand) IsIdentifier() bool {
	return o.Type == TypeIdentifier
}

func (o Operand) String() string {
	if len(o.Path) > 0 {
		return o.Value + " #>> '{" + strings.Join(o.Path, ",") + "}'"
	}
	return o.Value
}

// Comparison is a binary comparison between two operands.
type Comparison struct {
	Kind  Kind
	Left  Operand
	Right Operand
}

func (c *Comparison) String() string {
	return c.Left.String() + " " + Operator(c.Kind) + " " + c.Right.String()
}

// Between is a range test with inclusive bounds.
type Between struct {
	Kind       Kind
	Identifier string
	Min        string
	Max        string
}

func (b *Between) String() string {
	op := " BETWEEN "
	if b.Kind == KindNotBetween {
		op = " NOT BETWEEN "
	}
	return b.Identifier + op + b.Min + " AND " + b.Max
}

// In is a set membership test. Several identifiers form a row value.
type In struct {
	Kind        Kind
	Identifiers []string
	Values      []string
}

func (in *In) String() string {
	left := strings.Join(in.Identifiers, ", ")
	if len(in.Identifiers) > 1 {
		left = "(" + left + ")"
	}
	op := " IN "
	if in.Kind == KindNotIn {
		op = " NOT IN "
	}
	return left + op + "(" + strings.Join(in.Values, ", ") + ")"
}

// Null is an IS NULL or IS NOT NULL test.
type Null struct {
	Kind       Kind
	Identifier string
}

func (n *Null) String() string {
	if n.Kind == KindIsNotNull {
		return n.Identifier + " IS NOT NULL"
	}
	return n.Identifier + " IS NULL"
}

// Like is a pattern match. Pattern is an escaped, quoted SQL literal.
type Like struct {
	Kind       Kind
	Identifier string
	Pattern    string
}

func (l *Like) String() string {
	if l.Kind == KindNotLike {
		return l.Identifier + " NOT LIKE " + l.Pattern
	}
	return l.Identifier + " LIKE " + l.Pattern
}

// AliasPlaceholder in expression text stands for the table alias.
const AliasPlaceholder = "%1$s"

// Param is a positional expression parameter. Identifier params name an
// allow-listed field; the others hold escaped text without quotes.
type Param struct {
	Value      string
	Identifier bool
}

// Expression is raw SQL text with ?N (or bare ?) placeholders for Params.
type Expression struct {
	Text   string
	Params []Param
}

var placeholderPattern = regexp.MustCompile(`\?(\d*)`)

// Expand substitutes placeholders using render. Placeholders without a
// matching param are left as they are.
func (e *Expression) Expand(render func(Param) string) string {
	next := 0
	return placeholderPattern.ReplaceAllStringFunc(e.Text, func(m string) string {
		i := next
		if len(m) > 1 {
			n, err := strconv.Atoi(m[1:])
			if err != nil {
				return m
			}
			i = n
		}
		next = i + 1
		if i < 0 || i >= len(e.Params) {
			return m
		}
		return render(e.Params[i])
	})
}

func (e *Expression) String() string {
	text := e.Expand(func(p Param) string {
		if p.Identifier {
			return p.Value
		}
		return "'" + p.Value + "'"
	})
	return strings.ReplaceAll(text, AliasPlaceholder+".", "")
}

// Literal is trusted SQL text inserted verbatim.
type Literal struct {
	Text string
}

func (l *Literal) String() string {
	return l.Text
}

func identifiersOf(expr Expr) []string {
	switch e := expr.(type) {
	case *Comparison:
		var out []string
		for _, o := range []Operand{e.Left, e.Right} {
			if o.IsIdentifier() {
				out = append(out, o.Value)
			}
		}
		return out
	case *Between:
		return []string{e.Identifier}
	case *In:
		return e.Identifiers
	case *Null:
		return []string{e.Identifier}
	case *Like:
		return []string{e.Identifier}
	case *Expression:
		var out []string
		for _, p := range e.Params {
			if p.Identifier {
				out = append(out, p.Value)
			}
		}
		return out
	}
	return nil
}
