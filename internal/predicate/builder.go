package predicate

// Builder assembles a predicate tree one leaf at a time. Leaves are joined
// with AND unless Or was called just before; Nest opens a bracketed group
// that Unnest closes.
type Builder interface {
	Nest() Builder
	Unnest() Builder
	And() Builder
	Or() Builder

	EqualTo(left, right Operand) Builder
	NotEqualTo(left, right Operand) Builder
	LessThan(left, right Operand) Builder
	GreaterThan(left, right Operand) Builder
	LessThanOrEqualTo(left, right Operand) Builder
	GreaterThanOrEqualTo(left, right Operand) Builder
	Compare(kind Kind, left, right Operand) Builder

	Between(identifier, low, high string) Builder
	NotBetween(identifier, low, high string) Builder
	In(identifiers, values []string) Builder
	NotIn(identifiers, values []string) Builder
	IsNull(identifier string) Builder
	IsNotNull(identifier string) Builder
	Like(identifier, pattern string) Builder
	NotLike(identifier, pattern string) Builder
	Expression(text string, params []Param) Builder
	Literal(text string) Builder
	AddPredicate(expr Expr) Builder

	Depth() int
	Set() *Set
}

// TreeBuilder is the default Builder. It is not safe for concurrent use.
type TreeBuilder struct {
	root  *Set
	stack []*Set
	join  Join
}

// NewBuilder returns a builder over an empty tree.
func NewBuilder() *TreeBuilder {
	root := NewSet()
	return &TreeBuilder{root: root, stack: []*Set{root}, join: JoinAnd}
}

// Set returns the root of the tree, including any group still open.
func (b *TreeBuilder) Set() *Set {
	return b.root
}

// Depth returns the number of open groups.
func (b *TreeBuilder) Depth() int {
	return len(b.stack) - 1
}

// Pending returns the join the next item will use.
func (b *TreeBuilder) Pending() Join {
	return b.join
}

func (b *TreeBuilder) current() *Set {
	return b.stack[len(b.stack)-1]
}

func (b *TreeBuilder) add(expr Expr) Builder {
	b.current().Append(b.join, expr)
	b.join = JoinAnd
	return b
}

// Nest opens a group joined to the previous item by the pending join.
func (b *TreeBuilder) Nest() Builder {
	child := NewSet()
	b.add(child)
	b.stack = append(b.stack, child)
	return b
}

// Unnest closes the innermost group. At the root it does nothing.
func (b *TreeBuilder) Unnest() Builder {
	if len(b.stack) > 1 {
		b.stack = b.stack[:len(b.stack)-1]
	}
	b.join = JoinAnd
	return b
}

func (b *TreeBuilder) And() Builder {
	b.join = JoinAnd
	return b
}

func (b *TreeBuilder) Or() Builder {
	b.join = JoinOr
	return b
}

func (b *TreeBuilder) EqualTo(left, right Operand) Builder {
	return b.Compare(KindEqualTo, left, right)
}

func (b *TreeBuilder) NotEqualTo(left, right Operand) Builder {
	return b.Compare(KindNotEqualTo, left, right)
}

func (b *TreeBuilder) LessThan(left, right Operand) Builder {
	return b.Compare(KindLessThan, left, right)
}

func (b *TreeBuilder) GreaterThan(left, right Operand) Builder {
	return b.Compare(KindGreaterThan, left, right)
}

func (b *TreeBuilder) LessThanOrEqualTo(left, right Operand) Builder {
	return b.Compare(KindLessThanOrEqualTo, left, right)
}

func (b *TreeBuilder) GreaterThanOrEqualTo(left, right Operand) Builder {
	return b.Compare(KindGreaterThanOrEqualTo, left, right)
}

// Compare adds a comparison of the given kind. Non-comparison kinds are
// ignored.
func (b *TreeBuilder) Compare(kind Kind, left, right Operand) Builder {
	if !IsComparison(kind) {
		return b
	}
	return b.add(&Comparison{Kind: kind, Left: left, Right: right})
}

func (b *TreeBuilder) Between(identifier, low, high string) Builder {
	return b.add(&Between{Kind: KindBetween, Identifier: identifier, Min: low, Max: high})
}

func (b *TreeBuilder) NotBetween(identifier, low, high string) Builder {
	return b.add(&Between{Kind: KindNotBetween, Identifier: identifier, Min: low, Max: high})
}

func (b *TreeBuilder) In(identifiers, values []string) Builder {
	return b.add(&In{Kind: KindIn, Identifiers: identifiers, Values: values})
}

func (b *TreeBuilder) NotIn(identifiers, values []string) Builder {
	return b.add(&In{Kind: KindNotIn, Identifiers: identifiers, Values: values})
}

func (b *TreeBuilder) IsNull(identifier string) Builder {
	return b.add(&Null{Kind: KindIsNull, Identifier: identifier})
}

func (b *TreeBuilder) IsNotNull(identifier string) Builder {
	return b.add(&Null{Kind: KindIsNotNull, Identifier: identifier})
}

func (b *TreeBuilder) Like(identifier, pattern string) Builder {
	return b.add(&Like{Kind: KindLike, Identifier: identifier, Pattern: pattern})
}

func (b *TreeBuilder) NotLike(identifier, pattern string) Builder {
	return b.add(&Like{Kind: KindNotLike, Identifier: identifier, Pattern: pattern})
}

func (b *TreeBuilder) Expression(text string, params []Param) Builder {
	return b.add(&Expression{Text: text, Params: params})
}

func (b *TreeBuilder) Literal(text string) Builder {
	return b.add(&Literal{Text: text})
}

// AddPredicate adds a prebuilt expression, usually a *Set, as one item.
func (b *TreeBuilder) AddPredicate(expr Expr) Builder {
	if expr == nil {
		return b
	}
	return b.add(expr)
}
