package resolver

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/fluxbase-eu/criteria/internal/escape"
	"github.com/fluxbase-eu/criteria/internal/permit"
	"github.com/fluxbase-eu/criteria/internal/predicate"
	"github.com/fluxbase-eu/criteria/internal/query"
)

// Filter resolver defaults.
const (
	DefaultFilterLimit     = 10
	DefaultFilterMinLength = 3
	// endOfDay advances an upper date bound to the last second of its day.
	endOfDay = 86399
)

// DefaultFilterMap returns the default filter parameter map.
func DefaultFilterMap() ParameterMap {
	return ParameterMap{
		ParamFilter: ParamFilter,
		"|eq|":      "=",
		"|neq|":     "<>",
		"|gt|":      ">",
		"|gte|":     ">=",
		"|lt|":      "<",
		"|lte|":     "<=",
	}
}

var jsonPathSegment = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// FilterResolver builds the WHERE predicate tree. It accepts:
//
//	?Id=1&Name=demo                                   implicit field map
//	?filter[Id]=1&filter[Name]=demo                   field map
//	?filter[CreatedAt][gte]=9/29/2014                 operator map
//	?filter=[{"predicate":"like","identifier":"Name","like":"demo"}]
//	?filter=ntd1712                                   free-text search
type FilterResolver struct {
	limit      int
	minLength  int
	params     ParameterMap
	operators  *strings.Replacer
	reserved   map[string]bool
	permit     *permit.Permit
	escaper    escape.Escaper
	newBuilder func() predicate.Builder
}

// NewFilterResolver returns a filter resolver with the default configuration
// and an empty permit.
func NewFilterResolver() *FilterResolver {
	r := &FilterResolver{
		limit:      DefaultFilterLimit,
		minLength:  DefaultFilterMinLength,
		reserved:   map[string]bool{},
		permit:     permit.New(),
		escaper:    escape.New(),
		newBuilder: func() predicate.Builder { return predicate.NewBuilder() },
	}
	return r.SetParameterMap(DefaultFilterMap())
}

func (r *FilterResolver) Name() string { return "filter" }

// SetLimit sets the maximum number of fields free-text search matches.
func (r *FilterResolver) SetLimit(limit int) *FilterResolver {
	r.limit = limit
	return r
}

// SetMinLength sets the input length, in characters, below which free-text
// search only considers fixed fields.
func (r *FilterResolver) SetMinLength(n int) *FilterResolver {
	r.minLength = n
	return r
}

// SetParameterMap replaces the parameter map, operator tokens included.
func (r *FilterResolver) SetParameterMap(m ParameterMap) *FilterResolver {
	r.params = m.Clone()

	ops := m.Operators()
	tokens := make([]string, 0, len(ops))
	for token := range ops {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	pairs := make([]string, 0, 2*len(tokens))
	for _, token := range tokens {
		pairs = append(pairs, token, ops[token])
	}
	r.operators = strings.NewReplacer(pairs...)
	return r
}

// SetPermit sets the field allow-list.
func (r *FilterResolver) SetPermit(p *permit.Permit) *FilterResolver {
	r.permit = p
	return r
}

// SetReserved names query keys that never count as implicit filter fields,
// typically the keys of the other resolvers.
func (r *FilterResolver) SetReserved(keys ...string) *FilterResolver {
	r.reserved = make(map[string]bool, len(keys))
	for _, k := range keys {
		r.reserved[k] = true
	}
	return r
}

// SetEscaper replaces the value escaper.
func (r *FilterResolver) SetEscaper(e escape.Escaper) *FilterResolver {
	r.escaper = e
	return r
}

// SetBuilderFactory replaces the predicate builder constructor.
func (r *FilterResolver) SetBuilderFactory(fn func() predicate.Builder) *FilterResolver {
	r.newBuilder = fn
	return r
}

// Resolve builds the predicate tree for q and merges it into c.Where.
func (r *FilterResolver) Resolve(q query.Query, c *Criteria) (*Criteria, bool) {
	var source interface{}

	if v, ok := q[r.params.Key(ParamFilter)]; ok && v != nil && v != "" {
		source = v
		if s, ok := v.(string); ok {
			source = r.decodeSource(s)
		}
	} else {
		implicit := r.implicitFields(q)
		if len(implicit) == 0 {
			return c, false
		}
		source = implicit
	}

	b := r.newBuilder()
	r.sanitize(source, b)
	set := b.Set()

	c = ensure(c)
	if set.Len() == 0 {
		return c, true
	}

	if c.Where != nil {
		set.AddPredicates(c.Where)
	}
	c.Where = set

	log.Debug().
		Int("predicates", set.Len()).
		Msg("Filter resolved")

	return c, true
}

// decodeSource URL-decodes a filter string and decodes it as JSON when it
// looks like a JSON document. Invalid JSON stays a search string.
func (r *FilterResolver) decodeSource(s string) interface{} {
	s = decode(s)
	if !strings.Contains(s, "{") {
		return s
	}
	decoded, err := query.DecodeJSON(s)
	if err != nil || decoded == nil {
		log.Debug().Err(err).Msg("Filter is not valid JSON, using free-text search")
		return s
	}
	return decoded
}

// implicitFields returns the top-level query keys that are not parameters.
func (r *FilterResolver) implicitFields(q query.Query) query.Pairs {
	entries, _ := query.Entries(q)
	fields := query.Pairs{}
	for _, e := range entries {
		if r.params.reserves(e.Key) || r.reserved[e.Key] {
			continue
		}
		fields = append(fields, e)
	}
	return fields
}

func (r *FilterResolver) sanitize(node interface{}, b predicate.Builder) {
	switch query.Classify(node) {
	case query.KindMap, query.KindList:
		entries, _ := query.Entries(node)
		for _, e := range entries {
			r.sanitizeEntry(e, b)
		}
	case query.KindString, query.KindScalar:
		r.search(query.String(node), b)
	}
}

func (r *FilterResolver) sanitizeEntry(e query.Pair, b predicate.Builder) {
	if !query.IsIndex(e.Key) {
		switch query.Classify(e.Value) {
		case query.KindMap, query.KindList:
			if !r.permit.Has(e.Key) {
				log.Debug().Str("field", e.Key).Msg("Filter field not permitted")
				return
			}
			if clause, ok := r.operatorClause(e.Key, e.Value); ok {
				clause(b)
			}
		case query.KindString, query.KindScalar:
			r.apply(descriptor{query.Pairs{
				{Key: "predicate", Value: string(predicate.KindEqualTo)},
				{Key: "left", Value: e.Key},
				{Key: "right", Value: e.Value},
			}}, b)
		}
		return
	}

	if query.Classify(e.Value) != query.KindMap {
		return
	}
	d := descriptor{e.Value}
	if d.str("predicate") == "" {
		return
	}
	r.apply(d, b)
}

// clause adds one leaf to a builder.
type clause func(b predicate.Builder)

// apply opens or closes a group as the descriptor asks, then adds its leaf
// joined with OR when combine says so.
func (r *FilterResolver) apply(d descriptor, b predicate.Builder) {
	switch d.str("nesting") {
	case "nest":
		b.Nest()
	case "unnest":
		b.Unnest()
	}

	add, ok := r.build(d)
	if !ok {
		log.Debug().
			Str("predicate", d.str("predicate")).
			Msg("Filter clause dropped")
		return
	}

	if strings.EqualFold(d.str("combine"), string(predicate.JoinOr)) {
		b.Or()
	}
	add(b)
}

func (r *FilterResolver) build(d descriptor) (clause, bool) {
	kind := predicate.Kind(d.str("predicate"))
	switch kind {
	case predicate.KindBetween, predicate.KindNotBetween:
		return r.betweenClause(kind, d)
	case predicate.KindEqualTo, predicate.KindNotEqualTo,
		predicate.KindLessThan, predicate.KindGreaterThan,
		predicate.KindLessThanOrEqualTo, predicate.KindGreaterThanOrEqualTo:
		return r.comparisonClause(kind, d)
	case predicate.KindExpression, "expr":
		return r.expressionClause(d)
	case predicate.KindIn, predicate.KindNotIn:
		return r.inClause(kind, d)
	case predicate.KindIsNull, predicate.KindIsNotNull:
		return r.nullClause(kind, d)
	case predicate.KindLike, predicate.KindNotLike:
		return r.likeClause(kind, d)
	case predicate.KindLiteral:
		return r.literalClause(d)
	}
	return nil, false
}

func (r *FilterResolver) betweenClause(kind predicate.Kind, d descriptor) (clause, bool) {
	identifier := d.str("identifier")
	low, hasLow := d.scalar("minValue")
	high, hasHigh := d.scalar("maxValue")
	if identifier == "" || !hasLow || !hasHigh || !r.permitted(identifier) {
		return nil, false
	}
	if !r.safe(low) || !r.safe(high) {
		return nil, false
	}

	minValue := r.escaper.Date(low, 0)
	maxValue := r.escaper.Date(high, endOfDay)

	return func(b predicate.Builder) {
		if kind == predicate.KindNotBetween {
			b.NotBetween(identifier, minValue, maxValue)
			return
		}
		b.Between(identifier, minValue, maxValue)
	}, true
}

func (r *FilterResolver) comparisonClause(kind predicate.Kind, d descriptor) (clause, bool) {
	left, hasLeft := d.scalar("left")
	right, hasRight := d.scalar("right")
	if !hasLeft || !hasRight {
		return nil, false
	}

	leftType := predicate.TypeIdentifier
	if d.str("leftType") == string(predicate.TypeValue) {
		leftType = predicate.TypeValue
	}
	rightType := predicate.TypeValue
	if d.str("rightType") == string(predicate.TypeIdentifier) {
		rightType = predicate.TypeIdentifier
	}
	if leftType == rightType {
		leftType, rightType = predicate.TypeIdentifier, predicate.TypeValue
	}

	value := right
	if leftType == predicate.TypeValue {
		value = left
	}
	if !r.safe(value) {
		return nil, false
	}

	var lo, ro predicate.Operand
	var ok bool
	if leftType == predicate.TypeValue {
		lo = predicate.Value(r.escaper.Date(left, 0))
		ro, ok = r.identifierOperand(query.String(right))
	} else {
		lo, ok = r.identifierOperand(query.String(left))
		ro = predicate.Value(r.escaper.Date(right, 0))
	}
	if !ok {
		return nil, false
	}

	return func(b predicate.Builder) {
		b.Compare(kind, lo, ro)
	}, true
}

// identifierOperand checks the first dotted segment against the permit. A
// dotted name becomes a JSON path extraction from the base field.
func (r *FilterResolver) identifierOperand(name string) (predicate.Operand, bool) {
	parts := strings.Split(name, ".")
	if !r.permitted(parts[0]) {
		return predicate.Operand{}, false
	}
	if len(parts) == 1 {
		return predicate.Identifier(name), true
	}
	for _, segment := range parts[1:] {
		if !jsonPathSegment.MatchString(segment) {
			log.Debug().Str("field", name).Msg("Invalid JSON path in filter")
			return predicate.Operand{}, false
		}
	}
	return predicate.JSONPath(parts[0], parts[1:]...), true
}

func (r *FilterResolver) expressionClause(d descriptor) (clause, bool) {
	text := d.str("expression")
	if text == "" {
		return nil, false
	}
	text = r.operators.Replace(r.escaper.Scalar(text))
	if text == "" {
		return nil, false
	}

	var params []predicate.Param
	if raw, ok := d.get("parameters"); ok && raw != nil {
		values, isList := query.Entries(raw)
		if !isList {
			values = []query.Pair{{Value: raw}}
		}
		for _, v := range values {
			if !query.IsScalar(v.Value) {
				continue
			}
			name := query.String(v.Value)
			if r.permit.Has(name) {
				params = append(params, predicate.Param{Value: name, Identifier: true})
				continue
			}
			// Markup in any value drops the whole expression
			if !r.safe(v.Value) {
				return nil, false
			}
			params = append(params, predicate.Param{Value: r.escaper.Unquoted(v.Value)})
		}
	}

	return func(b predicate.Builder) {
		b.Expression(text, params)
	}, true
}

// operatorClause turns {gte: X, lte: Y} for field into one AND-combined
// expression. Unknown operators are skipped; with none left there is no clause.
func (r *FilterResolver) operatorClause(field string, ops interface{}) (clause, bool) {
	entries, _ := query.Entries(ops)

	params := []predicate.Param{{Value: field, Identifier: true}}
	var parts []string
	for _, e := range entries {
		token := "|" + strings.ToLower(e.Key) + "|"
		if _, ok := r.params[token]; !ok || !query.IsScalar(e.Value) || !r.safe(e.Value) {
			continue
		}
		parts = append(parts, fmt.Sprintf("?0 %s ?%d", token, len(params)))
		params = append(params, predicate.Param{Value: r.escaper.Unquoted(e.Value)})
	}
	if len(parts) == 0 {
		return nil, false
	}

	text := r.operators.Replace("(" + strings.Join(parts, ") AND (") + ")")
	return func(b predicate.Builder) {
		b.Expression(text, params)
	}, true
}

func (r *FilterResolver) inClause(kind predicate.Kind, d descriptor) (clause, bool) {
	rawIdentifier, _ := d.get("identifier")
	rawValues, _ := d.get("valueSet")

	var identifiers []string
	switch query.Classify(rawIdentifier) {
	case query.KindString:
		if name := query.String(rawIdentifier); r.permitted(name) {
			identifiers = []string{name}
		}
	case query.KindList, query.KindMap:
		entries, _ := query.Entries(rawIdentifier)
		for _, e := range entries {
			if name, ok := e.Value.(string); ok && r.permitted(name) {
				identifiers = append(identifiers, name)
			}
		}
	}
	if len(identifiers) == 0 {
		return nil, false
	}

	entries, ok := query.Entries(rawValues)
	if !ok {
		return nil, false
	}
	values := make([]string, 0, len(entries))
	for _, e := range entries {
		if !query.IsScalar(e.Value) || !r.safe(e.Value) {
			continue
		}
		values = append(values, r.escaper.Quote(e.Value))
	}
	if len(values) == 0 {
		return nil, false
	}

	return func(b predicate.Builder) {
		if kind == predicate.KindNotIn {
			b.NotIn(identifiers, values)
			return
		}
		b.In(identifiers, values)
	}, true
}

func (r *FilterResolver) nullClause(kind predicate.Kind, d descriptor) (clause, bool) {
	identifier := d.str("identifier")
	if identifier == "" || !r.permitted(identifier) {
		return nil, false
	}
	return func(b predicate.Builder) {
		if kind == predicate.KindIsNotNull {
			b.IsNotNull(identifier)
			return
		}
		b.IsNull(identifier)
	}, true
}

func (r *FilterResolver) likeClause(kind predicate.Kind, d descriptor) (clause, bool) {
	identifier := d.str("identifier")
	value, ok := d.scalar(string(kind))
	if identifier == "" || !ok || query.Empty(value) || !r.permitted(identifier) || !r.safe(value) {
		return nil, false
	}

	pattern := "'%" + r.escaper.Unquoted(value) + "%'"
	return func(b predicate.Builder) {
		if kind == predicate.KindNotLike {
			b.NotLike(identifier, pattern)
			return
		}
		b.Like(identifier, pattern)
	}, true
}

func (r *FilterResolver) literalClause(d descriptor) (clause, bool) {
	text := d.str("literal")
	if text == "" {
		return nil, false
	}
	text = r.escaper.Scalar(text)
	if text == "" {
		return nil, false
	}
	return func(b predicate.Builder) {
		b.Literal(text)
	}, true
}

// search adds an OR group matching text against the searchable fields:
// exact match on fixed fields, LIKE '%text%' on the others. Non-fixed fields
// are only considered when text is at least minLength characters long.
func (r *FilterResolver) search(text string, b predicate.Builder) {
	if !r.safe(text) {
		return
	}
	searchable := utf8.RuneCountInString(text) >= r.minLength
	if !searchable && !r.permit.HasFixed() {
		log.Debug().
			Int("length", utf8.RuneCountInString(text)).
			Int("min_length", r.minLength).
			Msg("Search text too short")
		return
	}

	body := r.escaper.Unquoted(text)
	equal := "'" + body + "'"
	like := "'%" + body + "%'"

	group := r.newBuilder()
	count := 0
	for _, f := range r.permit.Fields() {
		if !f.Searchable() || (!searchable && !f.Fixed) {
			continue
		}

		group.Or()
		if f.Fixed {
			group.EqualTo(predicate.Identifier(f.Name), predicate.Value(equal))
		} else {
			group.Like(f.Name, like)
		}

		count++
		if count >= r.limit {
			break
		}
	}

	if group.Set().Len() > 0 {
		b.AddPredicate(group.Set())
	}
}

// safe reports whether the escaper keeps v. Values carrying markup drop the
// clause they belong to.
func (r *FilterResolver) safe(v interface{}) bool {
	if r.escaper.Safe(v) {
		return true
	}
	log.Debug().Msg("Filter value carries markup")
	return false
}

func (r *FilterResolver) permitted(name string) bool {
	if r.permit.Has(name) {
		return true
	}
	log.Debug().Str("field", name).Msg("Filter field not permitted")
	return false
}

// descriptor reads the keys of one filter descriptor.
type descriptor struct {
	v interface{}
}

func (d descriptor) get(key string) (interface{}, bool) {
	return query.Lookup(d.v, key)
}

func (d descriptor) str(key string) string {
	v, ok := d.get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// scalar returns a present, non-nil scalar value.
func (d descriptor) scalar(key string) (interface{}, bool) {
	v, ok := d.get(key)
	if !ok || v == nil || !query.IsScalar(v) {
		return nil, false
	}
	return v, true
}
