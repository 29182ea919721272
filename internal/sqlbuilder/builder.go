// Package sqlbuilder renders resolved criteria as PostgreSQL statements.
package sqlbuilder

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/fluxbase-eu/criteria/internal/predicate"
	"github.com/fluxbase-eu/criteria/internal/resolver"
)

// SelectBuilder provides a fluent interface for building SELECT statements
// from criteria. Value operands in the criteria are already escaped, so the
// statement carries no arguments.
type SelectBuilder struct {
	schema  string
	table   string
	alias   string
	columns []string
}

// NewSelectBuilder creates a builder for the given schema and table.
func NewSelectBuilder(schema, table string) *SelectBuilder {
	return &SelectBuilder{schema: schema, table: table}
}

// WithAlias sets the table alias used to qualify columns.
func (sb *SelectBuilder) WithAlias(alias string) *SelectBuilder {
	sb.alias = alias
	return sb
}

// WithColumns sets the columns to select.
func (sb *SelectBuilder) WithColumns(columns []string) *SelectBuilder {
	sb.columns = columns
	return sb
}

// Build renders a SELECT statement for c. A nil criteria selects everything.
func (sb *SelectBuilder) Build(c *resolver.Criteria) (string, error) {
	selectClause := "*"
	if len(sb.columns) > 0 {
		quoted := make([]string, 0, len(sb.columns))
		for _, col := range sb.columns {
			quoted = append(quoted, sb.column(col))
		}
		selectClause = strings.Join(quoted, ", ")
	}

	query := "SELECT " + selectClause + " FROM " + sb.from()
	if c == nil {
		return query, nil
	}

	where, err := sb.Where(c.Where)
	if err != nil {
		return "", err
	}
	if where != "" {
		query += " WHERE " + where
	}

	if order := sb.OrderBy(c); order != "" {
		query += " ORDER BY " + order
	}

	if c.Limit != nil {
		query += fmt.Sprintf(" LIMIT %d", *c.Limit)
	}
	if c.Offset != nil {
		query += fmt.Sprintf(" OFFSET %d", *c.Offset)
	}

	return query, nil
}

// BuildCount renders a COUNT statement honouring only the WHERE clause of c.
func (sb *SelectBuilder) BuildCount(c *resolver.Criteria) (string, error) {
	query := "SELECT COUNT(*) FROM " + sb.from()
	if c == nil {
		return query, nil
	}

	where, err := sb.Where(c.Where)
	if err != nil {
		return "", err
	}
	if where != "" {
		query += " WHERE " + where
	}
	return query, nil
}

// Where renders a predicate tree. Empty groups are skipped.
func (sb *SelectBuilder) Where(set *predicate.Set) (string, error) {
	if set == nil {
		return "", nil
	}

	var b strings.Builder
	first := true
	for _, item := range set.Items {
		var part string
		var err error
		if nested, ok := item.Expr.(*predicate.Set); ok {
			part, err = sb.Where(nested)
			if part != "" {
				part = "(" + part + ")"
			}
		} else {
			part, err = sb.leaf(item.Expr)
		}
		if err != nil {
			return "", err
		}
		if part == "" {
			continue
		}
		if !first {
			b.WriteString(" " + string(item.Join) + " ")
		}
		b.WriteString(part)
		first = false
	}
	return b.String(), nil
}

// OrderBy renders the sort keys of c, or its raw order clause when no keys
// were resolved.
func (sb *SelectBuilder) OrderBy(c *resolver.Criteria) string {
	if c.Order.Len() == 0 {
		return c.OrderClause
	}
	parts := make([]string, 0, c.Order.Len())
	for _, k := range c.Order.Keys() {
		parts = append(parts, sb.column(k.Field)+" "+k.Spec())
	}
	return strings.Join(parts, ", ")
}

func (sb *SelectBuilder) leaf(expr predicate.Expr) (string, error) {
	switch e := expr.(type) {
	case *predicate.Comparison:
		return sb.operand(e.Left) + " " + predicate.Operator(e.Kind) + " " + sb.operand(e.Right), nil
	case *predicate.Between:
		op := " BETWEEN "
		if e.Kind == predicate.KindNotBetween {
			op = " NOT BETWEEN "
		}
		return sb.column(e.Identifier) + op + e.Min + " AND " + e.Max, nil
	case *predicate.In:
		columns := make([]string, 0, len(e.Identifiers))
		for _, id := range e.Identifiers {
			columns = append(columns, sb.column(id))
		}
		left := strings.Join(columns, ", ")
		if len(columns) > 1 {
			left = "(" + left + ")"
		}
		op := " IN "
		if e.Kind == predicate.KindNotIn {
			op = " NOT IN "
		}
		return left + op + "(" + strings.Join(e.Values, ", ") + ")", nil
	case *predicate.Null:
		if e.Kind == predicate.KindIsNotNull {
			return sb.column(e.Identifier) + " IS NOT NULL", nil
		}
		return sb.column(e.Identifier) + " IS NULL", nil
	case *predicate.Like:
		op := " LIKE "
		if e.Kind == predicate.KindNotLike {
			op = " NOT LIKE "
		}
		return sb.column(e.Identifier) + op + e.Pattern, nil
	case *predicate.Expression:
		return sb.expression(e), nil
	case *predicate.Literal:
		return e.Text, nil
	}
	return "", fmt.Errorf("unsupported predicate %T", expr)
}

func (sb *SelectBuilder) expression(e *predicate.Expression) string {
	text := e.Expand(func(p predicate.Param) string {
		if p.Identifier {
			return sb.column(p.Value)
		}
		return "'" + p.Value + "'"
	})

	qualifier := ""
	if sb.alias != "" {
		qualifier = pgx.Identifier{sb.alias}.Sanitize()
	}
	if qualifier == "" {
		text = strings.ReplaceAll(text, predicate.AliasPlaceholder+".", "")
	}
	return strings.ReplaceAll(text, predicate.AliasPlaceholder, qualifier)
}

func (sb *SelectBuilder) operand(o predicate.Operand) string {
	if !o.IsIdentifier() {
		return o.Value
	}
	col := sb.column(o.Value)
	if len(o.Path) > 0 {
		col += " #>> '{" + strings.Join(o.Path, ",") + "}'"
	}
	return col
}

func (sb *SelectBuilder) column(name string) string {
	if sb.alias != "" {
		return pgx.Identifier{sb.alias, name}.Sanitize()
	}
	return pgx.Identifier{name}.Sanitize()
}

func (sb *SelectBuilder) from() string {
	from := pgx.Identifier{sb.table}.Sanitize()
	if sb.schema != "" {
		from = pgx.Identifier{sb.schema, sb.table}.Sanitize()
	}
	if sb.alias != "" {
		from += " AS " + pgx.Identifier{sb.alias}.Sanitize()
	}
	return from
}
