package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fluxbase-eu/criteria/internal/observability"
	"github.com/fluxbase-eu/criteria/internal/permit"
)

const columnsQuery = `
	SELECT
		column_name,
		CASE
			WHEN data_type = 'USER-DEFINED' THEN udt_name
			ELSE data_type
		END AS data_type,
		is_nullable,
		character_maximum_length,
		ordinal_position
	FROM information_schema.columns
	WHERE table_schema = $1 AND table_name = $2
	ORDER BY ordinal_position
`

// SchemaInspector turns PostgreSQL column metadata into permits
type SchemaInspector struct {
	exec Executor
}

// ColumnInfo represents metadata about a table column
type ColumnInfo struct {
	Name       string `json:"name"`
	DataType   string `json:"data_type"`
	IsNullable bool   `json:"is_nullable"`
	MaxLength  *int   `json:"max_length"`
	Position   int    `json:"position"`
}

// NewSchemaInspector creates a new schema inspector
func NewSchemaInspector(exec Executor) *SchemaInspector {
	return &SchemaInspector{exec: exec}
}

// GetColumns retrieves the columns of a table or view in ordinal order
func (si *SchemaInspector) GetColumns(ctx context.Context, schema, table string) (columns []ColumnInfo, err error) {
	ctx, span := observability.StartDBSpan(ctx, "introspect", schema+"."+table)
	defer func() { observability.EndDBSpan(span, err) }()

	rows, err := si.exec.Query(ctx, columnsQuery, schema, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns of %s.%s: %w", schema, table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var col ColumnInfo
		var isNullable string
		var maxLength *int32

		if err := rows.Scan(&col.Name, &col.DataType, &isNullable, &maxLength, &col.Position); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s.%s: %w", schema, table, err)
		}

		col.IsNullable = isNullable == "YES"
		if maxLength != nil {
			length := int(*maxLength)
			col.MaxLength = &length
		}

		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read columns of %s.%s: %w", schema, table, err)
	}

	return columns, nil
}

// FieldType maps a PostgreSQL data type to a permit field type. fixed is
// true for blank-padded character columns.
func FieldType(dataType string) (typ string, fixed bool) {
	switch strings.ToLower(strings.TrimSpace(dataType)) {
	case "character", "char", "bpchar":
		return permit.TypeString, true
	case "character varying", "varchar":
		return permit.TypeString, false
	case "text", "citext", "name":
		return permit.TypeText, false
	case "smallint", "integer", "bigint", "int2", "int4", "int8":
		return permit.TypeInteger, false
	case "numeric", "decimal", "real", "double precision", "float4", "float8":
		return permit.TypeFloat, false
	case "boolean", "bool":
		return permit.TypeBoolean, false
	case "date":
		return permit.TypeDate, false
	case "json", "jsonb":
		return permit.TypeJSON, false
	}

	lower := strings.ToLower(dataType)
	if strings.HasPrefix(lower, "timestamp") || strings.HasPrefix(lower, "time") {
		return permit.TypeDateTime, false
	}

	return lower, false
}

// ColumnPermit builds a permit from columns in their given order
func ColumnPermit(columns []ColumnInfo) *permit.Permit {
	p := permit.New()
	for _, col := range columns {
		typ, fixed := FieldType(col.DataType)
		p.Add(permit.Field{Name: col.Name, Type: typ, Fixed: fixed})
	}
	return p
}

// Permit introspects schema.table into a permit. ErrTableNotFound is
// returned when the table has no visible columns.
func (si *SchemaInspector) Permit(ctx context.Context, schema, table string) (*permit.Permit, error) {
	columns, err := si.GetColumns(ctx, schema, table)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("%s.%s: %w", schema, table, ErrTableNotFound)
	}

	log.Debug().
		Str("schema", schema).
		Str("table", table).
		Int("columns", len(columns)).
		Msg("Introspected table permit")

	return ColumnPermit(columns), nil
}
