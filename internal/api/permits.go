package api

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/fluxbase-eu/criteria/internal/config"
	"github.com/fluxbase-eu/criteria/internal/permit"
)

// ErrUnknownTable is returned for tables missing from the configuration
var ErrUnknownTable = errors.New("unknown table")

// PermitStore supplies introspected permits
type PermitStore interface {
	Get(ctx context.Context, schema, table string) (*permit.Permit, error)
	Invalidate(schema, table string)
}

// TablePermits resolves the allow-list of a configured table. Static fields
// from the configuration win; tables without fields are introspected
// through the store.
type TablePermits struct {
	config *config.Config
	store  PermitStore
}

// NewTablePermits creates a permit lookup. store may be nil when the
// database is disabled.
func NewTablePermits(cfg *config.Config, store PermitStore) *TablePermits {
	return &TablePermits{config: cfg, store: store}
}

// TableInfo describes a configured table
type TableInfo struct {
	Name   string         `json:"name"`
	Schema string         `json:"schema"`
	Source string         `json:"source"`
	Fields []permit.Field `json:"fields,omitempty"`
}

// Permit sources
const (
	SourceConfig   = "config"
	SourceDatabase = "database"
)

// Schema returns the schema a table lives in
func (tp *TablePermits) Schema(tc *config.TableConfig) string {
	if tc.Schema != "" {
		return tc.Schema
	}
	if tp.config.Database.Schema != "" {
		return tp.config.Database.Schema
	}
	return "public"
}

// Lookup returns the table configuration, its schema and its permit
func (tp *TablePermits) Lookup(ctx context.Context, table string) (*config.TableConfig, *permit.Permit, error) {
	tc, ok := tp.config.Table(table)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	if p := tc.Permit(); p != nil {
		return tc, p, nil
	}

	if tp.store == nil {
		return nil, nil, fmt.Errorf("table %s has no fields and no database is configured", table)
	}

	p, err := tp.store.Get(ctx, tp.Schema(tc), tc.Name)
	if err != nil {
		return nil, nil, err
	}
	return tc, p, nil
}

// Invalidate drops the introspected permit of a table. It reports false for
// tables that are unknown or use static fields.
func (tp *TablePermits) Invalidate(table string) bool {
	tc, ok := tp.config.Table(table)
	if !ok || len(tc.Fields) > 0 || tp.store == nil {
		return false
	}
	tp.store.Invalidate(tp.Schema(tc), tc.Name)
	return true
}

// Tables lists the configured tables by name
func (tp *TablePermits) Tables() []TableInfo {
	tables := make([]TableInfo, 0, len(tp.config.Tables))
	for i := range tp.config.Tables {
		tc := &tp.config.Tables[i]
		info := TableInfo{Name: tc.Name, Schema: tp.Schema(tc), Source: SourceDatabase}
		if len(tc.Fields) > 0 {
			info.Source = SourceConfig
			info.Fields = tc.Fields
		}
		tables = append(tables, info)
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })
	return tables
}
