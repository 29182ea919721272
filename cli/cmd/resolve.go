package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fluxbase-eu/criteria/internal/api"
	"github.com/fluxbase-eu/criteria/internal/config"
	"github.com/fluxbase-eu/criteria/internal/database"
	"github.com/fluxbase-eu/criteria/internal/query"
	"github.com/fluxbase-eu/criteria/internal/resolver"
	"github.com/fluxbase-eu/criteria/internal/sqlbuilder"
)

// resolveResult is the printable outcome of one resolution
type resolveResult struct {
	Table    string   `json:"table" yaml:"table"`
	Matched  []string `json:"matched" yaml:"matched"`
	Where    string   `json:"where,omitempty" yaml:"where,omitempty"`
	Order    string   `json:"order,omitempty" yaml:"order,omitempty"`
	Limit    *int     `json:"limit,omitempty" yaml:"limit,omitempty"`
	Offset   *int     `json:"offset,omitempty" yaml:"offset,omitempty"`
	Page     *int     `json:"page,omitempty" yaml:"page,omitempty"`
	SQL      string   `json:"sql" yaml:"sql"`
	CountSQL string   `json:"count_sql" yaml:"count_sql"`
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <table> [query]",
	Short: "Resolve a query string into criteria and SQL",
	Long: `Resolve a raw query string against the allow-list of a configured table.

Examples:
  criteria resolve users 'Name=demo&order=-Id&page=2'
  criteria resolve users 'filter[Id][gte]=10' -o json
  criteria resolve events '?search=login' --config ./criteria.yaml`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runResolve,
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	raw := ""
	if len(args) > 1 {
		raw = args[1]
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	permits, closeFn, err := openPermits(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	result, err := resolveTable(ctx, cfg, permits, args[0], raw)
	if err != nil {
		return err
	}

	return formatter.PrintKeyValues(result.pairs(), result)
}

func resolveTable(ctx context.Context, cfg *config.Config, permits *api.TablePermits, table, raw string) (*resolveResult, error) {
	tc, p, err := permits.Lookup(ctx, table)
	if err != nil {
		return nil, err
	}

	q, err := query.Parse(raw)
	if err != nil {
		return nil, err
	}

	criteria, matched := cfg.Chain(p).ResolveAll(q, nil)

	builder := sqlbuilder.NewSelectBuilder(permits.Schema(tc), tc.Name)
	sql, err := builder.Build(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to render criteria: %w", err)
	}
	countSQL, err := builder.BuildCount(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to render criteria: %w", err)
	}

	result := &resolveResult{
		Table:    tc.Name,
		Matched:  matched,
		Limit:    criteria.Limit,
		Offset:   criteria.Offset,
		Page:     criteria.Page,
		SQL:      sql,
		CountSQL: countSQL,
	}
	if result.Matched == nil {
		result.Matched = []string{}
	}
	if criteria.Where != nil {
		result.Where = criteria.Where.String()
	}
	result.Order = orderString(criteria)

	return result, nil
}

func orderString(c *resolver.Criteria) string {
	if c.Order != nil && c.Order.Len() > 0 {
		return c.Order.String()
	}
	return c.OrderClause
}

func (r *resolveResult) pairs() [][2]string {
	matched := strings.Join(r.Matched, ", ")
	if matched == "" {
		matched = "-"
	}
	pairs := [][2]string{
		{"Table", r.Table},
		{"Matched", matched},
	}
	if r.Where != "" {
		pairs = append(pairs, [2]string{"Where", r.Where})
	}
	if r.Order != "" {
		pairs = append(pairs, [2]string{"Order", r.Order})
	}
	for _, kv := range []struct {
		key   string
		value *int
	}{{"Limit", r.Limit}, {"Offset", r.Offset}, {"Page", r.Page}} {
		if kv.value != nil {
			pairs = append(pairs, [2]string{kv.key, strconv.Itoa(*kv.value)})
		}
	}
	return append(pairs, [2]string{"SQL", r.SQL}, [2]string{"Count SQL", r.CountSQL})
}

// openPermits returns the permit lookup of cfg. Tables without static
// fields are introspected, which needs the database.
func openPermits(ctx context.Context, cfg *config.Config) (*api.TablePermits, func(), error) {
	if !cfg.Database.Enabled {
		return api.NewTablePermits(cfg, nil), func() {}, nil
	}

	db, err := database.NewConnection(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	cache := database.NewPermitCache(database.NewSchemaInspector(db), 0)
	return api.NewTablePermits(cfg, cache), db.Close, nil
}
