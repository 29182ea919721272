package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fluxbase-eu/criteria/internal/config"
	"github.com/fluxbase-eu/criteria/internal/database"
	"github.com/fluxbase-eu/criteria/internal/logutil"
	"github.com/fluxbase-eu/criteria/internal/middleware"
	"github.com/fluxbase-eu/criteria/internal/observability"
	"github.com/fluxbase-eu/criteria/internal/query"
	"github.com/fluxbase-eu/criteria/internal/resolver"
	"github.com/fluxbase-eu/criteria/internal/sqlbuilder"
)

// CriteriaResponse is the result of resolving a request query
type CriteriaResponse struct {
	Table    string             `json:"table"`
	Criteria *resolver.Criteria `json:"criteria"`
	Matched  []string           `json:"matched"`
	SQL      string             `json:"sql"`
	CountSQL string             `json:"count_sql"`
}

// CriteriaHandler resolves request queries into criteria and SQL
type CriteriaHandler struct {
	config  *config.Config
	permits *TablePermits
	metrics *observability.Metrics
	tracer  *observability.Tracer
}

// NewCriteriaHandler creates a new criteria handler
func NewCriteriaHandler(cfg *config.Config, permits *TablePermits, metrics *observability.Metrics, tracer *observability.Tracer) *CriteriaHandler {
	return &CriteriaHandler{
		config:  cfg,
		permits: permits,
		metrics: metrics,
		tracer:  tracer,
	}
}

// Resolve handles GET /api/v1/criteria/:table
func (h *CriteriaHandler) Resolve(c *fiber.Ctx) error {
	table := c.Params("table")
	c.Locals(middleware.LocalTable, table)

	ctx, span := h.tracer.StartResolveSpan(middleware.TraceContext(c), table)

	tc, p, err := h.permits.Lookup(ctx, table)
	if err != nil {
		observability.EndResolveSpan(span, nil, 0, err)
		return h.permitError(c, table, err)
	}

	q, err := query.Parse(string(c.Request().URI().QueryString()))
	if err != nil {
		observability.EndResolveSpan(span, nil, 0, err)
		return SendErrorWithMessage(c, fiber.StatusBadRequest, "Invalid query string", CodeInvalidQuery, err.Error())
	}

	chain := h.config.Chain(p)
	if h.metrics != nil {
		chain.SetObserver(h.metrics.ObserveResolver)
	}
	criteria, matched := chain.ResolveAll(q, nil)
	if matched == nil {
		matched = []string{}
	}
	c.Locals(middleware.LocalMatched, matched)

	predicates := criteria.Where.Len()
	if h.metrics != nil {
		h.metrics.RecordPredicates(predicates)
	}

	sql, countSQL, err := render(h.permits.Schema(tc), tc.Name, criteria)
	if err != nil {
		observability.EndResolveSpan(span, matched, predicates, err)
		log.Error().Err(err).Str("table", table).Msg("Failed to render criteria")
		return SendErrorWithMessage(c, fiber.StatusInternalServerError, "Failed to render criteria", CodeRenderFailed, err.Error())
	}

	observability.EndResolveSpan(span, matched, predicates, nil)
	middleware.AddSpanEvent(c, "criteria.resolved", attribute.Int("criteria.predicates", predicates))

	log.Debug().
		Str("table", table).
		Strs("matched", matched).
		Str("sql", logutil.SanitizeSQL(sql)).
		Msg("Criteria resolved")

	return c.JSON(CriteriaResponse{
		Table:    table,
		Criteria: criteria,
		Matched:  matched,
		SQL:      sql,
		CountSQL: countSQL,
	})
}

func render(schema, table string, criteria *resolver.Criteria) (sql, countSQL string, err error) {
	builder := sqlbuilder.NewSelectBuilder(schema, table)
	if sql, err = builder.Build(criteria); err != nil {
		return "", "", err
	}
	if countSQL, err = builder.BuildCount(criteria); err != nil {
		return "", "", err
	}
	return sql, countSQL, nil
}

func (h *CriteriaHandler) permitError(c *fiber.Ctx, table string, err error) error {
	switch {
	case errors.Is(err, ErrUnknownTable), errors.Is(err, database.ErrTableNotFound), database.IsUndefinedTable(err):
		return SendErrorWithCode(c, fiber.StatusNotFound, "Table not found: "+table, CodeUnknownTable)
	default:
		log.Error().Err(err).Str("table", table).Msg("Failed to load table permit")
		return SendErrorWithCode(c, fiber.StatusServiceUnavailable, "Table permit unavailable", CodePermitFailed)
	}
}

// ListTables handles GET /api/v1/tables
func (h *CriteriaHandler) ListTables(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"tables": h.permits.Tables()})
}

// InvalidatePermit handles DELETE /api/v1/tables/:table/permit
func (h *CriteriaHandler) InvalidatePermit(c *fiber.Ctx) error {
	table := c.Params("table")
	if _, ok := h.config.Table(table); !ok {
		return SendErrorWithCode(c, fiber.StatusNotFound, "Table not found: "+table, CodeUnknownTable)
	}
	if !h.permits.Invalidate(table) {
		return SendErrorWithCode(c, fiber.StatusConflict, "Table uses a static permit", "STATIC_PERMIT")
	}
	return c.SendStatus(fiber.StatusNoContent)
}
