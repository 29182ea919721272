package observability

import (
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	return NewMetricsWithRegistry(reg, reg)
}

func TestStatusClass(t *testing.T) {
	testCases := []struct {
		status   int
		expected string
	}{
		{200, "2xx"},
		{204, "2xx"},
		{301, "3xx"},
		{400, "4xx"},
		{404, "4xx"},
		{500, "5xx"},
		{503, "5xx"},
		{600, "5xx"},
		{100, "unknown"},
		{0, "unknown"},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("status_%d", tc.status), func(t *testing.T) {
			assert.Equal(t, tc.expected, statusClass(tc.status))
		})
	}
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "/api/v1/criteria/:table", normalizePath("/api/v1/criteria/:table"))
	assert.Equal(t, "long_path", normalizePath("/"+strings.Repeat("a", 60)))
	assert.Equal(t, "unmatched", normalizePath(""))
}

func TestMetrics_ObserveResolver(t *testing.T) {
	m := newTestMetrics()

	m.ObserveResolver("filter", true, time.Millisecond)
	m.ObserveResolver("filter", false, time.Millisecond)
	m.ObserveResolver("filter", true, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.resolverRunsTotal.WithLabelValues("filter", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.resolverRunsTotal.WithLabelValues("filter", "false")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.resolverDuration))
}

func TestMetrics_Records(t *testing.T) {
	m := newTestMetrics()

	m.RecordPermitLookup(true)
	m.RecordPermitLookup(false)
	m.RecordPermitLookup(true)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.permitLookupsTotal.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.permitLookupsTotal.WithLabelValues("miss")))

	m.RecordDBQuery("select", "columns", time.Millisecond, nil)
	m.RecordDBQuery("select", "columns", time.Millisecond, assert.AnError)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dbQueriesTotal.WithLabelValues("select", "columns", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dbQueriesTotal.WithLabelValues("select", "columns", "error")))

	m.UpdateDBStats(4, 1, 10)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.dbConnections))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dbConnectionsIdle))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.dbConnectionsMax))

	m.RecordPredicates(3)
	assert.Equal(t, 1, testutil.CollectAndCount(m.criteriaPredicates))

	m.UpdateUptime(time.Now().Add(-time.Minute))
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.systemUptime), 60.0)
}

func TestMetrics_Middleware(t *testing.T) {
	m := newTestMetrics()

	app := fiber.New()
	app.Use(m.MetricsMiddleware())
	app.Get("/api/v1/criteria/:table", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Get("/metrics", m.Handler())

	for _, table := range []string{"users", "orders"} {
		resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/criteria/"+table, nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(
		m.httpRequestsTotal.WithLabelValues("GET", "/api/v1/criteria/:table", "2xx")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.httpRequestsInFlight))

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "criteria_http_requests_total")
}
