package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxbase-eu/criteria/internal/config"
	"github.com/fluxbase-eu/criteria/internal/database"
	"github.com/fluxbase-eu/criteria/internal/permit"
	"github.com/fluxbase-eu/criteria/internal/resolver"
	"github.com/fluxbase-eu/criteria/internal/testutil"
)

// stubStore is a PermitStore backed by a map keyed by table name
type stubStore struct {
	permits     map[string]*permit.Permit
	err         error
	invalidated []string
}

func (s *stubStore) Get(_ context.Context, schema, table string) (*permit.Permit, error) {
	if s.err != nil {
		return nil, s.err
	}
	p, ok := s.permits[table]
	if !ok {
		return nil, database.ErrTableNotFound
	}
	return p, nil
}

func (s *stubStore) Invalidate(schema, table string) {
	s.invalidated = append(s.invalidated, schema+"."+table)
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Address:      ":0",
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
			IdleTimeout:  time.Second,
			BodyLimit:    1024 * 1024,
		},
		Database: config.DatabaseConfig{Schema: "public"},
		Filter:   config.FilterConfig{Limit: resolver.DefaultFilterLimit, MinLength: resolver.DefaultFilterMinLength},
		Order:    config.OrderConfig{Limit: resolver.DefaultOrderLimit},
		Pager:    config.PagerConfig{MaxLimit: resolver.DefaultMaxLimit},
		Tables: []config.TableConfig{
			{
				Name: "users",
				Fields: []permit.Field{
					{Name: "Id", Type: permit.TypeInteger},
					{Name: "Name", Type: permit.TypeString},
					{Name: "Email", Type: permit.TypeString},
				},
			},
			{Name: "events", Schema: "audit"},
		},
	}
}

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	return NewServer(testConfig(), opts)
}

func doRequest(t *testing.T, app *fiber.App, method, target string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

// =============================================================================
// Criteria Endpoint Tests
// =============================================================================

func TestServer_Criteria(t *testing.T) {
	server := newTestServer(t, Options{})

	status, body := doRequest(t, server.App(), fiber.MethodGet, "/api/v1/criteria/users?Name=Alice&order=-Id&page=2&limit=10")
	require.Equal(t, fiber.StatusOK, status, string(body))

	var resp struct {
		Table    string          `json:"table"`
		Criteria json.RawMessage `json:"criteria"`
		Matched  []string        `json:"matched"`
		SQL      string          `json:"sql"`
		CountSQL string          `json:"count_sql"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))

	assert.Equal(t, "users", resp.Table)
	assert.Equal(t, []string{"filter", "order", "pager"}, resp.Matched)
	assert.Contains(t, resp.SQL, `FROM "public"."users" WHERE `)
	assert.Contains(t, resp.SQL, "Alice")
	assert.Contains(t, resp.SQL, " LIMIT 10 OFFSET 10")
	assert.NotContains(t, resp.CountSQL, "LIMIT")
	assert.Contains(t, resp.CountSQL, `SELECT COUNT(*) FROM "public"."users" WHERE `)

	var criteria map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Criteria, &criteria))
	assert.Equal(t, map[string]interface{}{"Id": "DESC"}, criteria["order"])
	assert.EqualValues(t, 2, criteria["page"])
	assert.EqualValues(t, 10, criteria["offset"])
}

func TestServer_Criteria_ConditionalGet(t *testing.T) {
	server := newTestServer(t, Options{})
	target := "/api/v1/criteria/users?order=Name"

	resp, err := server.App().Test(httptest.NewRequest(fiber.MethodGet, target, nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "private, no-cache", resp.Header.Get(fiber.HeaderCacheControl))
	assert.Equal(t, "nosniff", resp.Header.Get(fiber.HeaderXContentTypeOptions))

	etag := resp.Header.Get(fiber.HeaderETag)
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(fiber.MethodGet, target, nil)
	req.Header.Set(fiber.HeaderIfNoneMatch, etag)
	resp, err = server.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotModified, resp.StatusCode)
}

func TestServer_Criteria_NoMatch(t *testing.T) {
	server := newTestServer(t, Options{})

	status, body := doRequest(t, server.App(), fiber.MethodGet, "/api/v1/criteria/users")
	require.Equal(t, fiber.StatusOK, status)

	var resp struct {
		Matched []string `json:"matched"`
		SQL     string   `json:"sql"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))

	assert.NotNil(t, resp.Matched)
	assert.Empty(t, resp.Matched)
	assert.Equal(t, `SELECT * FROM "public"."users"`, resp.SQL)
}

func TestServer_Criteria_Errors(t *testing.T) {
	tests := []struct {
		name         string
		store        PermitStore
		target       string
		expectedCode int
		errorCode    string
	}{
		{
			name:         "unknown table",
			target:       "/api/v1/criteria/accounts",
			expectedCode: fiber.StatusNotFound,
			errorCode:    CodeUnknownTable,
		},
		{
			name:         "malformed escape",
			target:       "/api/v1/criteria/users?Name=%zz",
			expectedCode: fiber.StatusBadRequest,
			errorCode:    CodeInvalidQuery,
		},
		{
			name:         "introspected table missing from database",
			store:        &stubStore{permits: map[string]*permit.Permit{}},
			target:       "/api/v1/criteria/events",
			expectedCode: fiber.StatusNotFound,
			errorCode:    CodeUnknownTable,
		},
		{
			name:         "database unavailable",
			store:        &stubStore{err: errors.New("connection refused")},
			target:       "/api/v1/criteria/events",
			expectedCode: fiber.StatusServiceUnavailable,
			errorCode:    CodePermitFailed,
		},
		{
			name:         "no store for introspected table",
			target:       "/api/v1/criteria/events",
			expectedCode: fiber.StatusServiceUnavailable,
			errorCode:    CodePermitFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(t, Options{Permits: tt.store})

			status, body := doRequest(t, server.App(), fiber.MethodGet, tt.target)
			assert.Equal(t, tt.expectedCode, status)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(body, &resp))
			assert.Equal(t, tt.errorCode, resp.Code)
			assert.NotEmpty(t, resp.Error)
			assert.NotEmpty(t, resp.RequestID)
		})
	}
}

func TestServer_Criteria_IntrospectedPermit(t *testing.T) {
	store := &stubStore{permits: map[string]*permit.Permit{
		"events": permit.New(permit.Field{Name: "kind", Type: permit.TypeString}),
	}}
	server := newTestServer(t, Options{Permits: store})

	status, body := doRequest(t, server.App(), fiber.MethodGet, "/api/v1/criteria/events?order=kind")
	require.Equal(t, fiber.StatusOK, status, string(body))

	var resp struct {
		SQL string `json:"sql"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Contains(t, resp.SQL, `FROM "audit"."events" ORDER BY `)
}

func TestServer_Criteria_RateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.Server.RateLimit = 1
	cfg.Server.RateLimitWindow = time.Minute
	server := NewServer(cfg, Options{})

	status, _ := doRequest(t, server.App(), fiber.MethodGet, "/api/v1/criteria/users")
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = doRequest(t, server.App(), fiber.MethodGet, "/api/v1/criteria/users")
	assert.Equal(t, fiber.StatusTooManyRequests, status)

	// Other routes are not limited
	status, _ = doRequest(t, server.App(), fiber.MethodGet, "/api/v1/tables")
	assert.Equal(t, fiber.StatusOK, status)
}

// =============================================================================
// Table Endpoint Tests
// =============================================================================

func TestServer_ListTables(t *testing.T) {
	server := newTestServer(t, Options{})

	status, body := doRequest(t, server.App(), fiber.MethodGet, "/api/v1/tables")
	require.Equal(t, fiber.StatusOK, status)

	var resp struct {
		Tables []TableInfo `json:"tables"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	require.Len(t, resp.Tables, 2)

	assert.Equal(t, "events", resp.Tables[0].Name)
	assert.Equal(t, "audit", resp.Tables[0].Schema)
	assert.Equal(t, SourceDatabase, resp.Tables[0].Source)
	assert.Empty(t, resp.Tables[0].Fields)

	assert.Equal(t, "users", resp.Tables[1].Name)
	assert.Equal(t, "public", resp.Tables[1].Schema)
	assert.Equal(t, SourceConfig, resp.Tables[1].Source)
	assert.Len(t, resp.Tables[1].Fields, 3)
}

func TestServer_InvalidatePermit(t *testing.T) {
	tests := []struct {
		name         string
		table        string
		expectedCode int
		invalidated  []string
	}{
		{name: "introspected table", table: "events", expectedCode: fiber.StatusNoContent, invalidated: []string{"audit.events"}},
		{name: "static table", table: "users", expectedCode: fiber.StatusConflict},
		{name: "unknown table", table: "accounts", expectedCode: fiber.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &stubStore{}
			server := newTestServer(t, Options{Permits: store})

			status, _ := doRequest(t, server.App(), fiber.MethodDelete, "/api/v1/tables/"+tt.table+"/permit")
			assert.Equal(t, tt.expectedCode, status)
			assert.Equal(t, tt.invalidated, store.invalidated)
		})
	}
}

// =============================================================================
// Health and Metrics Tests
// =============================================================================

func TestServer_Health(t *testing.T) {
	tests := []struct {
		name           string
		db             database.Executor
		expectedCode   int
		expectedStatus string
		databaseStatus string
	}{
		{
			name:           "database disabled",
			expectedCode:   fiber.StatusOK,
			expectedStatus: "ok",
			databaseStatus: "disabled",
		},
		{
			name:           "database healthy",
			db:             testutil.NewMockExecutor(),
			expectedCode:   fiber.StatusOK,
			expectedStatus: "ok",
			databaseStatus: "ok",
		},
		{
			name:           "database down",
			db:             &testutil.MockExecutor{HealthErr: errors.New("connection refused")},
			expectedCode:   fiber.StatusServiceUnavailable,
			expectedStatus: "degraded",
			databaseStatus: "unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(t, Options{DB: tt.db})

			status, body := doRequest(t, server.App(), fiber.MethodGet, "/health")
			assert.Equal(t, tt.expectedCode, status)

			var resp map[string]interface{}
			require.NoError(t, json.Unmarshal(body, &resp))
			assert.Equal(t, tt.expectedStatus, resp["status"])
			assert.EqualValues(t, 2, resp["tables"])
			assert.NotEmpty(t, resp["timestamp"])

			services, ok := resp["services"].(map[string]interface{})
			require.True(t, ok)
			assert.Equal(t, tt.databaseStatus, services["database"])
			assert.Equal(t, false, services["tracing"])
		})
	}
}

func TestServer_Metrics(t *testing.T) {
	server := newTestServer(t, Options{})

	status, _ := doRequest(t, server.App(), fiber.MethodGet, "/api/v1/criteria/users?Name=Alice")
	require.Equal(t, fiber.StatusOK, status)

	status, body := doRequest(t, server.App(), fiber.MethodGet, "/metrics")
	require.Equal(t, fiber.StatusOK, status)

	text := string(body)
	assert.Contains(t, text, "criteria_http_requests_total")
	assert.Contains(t, text, `criteria_resolver_runs_total{matched="true",resolver="filter"} 1`)
	assert.Contains(t, text, "criteria_uptime_seconds")
}

func TestServer_NotFoundRoute(t *testing.T) {
	server := newTestServer(t, Options{})

	status, body := doRequest(t, server.App(), fiber.MethodGet, "/api/v2/nothing")
	assert.Equal(t, fiber.StatusNotFound, status)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Empty(t, resp.Code)
	assert.NotEmpty(t, resp.Error)
}

func TestServer_Shutdown(t *testing.T) {
	server := newTestServer(t, Options{})
	assert.NoError(t, server.Shutdown(context.Background()))
}
