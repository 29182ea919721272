// Package testutil provides shared test doubles for the database layer.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrMockNoQuery is returned when a MockExecutor has no rows queued for a query
var ErrMockNoQuery = errors.New("no rows queued")

// MockRows implements pgx.Rows over in-memory values. Scan assigns each value
// to the matching destination pointer, so values must have the pointed-to type
// (or be nil for a zero value).
type MockRows struct {
	Data    [][]interface{}
	NextErr error
	ScanErr error

	index  int
	closed bool
}

// NewMockRows creates rows from the given values
func NewMockRows(rows ...[]interface{}) *MockRows {
	return &MockRows{Data: rows}
}

func (m *MockRows) Close() { m.closed = true }

// Closed reports whether Close was called
func (m *MockRows) Closed() bool { return m.closed }

func (m *MockRows) Err() error { return m.NextErr }

func (m *MockRows) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }

func (m *MockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }

func (m *MockRows) Next() bool {
	if m.NextErr != nil || m.closed || m.index >= len(m.Data) {
		return false
	}
	m.index++
	return true
}

func (m *MockRows) Scan(dest ...interface{}) error {
	if m.ScanErr != nil {
		return m.ScanErr
	}
	if m.index == 0 || m.index > len(m.Data) {
		return pgx.ErrNoRows
	}
	return assign(m.Data[m.index-1], dest)
}

func (m *MockRows) Values() ([]interface{}, error) {
	if m.index == 0 || m.index > len(m.Data) {
		return nil, pgx.ErrNoRows
	}
	return m.Data[m.index-1], nil
}

func (m *MockRows) RawValues() [][]byte { return nil }

func (m *MockRows) Conn() *pgx.Conn { return nil }

// MockRow implements pgx.Row
type MockRow struct {
	Values []interface{}
	Err    error
}

func (r *MockRow) Scan(dest ...interface{}) error {
	if r.Err != nil {
		return r.Err
	}
	if r.Values == nil {
		return pgx.ErrNoRows
	}
	return assign(r.Values, dest)
}

func assign(values []interface{}, dest []interface{}) error {
	if len(dest) != len(values) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(values))
	}
	for i, d := range dest {
		ptr := reflect.ValueOf(d)
		if ptr.Kind() != reflect.Ptr || ptr.IsNil() {
			return fmt.Errorf("scan: destination %d is not a pointer", i)
		}
		target := ptr.Elem()
		if values[i] == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		v := reflect.ValueOf(values[i])
		if !v.Type().AssignableTo(target.Type()) {
			return fmt.Errorf("scan: cannot assign %s to %s", v.Type(), target.Type())
		}
		target.Set(v)
	}
	return nil
}

// ExecutedQuery records one call made against a MockExecutor
type ExecutedQuery struct {
	SQL  string
	Args []interface{}
}

// MockExecutor serves queued rows and records every query it receives
type MockExecutor struct {
	mu      sync.Mutex
	rows    []*MockRows
	queries []ExecutedQuery

	QueryErr  error
	Row       *MockRow
	HealthErr error
}

// NewMockExecutor creates an executor that returns the given rows in order,
// one set per Query call
func NewMockExecutor(rows ...*MockRows) *MockExecutor {
	return &MockExecutor{rows: rows}
}

func (m *MockExecutor) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.queries = append(m.queries, ExecutedQuery{SQL: sql, Args: args})
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	if len(m.rows) == 0 {
		return nil, ErrMockNoQuery
	}
	next := m.rows[0]
	m.rows = m.rows[1:]
	return next, nil
}

func (m *MockExecutor) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.queries = append(m.queries, ExecutedQuery{SQL: sql, Args: args})
	if m.Row == nil {
		return &MockRow{}
	}
	return m.Row
}

func (m *MockExecutor) Health(ctx context.Context) error {
	return m.HealthErr
}

// Queries returns the queries received so far
func (m *MockExecutor) Queries() []ExecutedQuery {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]ExecutedQuery, len(m.queries))
	copy(out, m.queries)
	return out
}
