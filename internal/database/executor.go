package database

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Executor defines the read-only query operations the schema inspector needs.
// This interface abstracts database access for easier testing via mocks.
type Executor interface {
	// Query executes a query that returns rows
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)

	// QueryRow executes a query that returns a single row
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row

	// Health checks the health of the database connection
	Health(ctx context.Context) error
}

var _ Executor = (*Connection)(nil)
