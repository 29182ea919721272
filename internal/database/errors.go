package database

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrTableNotFound is returned when introspection finds no columns for a table
var ErrTableNotFound = errors.New("table not found")

// PostgreSQL error codes
const (
	// ErrCodeUndefinedTable is the PostgreSQL error code for a missing relation
	ErrCodeUndefinedTable = "42P01"
	// ErrCodeInsufficientPrivilege is the PostgreSQL error code for permission denied
	ErrCodeInsufficientPrivilege = "42501"
)

// IsUndefinedTable checks if an error is an undefined table error
func IsUndefinedTable(err error) bool {
	return hasCode(err, ErrCodeUndefinedTable)
}

// IsInsufficientPrivilege checks if an error is a permission error
func IsInsufficientPrivilege(err error) bool {
	return hasCode(err, ErrCodeInsufficientPrivilege)
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}
