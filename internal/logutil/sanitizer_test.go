package logutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeSQL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "string literal",
			input:    `SELECT * FROM "users" WHERE "email" = 'user@example.com'`,
			expected: `SELECT * FROM "users" WHERE "email" = '<redacted>'`,
		},
		{
			name:     "escaped quotes",
			input:    `SELECT * FROM "users" WHERE "name" = 'O''Brien'`,
			expected: `SELECT * FROM "users" WHERE "name" = '<redacted>'`,
		},
		{
			name:     "numbers",
			input:    `SELECT * FROM "users" WHERE "id" IN (1, 2.5) LIMIT 20 OFFSET 40`,
			expected: `SELECT * FROM "users" WHERE "id" IN (<num>, <num>) LIMIT <num> OFFSET <num>`,
		},
		{
			name:     "identifiers with digits are kept",
			input:    `SELECT "col1" FROM "t2" WHERE "u"."v2" = $1`,
			expected: `SELECT "col1" FROM "t2" WHERE "u"."v2" = $1`,
		},
		{
			name:     "like pattern",
			input:    `SELECT * FROM "users" WHERE "name" LIKE '%1712%'`,
			expected: `SELECT * FROM "users" WHERE "name" LIKE '<redacted>'`,
		},
		{
			name:     "no literals",
			input:    `SELECT COUNT(*) FROM "users"`,
			expected: `SELECT COUNT(*) FROM "users"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeSQL(tt.input))
		})
	}
}

func TestRedactQueryString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty", input: "", expected: ""},
		{name: "nothing sensitive", input: "order=-Id&page=2", expected: "order=-Id&page=2"},
		{name: "token", input: "Id=1&token=abc", expected: "Id=1&token=%3Credacted%3E"},
		{name: "case insensitive", input: "Password=x", expected: "Password=%3Credacted%3E"},
		{name: "bracketed key", input: "secret[a]=x", expected: "secret%5Ba%5D=%3Credacted%3E"},
		{name: "unparseable", input: "a=%zz", expected: "<unparseable>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RedactQueryString(tt.input))
		})
	}
}
