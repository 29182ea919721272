// Package logutil provides sanitization helpers for log output
package logutil

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
)

var (
	stringLiteralPattern = regexp.MustCompile(`'(?:[^']|'')*'`)
	// Digits that are part of an identifier or a $N placeholder are kept.
	numericPattern = regexp.MustCompile(`(^|[^\w$."])\d+(?:\.\d+)?(?:[eE][+-]?\d+)?\b`)
)

// SanitizeSQL replaces literal values in a rendered statement so user input
// never reaches the logs:
//
//	SELECT * FROM "users" WHERE "email" = 'a@b.c' AND "id" > 10 LIMIT 20
//	=> SELECT * FROM "users" WHERE "email" = '<redacted>' AND "id" > <num> LIMIT <num>
func SanitizeSQL(query string) string {
	query = stringLiteralPattern.ReplaceAllString(query, "'<redacted>'")
	query = numericPattern.ReplaceAllString(query, "${1}<num>")
	return query
}

// sensitiveParams are query parameters whose values are never logged
var sensitiveParams = []string{
	"access_token",
	"api_key",
	"apikey",
	"password",
	"secret",
	"token",
}

// RedactQueryString masks the values of sensitive parameters in a raw query
// string. Keys are matched case-insensitively, bracketed sub-keys included.
func RedactQueryString(raw string) string {
	if raw == "" {
		return raw
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return "<unparseable>"
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	redacted := url.Values{}
	for _, k := range keys {
		for _, v := range values[k] {
			if isSensitive(k) {
				v = "<redacted>"
			}
			redacted.Add(k, v)
		}
	}
	return redacted.Encode()
}

func isSensitive(key string) bool {
	base := strings.ToLower(key)
	if i := strings.IndexByte(base, '['); i >= 0 {
		base = base[:i]
	}
	for _, s := range sensitiveParams {
		if base == s {
			return true
		}
	}
	return false
}
