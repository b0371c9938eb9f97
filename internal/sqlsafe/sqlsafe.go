// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package sqlsafe gates untrusted SQL before it reaches a read-only endpoint.
//
// The check is lexical. Text is uppercased and whitespace-collapsed, then
// scanned for write keywords as whole words and for an allowed leading
// keyword. It does not understand string literals or comments, so a blocked
// keyword inside a quoted literal is rejected too. Callers rely on that
// behaviour; do not replace it with a parser without changing every caller.
//
// Neither ClickHouse HTTP nor BigQuery jobs.query is used here with parameter
// binding, so identifiers and literals interpolated into SQL text must pass
// through ValidateTableName and EscapeString.
package sqlsafe

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	herrors "github.com/ncihtan/htan-claude/internal/errors"
)

// BlockedKeywords are rejected anywhere in a statement.
var BlockedKeywords = []string{
	"DELETE", "DROP", "UPDATE", "INSERT", "CREATE",
	"ALTER", "TRUNCATE", "MERGE", "GRANT", "REVOKE",
}

var blockedPatterns = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(BlockedKeywords))
	for i, k := range BlockedKeywords {
		out[i] = regexp.MustCompile(`\b` + k + `\b`)
	}
	return out
}()

var tableNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// Verdict is the outcome of a safety check.
type Verdict struct {
	Safe   bool
	Reason string
}

// Gate validates SQL against a fixed allowlist of leading keywords.
type Gate struct {
	allowed []string
}

// NewGate returns a gate accepting statements that start with one of allowed.
func NewGate(allowed ...string) *Gate {
	a := make([]string, len(allowed))
	for i, k := range allowed {
		a[i] = strings.ToUpper(k)
	}
	return &Gate{allowed: a}
}

var (
	// Portal is the gate for the portal ClickHouse endpoint.
	Portal = NewGate("SELECT", "WITH", "SHOW", "DESCRIBE", "EXPLAIN", "EXISTS")
	// BigQuery is the gate for ISB-CGC BigQuery.
	BigQuery = NewGate("SELECT", "WITH", "SHOW", "EXPLAIN")
)

// Allowed returns the leading keywords this gate accepts.
func (g *Gate) Allowed() []string {
	return append([]string(nil), g.allowed...)
}

// Check classifies sql. Blocked keywords are checked before the leading
// keyword, so a statement failing both reports the blocked keyword.
func (g *Gate) Check(sql string) Verdict {
	fields := strings.Fields(strings.ToUpper(sql))
	normalized := strings.Join(fields, " ")

	for i, re := range blockedPatterns {
		if re.MatchString(normalized) {
			return Verdict{Reason: "Blocked SQL keyword: " + BlockedKeywords[i]}
		}
	}

	first := ""
	if len(fields) > 0 {
		first = fields[0]
	}
	for _, k := range g.allowed {
		if first == k {
			return Verdict{Safe: true, Reason: "OK"}
		}
	}
	return Verdict{Reason: "SQL must start with one of: " + strings.Join(g.allowed, ", ")}
}

// EnsureLimit appends "\nLIMIT n" when the statement has no LIMIT, after
// stripping trailing whitespace and semicolons. It reports whether a limit
// was added. The LIMIT test is a substring match on the uppercased text.
func EnsureLimit(sql string, n int) (string, bool) {
	normalized := strings.Join(strings.Fields(strings.ToUpper(sql)), " ")
	if strings.Contains(normalized, "LIMIT") {
		return sql, false
	}
	trimmed := strings.TrimRight(strings.TrimRightFunc(sql, unicode.IsSpace), ";")
	return fmt.Sprintf("%s\nLIMIT %d", trimmed, n), true
}

// ValidateTableName rejects names outside [A-Za-z0-9_]+.
func ValidateTableName(name string) error {
	if !tableNamePattern.MatchString(name) {
		return herrors.Newf(herrors.InvalidInput,
			"Invalid table name '%s'. Use only alphanumeric and underscores.", name)
	}
	return nil
}

// EscapeString escapes backslashes and single quotes for a single-quoted
// SQL literal. The result does not include the surrounding quotes.
func EscapeString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

// Quote returns s escaped and wrapped in single quotes.
func Quote(s string) string {
	return "'" + EscapeString(s) + "'"
}

// Normalize rewrites != (and the shell-escaped \!=) to <>, which ClickHouse
// requires for not-equal.
func Normalize(sql string) string {
	sql = strings.ReplaceAll(sql, `\!=`, "<>")
	return strings.ReplaceAll(sql, "!=", "<>")
}
