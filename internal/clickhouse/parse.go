// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

package clickhouse

import (
	"context"
	"fmt"
	"strings"

	"github.com/ncihtan/htan-claude/internal/rows"
)

// ParseRows splits a JSONEachRow body into rows. Lines that are not JSON
// objects are counted in skipped. If no line parses at all the body is
// treated as a server error and the first five lines are returned in the
// error.
func ParseRows(body string) (out []*rows.Row, skipped int, err error) {
	if strings.TrimSpace(body) == "" {
		return nil, 0, nil
	}

	var bad []string
	for _, line := range strings.Split(strings.TrimSpace(body), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r, derr := rows.Decode([]byte(line))
		if derr != nil {
			bad = append(bad, line)
			continue
		}
		out = append(out, r)
	}

	if len(out) == 0 && len(bad) > 0 {
		if len(bad) > 5 {
			bad = bad[:5]
		}
		return nil, 0, &Error{
			Kind:    KindResponse,
			Message: fmt.Sprintf("ClickHouse returned non-JSON response:\n%s", strings.Join(bad, "\n")),
		}
	}
	return out, len(bad), nil
}

// SkippedWarning formats the partial-parse warning.
func SkippedWarning(n int) string {
	return fmt.Sprintf("Warning: %d non-JSON line(s) in response", n)
}

// ParseLines splits a TabSeparated single-column body into trimmed,
// non-empty lines.
func ParseLines(body string) []string {
	var out []string
	for _, line := range strings.Split(strings.TrimSpace(body), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// QueryRows runs sql as JSONEachRow and parses the body. A partial parse
// is reported through the client's notifier.
func (c *Client) QueryRows(ctx context.Context, sql string, opts QueryOptions) ([]*rows.Row, error) {
	opts.Format = JSONEachRow
	body, err := c.Query(ctx, sql, opts)
	if err != nil {
		return nil, err
	}
	out, skipped, err := ParseRows(body)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		c.notify(SkippedWarning(skipped))
	}
	return out, nil
}

// QueryLines runs sql as TabSeparated and returns its lines.
func (c *Client) QueryLines(ctx context.Context, sql string, opts QueryOptions) ([]string, error) {
	opts.Format = TabSeparated
	body, err := c.Query(ctx, sql, opts)
	if err != nil {
		return nil, err
	}
	return ParseLines(body), nil
}
