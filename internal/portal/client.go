// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package portal implements the HTAN data portal queries on top of the
// ClickHouse gateway: file search, clinical tables, schema introspection,
// summaries and download manifests.
package portal

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/ncihtan/htan-claude/internal/clickhouse"
	herrors "github.com/ncihtan/htan-claude/internal/errors"
	"github.com/ncihtan/htan-claude/internal/logging"
	"github.com/ncihtan/htan-claude/internal/rows"
	"github.com/ncihtan/htan-claude/internal/sqlsafe"
)

// Gateway is the subset of *clickhouse.Client the portal needs.
type Gateway interface {
	QueryRows(ctx context.Context, sql string, opts clickhouse.QueryOptions) ([]*rows.Row, error)
	QueryLines(ctx context.Context, sql string, opts clickhouse.QueryOptions) ([]string, error)
	Database(ctx context.Context) (string, error)
}

// Client runs portal queries against the latest HTAN database.
type Client struct {
	gw     Gateway
	log    *zap.Logger
	notify func(string)
}

// Option configures a Client.
type Option func(*Client)

// WithLogger attaches a diagnostic logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithNotifier receives user-facing warnings (auto-applied limits and
// truncated results).
func WithNotifier(fn func(string)) Option {
	return func(c *Client) {
		if fn != nil {
			c.notify = fn
		}
	}
}

// New wraps gw.
func New(gw Gateway, opts ...Option) *Client {
	c := &Client{gw: gw, log: zap.NewNop(), notify: func(string) {}}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With(logging.Component("portal"))
	return c
}

// Database returns the target database.
func (c *Client) Database(ctx context.Context) (string, error) {
	return c.gw.Database(ctx)
}

func (c *Client) fetch(ctx context.Context, sql string) ([]*rows.Row, error) {
	db, err := c.gw.Database(ctx)
	if err != nil {
		return nil, err
	}
	out, err := c.gw.QueryRows(ctx, sql, clickhouse.QueryOptions{Database: db})
	if err != nil {
		return nil, err
	}
	c.log.Debug("query complete", logging.Database(db), logging.Rows(len(out)))
	return out, nil
}

// PrepareSQL gates raw SQL and applies the row limit unless noLimit is set.
func (c *Client) PrepareSQL(sql string, limit int, noLimit bool) (string, error) {
	v := sqlsafe.Portal.Check(sql)
	if !v.Safe {
		return "", herrors.New(herrors.InvalidInput, v.Reason+"\nOnly read-only queries are allowed.")
	}
	if noLimit {
		return sql, nil
	}
	limit = limitOr(limit, SQLDefaultLimit)
	out, added := sqlsafe.EnsureLimit(sql, limit)
	if added {
		c.notify(fmt.Sprintf("Auto-applied LIMIT %d", limit))
	}
	return out, nil
}

// Query runs read-only SQL.
func (c *Client) Query(ctx context.Context, sql string, limit int, noLimit bool) ([]*rows.Row, error) {
	prepared, err := c.PrepareSQL(sql, limit, noLimit)
	if err != nil {
		return nil, err
	}
	out, err := c.fetch(ctx, prepared)
	if err != nil {
		return nil, err
	}
	if !noLimit && len(out) == limitOr(limit, SQLDefaultLimit) {
		c.notify(fmt.Sprintf("Warning: Result count (%d) matches limit. Use --no-limit or higher --limit.", len(out)))
	}
	return out, nil
}

// FindFiles searches the files table.
func (c *Client) FindFiles(ctx context.Context, f FileFilter) ([]*rows.Row, error) {
	return c.fetch(ctx, FilesSQL(f))
}

// Clinical queries a clinical table.
func (c *Client) Clinical(ctx context.Context, f ClinicalFilter) ([]*rows.Row, error) {
	sql, err := ClinicalSQL(f)
	if err != nil {
		return nil, err
	}
	return c.fetch(ctx, sql)
}

// ListTables returns table names in sorted order.
func (c *Client) ListTables(ctx context.Context) ([]string, error) {
	db, err := c.gw.Database(ctx)
	if err != nil {
		return nil, err
	}
	tables, err := c.gw.QueryLines(ctx, "SHOW TABLES", clickhouse.QueryOptions{Database: db})
	if err != nil {
		return nil, err
	}
	sort.Strings(tables)
	return tables, nil
}

// Column describes a table column.
type Column struct {
	Name              string `json:"name"`
	Type              string `json:"type"`
	DefaultExpression string `json:"default_expression"`
	Comment           string `json:"comment"`
}

// TableInfo is the result of DescribeTable. RowCount is nil when the count
// query failed.
type TableInfo struct {
	Database    string   `json:"database"`
	Table       string   `json:"table"`
	RowCount    *int64   `json:"row_count"`
	Columns     []Column `json:"columns"`
	ColumnCount int      `json:"column_count"`
}

// DescribeTable returns a table's schema and row count.
func (c *Client) DescribeTable(ctx context.Context, table string) (*TableInfo, error) {
	describe, count, err := DescribeSQL(table)
	if err != nil {
		return nil, err
	}
	db, err := c.gw.Database(ctx)
	if err != nil {
		return nil, err
	}
	schema, err := c.fetch(ctx, describe)
	if err != nil {
		return nil, err
	}

	info := &TableInfo{Database: db, Table: table, Columns: make([]Column, 0, len(schema))}
	for _, r := range schema {
		info.Columns = append(info.Columns, Column{
			Name:              r.String("name"),
			Type:              r.String("type"),
			DefaultExpression: r.String("default_expression"),
			Comment:           r.String("comment"),
		})
	}
	info.ColumnCount = len(info.Columns)

	countRows, err := c.fetch(ctx, count)
	var chErr *clickhouse.Error
	switch {
	case err == nil && len(countRows) > 0:
		if n, ok := countRows[0].Int("cnt"); ok {
			info.RowCount = &n
		}
	case errors.As(err, &chErr):
		c.log.Debug("row count failed", zap.Error(err))
	case err != nil:
		return nil, err
	}
	return info, nil
}

// Summary holds portal-wide statistics.
type Summary struct {
	Database            string      `json:"database"`
	TotalFiles          int64       `json:"total_files"`
	TotalParticipants   int64       `json:"total_participants"`
	FilesByAtlas        []*rows.Row `json:"files_by_atlas"`
	FilesByAssay        []*rows.Row `json:"files_by_assay"`
	FilesByOrgan        []*rows.Row `json:"files_by_organ"`
	ParticipantsByAtlas []*rows.Row `json:"participants_by_atlas"`
}

// Summary runs the aggregation queries one after another. A failed query
// yields an empty list rather than failing the summary.
func (c *Client) Summary(ctx context.Context) (*Summary, error) {
	db, err := c.gw.Database(ctx)
	if err != nil {
		return nil, err
	}
	results := make(map[string][]*rows.Row, len(SummaryQueries))
	for _, q := range SummaryQueries {
		out, err := c.fetch(ctx, q.SQL)
		if err != nil {
			var chErr *clickhouse.Error
			if !errors.As(err, &chErr) {
				return nil, err
			}
			c.log.Debug("summary query failed", zap.String("query", q.Key), zap.Error(err))
			out = []*rows.Row{}
		}
		results[q.Key] = out
	}

	total := func(key string) int64 {
		if rs := results[key]; len(rs) > 0 {
			if n, ok := rs[0].Int("total"); ok {
				return n
			}
		}
		return 0
	}
	return &Summary{
		Database:            db,
		TotalFiles:          total("total_files"),
		TotalParticipants:   total("total_participants"),
		FilesByAtlas:        nonNil(results["files_by_atlas"]),
		FilesByAssay:        nonNil(results["files_by_assay"]),
		FilesByOrgan:        nonNil(results["files_by_organ"]),
		ParticipantsByAtlas: nonNil(results["participants_by_atlas"]),
	}, nil
}

func nonNil(rs []*rows.Row) []*rows.Row {
	if rs == nil {
		return []*rows.Row{}
	}
	return rs
}
