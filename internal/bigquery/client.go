// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package bigquery queries HTAN metadata in the ISB-CGC BigQuery datasets.
//
// All SQL passes the read-only gate before it reaches the jobs API. Table
// names without a release suffix resolve to the "_current" alias.
package bigquery

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"go.uber.org/zap"
	bq "google.golang.org/api/bigquery/v2"
	"google.golang.org/api/option"

	herrors "github.com/ncihtan/htan-claude/internal/errors"
	"github.com/ncihtan/htan-claude/internal/logging"
	"github.com/ncihtan/htan-claude/internal/rows"
	"github.com/ncihtan/htan-claude/internal/sqlsafe"
)

// Dataset coordinates.
const (
	DataProject      = "isb-cgc-bq"
	Dataset          = "HTAN"
	DatasetVersioned = "HTAN_versioned"

	// DefaultLimit is applied to SQL without a LIMIT clause.
	DefaultLimit = 1000

	// ProjectEnvVar names the billing project when --project is absent.
	ProjectEnvVar = "GOOGLE_CLOUD_PROJECT"

	pollTimeoutMs = 10_000
)

var releaseSuffix = regexp.MustCompile(`_(current|r\d+(_v\d+)?)$`)

// DatasetName returns the fully qualified dataset.
func DatasetName(versioned bool) string {
	if versioned {
		return DataProject + "." + DatasetVersioned
	}
	return DataProject + "." + Dataset
}

// ResolveTable validates table and appends "_current" unless it already
// carries a release suffix or versioned is set.
func ResolveTable(table string, versioned bool) (string, error) {
	if err := sqlsafe.ValidateTableName(table); err != nil {
		return "", err
	}
	if !versioned && !releaseSuffix.MatchString(table) {
		table += "_current"
	}
	return table, nil
}

// ListTablesSQL is the INFORMATION_SCHEMA query behind ListTables.
func ListTablesSQL(versioned bool) string {
	return fmt.Sprintf("SELECT table_name FROM `%s.INFORMATION_SCHEMA.TABLES` ORDER BY table_name", DatasetName(versioned))
}

// Client runs jobs against a billing project.
type Client struct {
	svc     *bq.Service
	project string
	log     *zap.Logger
	notify  func(string)
}

// Option configures a Client.
type Option func(*config)

type config struct {
	clientOpts []option.ClientOption
	log        *zap.Logger
	notify     func(string)
}

// WithClientOptions passes options through to the API client.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(c *config) { c.clientOpts = append(c.clientOpts, opts...) }
}

// WithServiceAccountFile authenticates with a service-account key file.
func WithServiceAccountFile(path string) Option {
	return func(c *config) {
		if path != "" {
			c.clientOpts = append(c.clientOpts, option.WithAuthCredentialsFile(option.ServiceAccount, path))
		}
	}
}

// WithLogger attaches a diagnostic logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.log = l
		}
	}
}

// WithNotifier receives user-facing notes such as auto-applied limits.
func WithNotifier(fn func(string)) Option {
	return func(c *config) {
		if fn != nil {
			c.notify = fn
		}
	}
}

// ProjectFromEnv returns project, or GOOGLE_CLOUD_PROJECT when empty.
func ProjectFromEnv(project string) string {
	if project != "" {
		return project
	}
	return os.Getenv(ProjectEnvVar)
}

// New creates a client billed to project. Credentials come from the
// environment (Application Default Credentials) unless overridden.
func New(ctx context.Context, project string, opts ...Option) (*Client, error) {
	cfg := config{log: zap.NewNop(), notify: func(string) {}}
	for _, opt := range opts {
		opt(&cfg)
	}
	svc, err := bq.NewService(ctx, cfg.clientOpts...)
	if err != nil {
		return nil, herrors.Wrap(herrors.ConfigMissing, "Could not create BigQuery client", err).
			WithHint("Run 'gcloud auth application-default login' or set GOOGLE_APPLICATION_CREDENTIALS")
	}
	return &Client{
		svc:     svc,
		project: ProjectFromEnv(project),
		log:     cfg.log.With(logging.Component("bigquery")),
		notify:  cfg.notify,
	}, nil
}

// Project returns the billing project.
func (c *Client) Project() string { return c.project }

func (c *Client) billing() (string, error) {
	if c.project == "" {
		return "", herrors.New(herrors.ConfigMissing, "No Google Cloud project configured for BigQuery billing").
			WithHint("Pass --project or set GOOGLE_CLOUD_PROJECT")
	}
	return c.project, nil
}

// PrepareSQL gates sql and applies limit when it has none.
func (c *Client) PrepareSQL(sql string, limit int) (string, error) {
	v := sqlsafe.BigQuery.Check(sql)
	if !v.Safe {
		return "", herrors.New(herrors.InvalidInput, v.Reason)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	out, added := sqlsafe.EnsureLimit(sql, limit)
	if added {
		c.notify(fmt.Sprintf("Auto-applied LIMIT %d", limit))
	}
	return out, nil
}

// Query runs read-only standard SQL and returns ordered rows.
func (c *Client) Query(ctx context.Context, sql string, limit int) ([]*rows.Row, error) {
	prepared, err := c.PrepareSQL(sql, limit)
	if err != nil {
		return nil, err
	}
	return c.run(ctx, prepared)
}

// DryRunResult is the cost estimate for a statement.
type DryRunResult struct {
	BytesProcessed int64  `json:"bytes_processed"`
	SQL            string `json:"sql"`
}

// DryRun estimates the bytes a query would scan without running it.
func (c *Client) DryRun(ctx context.Context, sql string, limit int) (*DryRunResult, error) {
	prepared, err := c.PrepareSQL(sql, limit)
	if err != nil {
		return nil, err
	}
	project, err := c.billing()
	if err != nil {
		return nil, err
	}
	noCache := false
	resp, err := c.svc.Jobs.Query(project, &bq.QueryRequest{
		Query:         prepared,
		UseLegacySql:  &noCache,
		UseQueryCache: &noCache,
		DryRun:        true,
	}).Context(ctx).Do()
	if err != nil {
		return nil, herrors.Wrap(herrors.Server, "BigQuery dry run failed", err)
	}
	return &DryRunResult{BytesProcessed: resp.TotalBytesProcessed, SQL: prepared}, nil
}

// ListTables returns table names in the dataset.
func (c *Client) ListTables(ctx context.Context, versioned bool) ([]string, error) {
	rs, err := c.run(ctx, ListTablesSQL(versioned))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.String("table_name"))
	}
	return out, nil
}

// Field is one column of a table schema.
type Field struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Mode        string `json:"mode"`
	Description string `json:"description"`
}

// TableInfo describes a table.
type TableInfo struct {
	Table       string  `json:"table"`
	NumRows     uint64  `json:"num_rows"`
	NumBytes    int64   `json:"num_bytes"`
	Description string  `json:"description"`
	Schema      []Field `json:"schema"`
}

// DescribeTable fetches table metadata and schema.
func (c *Client) DescribeTable(ctx context.Context, table string, versioned bool) (*TableInfo, error) {
	name, err := ResolveTable(table, versioned)
	if err != nil {
		return nil, err
	}
	ds := Dataset
	if versioned {
		ds = DatasetVersioned
	}
	full := DataProject + "." + ds + "." + name

	t, err := c.svc.Tables.Get(DataProject, ds, name).Context(ctx).Do()
	if err != nil {
		return nil, herrors.Wrap(herrors.Server, fmt.Sprintf("Could not access table '%s'", full), err)
	}
	info := &TableInfo{
		Table:       full,
		NumRows:     t.NumRows,
		NumBytes:    t.NumBytes,
		Description: t.Description,
		Schema:      []Field{},
	}
	if t.Schema != nil {
		for _, f := range t.Schema.Fields {
			mode := f.Mode
			if mode == "" {
				mode = "NULLABLE"
			}
			info.Schema = append(info.Schema, Field{Name: f.Name, Type: f.Type, Mode: mode, Description: f.Description})
		}
	}
	return info, nil
}

// run executes sql and pages through the results until the job completes.
func (c *Client) run(ctx context.Context, sql string) ([]*rows.Row, error) {
	project, err := c.billing()
	if err != nil {
		return nil, err
	}
	legacy := false
	c.log.Debug("bigquery query", logging.SQL(sql))

	resp, err := c.svc.Jobs.Query(project, &bq.QueryRequest{
		Query:        sql,
		UseLegacySql: &legacy,
		TimeoutMs:    pollTimeoutMs,
	}).Context(ctx).Do()
	if err != nil {
		return nil, queryError(err)
	}

	schema := resp.Schema
	out := convertRows(schema, resp.Rows)
	complete, token := resp.JobComplete, resp.PageToken
	ref := resp.JobReference

	for !complete || token != "" {
		if ref == nil {
			break
		}
		call := c.svc.Jobs.GetQueryResults(ref.ProjectId, ref.JobId).TimeoutMs(pollTimeoutMs).Context(ctx)
		if ref.Location != "" {
			call = call.Location(ref.Location)
		}
		if token != "" {
			call = call.PageToken(token)
		}
		page, err := call.Do()
		if err != nil {
			return nil, queryError(err)
		}
		if !page.JobComplete {
			continue
		}
		if schema == nil {
			schema = page.Schema
		}
		out = append(out, convertRows(schema, page.Rows)...)
		complete, token = true, page.PageToken
	}
	c.log.Debug("bigquery query complete", logging.Rows(len(out)))
	return out, nil
}

func queryError(err error) error {
	msg := err.Error()
	e := herrors.Wrap(herrors.Server, "BigQuery query failed", err)
	if strings.Contains(msg, "403") || strings.Contains(strings.ToLower(msg), "permission") {
		e.WithHint("Check that your Google Cloud project has the BigQuery API enabled and billing set up")
	}
	return e
}
