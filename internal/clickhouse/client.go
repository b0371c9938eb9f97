// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package clickhouse is a minimal client for the ClickHouse HTTP interface
// behind the HTAN data portal.
//
// Each call is one POST with Basic auth, the SQL as body and the output
// format and database as query parameters. The body is buffered in full and
// returned as text. There is no retry, streaming or pooling beyond what
// net/http does by default.
//
// A Client resolves credentials and the target database lazily on first use
// and keeps them for its lifetime.
package clickhouse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ncihtan/htan-claude/internal/credentials"
	"github.com/ncihtan/htan-claude/internal/httperrors"
	"github.com/ncihtan/htan-claude/internal/logging"
	"github.com/ncihtan/htan-claude/internal/sqlsafe"
)

// Format is a ClickHouse output format.
type Format string

const (
	JSONEachRow  Format = "JSONEachRow"
	TabSeparated Format = "TabSeparated"
)

// DefaultTimeout bounds a single query.
const DefaultTimeout = 60 * time.Second

// DatabasePrefix marks HTAN release databases.
const DatabasePrefix = "htan_"

// CredentialSource yields portal credentials.
type CredentialSource interface {
	Resolve(ctx context.Context) (credentials.Resolved, error)
}

// QueryOptions controls a single request. A zero Format means JSONEachRow;
// an empty Database sends no database parameter; a zero Timeout means
// DefaultTimeout.
type QueryOptions struct {
	Format   Format
	Database string
	Timeout  time.Duration
}

// Client talks to the portal ClickHouse endpoint.
type Client struct {
	source     CredentialSource
	httpClient *http.Client
	log        *zap.Logger
	notify     func(string)

	mu       sync.Mutex
	resolved *credentials.Resolved
	database *string

	// discoverMu is held across discovery so it runs once per client
	discoverMu sync.Mutex
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger attaches a diagnostic logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithNotifier receives user-facing status lines such as database discovery.
func WithNotifier(fn func(string)) Option {
	return func(c *Client) {
		if fn != nil {
			c.notify = fn
		}
	}
}

// WithDatabase pins the database and skips discovery.
func WithDatabase(name string) Option {
	return func(c *Client) {
		if name != "" {
			c.database = &name
		}
	}
}

// New returns a client that resolves credentials from source on first use.
func New(source CredentialSource, opts ...Option) *Client {
	c := &Client{
		source:     source,
		httpClient: &http.Client{},
		log:        zap.NewNop(),
		notify:     func(string) {},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With(logging.Component("clickhouse"))
	return c
}

// Credentials returns the resolved credential record, resolving it once.
func (c *Client) Credentials(ctx context.Context) (credentials.Resolved, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resolved != nil {
		return *c.resolved, nil
	}
	res, err := c.source.Resolve(ctx)
	if err != nil {
		return credentials.Resolved{}, err
	}
	c.resolved = &res
	return res, nil
}

// Query sends sql and returns the raw response body.
func (c *Client) Query(ctx context.Context, sql string, opts QueryOptions) (string, error) {
	res, err := c.Credentials(ctx)
	if err != nil {
		return "", err
	}
	return c.post(ctx, res.Record, sql, opts)
}

func (c *Client) post(ctx context.Context, rec credentials.Record, sql string, opts QueryOptions) (string, error) {
	sql = sqlsafe.Normalize(sql)
	if opts.Format == "" {
		opts.Format = JSONEachRow
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	params := url.Values{}
	params.Set("default_format", string(opts.Format))
	if opts.Database != "" {
		params.Set("database", opts.Database)
	}
	endpoint := rec.URL() + "?" + params.Encode()

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(sql))
	if err != nil {
		return "", &Error{Kind: KindConnect, Message: fmt.Sprintf("invalid portal endpoint: %v", err)}
	}
	req.SetBasicAuth(rec.User, rec.Password)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	c.log.Debug("clickhouse query",
		logging.URL(endpoint), logging.Database(opts.Database), logging.SQL(sql))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", c.transportError(ctx, err, opts.Timeout)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", c.transportError(ctx, err, opts.Timeout)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := exceptionMessage(string(body))
		c.log.Debug("clickhouse error response", logging.Status(resp.StatusCode))
		return "", &Error{
			Kind:    KindHTTP,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("ClickHouse HTTP %d: %s", resp.StatusCode, msg),
			Hints:   hintsFor(msg),
		}
	}
	return string(body), nil
}

func (c *Client) transportError(ctx context.Context, err error, timeout time.Duration) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || httperrors.IsTimeout(err) {
		secs := strconv.FormatFloat(timeout.Seconds(), 'f', -1, 64)
		return &Error{
			Kind:    KindTimeout,
			Message: fmt.Sprintf("Query timed out after %ss. Try a simpler query or add a LIMIT clause.", secs),
		}
	}
	reason := err.Error()
	var uerr *url.Error
	if errors.As(err, &uerr) {
		reason = uerr.Err.Error()
	}
	c.log.Debug("clickhouse transport failure",
		zap.String("class", httperrors.Classify(err).String()), zap.Error(err))
	return &Error{
		Kind: KindConnect,
		Message: fmt.Sprintf("Could not connect to HTAN portal ClickHouse: %s\n"+
			"The portal endpoint may be temporarily unavailable.", logging.Mask(reason)),
	}
}

// Database returns the database queries should target, discovering it on
// first use unless pinned with WithDatabase.
func (c *Client) Database(ctx context.Context) (string, error) {
	c.discoverMu.Lock()
	defer c.discoverMu.Unlock()

	c.mu.Lock()
	if c.database != nil {
		db := *c.database
		c.mu.Unlock()
		return db, nil
	}
	c.mu.Unlock()

	res, err := c.Credentials(ctx)
	if err != nil {
		return "", err
	}
	db := c.discover(ctx, res.Record)

	c.mu.Lock()
	c.database = &db
	c.mu.Unlock()
	return db, nil
}

// DiscoverDatabase returns the newest htan_* database, or the configured
// default when the listing fails or is empty.
func (c *Client) DiscoverDatabase(ctx context.Context) (string, error) {
	res, err := c.Credentials(ctx)
	if err != nil {
		return "", err
	}
	return c.discover(ctx, res.Record), nil
}

func (c *Client) discover(ctx context.Context, rec credentials.Record) string {
	configured := rec.Database()

	body, err := c.post(ctx, rec, "SHOW DATABASES LIKE 'htan_%'", QueryOptions{Format: TabSeparated})
	if err != nil {
		c.log.Debug("database discovery failed", zap.Error(err))
		return configured
	}

	var candidates []string
	for _, name := range ParseLines(body) {
		if strings.HasPrefix(name, DatabasePrefix) {
			candidates = append(candidates, name)
		}
	}
	if len(candidates) == 0 {
		return configured
	}
	// release names embed a date, so reverse lexical order is newest first
	sort.Sort(sort.Reverse(sort.StringSlice(candidates)))
	latest := candidates[0]

	if configured != "" && latest != configured {
		c.notify(fmt.Sprintf("Discovered newer database: %s (config default was %s)", latest, configured))
	}
	c.log.Debug("database discovered", logging.Database(latest))
	return latest
}
