// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package pubmed searches HTAN publications through the NCBI E-utilities.
//
// Requests are throttled to the NCBI courtesy limit: three per second, or
// ten per second when NCBI_API_KEY is set.
package pubmed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ncihtan/htan-claude/internal/endpoints"
	herrors "github.com/ncihtan/htan-claude/internal/errors"
	"github.com/ncihtan/htan-claude/internal/httperrors"
)

const (
	// ToolName and ToolEmail identify the caller to NCBI.
	ToolName  = "htan_skill"
	ToolEmail = "htan-skill@example.com"

	// APIKeyEnvVar raises the rate limit when set.
	APIKeyEnvVar = "NCBI_API_KEY"

	DefaultTimeout    = 60 * time.Second
	DefaultMaxResults = 100
	DefaultMaxPMC     = 50

	fetchBatch = 200
)

// Request spacing without and with an API key.
const (
	anonymousInterval = 340 * time.Millisecond
	keyedInterval     = 100 * time.Millisecond
)

// Client is a rate-limited E-utilities client.
type Client struct {
	base    string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	timeout time.Duration
	log     *zap.Logger
	notify  func(string)
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the E-utilities base URL.
func WithBaseURL(u string) Option { return func(c *Client) { c.base = strings.TrimRight(u, "/") } }

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option { return func(c *Client) { c.timeout = d } }

// WithLimiter replaces the request throttle.
func WithLimiter(l *rate.Limiter) Option { return func(c *Client) { c.limiter = l } }

// WithNotifier receives "Found N results" notes.
func WithNotifier(fn func(string)) Option { return func(c *Client) { c.notify = fn } }

// WithLogger attaches a diagnostic logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// New creates a client. NCBI_API_KEY is picked up from the environment.
func New(opts ...Option) *Client {
	c := &Client{
		base:    endpoints.Default().EUtils,
		apiKey:  os.Getenv(APIKeyEnvVar),
		http:    &http.Client{},
		timeout: DefaultTimeout,
		log:     zap.NewNop(),
		notify:  func(string) {},
	}
	interval := anonymousInterval
	if c.apiKey != "" {
		interval = keyedInterval
	}
	c.limiter = rate.NewLimiter(rate.Every(interval), 1)
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With(zap.String("component", "pubmed"))
	return c
}

// URL returns the full request URL for endpoint with the caller params.
func (c *Client) URL(endpoint string, params url.Values) string {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("tool", ToolName)
	q.Set("email", ToolEmail)
	if c.apiKey != "" {
		q.Set("api_key", c.apiKey)
	}
	return c.base + "/" + endpoint + "?" + q.Encode()
}

// SearchURL is the esearch URL Search would request.
func (c *Client) SearchURL(keyword, author, year string, max int) string {
	return c.URL("esearch.fcgi", searchParams("pubmed", BuildSearchQuery(keyword, author, year), max))
}

// FullTextURL is the esearch URL FullText would request.
func (c *Client) FullTextURL(query string, max int) string {
	return c.URL("esearch.fcgi", searchParams("pmc", FullTextQuery(query), max))
}

func searchParams(db, term string, max int) url.Values {
	return url.Values{
		"db":      {db},
		"term":    {term},
		"retmax":  {strconv.Itoa(max)},
		"retmode": {"json"},
		"sort":    {"pub_date"},
	}
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(endpoint, params), nil)
	if err != nil {
		return nil, err
	}
	c.log.Debug("eutils request", zap.String("endpoint", endpoint))
	resp, err := c.http.Do(req)
	if err != nil {
		if httperrors.IsTimeout(err) || ctx.Err() == context.DeadlineExceeded {
			return nil, herrors.Newf(herrors.Transport, "PubMed request timed out after %ds.", int(c.timeout.Seconds()))
		}
		return nil, herrors.Wrap(herrors.Transport, "Could not connect to E-utilities", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, herrors.Newf(herrors.Server, "HTTP %d from E-utilities: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return io.ReadAll(resp.Body)
}

type esearchResult struct {
	Result struct {
		Count  string   `json:"count"`
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

func (c *Client) esearch(ctx context.Context, db, term string, max int) ([]string, int, error) {
	raw, err := c.get(ctx, "esearch.fcgi", searchParams(db, term, max))
	if err != nil {
		return nil, 0, err
	}
	var r esearchResult
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, 0, fmt.Errorf("decode esearch response: %w", err)
	}
	count, _ := strconv.Atoi(r.Result.Count)
	return r.Result.IDList, count, nil
}

// Search finds HTAN publications and fetches their details, newest first.
func (c *Client) Search(ctx context.Context, keyword, author, year string, max int) ([]Article, error) {
	if max <= 0 {
		max = DefaultMaxResults
	}
	ids, count, err := c.esearch(ctx, "pubmed", BuildSearchQuery(keyword, author, year), max)
	if err != nil {
		return nil, err
	}
	c.notify(fmt.Sprintf("Found %d results, returning %d", count, len(ids)))
	if len(ids) == 0 {
		return []Article{}, nil
	}
	return c.Fetch(ctx, ids)
}

// Fetch returns article details for pmids, requested in batches.
func (c *Client) Fetch(ctx context.Context, pmids []string) ([]Article, error) {
	out := []Article{}
	for start := 0; start < len(pmids); start += fetchBatch {
		end := start + fetchBatch
		if end > len(pmids) {
			end = len(pmids)
		}
		raw, err := c.get(ctx, "efetch.fcgi", url.Values{
			"db":      {"pubmed"},
			"id":      {strings.Join(pmids[start:end], ",")},
			"rettype": {"xml"},
			"retmode": {"xml"},
		})
		if err != nil {
			return nil, err
		}
		arts, err := ParseArticles(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, arts...)
	}
	return out, nil
}

type esummaryResult struct {
	Result map[string]json.RawMessage `json:"result"`
}

type pmcSummary struct {
	Title           string `json:"title"`
	FullJournalName string `json:"fulljournalname"`
	Source          string `json:"source"`
	PubDate         string `json:"pubdate"`
	ArticleIDs      []struct {
		IDType string `json:"idtype"`
		Value  string `json:"value"`
	} `json:"articleids"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
}

// FullText searches PubMed Central for HTAN-funded articles.
func (c *Client) FullText(ctx context.Context, query string, max int) ([]Article, error) {
	if max <= 0 {
		max = DefaultMaxPMC
	}
	ids, count, err := c.esearch(ctx, "pmc", FullTextQuery(query), max)
	if err != nil {
		return nil, err
	}
	c.notify(fmt.Sprintf("Found %d PMC results, returning %d", count, len(ids)))
	if len(ids) == 0 {
		return []Article{}, nil
	}

	raw, err := c.get(ctx, "esummary.fcgi", url.Values{
		"db":      {"pmc"},
		"id":      {strings.Join(ids, ",")},
		"retmode": {"json"},
	})
	if err != nil {
		return nil, err
	}
	return parseSummaries(raw, ids)
}

func parseSummaries(raw []byte, ids []string) ([]Article, error) {
	var r esummaryResult
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode esummary response: %w", err)
	}
	out := []Article{}
	for _, id := range ids {
		msg, ok := r.Result[id]
		if !ok {
			continue
		}
		var s pmcSummary
		if err := json.Unmarshal(msg, &s); err != nil {
			continue
		}
		a := Article{
			PMCID:   "PMC" + id,
			Title:   s.Title,
			Journal: s.FullJournalName,
			Authors: []string{},
		}
		if a.Journal == "" {
			a.Journal = s.Source
		}
		if len(s.PubDate) >= 4 {
			a.Year = s.PubDate[:4]
		} else {
			a.Year = s.PubDate
		}
		if len(s.ArticleIDs) > 0 {
			a.PMID = s.ArticleIDs[0].Value
		}
		for _, au := range s.Authors {
			a.Authors = append(a.Authors, au.Name)
		}
		out = append(out, a)
	}
	return out, nil
}
