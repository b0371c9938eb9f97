// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package datamodel queries the HTAN Phase 1 data model published as
// HTAN.model.csv in ncihtan/data-models, pinned to a release tag and cached
// locally.
package datamodel

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ncihtan/htan-claude/internal/endpoints"
	herrors "github.com/ncihtan/htan-claude/internal/errors"
	"github.com/ncihtan/htan-claude/internal/logging"
	"github.com/ncihtan/htan-claude/internal/xdg"
)

const (
	// DefaultTag is the pinned data-model release.
	DefaultTag = "v25.2.1"
	// CacheFile is the cached model name under the cache dir.
	CacheFile = "HTAN.model.csv"
)

// CSV columns.
const (
	colAttribute  = "Attribute"
	colDesc       = "Description"
	colValid      = "Valid Values"
	colDependsOn  = "DependsOn"
	colDepComp    = "DependsOn Component"
	colRequired   = "Required"
	colParent     = "Parent"
	colSource     = "Source"
	colValidation = "Validation Rules"
)

// row is one CSV record keyed by header.
type row map[string]string

func (r row) get(col string) string { return strings.TrimSpace(r[col]) }
func (r row) name() string          { return r[colAttribute] }

// list splits a comma-separated cell, dropping empty items.
func (r row) list(col string) []string {
	out := []string{}
	for _, v := range strings.Split(r[col], ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Model loads the data model from its cache, downloading it on first use.
type Model struct {
	base   string
	tag    string
	path   string
	http   *http.Client
	log    *zap.Logger
	notify func(string)

	mu   sync.Mutex
	rows []row
}

// Option configures a Model.
type Option func(*Model)

// WithTag selects a data-model release. Empty keeps DefaultTag.
func WithTag(tag string) Option {
	return func(m *Model) {
		if tag != "" {
			m.tag = tag
		}
	}
}

// WithBaseURL overrides the raw data-models location.
func WithBaseURL(u string) Option { return func(m *Model) { m.base = u } }

// WithCachePath overrides the cache file location.
func WithCachePath(p string) Option { return func(m *Model) { m.path = p } }

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(h *http.Client) Option { return func(m *Model) { m.http = h } }

// WithNotifier receives progress notes.
func WithNotifier(fn func(string)) Option { return func(m *Model) { m.notify = fn } }

// WithLogger attaches a diagnostic logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Model) {
		if l != nil {
			m.log = l
		}
	}
}

// New creates a model reader using the XDG cache dir.
func New(opts ...Option) (*Model, error) {
	m := &Model{
		base:   endpoints.Default().DataModel,
		tag:    DefaultTag,
		http:   &http.Client{Timeout: 60 * time.Second},
		log:    zap.NewNop(),
		notify: func(string) {},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.path == "" {
		dir, err := xdg.CacheDir()
		if err != nil {
			return nil, err
		}
		m.path = filepath.Join(dir, CacheFile)
	}
	m.log = m.log.With(logging.Component("datamodel"))
	return m, nil
}

// Tag returns the selected release.
func (m *Model) Tag() string { return m.tag }

// Path returns the cache file location.
func (m *Model) Path() string { return m.path }

// URL returns the download location of the model CSV.
func (m *Model) URL() string { return endpoints.Join(m.base, m.tag+"/"+CacheFile) }

// Fetch downloads the model CSV, replacing the cache, and returns the number
// of rows saved.
func (m *Model) Fetch(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, err := m.download(ctx)
	if err == nil {
		m.rows = nil
	}
	return n, err
}

func (m *Model) download(ctx context.Context) (int, error) {
	m.notify(fmt.Sprintf("Downloading data model (%s)...", m.tag))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.URL(), nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", "htan-skill/1.0")
	resp, err := m.http.Do(req)
	if err != nil {
		return 0, herrors.Wrap(herrors.Transport, "Error downloading data model", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, herrors.Newf(herrors.Server, "Error downloading data model: HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}

	rs, header, err := parse(data)
	if err != nil {
		return 0, herrors.Wrap(herrors.Server, "Downloaded file is not valid CSV", err)
	}
	if len(rs) == 0 {
		return 0, herrors.New(herrors.Server, "Downloaded CSV is empty.")
	}
	if !contains(header, colAttribute) {
		return 0, herrors.New(herrors.Server, "CSV missing 'Attribute' column.")
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return 0, err
	}
	if err := os.WriteFile(m.path, data, 0o644); err != nil {
		return 0, err
	}
	m.notify(fmt.Sprintf("Saved %d rows to %s", len(rs), m.path))
	m.log.Debug("model cached", zap.String("path", m.path), logging.Rows(len(rs)))
	return len(rs), nil
}

func parse(data []byte) ([]row, []string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err == io.EOF {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	var out []row
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		rw := make(row, len(header))
		for i, h := range header {
			if i < len(rec) {
				rw[h] = rec[i]
			}
		}
		out = append(out, rw)
	}
	return out, header, nil
}

func (m *Model) load(ctx context.Context) ([]row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows != nil {
		return m.rows, nil
	}
	if _, err := os.Stat(m.path); os.IsNotExist(err) {
		m.notify("Model cache not found. Downloading...")
		if _, err := m.download(ctx); err != nil {
			return nil, err
		}
	}
	data, err := os.ReadFile(m.path)
	if err != nil {
		return nil, err
	}
	rs, _, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("read model cache %s: %w", m.path, err)
	}
	m.notify(fmt.Sprintf("Loaded %d attributes from data model", len(rs)))
	m.rows = rs
	return rs, nil
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
