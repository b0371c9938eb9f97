// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package filemap resolves HTAN_Data_File_IDs to Synapse entity IDs and
// Gen3 DRS URIs using the portal's published mapping file, cached locally.
package filemap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ncihtan/htan-claude/internal/endpoints"
	herrors "github.com/ncihtan/htan-claude/internal/errors"
	"github.com/ncihtan/htan-claude/internal/rows"
	"github.com/ncihtan/htan-claude/internal/xdg"
)

// CacheFile is the cached mapping name under the cache dir.
const CacheFile = "crdcgc_drs_mapping.json"

// FileIDPattern is the expected HTAN_Data_File_ID shape.
var FileIDPattern = regexp.MustCompile(`^HTA\d+_\d+.*$`)

// Record is one mapping entry.
type Record struct {
	FileID   string `json:"HTAN_Data_File_ID"`
	Name     string `json:"name"`
	EntityID string `json:"entityId"`
	DRSURI   string `json:"drs_uri"`
	Center   string `json:"HTAN_Center"`
}

// SynapseCommand is the download command for the record's entity, or "".
func (r Record) SynapseCommand() string {
	if r.EntityID == "" {
		return ""
	}
	return "htan download synapse " + r.EntityID
}

// Gen3Command is the download command for the record's DRS URI, or "".
func (r Record) Gen3Command() string {
	if r.DRSURI == "" {
		return ""
	}
	uri := r.DRSURI
	if !strings.HasPrefix(uri, "drs://") {
		uri = "drs://" + uri
	}
	return fmt.Sprintf("htan download gen3 %q", uri)
}

// Row converts r to an ordered row. withCommands adds the download commands.
func (r Record) Row(withCommands bool) *rows.Row {
	row := rows.New()
	row.Set("HTAN_Data_File_ID", r.FileID)
	row.Set("name", r.Name)
	row.Set("entityId", r.EntityID)
	row.Set("drs_uri", r.DRSURI)
	row.Set("HTAN_Center", r.Center)
	if withCommands {
		if c := r.SynapseCommand(); c != "" {
			row.Set("synapse_download_cmd", c)
		}
		if c := r.Gen3Command(); c != "" {
			row.Set("gen3_download_cmd", c)
		}
	}
	return row
}

// Store loads the mapping from its cache, downloading it on first use.
type Store struct {
	url    string
	path   string
	http   *http.Client
	log    *zap.Logger
	notify func(string)

	mu      sync.Mutex
	mapping map[string]Record
}

// Option configures a Store.
type Option func(*Store)

// WithURL overrides the mapping source.
func WithURL(u string) Option { return func(s *Store) { s.url = u } }

// WithCachePath overrides the cache file location.
func WithCachePath(p string) Option { return func(s *Store) { s.path = p } }

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(h *http.Client) Option { return func(s *Store) { s.http = h } }

// WithNotifier receives progress notes.
func WithNotifier(fn func(string)) Option { return func(s *Store) { s.notify = fn } }

// WithLogger attaches a diagnostic logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// New creates a store using the XDG cache dir.
func New(opts ...Option) (*Store, error) {
	s := &Store{
		url:    endpoints.Default().FileMapping,
		http:   &http.Client{Timeout: 60 * time.Second},
		log:    zap.NewNop(),
		notify: func(string) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.path == "" {
		dir, err := xdg.CacheDir()
		if err != nil {
			return nil, err
		}
		s.path = filepath.Join(dir, CacheFile)
	}
	return s, nil
}

// Path returns the cache file location.
func (s *Store) Path() string { return s.path }

// Update downloads the mapping, replacing the cache. It returns the
// number of records saved.
func (s *Store) Update(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.download(ctx)
	if err == nil {
		s.mapping = nil
	}
	return n, err
}

func (s *Store) download(ctx context.Context) (int, error) {
	s.notify("Downloading mapping file...")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", "htan-skill/1.0")
	resp, err := s.http.Do(req)
	if err != nil {
		return 0, herrors.Wrap(herrors.Transport, "Error downloading mapping file", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, herrors.Newf(herrors.Server, "Error downloading mapping file: HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}

	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		var anyv any
		if json.Unmarshal(data, &anyv) == nil {
			return 0, herrors.New(herrors.Server, "Expected JSON array in mapping file.")
		}
		return 0, herrors.Wrap(herrors.Server, "Downloaded file is not valid JSON", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return 0, err
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return 0, err
	}
	s.notify(fmt.Sprintf("Saved %d records to %s", len(records), s.path))
	s.log.Debug("mapping cached", zap.String("path", s.path), zap.Int("records", len(records)))
	return len(records), nil
}

// load returns the mapping keyed by file ID, downloading it when the
// cache is missing.
func (s *Store) load(ctx context.Context) (map[string]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mapping != nil {
		return s.mapping, nil
	}
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		s.notify("Mapping cache not found. Downloading...")
		if _, err := s.download(ctx); err != nil {
			return nil, err
		}
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	var recs []Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("read mapping cache %s: %w", s.path, err)
	}
	m := make(map[string]Record, len(recs))
	for _, r := range recs {
		if r.FileID != "" {
			m[r.FileID] = r
		}
	}
	s.notify(fmt.Sprintf("Loaded %d file mappings", len(m)))
	s.mapping = m
	return m, nil
}

// Lookup returns the records for ids in input order, plus the ids that
// are not in the mapping.
func (s *Store) Lookup(ctx context.Context, ids []string) (found []Record, notFound []string, err error) {
	m, err := s.load(ctx)
	if err != nil {
		return nil, nil, err
	}
	for _, id := range ids {
		if r, ok := m[id]; ok {
			found = append(found, r)
		} else {
			notFound = append(notFound, id)
		}
	}
	return found, notFound, nil
}

// CenterCount is the number of files for one center.
type CenterCount struct {
	Center string `json:"center"`
	Files  int    `json:"files"`
}

// Stats summarizes the mapping.
type Stats struct {
	TotalFiles     int           `json:"total_files"`
	WithEntityID   int           `json:"with_synapse_entity_id"`
	WithDRSURI     int           `json:"with_drs_uri"`
	FilesPerCenter []CenterCount `json:"files_per_center"`
}

// Stats counts records, identifiers and files per center, the centers
// sorted by file count descending.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	m, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	st := &Stats{TotalFiles: len(m)}
	centers := map[string]int{}
	for _, r := range m {
		c := r.Center
		if c == "" {
			c = "Unknown"
		}
		centers[c]++
		if r.DRSURI != "" {
			st.WithDRSURI++
		}
		if r.EntityID != "" {
			st.WithEntityID++
		}
	}
	for c, n := range centers {
		st.FilesPerCenter = append(st.FilesPerCenter, CenterCount{Center: c, Files: n})
	}
	sort.Slice(st.FilesPerCenter, func(i, j int) bool {
		a, b := st.FilesPerCenter[i], st.FilesPerCenter[j]
		if a.Files != b.Files {
			return a.Files > b.Files
		}
		return a.Center < b.Center
	})
	return st, nil
}

// Access tiers.
const (
	TierSynapse = "synapse"
	TierGen3    = "gen3"
	TierUnknown = "unknown"
)

var (
	openLevels        = []string{"level 3", "level 4", "auxiliary", "other"}
	specializedAssays = []string{"electron microscopy", "rppa", "slide-seq", "mass spec", "label free", "isobaric", "10x visium"}
	sequencingMarkers = []string{"-seq", "bulk rna", "bulk wgs", "bulk wes", "scrna", "scatac", "snrna"}
	controlledLevels  = []string{"level 1", "level 2"}
)

// InferAccessTier guesses where a file is downloadable from its level and
// assay, following the portal's release rules.
func InferAccessTier(level, assay string) string {
	if level == "" && assay == "" {
		return TierUnknown
	}
	l := strings.ToLower(strings.TrimSpace(level))
	a := strings.ToLower(strings.TrimSpace(assay))

	switch {
	case containsAny(l, openLevels):
		return TierSynapse
	case containsAny(a, specializedAssays):
		return TierSynapse
	case strings.Contains(a, "codex") && strings.Contains(l, "level 1"):
		return TierSynapse
	case containsAny(l, controlledLevels) && containsAny(a, sequencingMarkers):
		return TierGen3
	}
	return TierUnknown
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
