// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package gen3 resolves and downloads controlled-access HTAN files from the
// CRDC Gen3 data commons by DRS URI.
package gen3

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ncihtan/htan-claude/internal/endpoints"
	herrors "github.com/ncihtan/htan-claude/internal/errors"
	"github.com/ncihtan/htan-claude/internal/rest"
	"github.com/ncihtan/htan-claude/internal/transfer"
	"github.com/ncihtan/htan-claude/internal/xdg"
)

// KeyEnvVar names a path to a Gen3 credentials file.
const KeyEnvVar = "GEN3_API_KEY"

// Download protocols.
const (
	ProtocolS3 = "s3"
	ProtocolGS = "gs"
)

// DRS prefixes, longest first.
var drsPrefixes = []string{"drs://nci-crdc.datacommons.io/dg.4DFC/", "drs://dg.4DFC/"}

var drsPattern = regexp.MustCompile(`^drs://(dg\.4DFC|nci-crdc\.datacommons\.io/dg\.4DFC)/[a-zA-Z0-9._/\-]+$`)

// ValidateURI checks that uri is a CRDC DRS URI.
func ValidateURI(uri string) error {
	if !drsPattern.MatchString(uri) {
		return herrors.Newf(herrors.InvalidInput, "Invalid DRS URI '%s'. Expected format: drs://dg.4DFC/<guid>", uri)
	}
	return nil
}

// ExtractGUID strips the DRS prefix. Unknown prefixes are returned unchanged.
func ExtractGUID(uri string) string {
	for _, p := range drsPrefixes {
		if strings.HasPrefix(uri, p) {
			return uri[len(p):]
		}
	}
	return uri
}

// FileName is the local name used for a GUID.
func FileName(guid string) string {
	return strings.ReplaceAll(guid, "/", "_")
}

// DefaultCredentialsPath returns ~/.gen3/credentials.json.
func DefaultCredentialsPath() string {
	return xdg.HomePath(".gen3", "credentials.json")
}

// FindCredentials returns the path in GEN3_API_KEY if it exists, else the
// default path if it exists, else "".
func FindCredentials() string {
	if p := os.Getenv(KeyEnvVar); p != "" {
		p = xdg.ExpandHome(p)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if p := DefaultCredentialsPath(); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Credentials is the API key file issued by the Gen3 portal.
type Credentials struct {
	APIKey string `json:"api_key"`
	KeyID  string `json:"key_id"`
}

// LoadCredentials reads a credentials file. An empty path means FindCredentials.
func LoadCredentials(path string) (Credentials, string, error) {
	if path == "" {
		path = FindCredentials()
		if path == "" {
			return Credentials{}, "", herrors.New(herrors.ConfigMissing, "No Gen3 credentials found.").
				WithHint("Provide --credentials, set GEN3_API_KEY, or place at ~/.gen3/credentials.json")
		}
	} else {
		path = xdg.ExpandHome(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Credentials{}, path, herrors.Newf(herrors.ConfigMissing, "Credentials file not found: %s", path)
		}
		return Credentials{}, path, err
	}
	var c Credentials
	if err := json.Unmarshal(data, &c); err != nil {
		return Credentials{}, path, herrors.Wrap(herrors.ConfigMissing, "Invalid Gen3 credentials file", err)
	}
	if c.APIKey == "" {
		return Credentials{}, path, herrors.New(herrors.ConfigMissing, "Gen3 credentials file has no api_key")
	}
	return c, path, nil
}

// Client talks to the Gen3 Fence service. The access token is fetched on
// first use and reused for the life of the client.
type Client struct {
	creds Credentials
	api   *rest.Client
	dl    *http.Client
	log   *zap.Logger

	mu    sync.Mutex
	token string
}

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	base string
	http *http.Client
	log  *zap.Logger
}

// WithBaseURL overrides the commons URL.
func WithBaseURL(u string) Option {
	return func(c *clientConfig) { c.base = u }
}

// WithHTTPClient sets the HTTP client for API calls and downloads.
func WithHTTPClient(h *http.Client) Option {
	return func(c *clientConfig) { c.http = h }
}

// WithLogger attaches a diagnostic logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *clientConfig) {
		if l != nil {
			c.log = l
		}
	}
}

// New creates a client for creds.
func New(creds Credentials, opts ...Option) *Client {
	cfg := clientConfig{base: endpoints.Default().Gen3, log: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	dl := cfg.http
	if dl == nil {
		dl = transfer.NewClient()
	}
	return &Client{
		creds: creds,
		api:   rest.New(cfg.base, cfg.http),
		dl:    dl,
		log:   cfg.log.With(zap.String("component", "gen3")),
	}
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" {
		return c.token, nil
	}
	var out struct {
		AccessToken string `json:"access_token"`
	}
	err := c.api.PostJSON(ctx, "/user/credentials/api/access_token",
		map[string]string{"api_key": c.creds.APIKey}, &out)
	if err != nil {
		return "", herrors.Wrap(herrors.ConfigMissing, "Gen3 authentication failed", err)
	}
	if out.AccessToken == "" {
		return "", herrors.New(herrors.ConfigMissing, "Gen3 authentication failed: no access_token in response")
	}
	c.token = out.AccessToken
	return c.token, nil
}

// Resolve exchanges a DRS URI for a signed download URL.
func (c *Client) Resolve(ctx context.Context, uri, protocol string) (string, error) {
	if err := ValidateURI(uri); err != nil {
		return "", err
	}
	if protocol == "" {
		protocol = ProtocolS3
	}
	guid := ExtractGUID(uri)

	tok, err := c.accessToken(ctx)
	if err != nil {
		return "", err
	}
	var out map[string]any
	path := "/user/data/download/" + guid + "?protocol=" + url.QueryEscape(protocol)
	if err := c.api.WithBearer(tok).GetJSON(ctx, path, &out); err != nil {
		return "", herrors.Wrap(herrors.Server, fmt.Sprintf("Failed to resolve GUID %s", guid), err)
	}
	signed, _ := out["url"].(string)
	if signed == "" {
		raw, _ := json.Marshal(out)
		return "", herrors.Newf(herrors.Server, "Could not resolve GUID %s. Response: %s", guid, raw)
	}
	c.log.Debug("resolved", zap.String("guid", guid))
	return signed, nil
}

// Download is the outcome of downloading one DRS URI.
type Download struct {
	URI    string `json:"drs_uri"`
	GUID   string `json:"guid"`
	Path   string `json:"path"`
	DryRun bool   `json:"dry_run"`
	transfer.Result
}

// Plan validates uri and computes the target path without network access.
func Plan(uri, dir string) (Download, error) {
	if err := ValidateURI(uri); err != nil {
		return Download{}, err
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Download{}, err
	}
	guid := ExtractGUID(uri)
	return Download{URI: uri, GUID: guid, Path: filepath.Join(abs, FileName(guid))}, nil
}

// Download resolves uri and streams it into dir. An existing target is
// skipped. With dryRun set nothing is fetched.
func (c *Client) Download(ctx context.Context, uri, dir, protocol string, dryRun bool, p transfer.Progress) (Download, error) {
	d, err := Plan(uri, dir)
	if err != nil {
		return d, err
	}
	if dryRun {
		d.DryRun = true
		return d, nil
	}
	if _, err := os.Stat(d.Path); err == nil {
		d.Result = transfer.Result{Path: d.Path, Skipped: true}
		return d, nil
	}

	signed, err := c.Resolve(ctx, uri, protocol)
	if err != nil {
		return d, err
	}
	d.Result, err = transfer.ToFile(ctx, c.dl, signed, d.Path, p)
	if err != nil {
		return d, herrors.Wrap(herrors.Transport, "Download failed", err)
	}
	return d, nil
}

// ReadURIList reads one DRS URI per line, skipping blanks and # comments.
func ReadURIList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, herrors.Newf(herrors.InvalidInput, "Manifest file not found: %s", path)
		}
		return nil, err
	}
	defer f.Close()

	var uris []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		uris = append(uris, line)
	}
	return uris, sc.Err()
}
