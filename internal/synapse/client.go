// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package synapse talks to the Synapse REST API: profile and team lookups,
// entity bundles and presigned file-handle URLs.
package synapse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/ini.v1"

	"github.com/ncihtan/htan-claude/internal/endpoints"
	herrors "github.com/ncihtan/htan-claude/internal/errors"
	"github.com/ncihtan/htan-claude/internal/rest"
	"github.com/ncihtan/htan-claude/internal/transfer"
	"github.com/ncihtan/htan-claude/internal/xdg"
)

// TokenEnvVar holds a Synapse personal access token.
const TokenEnvVar = "SYNAPSE_AUTH_TOKEN"

// ConfigFile is the synapseclient configuration file under $HOME.
const ConfigFile = ".synapseConfig"

var idPattern = regexp.MustCompile(`^syn\d+$`)

// ValidateID checks that id looks like synNNNNNN.
func ValidateID(id string) error {
	if !idPattern.MatchString(id) {
		return herrors.Newf(herrors.InvalidInput, "Invalid Synapse ID '%s'. Must match 'synNNNNNN'.", id)
	}
	return nil
}

// ConfigPath returns ~/.synapseConfig.
func ConfigPath() string {
	return xdg.HomePath(ConfigFile)
}

// LoadToken returns the token from SYNAPSE_AUTH_TOKEN, else from the
// [authentication] authtoken entry of ~/.synapseConfig. An empty string
// means no token is configured.
func LoadToken() string {
	if tok := strings.TrimSpace(os.Getenv(TokenEnvVar)); tok != "" {
		return tok
	}
	return tokenFromFile(ConfigPath())
}

func tokenFromFile(path string) string {
	if path == "" {
		return ""
	}
	cfg, err := ini.Load(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(cfg.Section("authentication").Key("authtoken").String())
}

// ErrNoToken is returned when no Synapse token is configured.
var ErrNoToken = herrors.New(herrors.ConfigMissing, "Synapse credentials not found").
	WithHint("Set SYNAPSE_AUTH_TOKEN or configure ~/.synapseConfig").
	WithHint("Create a token at https://www.synapse.org (Account Settings > Personal Access Tokens)")

// Client is an authenticated Synapse REST client.
type Client struct {
	repo *rest.Client
	file *rest.Client
	dl   *http.Client
	log  *zap.Logger
}

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	ep   endpoints.Endpoints
	http *http.Client
	log  *zap.Logger
}

// WithEndpoints overrides the repository and file service URLs.
func WithEndpoints(ep endpoints.Endpoints) Option {
	return func(c *clientConfig) { c.ep = ep }
}

// WithHTTPClient sets the HTTP client used for API calls and downloads.
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

// New creates a client authenticated with token.
func New(token string, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	cfg := clientConfig{ep: endpoints.Default(), log: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	dl := cfg.http
	if dl == nil {
		dl = transfer.NewClient()
	}
	return &Client{
		dl:   dl,
		repo: rest.New(cfg.ep.SynapseRepo, cfg.http).WithBearer(token),
		file: rest.New(cfg.ep.SynapseFile, cfg.http).WithBearer(token),
		log:  cfg.log.With(zap.String("component", "synapse")),
	}, nil
}

// FromEnv creates a client using LoadToken.
func FromEnv(opts ...Option) (*Client, error) {
	return New(LoadToken(), opts...)
}

// Profile is the subset of a Synapse user profile htan uses.
type Profile struct {
	OwnerID  string `json:"ownerId"`
	UserName string `json:"userName"`
}

// UserProfile returns the authenticated user's profile.
func (c *Client) UserProfile(ctx context.Context) (Profile, error) {
	var p Profile
	err := c.repo.GetJSON(ctx, "/repo/v1/userProfile", &p)
	return p, err
}

// Membership is a team membership status.
type Membership struct {
	IsMember bool `json:"isMember"`
	CanJoin  bool `json:"canJoin"`
}

// MembershipStatus reports whether user belongs to team.
func (c *Client) MembershipStatus(ctx context.Context, team, user string) (Membership, error) {
	var m Membership
	err := c.repo.GetJSON(ctx, fmt.Sprintf("/repo/v1/team/%s/member/%s/membershipStatus", team, user), &m)
	return m, err
}

// RequestMembership asks to join team.
func (c *Client) RequestMembership(ctx context.Context, team, message string) error {
	return c.repo.PostJSON(ctx, "/repo/v1/membershipRequest", map[string]string{
		"teamId":  team,
		"message": message,
	}, nil)
}

// Entity is the file metadata from an entity bundle.
type Entity struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	DataFileHandleID string `json:"dataFileHandleId"`
	ContentSize      int64  `json:"contentSize"`
}

type bundle struct {
	Entity      Entity `json:"entity"`
	FileHandles []struct {
		ID          string `json:"id"`
		ContentSize int64  `json:"contentSize"`
	} `json:"fileHandles"`
}

// EntityBundle fetches the entity and its file handles.
func (c *Client) EntityBundle(ctx context.Context, id string) (Entity, error) {
	if err := ValidateID(id); err != nil {
		return Entity{}, err
	}
	var b bundle
	err := c.repo.PostJSON(ctx, "/repo/v1/entity/"+id+"/bundle2", map[string]bool{
		"includeEntity":      true,
		"includeFileHandles": true,
	}, &b)
	if err != nil {
		return Entity{}, err
	}
	e := b.Entity
	for _, fh := range b.FileHandles {
		if fh.ID == e.DataFileHandleID {
			e.ContentSize = fh.ContentSize
		}
	}
	if e.DataFileHandleID == "" {
		return e, herrors.Newf(herrors.NotFound, "Entity %s has no file handle", id)
	}
	return e, nil
}

// FileHandleURL returns a presigned download URL for a file handle.
func (c *Client) FileHandleURL(ctx context.Context, fileHandleID string) (string, error) {
	body, err := c.file.GetRaw(ctx, "/file/v1/fileHandle/"+fileHandleID+"/url?redirect=false")
	if err != nil {
		return "", err
	}
	return decodeURL(body), nil
}

// EntityFileURL returns a presigned download URL for an entity's file.
func (c *Client) EntityFileURL(ctx context.Context, id string) (string, error) {
	if err := ValidateID(id); err != nil {
		return "", err
	}
	body, err := c.repo.GetRaw(ctx, "/repo/v1/entity/"+id+"/file?redirect=false")
	if err != nil {
		return "", err
	}
	return decodeURL(body), nil
}

// FetchFile downloads the whole file behind a presigned URL into memory.
func (c *Client) FetchFile(ctx context.Context, url string) ([]byte, error) {
	return rest.New("", c.repo.HTTP()).GetRaw(ctx, url)
}

// decodeURL accepts both a JSON string body and a bare URL.
func decodeURL(body []byte) string {
	var s string
	if err := json.Unmarshal(body, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(body))
}
