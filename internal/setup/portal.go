// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

package setup

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ncihtan/htan-claude/internal/clickhouse"
	"github.com/ncihtan/htan-claude/internal/credentials"
	herrors "github.com/ncihtan/htan-claude/internal/errors"
	"github.com/ncihtan/htan-claude/internal/keychain"
	"github.com/ncihtan/htan-claude/internal/logging"
	"github.com/ncihtan/htan-claude/internal/rest"
	"github.com/ncihtan/htan-claude/internal/synapse"
)

const (
	// TeamID is the HTAN Claude Skill Users team that gates portal access.
	TeamID = "3574960"
	// CredentialsEntity is the Synapse file holding portal credentials.
	CredentialsEntity = "syn73720854"
	// JoinMessage accompanies automatic membership requests.
	JoinMessage = "Auto-join via HTAN MCP server"

	// VerifyTimeout bounds the connectivity check.
	VerifyTimeout = 10 * time.Second
)

// ErrNoSynapse is returned when portal credentials are missing and cannot
// be fetched because Synapse is not configured either.
var ErrNoSynapse = herrors.New(herrors.ConfigMissing,
	"Portal credentials not configured and no Synapse credentials found.\n"+
		"Set up ~/.synapseConfig first:\n"+
		"1. Create a free account at https://www.synapse.org\n"+
		"2. Go to Account Settings > Personal Access Tokens\n"+
		"3. Create a token with view and download permissions\n"+
		"4. Save to ~/.synapseConfig:\n"+
		"   [authentication]\n"+
		"   authtoken = <your-token>")

// FetchPortalCredentials downloads the portal credential record through
// Synapse. When the user is not yet a team member and may join, a
// membership request is sent first. notify receives progress notes.
func FetchPortalCredentials(ctx context.Context, syn *synapse.Client, notify func(string)) (credentials.Record, error) {
	if notify == nil {
		notify = func(string) {}
	}
	ensureMembership(ctx, syn, notify)

	notify("Downloading portal credentials from Synapse...")
	ent, err := syn.EntityBundle(ctx, CredentialsEntity)
	if err != nil {
		return credentials.Record{}, fetchError(err)
	}
	url, err := syn.FileHandleURL(ctx, ent.DataFileHandleID)
	if err != nil {
		return credentials.Record{}, fetchError(err)
	}
	data, err := syn.FetchFile(ctx, url)
	if err != nil {
		return credentials.Record{}, fetchError(err)
	}

	rec, err := credentials.Parse(data)
	if err != nil {
		msg := err.Error()
		if i := strings.Index(msg, "missing keys: "); i >= 0 {
			return credentials.Record{}, herrors.New(herrors.Server, "Downloaded credentials "+msg[i:])
		}
		return credentials.Record{}, herrors.Wrap(herrors.Server, "Downloaded credentials are not valid JSON", err)
	}
	return rec, nil
}

// ensureMembership requests to join the team when allowed. Failures are
// reported and otherwise ignored; the download decides access.
func ensureMembership(ctx context.Context, syn *synapse.Client, notify func(string)) {
	profile, err := syn.UserProfile(ctx)
	if err != nil {
		notify("Warning: Could not check team membership: " + err.Error())
		return
	}
	m, err := syn.MembershipStatus(ctx, TeamID, profile.OwnerID)
	if err != nil {
		notify("Warning: Could not check team membership: " + err.Error())
		return
	}
	if m.IsMember || !m.CanJoin {
		return
	}
	if err := syn.RequestMembership(ctx, TeamID, JoinMessage); err != nil {
		notify("Warning: Could not join team: " + err.Error())
		return
	}
	notify("Joined HTAN Claude Skill Users team")
}

func fetchError(err error) error {
	if rest.StatusOf(err) == http.StatusForbidden {
		return herrors.Wrap(herrors.ConfigMissing,
			"Access denied. Join the HTAN Claude Skill Users team first: "+credentials.TeamURL, err)
	}
	return herrors.Wrap(herrors.Server, "Download failed", err)
}

// Saved records where credentials were stored.
type Saved struct {
	Source credentials.Source
	Path   string
}

// SavePortalCredentials stores rec in the OS keychain, falling back to the
// credential file.
func SavePortalCredentials(ctx context.Context, kc *keychain.Manager, rec credentials.Record) (Saved, error) {
	if credentials.SaveToKeychain(ctx, kc, rec) {
		return Saved{Source: credentials.SourceKeychain}, nil
	}
	p, err := credentials.SaveToFile(rec)
	if err != nil {
		return Saved{}, err
	}
	return Saved{Source: credentials.SourceFile, Path: p}, nil
}

// SynapseProvider is the lowest credential tier: when Synapse is configured
// it fetches the portal record, stores it and returns it. newClient is
// called only when the tier is reached.
func SynapseProvider(newClient func() (*synapse.Client, error), kc *keychain.Manager, log *zap.Logger) credentials.Provider {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(logging.Component("setup"))
	return credentials.Provider{
		Name: credentials.SourceSynapse,
		Load: func(ctx context.Context) (credentials.Record, bool) {
			syn, err := newClient()
			if err != nil {
				return credentials.Record{}, false
			}
			rec, err := FetchPortalCredentials(ctx, syn, func(s string) { log.Info(s) })
			if err != nil {
				log.Warn("portal auto-setup failed", zap.Error(err))
				return credentials.Record{}, false
			}
			saved, err := SavePortalCredentials(ctx, kc, rec)
			if err != nil {
				log.Warn("could not store portal credentials", zap.Error(err))
			} else {
				log.Info("portal credentials stored", logging.Source(string(saved.Source)))
			}
			return rec, true
		},
	}
}

// Querier runs one gateway query.
type Querier interface {
	Query(ctx context.Context, sql string, opts clickhouse.QueryOptions) (string, error)
}

// VerifyPortal runs SELECT 1 and reports whether the gateway answered 1.
func VerifyPortal(ctx context.Context, q Querier) bool {
	out, err := q.Query(ctx, "SELECT 1", clickhouse.QueryOptions{
		Format:  clickhouse.TabSeparated,
		Timeout: VerifyTimeout,
	})
	return err == nil && strings.TrimSpace(out) == "1"
}
