// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package credentials resolves portal ClickHouse credentials.
//
// Sources are tried in a fixed order and the first valid record wins:
//
//  1. HTAN_PORTAL_CREDENTIALS environment variable (inline JSON)
//  2. OS keychain (service "htan-portal", account "htan")
//  3. ~/.config/htan-skill/portal.json
//
// An absent or malformed source is skipped, never fatal. When every source
// is exhausted Resolve returns *ConfigError.
package credentials

import (
	"context"
	"errors"
	"os"

	"go.uber.org/zap"

	"github.com/ncihtan/htan-claude/internal/config"
	"github.com/ncihtan/htan-claude/internal/keychain"
	"github.com/ncihtan/htan-claude/internal/logging"
)

// EnvVar holds an inline JSON credential record.
const EnvVar = "HTAN_PORTAL_CREDENTIALS"

// TeamURL is where portal access is requested.
const TeamURL = "https://www.synapse.org/Team:3574960"

// Source names the tier that produced a record.
type Source string

const (
	SourceEnv      Source = "env"
	SourceKeychain Source = "keychain"
	SourceFile     Source = "file"
	SourceSynapse  Source = "synapse"
)

// Provider is one tier of the lookup. Load reports false when the tier has
// no usable record.
type Provider struct {
	Name Source
	Load func(ctx context.Context) (Record, bool)
}

// Resolved is a record tagged with its source.
type Resolved struct {
	Record
	Source Source
}

// ConfigError is returned when no provider yields a record.
type ConfigError struct{}

func (e *ConfigError) Error() string {
	return "Portal credentials not configured.\n\n" +
		"Options:\n" +
		"  1. Run: htan init portal (recommended)\n" +
		"  2. Set " + EnvVar + " env var (JSON string)\n" +
		"  3. Create ~/.config/htan-skill/portal.json manually\n\n" +
		"Portal credentials require HTAN Claude Skill Users team membership:\n" +
		"  " + TeamURL
}

// Resolver folds an ordered provider list, first match wins.
type Resolver struct {
	providers []Provider
	log       *zap.Logger
}

// NewResolver returns a resolver over providers in the given order.
func NewResolver(log *zap.Logger, providers ...Provider) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{providers: providers, log: log}
}

// Default returns the standard env → keychain → file resolver.
func Default(log *zap.Logger, kc *keychain.Manager) *Resolver {
	return NewResolver(log, EnvProvider(), KeychainProvider(kc), FileProvider())
}

// With returns a copy of r with p appended as the lowest-priority tier.
func (r *Resolver) With(p Provider) *Resolver {
	ps := make([]Provider, 0, len(r.providers)+1)
	ps = append(ps, r.providers...)
	ps = append(ps, p)
	return &Resolver{providers: ps, log: r.log}
}

// Resolve returns the first valid record.
func (r *Resolver) Resolve(ctx context.Context) (Resolved, error) {
	for _, p := range r.providers {
		rec, ok := p.Load(ctx)
		if !ok {
			r.log.Debug("credential source absent", logging.Source(string(p.Name)))
			continue
		}
		r.log.Debug("credentials resolved", logging.Source(string(p.Name)))
		return Resolved{Record: rec, Source: p.Name}, nil
	}
	return Resolved{}, &ConfigError{}
}

// DetectSource probes the tiers in order and returns the label of the first
// that has a record, or "".
func (r *Resolver) DetectSource(ctx context.Context) Source {
	res, err := r.Resolve(ctx)
	if err != nil {
		return ""
	}
	return res.Source
}

// EnvProvider reads HTAN_PORTAL_CREDENTIALS.
func EnvProvider() Provider {
	return Provider{
		Name: SourceEnv,
		Load: func(context.Context) (Record, bool) {
			raw := os.Getenv(EnvVar)
			if raw == "" {
				return Record{}, false
			}
			rec, err := Parse([]byte(raw))
			return rec, err == nil
		},
	}
}

// KeychainProvider reads the portal item from the OS keychain.
func KeychainProvider(kc *keychain.Manager) Provider {
	return Provider{
		Name: SourceKeychain,
		Load: func(ctx context.Context) (Record, bool) {
			if kc == nil || !kc.Supported() {
				return Record{}, false
			}
			raw, err := kc.LoadPortalCredentials(ctx)
			if err != nil {
				return Record{}, false
			}
			rec, err := Parse([]byte(raw))
			return rec, err == nil
		},
	}
}

// FileProvider reads the tier-3 credential file.
func FileProvider() Provider {
	return Provider{
		Name: SourceFile,
		Load: func(context.Context) (Record, bool) {
			data, err := config.LoadPortal()
			if err != nil {
				return Record{}, false
			}
			rec, err := Parse(data)
			return rec, err == nil
		},
	}
}

// SaveToKeychain stores rec in the OS keychain only. It reports success and
// never falls back to the file.
func SaveToKeychain(ctx context.Context, kc *keychain.Manager, rec Record) bool {
	if kc == nil || !kc.Supported() {
		return false
	}
	data, err := rec.JSON()
	if err != nil {
		return false
	}
	return kc.SavePortalCredentials(ctx, string(data)) == nil
}

// SaveToFile writes rec to the tier-3 file and returns its path.
func SaveToFile(rec Record) (string, error) {
	data, err := rec.JSON()
	if err != nil {
		return "", err
	}
	return config.SavePortal(data)
}

// Forget removes the keychain item and the credential file.
func Forget(ctx context.Context, kc *keychain.Manager) error {
	var errs []error
	if kc != nil && kc.Supported() {
		if err := kc.ClearPortalCredentials(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := config.RemovePortal(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
