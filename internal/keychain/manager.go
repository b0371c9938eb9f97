// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package keychain provides thread-safe access to the OS secret store for htan.
//
// Portal credentials live under a single service/account label so that items
// written by the platform's own tooling are readable here and vice versa:
//
//	macOS:  security find-generic-password -s htan-portal -a htan -w
//	Linux:  secret-tool lookup service htan-portal account htan
//
// Every subprocess runs under a context deadline so a locked or unresponsive
// keychain can never hang the caller. Platforms other than macOS and Linux
// have no backend; all operations return ErrUnsupported there. When the
// native tool is missing the keyring library backs the store instead.
package keychain

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/99designs/keyring"
	"go.uber.org/zap"
)

// Labels for the portal credential item.
const (
	Service = "htan-portal"
	Account = "htan"
	Label   = "HTAN Portal"
)

// Timeouts bounding keychain subprocesses.
const (
	LookupTimeout = 5 * time.Second
	StoreTimeout  = 10 * time.Second
)

var (
	// ErrUnsupported is returned on platforms without a secret-store backend.
	ErrUnsupported = errors.New("keychain not supported on this platform")
	// ErrNotFound is returned when the item does not exist.
	ErrNotFound = errors.New("keychain item not found")
)

// backend defines the operations a secret store must provide.
type backend interface {
	Get(ctx context.Context, service, account string) (string, error)
	Set(ctx context.Context, service, account, label, value string) error
	Delete(ctx context.Context, service, account string) error
}

// Manager serializes access to the OS secret store.
type Manager struct {
	mu      sync.RWMutex
	backend backend
	log     *zap.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger attaches a diagnostic logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithRunner binds the manager to the platform's command-line tool and runs
// it through r instead of a subprocess. Where the platform has no tool the
// secret-tool protocol is used.
func WithRunner(r Runner) Option {
	return func(m *Manager) {
		tool := nativeTool
		if tool == "" {
			tool = toolSecretTool
		}
		m.backend = &cliBackend{tool: tool, run: r}
	}
}

// withBackend replaces the platform backend (tests only).
func withBackend(b backend) Option {
	return func(m *Manager) { m.backend = b }
}

// ringBackends are the keyring library backends used when the native tool
// is missing. The macOS Keychain backend addresses the same item as
// `security`; the Secret Service backend stores its own item under Service.
var ringBackends = map[string][]keyring.BackendType{
	"darwin": {keyring.KeychainBackend},
	"linux":  {keyring.SecretServiceBackend},
}

// NewManager creates a manager bound to the platform's native secret store,
// falling back to the keyring library when the tool is not installed.
func NewManager(opts ...Option) *Manager {
	m := &Manager{log: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	if m.backend != nil {
		return m
	}

	b, err := lookPathBackend(nativeTool)
	if err == nil {
		m.backend = b
		return m
	}
	m.log.Debug("native keychain backend unavailable", zap.Error(err))

	if allowed, ok := ringBackends[runtime.GOOS]; ok {
		rb, rerr := openRing(Service, allowed)
		if rerr == nil {
			m.backend = rb
			return m
		}
		m.log.Debug("keyring fallback unavailable", zap.Error(rerr))
	}
	return m
}

// Supported reports whether a backend is available on this platform.
func (m *Manager) Supported() bool {
	return m.backend != nil
}

// LoadPortalCredentials returns the raw JSON stored for the portal.
// The lookup is bounded by LookupTimeout.
func (m *Manager) LoadPortalCredentials(ctx context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.backend == nil {
		return "", ErrUnsupported
	}
	ctx, cancel := context.WithTimeout(ctx, LookupTimeout)
	defer cancel()

	v, err := m.backend.Get(ctx, Service, Account)
	if err != nil {
		m.log.Debug("keychain lookup failed", zap.Error(err))
		return "", err
	}
	if v == "" {
		return "", ErrNotFound
	}
	return v, nil
}

// SavePortalCredentials stores raw JSON for the portal, replacing any
// existing item. The write is bounded by StoreTimeout.
func (m *Manager) SavePortalCredentials(ctx context.Context, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.backend == nil {
		return ErrUnsupported
	}
	ctx, cancel := context.WithTimeout(ctx, StoreTimeout)
	defer cancel()

	if err := m.backend.Set(ctx, Service, Account, Label, value); err != nil {
		m.log.Debug("keychain store failed", zap.Error(err))
		return err
	}
	return nil
}

// ClearPortalCredentials removes the portal item. A missing item is not an error.
func (m *Manager) ClearPortalCredentials(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.backend == nil {
		return ErrUnsupported
	}
	ctx, cancel := context.WithTimeout(ctx, StoreTimeout)
	defer cancel()

	if err := m.backend.Delete(ctx, Service, Account); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// ringBackend adapts the keyring library to the backend interface.
type ringBackend struct {
	ring keyring.Keyring
}

// openRing opens the first available keyring backend from allowed.
func openRing(service string, allowed []keyring.BackendType) (*ringBackend, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName:              service,
		AllowedBackends:          allowed,
		KeychainTrustApplication: true,
		LibSecretCollectionName:  "login",
	})
	if err != nil {
		return nil, err
	}
	return &ringBackend{ring: ring}, nil
}

func (r *ringBackend) Get(_ context.Context, _, account string) (string, error) {
	it, err := r.ring.Get(account)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return string(it.Data), nil
}

func (r *ringBackend) Set(_ context.Context, _, account, label, value string) error {
	return r.ring.Set(keyring.Item{Key: account, Label: label, Data: []byte(value)})
}

func (r *ringBackend) Delete(_ context.Context, _, account string) error {
	if err := r.ring.Remove(account); err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
