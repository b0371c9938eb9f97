// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

package keychain

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/99designs/keyring"
)

type memBackend struct {
	items map[string]string
	err   error
}

func (m *memBackend) Get(_ context.Context, service, account string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	v, ok := m.items[service+"/"+account]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *memBackend) Set(_ context.Context, service, account, _, value string) error {
	if m.err != nil {
		return m.err
	}
	m.items[service+"/"+account] = value
	return nil
}

func (m *memBackend) Delete(_ context.Context, service, account string) error {
	if _, ok := m.items[service+"/"+account]; !ok {
		return ErrNotFound
	}
	delete(m.items, service+"/"+account)
	return nil
}

func TestManagerRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewManager(withBackend(&memBackend{items: map[string]string{}}))

	if !m.Supported() {
		t.Fatal("Supported() = false, want true")
	}
	if _, err := m.LoadPortalCredentials(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load on empty store error = %v, want ErrNotFound", err)
	}
	if err := m.SavePortalCredentials(ctx, `{"host":"h"}`); err != nil {
		t.Fatalf("Save error = %v", err)
	}
	got, err := m.LoadPortalCredentials(ctx)
	if err != nil {
		t.Fatalf("Load error = %v", err)
	}
	if got != `{"host":"h"}` {
		t.Errorf("Load = %q, want %q", got, `{"host":"h"}`)
	}
	if err := m.ClearPortalCredentials(ctx); err != nil {
		t.Fatalf("Clear error = %v", err)
	}
	// a second clear on a missing item is not an error
	if err := m.ClearPortalCredentials(ctx); err != nil {
		t.Fatalf("second Clear error = %v", err)
	}
}

func TestManagerUnsupported(t *testing.T) {
	m := &Manager{}
	if m.Supported() {
		t.Fatal("Supported() = true, want false")
	}
	if _, err := m.LoadPortalCredentials(context.Background()); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Load error = %v, want ErrUnsupported", err)
	}
	if err := m.SavePortalCredentials(context.Background(), "x"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Save error = %v, want ErrUnsupported", err)
	}
}

type call struct {
	stdin string
	name  string
	args  []string
}

func recordingRunner(out string, err error, calls *[]call) Runner {
	return func(_ context.Context, stdin, name string, args ...string) (string, error) {
		*calls = append(*calls, call{stdin: stdin, name: name, args: args})
		return out, err
	}
}

func TestCLIBackendArgs(t *testing.T) {
	tests := []struct {
		name     string
		tool     string
		op       func(b *cliBackend) error
		wantArgs []string
		wantIn   string
	}{
		{
			name: "security lookup",
			tool: toolSecurity,
			op: func(b *cliBackend) error {
				_, err := b.Get(context.Background(), Service, Account)
				return err
			},
			wantArgs: []string{"find-generic-password", "-s", "htan-portal", "-a", "htan", "-w"},
		},
		{
			name: "security store",
			tool: toolSecurity,
			op: func(b *cliBackend) error {
				return b.Set(context.Background(), Service, Account, Label, "{}")
			},
			wantArgs: []string{"add-generic-password", "-s", "htan-portal", "-a", "htan", "-w", "{}", "-U"},
		},
		{
			name: "security delete",
			tool: toolSecurity,
			op: func(b *cliBackend) error {
				return b.Delete(context.Background(), Service, Account)
			},
			wantArgs: []string{"delete-generic-password", "-s", "htan-portal", "-a", "htan"},
		},
		{
			name: "secret-tool lookup",
			tool: toolSecretTool,
			op: func(b *cliBackend) error {
				_, err := b.Get(context.Background(), Service, Account)
				return err
			},
			wantArgs: []string{"lookup", "service", "htan-portal", "account", "htan"},
		},
		{
			name: "secret-tool store reads stdin",
			tool: toolSecretTool,
			op: func(b *cliBackend) error {
				return b.Set(context.Background(), Service, Account, Label, "{}")
			},
			wantArgs: []string{"store", "--label=HTAN Portal", "service", "htan-portal", "account", "htan"},
			wantIn:   "{}",
		},
		{
			name: "secret-tool clear",
			tool: toolSecretTool,
			op: func(b *cliBackend) error {
				return b.Delete(context.Background(), Service, Account)
			},
			wantArgs: []string{"clear", "service", "htan-portal", "account", "htan"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls []call
			b := &cliBackend{tool: tt.tool, run: recordingRunner("value", nil, &calls)}
			if err := tt.op(b); err != nil {
				t.Fatalf("op error = %v", err)
			}
			if len(calls) != 1 {
				t.Fatalf("calls = %d, want 1", len(calls))
			}
			if calls[0].name != tt.tool {
				t.Errorf("tool = %q, want %q", calls[0].name, tt.tool)
			}
			if !reflect.DeepEqual(calls[0].args, tt.wantArgs) {
				t.Errorf("args = %q, want %q", calls[0].args, tt.wantArgs)
			}
			if calls[0].stdin != tt.wantIn {
				t.Errorf("stdin = %q, want %q", calls[0].stdin, tt.wantIn)
			}
		})
	}
}

func TestCLIBackendEmptyOutputIsNotFound(t *testing.T) {
	var calls []call
	b := &cliBackend{tool: toolSecretTool, run: recordingRunner("", nil, &calls)}
	if _, err := b.Get(context.Background(), Service, Account); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get error = %v, want ErrNotFound", err)
	}
}

func TestCLIBackendUnknownTool(t *testing.T) {
	var calls []call
	b := &cliBackend{tool: "nope", run: recordingRunner("", nil, &calls)}
	if _, err := b.Get(context.Background(), Service, Account); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Get error = %v, want ErrUnsupported", err)
	}
	if len(calls) != 0 {
		t.Errorf("runner invoked %d times for unknown tool", len(calls))
	}
}

func TestWithRunner(t *testing.T) {
	var calls []call
	m := NewManager(WithRunner(recordingRunner(`{"host":"h"}`, nil, &calls)))
	if !m.Supported() {
		t.Fatal("Supported() = false, want true")
	}
	got, err := m.LoadPortalCredentials(context.Background())
	if err != nil {
		t.Fatalf("Load error = %v", err)
	}
	if got != `{"host":"h"}` {
		t.Errorf("Load = %q, want %q", got, `{"host":"h"}`)
	}
	if len(calls) != 1 {
		t.Fatalf("runner invoked %d times, want 1", len(calls))
	}
	if want := map[string]bool{toolSecurity: true, toolSecretTool: true}; !want[calls[0].name] {
		t.Errorf("runner tool = %q, want a secret-store tool", calls[0].name)
	}
}

func TestRingBackendRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewManager(withBackend(&ringBackend{ring: keyring.NewArrayKeyring(nil)}))

	if _, err := m.LoadPortalCredentials(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load on empty ring error = %v, want ErrNotFound", err)
	}
	if err := m.SavePortalCredentials(ctx, `{"host":"ring"}`); err != nil {
		t.Fatalf("Save error = %v", err)
	}
	got, err := m.LoadPortalCredentials(ctx)
	if err != nil {
		t.Fatalf("Load error = %v", err)
	}
	if got != `{"host":"ring"}` {
		t.Errorf("Load = %q, want %q", got, `{"host":"ring"}`)
	}
	if err := m.ClearPortalCredentials(ctx); err != nil {
		t.Fatalf("Clear error = %v", err)
	}
	if err := m.ClearPortalCredentials(ctx); err != nil {
		t.Fatalf("second Clear error = %v", err)
	}
}

func TestRingFallbackPlatforms(t *testing.T) {
	for _, goos := range []string{"darwin", "linux"} {
		if len(ringBackends[goos]) == 0 {
			t.Errorf("no keyring fallback for %s", goos)
		}
	}
}
