// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ncihtan/htan-claude/internal/credentials"
	herrors "github.com/ncihtan/htan-claude/internal/errors"
	"github.com/ncihtan/htan-claude/internal/gen3"
	"github.com/ncihtan/htan-claude/internal/setup"
	"github.com/ncihtan/htan-claude/internal/synapse"
)

func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	for _, v := range []string{synapse.TokenEnvVar, gen3.KeyEnvVar, setup.BigQueryKeyEnvVar, credentials.EnvVar, "GOOGLE_CLOUD_PROJECT"} {
		t.Setenv(v, "")
	}
	return home
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o600))
}

func TestReadIDs(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "ids.txt")
	require.NoError(t, os.WriteFile(list, []byte("# header\nHTA9_1_2\n\n  HTA9_1_3  \n"), 0o600))

	ids, err := readIDs([]string{"HTA9_1_1"}, list)
	require.NoError(t, err)
	assert.Equal(t, []string{"HTA9_1_1", "HTA9_1_2", "HTA9_1_3"}, ids)

	_, err = readIDs(nil, filepath.Join(dir, "missing.txt"))
	require.Error(t, err)
	assert.Equal(t, herrors.InvalidInput, herrors.KindOf(err))
	assert.Contains(t, err.Error(), "File not found")
}

func TestWizardPrompt(t *testing.T) {
	w := &wizard{in: bufio.NewReader(strings.NewReader("  skip \n\n"))}
	assert.Equal(t, "skip", w.prompt("> ", "x"))
	assert.Equal(t, "x", w.prompt("> ", "x"))
	// EOF falls back to the default
	assert.Equal(t, "q", w.prompt("> ", "q"))
}

func TestWizardNonInteractive(t *testing.T) {
	home := isolateHome(t)
	w := &wizard{in: bufio.NewReader(strings.NewReader("")), nonInteractive: true}

	results, ok := w.run(context.Background(), []string{setup.Gen3, setup.BigQuery}, false)
	require.True(t, ok)
	assert.Equal(t, map[string]bool{setup.Gen3: false, setup.BigQuery: false}, results)

	touch(t, filepath.Join(home, ".gen3", "credentials.json"))
	touch(t, setup.ADCPath())
	results, ok = w.run(context.Background(), []string{setup.Gen3, setup.BigQuery}, false)
	require.True(t, ok)
	assert.Equal(t, map[string]bool{setup.Gen3: true, setup.BigQuery: true}, results)
}

func TestWizardStatusOnly(t *testing.T) {
	isolateHome(t)
	w := &wizard{in: bufio.NewReader(strings.NewReader(""))}
	results, ok := w.run(context.Background(), nil, true)
	assert.False(t, ok)
	assert.Nil(t, results)
}

func TestWizardMenuQuit(t *testing.T) {
	isolateHome(t)
	w := &wizard{in: bufio.NewReader(strings.NewReader("q\n"))}
	_, ok := w.run(context.Background(), nil, false)
	assert.False(t, ok)
}

func TestWizardPortalNeedsSynapse(t *testing.T) {
	isolateHome(t)
	w := &wizard{in: bufio.NewReader(strings.NewReader("")), nonInteractive: true}
	assert.False(t, w.portal(context.Background()))
}

func TestBigQueryAuth(t *testing.T) {
	home := isolateHome(t)
	ok, _ := bigQueryAuth()
	assert.False(t, ok)

	key := filepath.Join(home, "sa.json")
	touch(t, key)
	t.Setenv(setup.BigQueryKeyEnvVar, key)
	t.Setenv("GOOGLE_CLOUD_PROJECT", "isb-cgc-demo")
	ok, msg := bigQueryAuth()
	assert.True(t, ok)
	assert.Equal(t, "Service account key: "+key+", project: isb-cgc-demo", msg)
}
