// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ncihtan/htan-claude/internal/config"
	"github.com/ncihtan/htan-claude/internal/synapse"
)

func TestDryRunDatabase(t *testing.T) {
	assert.Equal(t, "htan_2025_06", dryRunDatabase("htan_2025_06"))
	assert.Contains(t, dryRunDatabase(""), "latest htan_* release")
}

func TestPortalDryRunResolvesNothing(t *testing.T) {
	isolateHome(t)
	// a Synapse token would let a real run fetch and store portal credentials
	t.Setenv(synapse.TokenEnvVar, "tok")

	rootCmd.SetArgs([]string{"query", "portal", "files", "--organ", "Breast", "--dry-run"})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		filesFlags.dryRun = false
	})
	require.NoError(t, rootCmd.Execute())
	assert.False(t, config.PortalExists())
}
