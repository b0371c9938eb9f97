// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ncihtan/htan-claude/internal/clickhouse"
	"github.com/ncihtan/htan-claude/internal/credentials"
	herrors "github.com/ncihtan/htan-claude/internal/errors"
	"github.com/ncihtan/htan-claude/internal/keychain"
	"github.com/ncihtan/htan-claude/internal/portal"
	"github.com/ncihtan/htan-claude/internal/render"
	"github.com/ncihtan/htan-claude/internal/setup"
	"github.com/ncihtan/htan-claude/internal/synapse"
)

var counts = message.NewPrinter(language.English)

func newKeychain() *keychain.Manager {
	return keychain.NewManager(keychain.WithLogger(logger))
}

func newSynapse() (*synapse.Client, error) {
	return synapse.FromEnv(synapse.WithLogger(logger))
}

// portalResolver chains env, keychain and file, then falls back to
// fetching the record through Synapse when a token is configured.
func portalResolver(kc *keychain.Manager) *credentials.Resolver {
	return credentials.Default(logger, kc).With(setup.SynapseProvider(newSynapse, kc, logger))
}

// newGateway returns a gateway pinned to database, or one that discovers
// the latest HTAN database when database is empty.
func newGateway(database string) *clickhouse.Client {
	opts := []clickhouse.Option{clickhouse.WithLogger(logger), clickhouse.WithNotifier(note)}
	if database != "" {
		opts = append(opts, clickhouse.WithDatabase(database))
	}
	return clickhouse.New(portalResolver(newKeychain()), opts...)
}

func newPortal(database string) *portal.Client {
	return portal.New(newGateway(database), portal.WithLogger(logger), portal.WithNotifier(note))
}

func newRenderer() *render.Renderer {
	return &render.Renderer{Out: os.Stdout, Err: os.Stderr}
}

// outputFormat reads and validates the --output flag, or --format on the
// commands that name it that way.
func outputFormat(cmd *cobra.Command) (render.Format, error) {
	for _, name := range []string{"output", "format"} {
		if v, err := cmd.Flags().GetString(name); err == nil {
			return render.ParseFormat(v)
		}
	}
	return render.Text, nil
}

// readIDs merges positional ids with the non-blank, non-comment lines of
// file.
func readIDs(args []string, file string) ([]string, error) {
	ids := append([]string(nil), args...)
	if file == "" {
		return ids, nil
	}
	f, err := os.Open(file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, herrors.Newf(herrors.InvalidInput, "File not found: %s", file)
		}
		return nil, fmt.Errorf("open %s: %w", file, err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			ids = append(ids, line)
		}
	}
	return ids, sc.Err()
}
