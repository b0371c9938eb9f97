// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ncihtan/htan-claude/internal/clickhouse"
	"github.com/ncihtan/htan-claude/internal/credentials"
	"github.com/ncihtan/htan-claude/internal/mcpserver"
	"github.com/ncihtan/htan-claude/internal/portal"
	"github.com/ncihtan/htan-claude/internal/setup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run htan as a long-lived server",
}

// serveMCPCmd exposes the portal tools over the Model Context Protocol on
// stdio. Stdout is reserved for the protocol; diagnostics go to the logger
// on stderr.
var serveMCPCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the HTAN portal tools over MCP (stdio)",
	Long: `Starts a Model Context Protocol server named htan-portal on stdin/stdout.

Portal credentials are resolved once per process. When none are configured
and Synapse is, they are fetched from Synapse and stored automatically.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		kc := newKeychain()
		local := credentials.Default(logger, kc)
		gw := clickhouse.New(portalResolver(kc),
			clickhouse.WithLogger(logger),
			clickhouse.WithNotifier(func(s string) { logger.Info(s) }),
		)
		pc := portal.New(gw, portal.WithLogger(logger))
		srv := mcpserver.New(pc,
			func(ctx context.Context) setup.Status { return setup.Check(ctx, local) },
			mcpserver.WithLogger(logger),
			mcpserver.WithVersion(Version),
		)
		if err := srv.Serve(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.AddCommand(serveMCPCmd)
}
