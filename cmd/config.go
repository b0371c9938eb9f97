// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ncihtan/htan-claude/internal/credentials"
	"github.com/ncihtan/htan-claude/internal/render"
	"github.com/ncihtan/htan-claude/internal/setup"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or remove stored credentials",
}

// configCheckCmd reports every service's configuration as JSON without
// touching the network.
var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Report which services are configured (JSON)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st := setup.Check(cmd.Context(), credentials.Default(logger, newKeychain()))
		return render.WriteJSON(os.Stdout, setup.Report{OK: true, Status: st})
	},
}

// configShowCmd displays the portal endpoint that would be used, with the
// password hidden.
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the portal connection in use",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := credentials.Default(logger, newKeychain()).Resolve(cmd.Context())
		if err != nil {
			pterm.Println("⚠️  No portal credentials configured")
			pterm.Println("   Please run: htan init portal")
			return nil
		}
		pterm.Printf("Using portal credentials from %s\n\n", res.Source)
		pterm.DefaultBox.
			WithTitle(pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint("Portal Connection")).
			WithPadding(1).
			Println(res.Record.String() + "\n" + res.Record.URL())
		pterm.Println()
		pterm.Println("To update this connection, run: htan init portal --force")
		return nil
	},
}

var configForgetCmd = &cobra.Command{
	Use:   "forget",
	Short: "Remove stored portal credentials from the keychain and config file",
	Long: `The forget command removes the portal credentials saved by 'htan init portal':
the OS keychain entry and ~/.config/htan-skill/portal.json. Environment
variables, Synapse, Gen3 and Google credentials are left untouched.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := credentials.Forget(cmd.Context(), newKeychain()); err != nil {
			return err
		}
		pterm.Success.Println("Portal credentials have been removed")
		if os.Getenv(credentials.EnvVar) != "" {
			pterm.Warning.Println(credentials.EnvVar + " is still set in the environment")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configCheckCmd, configShowCmd, configForgetCmd)
}
