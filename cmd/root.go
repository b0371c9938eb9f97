// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package cmd provides the htan command-line interface. It wires the portal
// gateway, BigQuery, Synapse, Gen3, PubMed, the file mapping and the data
// model into Cobra subcommands, and serves the portal tools over MCP.
package cmd

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ncihtan/htan-claude/internal/logging"
)

var (
	showVersion bool
	verbose     bool

	// logger is replaced in PersistentPreRunE once flags are parsed.
	logger = zap.NewNop()
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "htan",
	Short: "HTAN data discovery, query and download toolkit",
	Long: `htan queries the Human Tumor Atlas Network (HTAN) data portal and the
ISB-CGC BigQuery tables, downloads files from Synapse and Gen3/CRDC,
searches HTAN publications, and explores the HTAN data model.

Run 'htan init' once to configure credentials.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			os.Setenv("HTAN_VERBOSE", "1")
		}
		l, err := logging.New(logging.FromEnv())
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Printf("htan %s\n", Version)
			return nil
		}
		return cmd.Help()
	},
}

// Execute runs the CLI application. Errors are printed with their hints to
// stderr and the process exits with status 1.
func Execute() {
	err := rootCmd.Execute()
	logging.Sync(logger)
	if err != nil {
		if _, silent := err.(exitError); !silent {
			fmt.Fprintln(os.Stderr, "Error: "+logging.PresentWithHints(err))
		}
		os.Exit(1)
	}
}

// exitError fails the command without printing anything further; the
// command has already reported the problem.
type exitError struct{}

func (exitError) Error() string { return "exit status 1" }

// note prints a progress message to stderr, keeping stdout for results.
func note(msg string) {
	fmt.Fprintln(os.Stderr, msg)
}

func init() {
	pterm.SetDefaultOutput(os.Stderr)
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "Show version information")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose debug logging")
}
