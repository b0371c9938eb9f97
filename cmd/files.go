// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	herrors "github.com/ncihtan/htan-claude/internal/errors"
	"github.com/ncihtan/htan-claude/internal/filemap"
	"github.com/ncihtan/htan-claude/internal/render"
	"github.com/ncihtan/htan-claude/internal/rows"
)

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "Resolve HTAN_Data_File_IDs to download coordinates",
	Example: `  htan files update
  htan files lookup HTA9_1_19512
  htan files lookup HTA9_1_19512 HTA9_1_19553 --format json
  htan files stats`,
}

func newFileMap() (*filemap.Store, error) {
	return filemap.New(filemap.WithLogger(logger), filemap.WithNotifier(note))
}

var filesUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Download or refresh the mapping cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newFileMap()
		if err != nil {
			return err
		}
		_, err = s.Update(cmd.Context())
		return err
	},
}

var lookupFile string

var filesLookupCmd = &cobra.Command{
	Use:   "lookup [ids...]",
	Short: "Look up HTAN_Data_File_IDs",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}
		ids, err := readIDs(args, lookupFile)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return herrors.New(herrors.InvalidInput, "No file IDs provided.")
		}
		for _, id := range ids {
			if !filemap.FileIDPattern.MatchString(id) {
				note(fmt.Sprintf("Warning: '%s' does not match expected format (HTA*_*_*)", id))
			}
		}

		s, err := newFileMap()
		if err != nil {
			return err
		}
		found, notFound, err := s.Lookup(cmd.Context(), ids)
		if err != nil {
			return err
		}
		if len(notFound) > 0 {
			note(fmt.Sprintf("Not found in mapping (%d): %s", len(notFound), strings.Join(notFound, ", ")))
		}
		if len(found) == 0 {
			note("No matching records found.")
			return exitError{}
		}
		note(fmt.Sprintf("Found %d/%d files", len(found), len(ids)))

		out := make([]*rows.Row, len(found))
		for i, r := range found {
			out[i] = r.Row(format == render.JSON)
		}
		return newRenderer().Rows(out, format)
	},
}

var filesStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show mapping statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newFileMap()
		if err != nil {
			return err
		}
		st, err := s.Stats(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println(counts.Sprintf("Total files: %d", st.TotalFiles))
		fmt.Println(counts.Sprintf("With Synapse entityId: %d", st.WithEntityID))
		fmt.Println(counts.Sprintf("With DRS URI (Gen3): %d", st.WithDRSURI))
		fmt.Println()
		fmt.Println("Files per center:")
		for _, c := range st.FilesPerCenter {
			fmt.Println(counts.Sprintf("  %-25s %6d", c.Center, c.Files))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(filesCmd)
	filesLookupCmd.Flags().StringVarP(&lookupFile, "file", "f", "", "File containing IDs (one per line)")
	filesLookupCmd.Flags().String("format", "text", "Output format: text, json or csv")
	filesCmd.AddCommand(filesUpdateCmd, filesLookupCmd, filesStatsCmd)
}
