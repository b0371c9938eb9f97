// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ncihtan/htan-claude/internal/bigquery"
)

var (
	bqProject   string
	bqDryRun    bool
	bqLimit     int
	bqVersioned bool
)

var queryBQCmd = &cobra.Command{
	Use:   "bq",
	Short: "Query HTAN metadata in ISB-CGC BigQuery",
	Long: `Query the HTAN tables published by ISB-CGC in BigQuery. Queries are billed
to --project, or to GOOGLE_CLOUD_PROJECT when the flag is absent.`,
	Example: `  htan query bq tables
  htan query bq describe clinical_tier1_demographics
  htan query bq sql "SELECT COUNT(*) FROM ` + "`isb-cgc-bq.HTAN.clinical_tier1_demographics_current`" + `"
  htan query bq query "How many breast cancer patients?"`,
}

func newBigQuery(cmd *cobra.Command) (*bigquery.Client, error) {
	return bigquery.New(cmd.Context(), bqProject,
		bigquery.WithLogger(logger),
		bigquery.WithNotifier(note),
	)
}

var bqQueryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Print schema context for turning a question into SQL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(bigquery.SchemaContext(args[0]))
		return nil
	},
}

var bqSQLCmd = &cobra.Command{
	Use:   "sql <query>",
	Short: "Execute a read-only SQL query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}
		c, err := newBigQuery(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if bqDryRun {
			res, err := c.DryRun(ctx, args[0], bqLimit)
			if err != nil {
				return err
			}
			note("Dry run: estimated data processed: " + bigquery.FormatBytes(res.BytesProcessed))
			note("SQL:\n" + res.SQL)
			return nil
		}
		out, err := c.Query(ctx, args[0], bqLimit)
		if err != nil {
			return err
		}
		if len(out) == 0 {
			note("Query returned no results.")
			return nil
		}
		note(fmt.Sprintf("Returned %d rows, %d columns", len(out), out[0].Len()))
		return newRenderer().Rows(out, format)
	},
}

var bqTablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List available HTAN tables",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if bqDryRun {
			note("Dry run: would list tables from " + bigquery.DatasetName(bqVersioned))
			return nil
		}
		c, err := newBigQuery(cmd)
		if err != nil {
			return err
		}
		tables, err := c.ListTables(cmd.Context(), bqVersioned)
		if err != nil {
			return err
		}
		fmt.Println(strings.Join(tables, "\n"))
		note(fmt.Sprintf("\n%d tables", len(tables)))
		return nil
	},
}

var bqDescribeCmd = &cobra.Command{
	Use:   "describe <table>",
	Short: "Describe a table's schema",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if bqDryRun {
			note("Dry run: would describe: " + args[0])
			return nil
		}
		c, err := newBigQuery(cmd)
		if err != nil {
			return err
		}
		info, err := c.DescribeTable(cmd.Context(), args[0], bqVersioned)
		if err != nil {
			return err
		}
		fmt.Print(bigquery.FormatSchema(info))
		note(fmt.Sprintf("\n%d columns", len(info.Schema)))
		return nil
	},
}

func init() {
	queryCmd.AddCommand(queryBQCmd)
	queryBQCmd.PersistentFlags().StringVarP(&bqProject, "project", "p", "", "Google Cloud project ID")

	bqSQLCmd.Flags().StringP("format", "f", "text", "Output format: text, json or csv")
	bqSQLCmd.Flags().BoolVar(&bqDryRun, "dry-run", false, "Estimate bytes processed without running")
	bqSQLCmd.Flags().IntVarP(&bqLimit, "limit", "l", bigquery.DefaultLimit, "Row limit applied when the SQL has none")

	bqTablesCmd.Flags().BoolVar(&bqDryRun, "dry-run", false, "Show what would be listed")
	bqTablesCmd.Flags().BoolVar(&bqVersioned, "versioned", false, "Use the versioned dataset")

	bqDescribeCmd.Flags().BoolVar(&bqDryRun, "dry-run", false, "Show what would be described")
	bqDescribeCmd.Flags().BoolVar(&bqVersioned, "versioned", false, "Use the versioned dataset")

	queryBQCmd.AddCommand(bqQueryCmd, bqSQLCmd, bqTablesCmd, bqDescribeCmd)
}
