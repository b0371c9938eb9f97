// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	herrors "github.com/ncihtan/htan-claude/internal/errors"
	"github.com/ncihtan/htan-claude/internal/portal"
	"github.com/ncihtan/htan-claude/internal/render"
	"github.com/ncihtan/htan-claude/internal/rows"
)

// queryCmd groups the portal and BigQuery query commands.
var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query HTAN metadata (portal ClickHouse or ISB-CGC BigQuery)",
}

var queryPortalCmd = &cobra.Command{
	Use:   "portal",
	Short: "Query HTAN data via the portal ClickHouse backend",
	Long: `Query the HTAN data portal's ClickHouse backend. Only read-only SQL is
accepted; a LIMIT is applied automatically unless --no-limit is given.`,
	Example: `  htan query portal tables
  htan query portal describe files
  htan query portal files --organ Breast --assay "scRNA-seq" --limit 5
  htan query portal files --data-file-id HTA9_1_19512 --output json
  htan query portal sql "SELECT atlas_name, COUNT(*) as n FROM files GROUP BY atlas_name"
  htan query portal manifest HTA9_1_19512 --output-dir /tmp/manifests`,
}

// portalFlags are shared by every portal subcommand.
type portalFlags struct {
	limit    int
	noLimit  bool
	dryRun   bool
	database string
}

func (f *portalFlags) bind(c *cobra.Command, limit int, withLimit, withOutput bool) {
	if withLimit {
		c.Flags().IntVarP(&f.limit, "limit", "l", limit, fmt.Sprintf("Row limit (default: %d)", limit))
	}
	if withOutput {
		c.Flags().StringP("output", "o", "text", "Output format: text, json or csv")
	}
	c.Flags().BoolVar(&f.dryRun, "dry-run", false, "Show SQL without executing")
	c.Flags().StringVarP(&f.database, "database", "d", "", "Database name (default: auto-discover)")
}

// printDryRun prints the target database and SQL to stderr. Credentials
// are not resolved, so a dry run never contacts the gateway or Synapse.
func (f *portalFlags) printDryRun(sql string) {
	note("Database: " + dryRunDatabase(f.database))
	if strings.Contains(sql, "\n") {
		note("SQL:\n" + sql)
	} else {
		note("SQL: " + sql)
	}
}

// dryRunDatabase names the target of a dry run: the pinned database, or the
// latest release that a real run would discover.
func dryRunDatabase(pinned string) string {
	if pinned != "" {
		return pinned
	}
	return "latest htan_* release (discovered at run time)"
}

// runRows announces what, runs fetch and renders the rows.
func runRows(cmd *cobra.Command, pc *portal.Client, what string, fetch func(context.Context) ([]*rows.Row, error)) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	db, err := pc.Database(ctx)
	if err != nil {
		return err
	}
	note(fmt.Sprintf("%s in %s...", what, db))
	out, err := fetch(ctx)
	if err != nil {
		return err
	}
	note(fmt.Sprintf("Returned %d rows", len(out)))
	return newRenderer().Rows(out, format)
}

var (
	filesFlags  portalFlags
	filesFilter portal.FileFilter
)

var portalFilesCmd = &cobra.Command{
	Use:   "files",
	Short: "Find files by organ, assay, atlas, level, format or ID",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := filesFilter
		f.Limit = filesFlags.limit
		pc := newPortal(filesFlags.database)
		if filesFlags.dryRun {
			filesFlags.printDryRun(portal.FilesSQL(f))
			return nil
		}
		return runRows(cmd, pc, "Querying files", func(ctx context.Context) ([]*rows.Row, error) {
			return pc.FindFiles(ctx, f)
		})
	},
}

// clinicalCmd builds the command for one clinical table. bindFilters
// registers the table's filter flags onto the filter.
func clinicalCmd(table, short string, bindFilters func(*cobra.Command, *portal.ClinicalFilter)) *cobra.Command {
	var (
		flags  portalFlags
		filter = portal.ClinicalFilter{Table: table}
	)
	c := &cobra.Command{
		Use:   table,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := filter
			f.Limit = flags.limit
			pc := newPortal(flags.database)
			if flags.dryRun {
				sql, err := portal.ClinicalSQL(f)
				if err != nil {
					return err
				}
				flags.printDryRun(sql)
				return nil
			}
			return runRows(cmd, pc, "Querying "+table, func(ctx context.Context) ([]*rows.Row, error) {
				return pc.Clinical(ctx, f)
			})
		},
	}
	flags.bind(c, portal.DefaultLimit, true, true)
	c.Flags().StringVar(&filter.Atlas, "atlas", "", "Filter by atlas name")
	bindFilters(c, &filter)
	return c
}

var (
	summaryFlags portalFlags
)

var portalSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show file and participant counts by atlas, assay and organ",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		pc := newPortal(summaryFlags.database)
		db, err := pc.Database(ctx)
		if err != nil {
			return err
		}
		if summaryFlags.dryRun {
			note("Database: " + db)
			note("Would run summary aggregation queries")
			return nil
		}
		note(fmt.Sprintf("Querying summary from %s...", db))
		sum, err := pc.Summary(ctx)
		if err != nil {
			return err
		}
		if format == render.JSON {
			return render.WriteJSON(os.Stdout, sum)
		}

		fmt.Printf("HTAN Portal Summary (database: %s)\n", sum.Database)
		fmt.Println(counts.Sprintf("Total files: %d", sum.TotalFiles))
		fmt.Println(counts.Sprintf("Total participants: %d", sum.TotalParticipants))
		fmt.Println()
		r := newRenderer()
		sections := []struct {
			label string
			rows  []*rows.Row
		}{
			{"Files by atlas", sum.FilesByAtlas},
			{"Files by assay", sum.FilesByAssay},
			{"Files by organ", sum.FilesByOrgan},
			{"Participants by atlas", sum.ParticipantsByAtlas},
		}
		for _, s := range sections {
			if len(s.rows) == 0 {
				continue
			}
			table, truncated, err := r.Table(s.rows)
			if err != nil {
				return err
			}
			fmt.Printf("--- %s ---\n%s\n\n", s.label, table)
			if truncated {
				note(render.TruncationHint)
			}
		}
		return nil
	},
}

var (
	sqlFlags portalFlags
)

var portalSQLCmd = &cobra.Command{
	Use:   "sql <query>",
	Short: "Run a read-only SQL query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pc := newPortal(sqlFlags.database)
		if sqlFlags.dryRun {
			sql, err := pc.PrepareSQL(args[0], sqlFlags.limit, sqlFlags.noLimit)
			if err != nil {
				return err
			}
			sqlFlags.printDryRun(sql)
			return nil
		}
		return runRows(cmd, pc, "Executing query", func(ctx context.Context) ([]*rows.Row, error) {
			return pc.Query(ctx, args[0], sqlFlags.limit, sqlFlags.noLimit)
		})
	},
}

var (
	tablesFlags portalFlags
)

var portalTablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List tables in the portal database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pc := newPortal(tablesFlags.database)
		if tablesFlags.dryRun {
			tablesFlags.printDryRun("SHOW TABLES")
			return nil
		}
		db, err := pc.Database(ctx)
		if err != nil {
			return err
		}
		note(fmt.Sprintf("Listing tables in %s...", db))
		tables, err := pc.ListTables(ctx)
		if err != nil {
			return err
		}
		for _, t := range tables {
			fmt.Println(t)
		}
		note(fmt.Sprintf("\n%d tables", len(tables)))
		return nil
	},
}

var (
	describeFlags portalFlags
)

var portalDescribeCmd = &cobra.Command{
	Use:   "describe <table>",
	Short: "Show the columns and row count of a table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		describe, _, err := portal.DescribeSQL(args[0])
		if err != nil {
			return err
		}
		pc := newPortal(describeFlags.database)
		if describeFlags.dryRun {
			describeFlags.printDryRun(describe)
			return nil
		}
		db, err := pc.Database(ctx)
		if err != nil {
			return err
		}
		note(fmt.Sprintf("Describing %s in %s...", args[0], db))
		info, err := pc.DescribeTable(ctx, args[0])
		if err != nil {
			return err
		}
		if info.ColumnCount == 0 {
			return herrors.Newf(herrors.NotFound, "No schema found for table '%s'.", args[0])
		}

		fmt.Printf("Table: %s.%s\n", info.Database, info.Table)
		if info.RowCount != nil {
			fmt.Println(counts.Sprintf("Rows: %d", *info.RowCount))
		} else {
			fmt.Println("Rows: ?")
		}
		fmt.Println()
		fmt.Printf("%-40s %-30s %-15s %s\n", "Column", "Type", "Default", "Comment")
		fmt.Printf("%s %s %s %s\n", strings.Repeat("-", 40), strings.Repeat("-", 30), strings.Repeat("-", 15), strings.Repeat("-", 30))
		for _, c := range info.Columns {
			comment := c.Comment
			if len(comment) > 40 {
				comment = comment[:37] + "..."
			}
			fmt.Printf("%-40s %-30s %-15s %s\n", c.Name, c.Type, c.DefaultExpression, comment)
		}
		note(fmt.Sprintf("\n%d columns", info.ColumnCount))
		return nil
	},
}

var (
	manifestFlags portalFlags
	manifestFile  string
	manifestDir   string
)

var portalManifestCmd = &cobra.Command{
	Use:   "manifest [ids...]",
	Short: "Write Synapse and Gen3 download manifests for file IDs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := readIDs(args, manifestFile)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return herrors.New(herrors.InvalidInput, "No file IDs provided.")
		}
		ctx := cmd.Context()
		pc := newPortal(manifestFlags.database)
		if manifestFlags.dryRun {
			manifestFlags.printDryRun(portal.ManifestSQL(ids))
			note("Would generate manifests in: " + manifestDir)
			return nil
		}
		db, err := pc.Database(ctx)
		if err != nil {
			return err
		}
		note(fmt.Sprintf("Looking up %d file(s) in %s...", len(ids), db))
		res, err := pc.Manifest(ctx, ids)
		if err != nil {
			return err
		}
		if len(res.Files) == 0 {
			note("No matching files found.")
			return exitError{}
		}
		if len(res.NotFound) > 0 {
			note(fmt.Sprintf("Not found (%d): %s", len(res.NotFound), strings.Join(res.NotFound, ", ")))
		}
		note(fmt.Sprintf("Found %d/%d files", len(res.Files), len(ids)))

		sum, err := portal.WriteManifests(manifestDir, res)
		if err != nil {
			return err
		}
		for _, p := range sum.Manifests {
			switch {
			case strings.HasSuffix(p, portal.SynapseManifest):
				note(fmt.Sprintf("Synapse manifest: %s (%d files)", p, sum.SynapseFiles))
			case strings.HasSuffix(p, portal.Gen3Manifest):
				note(fmt.Sprintf("Gen3 manifest: %s (%d files)", p, sum.Gen3Files))
			}
		}
		return render.WriteJSON(os.Stdout, sum)
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.AddCommand(queryPortalCmd)

	filesFlags.bind(portalFilesCmd, portal.DefaultLimit, true, true)
	portalFilesCmd.Flags().StringVar(&filesFilter.Organ, "organ", "", "Filter by organ type")
	portalFilesCmd.Flags().StringVar(&filesFilter.Assay, "assay", "", "Filter by assay name")
	portalFilesCmd.Flags().StringVar(&filesFilter.Atlas, "atlas", "", "Filter by atlas name")
	portalFilesCmd.Flags().StringVar(&filesFilter.Level, "level", "", "Filter by data level")
	portalFilesCmd.Flags().StringVar(&filesFilter.FileFormat, "file-format", "", "Filter by file format")
	portalFilesCmd.Flags().StringVar(&filesFilter.Filename, "filename", "", "Filter by filename (substring)")
	portalFilesCmd.Flags().StringSliceVar(&filesFilter.DataFileIDs, "data-file-id", nil, "Look up specific HTAN_Data_File_ID(s)")

	demographics := clinicalCmd("demographics", "Query participant demographics", func(c *cobra.Command, f *portal.ClinicalFilter) {
		c.Flags().StringVar(&f.Gender, "gender", "", "Filter by gender")
		c.Flags().StringVar(&f.Race, "race", "", "Filter by race")
	})
	diagnosis := clinicalCmd("diagnosis", "Query diagnoses", func(c *cobra.Command, f *portal.ClinicalFilter) {
		c.Flags().StringVar(&f.Organ, "organ", "", "Filter by tissue/organ of origin")
		c.Flags().StringVar(&f.PrimaryDiagnosis, "primary-diagnosis", "", "Filter by primary diagnosis")
	})
	cases := clinicalCmd("cases", "Query cases", func(c *cobra.Command, f *portal.ClinicalFilter) {
		c.Flags().StringVar(&f.Organ, "organ", "", "Filter by tissue/organ of origin")
	})
	specimen := clinicalCmd("specimen", "Query biospecimens", func(c *cobra.Command, f *portal.ClinicalFilter) {
		c.Flags().StringVar(&f.Organ, "organ", "", "Filter by tissue/organ of origin")
		c.Flags().StringVar(&f.Preservation, "preservation", "", "Filter by preservation method")
		c.Flags().StringVar(&f.TissueType, "tissue-type", "", "Filter by tumor tissue type")
	})

	summaryFlags.bind(portalSummaryCmd, 0, false, true)

	sqlFlags.bind(portalSQLCmd, portal.SQLDefaultLimit, true, true)
	portalSQLCmd.Flags().BoolVar(&sqlFlags.noLimit, "no-limit", false, "Skip auto-applying LIMIT")

	tablesFlags.bind(portalTablesCmd, 0, false, false)
	describeFlags.bind(portalDescribeCmd, 0, false, false)

	manifestFlags.bind(portalManifestCmd, 0, false, false)
	portalManifestCmd.Flags().StringVarP(&manifestFile, "file", "f", "", "File containing IDs (one per line)")
	portalManifestCmd.Flags().StringVar(&manifestDir, "output-dir", ".", "Directory for manifest files")

	queryPortalCmd.AddCommand(portalFilesCmd, demographics, diagnosis, cases, specimen,
		portalSummaryCmd, portalSQLCmd, portalTablesCmd, portalDescribeCmd, portalManifestCmd)
}
