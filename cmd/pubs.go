// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ncihtan/htan-claude/internal/pubmed"
	"github.com/ncihtan/htan-claude/internal/render"
)

var pubsCmd = &cobra.Command{
	Use:   "pubs",
	Short: "Search HTAN publications on PubMed and PubMed Central",
	Example: `  htan pubs search
  htan pubs search --keyword "spatial transcriptomics"
  htan pubs search --author "Sorger PK"
  htan pubs fetch 12345678
  htan pubs fulltext "tumor microenvironment"`,
}

var (
	pubsKeyword    string
	pubsAuthor     string
	pubsYear       string
	pubsMaxResults int
	pubsMaxPMC     int
	pubsTimeout    int
	pubsDryRun     bool
)

func newPubMed() *pubmed.Client {
	return pubmed.New(
		pubmed.WithTimeout(time.Duration(pubsTimeout)*time.Second),
		pubmed.WithLogger(logger),
		pubmed.WithNotifier(note),
	)
}

// printArticles writes articles as JSON or text blocks. empty is reported
// on stderr when there is nothing to print.
func printArticles(cmd *cobra.Command, articles []pubmed.Article, empty string) error {
	if len(articles) == 0 {
		note(empty)
		return nil
	}
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	if format == render.JSON {
		return render.WriteJSON(os.Stdout, articles)
	}
	for _, a := range articles {
		fmt.Println(pubmed.FormatText(a))
		fmt.Println()
	}
	return nil
}

var pubsSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search HTAN publications on PubMed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newPubMed()
		if pubsDryRun {
			note("Dry run: would request:")
			note("  URL: " + c.SearchURL(pubsKeyword, pubsAuthor, pubsYear, pubsMaxResults))
			return nil
		}
		articles, err := c.Search(cmd.Context(), pubsKeyword, pubsAuthor, pubsYear, pubsMaxResults)
		if err != nil {
			return err
		}
		return printArticles(cmd, articles, "No articles found.")
	},
}

var pubsFetchCmd = &cobra.Command{
	Use:   "fetch <pmid>...",
	Short: "Fetch details for specific PMIDs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if pubsDryRun {
			note("Dry run: would fetch PMIDs: " + strings.Join(args, ", "))
			return nil
		}
		articles, err := newPubMed().Fetch(cmd.Context(), args)
		if err != nil {
			return err
		}
		return printArticles(cmd, articles, "No articles found.")
	},
}

var pubsFullTextCmd = &cobra.Command{
	Use:   "fulltext <query>",
	Short: "Search HTAN articles in PubMed Central",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newPubMed()
		if pubsDryRun {
			note("Dry run: would request:")
			note("  URL: " + c.FullTextURL(args[0], pubsMaxPMC))
			return nil
		}
		articles, err := c.FullText(cmd.Context(), args[0], pubsMaxPMC)
		if err != nil {
			return err
		}
		return printArticles(cmd, articles, "No PMC articles found.")
	},
}

func init() {
	rootCmd.AddCommand(pubsCmd)
	pubsCmd.PersistentFlags().StringP("format", "f", "text", "Output format: text or json")
	pubsCmd.PersistentFlags().IntVar(&pubsTimeout, "timeout", int(pubmed.DefaultTimeout/time.Second), "HTTP timeout in seconds")
	pubsCmd.PersistentFlags().BoolVar(&pubsDryRun, "dry-run", false, "Show the request without executing")

	pubsSearchCmd.Flags().StringVarP(&pubsKeyword, "keyword", "k", "", "Filter by keyword")
	pubsSearchCmd.Flags().StringVarP(&pubsAuthor, "author", "a", "", "Filter by last author")
	pubsSearchCmd.Flags().StringVarP(&pubsYear, "year", "y", "", "Filter by publication year")
	pubsSearchCmd.Flags().IntVarP(&pubsMaxResults, "max-results", "n", pubmed.DefaultMaxResults, "Maximum results")

	pubsFullTextCmd.Flags().IntVarP(&pubsMaxPMC, "max-results", "n", pubmed.DefaultMaxPMC, "Maximum results")

	pubsCmd.AddCommand(pubsSearchCmd, pubsFetchCmd, pubsFullTextCmd)
}
