// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ncihtan/htan-claude/internal/datamodel"
	"github.com/ncihtan/htan-claude/internal/render"
)

var (
	modelTag    string
	modelDryRun bool
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Explore the HTAN data model (components, attributes, valid values)",
	Long: `Query the HTAN data model CSV published in ncihtan/data-models. The CSV is
downloaded once per tag and cached under the user cache directory.`,
	Example: `  htan model components
  htan model attributes "scRNA-seq Level 1"
  htan model valid-values "Assay Type"
  htan model search tumor
  htan model deps "scRNA-seq Level 3"`,
}

func newModel() (*datamodel.Model, error) {
	opts := []datamodel.Option{datamodel.WithLogger(logger), datamodel.WithNotifier(note)}
	if modelTag != "" {
		opts = append(opts, datamodel.WithTag(modelTag))
	}
	return datamodel.New(opts...)
}

// modelOutput prints v as JSON when --format json is set, else text.
func modelOutput(cmd *cobra.Command, v any, text string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	if format == render.JSON {
		return render.WriteJSON(os.Stdout, v)
	}
	fmt.Println(text)
	return nil
}

var modelFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download or refresh the model CSV",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newModel()
		if err != nil {
			return err
		}
		if modelDryRun {
			note("Dry run: would download:")
			note("  URL: " + m.URL())
			note("  Cache: " + m.Path())
			return nil
		}
		if _, err := m.Fetch(cmd.Context()); err != nil {
			return err
		}
		note("Model version: " + m.Tag())
		return nil
	},
}

var modelComponentsCmd = &cobra.Command{
	Use:   "components",
	Short: "List all manifest components",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newModel()
		if err != nil {
			return err
		}
		comps, err := m.Components(cmd.Context())
		if err != nil {
			return err
		}
		return modelOutput(cmd, comps, datamodel.FormatComponents(comps))
	},
}

var modelAttributesCmd = &cobra.Command{
	Use:   "attributes <component>",
	Short: "List attributes for a component",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newModel()
		if err != nil {
			return err
		}
		name, attrs, err := m.Attributes(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return modelOutput(cmd, map[string]any{"component": name, "attributes": attrs},
			datamodel.FormatAttributes(name, attrs))
	},
}

var modelDescribeCmd = &cobra.Command{
	Use:   "describe <attribute>",
	Short: "Full detail for one attribute",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newModel()
		if err != nil {
			return err
		}
		d, err := m.Describe(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return modelOutput(cmd, d, datamodel.FormatDescribe(d))
	},
}

var modelValidValuesCmd = &cobra.Command{
	Use:   "valid-values <attribute>",
	Short: "List valid values for an attribute",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newModel()
		if err != nil {
			return err
		}
		name, values, err := m.ValidValues(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return modelOutput(cmd, map[string]any{"attribute": name, "valid_values": values},
			datamodel.FormatValidValues(name, values))
	},
}

var modelSearchCmd = &cobra.Command{
	Use:   "search <keyword>",
	Short: "Search attributes by keyword",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newModel()
		if err != nil {
			return err
		}
		matches, err := m.Search(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		note(fmt.Sprintf("Searching for '%s'...", args[0]))
		return modelOutput(cmd, matches, datamodel.FormatSearch(matches))
	},
}

var modelRequiredCmd = &cobra.Command{
	Use:   "required <component>",
	Short: "List required attributes for a component",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newModel()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		name, attrs, err := m.Attributes(ctx, args[0])
		if err != nil {
			return err
		}
		_, required, err := m.Required(ctx, name)
		if err != nil {
			return err
		}
		return modelOutput(cmd, map[string]any{"component": name, "required_attributes": required},
			datamodel.FormatRequired(name, required, len(attrs)))
	},
}

var modelDepsCmd = &cobra.Command{
	Use:   "deps <component>",
	Short: "Show the dependency chain for a component",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newModel()
		if err != nil {
			return err
		}
		chain, err := m.Deps(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return modelOutput(cmd, chain, datamodel.FormatDeps(chain))
	},
}

func init() {
	rootCmd.AddCommand(modelCmd)
	modelCmd.PersistentFlags().StringVar(&modelTag, "tag", "", fmt.Sprintf("Model version tag (default: %s)", datamodel.DefaultTag))
	modelCmd.PersistentFlags().String("format", "text", "Output format: text or json")
	modelFetchCmd.Flags().BoolVar(&modelDryRun, "dry-run", false, "Show the download URL without fetching")

	modelCmd.AddCommand(modelFetchCmd, modelComponentsCmd, modelAttributesCmd, modelDescribeCmd,
		modelValidValuesCmd, modelSearchCmd, modelRequiredCmd, modelDepsCmd)
}
