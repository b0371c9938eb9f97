// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ncihtan/htan-claude/internal/endpoints"
	herrors "github.com/ncihtan/htan-claude/internal/errors"
	"github.com/ncihtan/htan-claude/internal/gen3"
	"github.com/ncihtan/htan-claude/internal/httperrors"
	"github.com/ncihtan/htan-claude/internal/synapse"
	"github.com/ncihtan/htan-claude/internal/transfer"
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download HTAN files from Synapse or Gen3/CRDC",
}

var (
	synapseOutDir string
	synapseDryRun bool
)

var downloadSynapseCmd = &cobra.Command{
	Use:   "synapse <synID>",
	Short: "Download an open-access file from Synapse",
	Example: `  htan download synapse syn26535909
  htan download synapse syn26535909 --output-dir ./data
  htan download synapse syn26535909 --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		if err := synapse.ValidateID(id); err != nil {
			return err
		}
		c, err := newSynapse()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if profile, err := c.UserProfile(ctx); err == nil {
			note("Authenticated as: " + profile.UserName)
		} else if herrors.KindOf(err) == herrors.Transport {
			return networkError(err, "connecting to Synapse", endpoints.Default().SynapseRepo)
		} else {
			return herrors.Wrap(herrors.ConfigMissing, "Synapse authentication failed.", err).
				WithHint("Set SYNAPSE_AUTH_TOKEN or configure ~/.synapseConfig")
		}

		if synapseDryRun {
			note(fmt.Sprintf("Fetching metadata for %s...", id))
		} else {
			abs, _ := filepath.Abs(synapseOutDir)
			note(fmt.Sprintf("Downloading %s to %s...", id, abs))
		}
		d, err := c.Download(ctx, id, synapseOutDir, synapseDryRun, newProgress())
		if err != nil {
			return networkError(err, "downloading "+id, endpoints.Default().SynapseFile)
		}
		if d.DryRun {
			note("Dry run: " + d.Entity.Name)
			if d.Entity.ContentSize > 0 {
				note(fmt.Sprintf("  Size: %d bytes", d.Entity.ContentSize))
			}
			note("  Would download to: " + filepath.Dir(d.Path))
			return nil
		}
		reportResult(d.Result)
		fmt.Println(d.Path)
		return nil
	},
}

var downloadGen3Cmd = &cobra.Command{
	Use:   "gen3",
	Short: "Download controlled-access files from CRDC/Gen3 by DRS URI",
	Long: `Download HTAN controlled-access data from the CRDC Gen3 commons. Requires
dbGaP authorization for phs002371 and a Gen3 API key.`,
	Example: `  htan download gen3 download "drs://dg.4DFC/guid" --credentials creds.json
  htan download gen3 download --manifest uris.txt --output-dir ./data
  htan download gen3 resolve "drs://dg.4DFC/guid" --dry-run`,
}

var (
	gen3Manifest    string
	gen3Credentials string
	gen3OutDir      string
	gen3Protocol    string
	gen3DryRun      bool
)

func newGen3() (*gen3.Client, error) {
	creds, path, err := gen3.LoadCredentials(gen3Credentials)
	if err != nil {
		return nil, err
	}
	logger.Debug("gen3 credentials loaded", zap.String("path", path))
	return gen3.New(creds, gen3.WithLogger(logger)), nil
}

func validateProtocol() error {
	if gen3Protocol != gen3.ProtocolS3 && gen3Protocol != gen3.ProtocolGS {
		return herrors.Newf(herrors.InvalidInput, "Invalid protocol '%s'. Must be s3 or gs.", gen3Protocol)
	}
	return nil
}

var gen3DownloadCmd = &cobra.Command{
	Use:   "download [drs-uri]",
	Short: "Download files by DRS URI",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateProtocol(); err != nil {
			return err
		}
		var uris []string
		switch {
		case gen3Manifest != "":
			var err error
			if uris, err = gen3.ReadURIList(gen3Manifest); err != nil {
				return err
			}
		case len(args) == 1:
			uris = args
		default:
			return herrors.New(herrors.InvalidInput, "Provide a DRS URI or --manifest file.")
		}

		if gen3DryRun {
			for _, uri := range uris {
				d, err := gen3.Plan(uri, gen3OutDir)
				if err != nil {
					return err
				}
				note("Dry run: would download:")
				note("  DRS URI: " + d.URI)
				note("  GUID: " + d.GUID)
				note("  Output: " + gen3OutDir)
			}
			return nil
		}

		c, err := newGen3()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		for i, uri := range uris {
			if len(uris) > 1 {
				note(fmt.Sprintf("\n[%d/%d]", i+1, len(uris)))
			}
			d, err := c.Download(ctx, uri, gen3OutDir, gen3Protocol, false, newProgress())
			if err != nil {
				return networkError(err, "downloading "+uri, endpoints.Default().Gen3)
			}
			reportResult(d.Result)
			fmt.Println(d.Path)
		}
		return nil
	},
}

var gen3ResolveCmd = &cobra.Command{
	Use:   "resolve <drs-uri>",
	Short: "Resolve a DRS URI to a signed URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		uri := args[0]
		if err := validateProtocol(); err != nil {
			return err
		}
		if gen3DryRun {
			if err := gen3.ValidateURI(uri); err != nil {
				return err
			}
			note("Dry run: would resolve:")
			note("  DRS URI: " + uri)
			note("  GUID: " + gen3.ExtractGUID(uri))
			return nil
		}
		c, err := newGen3()
		if err != nil {
			return err
		}
		signed, err := c.Resolve(cmd.Context(), uri, gen3Protocol)
		if err != nil {
			return networkError(err, "resolving "+uri, endpoints.Default().Gen3)
		}
		fmt.Println(signed)
		return nil
	},
}

// networkError prints a troubleshooting block for transport failures and
// passes every other error through.
func networkError(err error, action, baseURL string) error {
	if herrors.KindOf(err) != herrors.Transport {
		return err
	}
	return httperrors.FormatNetworkError(err, action, httperrors.ExtractHostFromURL(baseURL))
}

func reportResult(r transfer.Result) {
	if r.Skipped {
		note("Skipping (already exists): " + r.Path)
		return
	}
	note(fmt.Sprintf("Downloaded: %s (%s)", r.Path, transfer.FormatSize(r.Bytes)))
}

func init() {
	rootCmd.AddCommand(downloadCmd)
	downloadCmd.AddCommand(downloadSynapseCmd, downloadGen3Cmd)

	downloadSynapseCmd.Flags().StringVarP(&synapseOutDir, "output-dir", "o", ".", "Output directory")
	downloadSynapseCmd.Flags().BoolVar(&synapseDryRun, "dry-run", false, "Show metadata without downloading")

	downloadGen3Cmd.PersistentFlags().StringVarP(&gen3Credentials, "credentials", "c", "", "Path to Gen3 credentials JSON")
	downloadGen3Cmd.PersistentFlags().StringVar(&gen3Protocol, "protocol", gen3.ProtocolS3, "Download protocol: s3 or gs")
	downloadGen3Cmd.PersistentFlags().BoolVar(&gen3DryRun, "dry-run", false, "Validate inputs without downloading")
	gen3DownloadCmd.Flags().StringVarP(&gen3Manifest, "manifest", "m", "", "File with DRS URIs (one per line)")
	gen3DownloadCmd.Flags().StringVarP(&gen3OutDir, "output-dir", "o", ".", "Output directory")
	downloadGen3Cmd.AddCommand(gen3DownloadCmd, gen3ResolveCmd)
}
