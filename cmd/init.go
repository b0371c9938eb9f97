// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ncihtan/htan-claude/internal/clickhouse"
	"github.com/ncihtan/htan-claude/internal/credentials"
	"github.com/ncihtan/htan-claude/internal/gen3"
	"github.com/ncihtan/htan-claude/internal/keychain"
	"github.com/ncihtan/htan-claude/internal/setup"
	"github.com/ncihtan/htan-claude/internal/synapse"
	"github.com/ncihtan/htan-claude/internal/terminal"
	"github.com/ncihtan/htan-claude/internal/xdg"
)

var (
	initStatus         bool
	initForce          bool
	initNonInteractive bool
	initManual         bool
)

// initCmd walks through credential configuration for every HTAN service.
// Portal credentials are fetched through Synapse, gated by membership in
// the HTAN Claude Skill Users team, then stored in the OS keychain or the
// config file and verified with SELECT 1.
var initCmd = &cobra.Command{
	Use:       "init [portal|synapse|bigquery|gen3]",
	Short:     "Interactive setup wizard for HTAN credentials",
	ValidArgs: setup.InitOrder,
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	Example: `  htan init                     # Full interactive wizard
  htan init portal              # Set up portal only
  htan init portal --manual     # Enter portal credentials by hand
  htan init --status            # Show current config status
  htan init --non-interactive   # CI mode: detect only
  htan init --force             # Re-run even if configured`,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := &wizard{
			in:             bufio.NewReader(os.Stdin),
			kc:             newKeychain(),
			force:          initForce,
			nonInteractive: initNonInteractive,
			manual:         initManual,
		}
		var services []string
		if len(args) == 1 {
			services = args
		}
		results, ok := w.run(cmd.Context(), services, initStatus)
		if !ok || initStatus {
			return nil
		}
		for _, good := range results {
			if !good {
				return exitError{}
			}
		}
		return nil
	},
}

type wizard struct {
	in             *bufio.Reader
	kc             *keychain.Manager
	syn            *synapse.Client
	force          bool
	nonInteractive bool
	manual         bool
}

// run shows the current status and configures services. ok is false when
// nothing was attempted.
func (w *wizard) run(ctx context.Context, services []string, statusOnly bool) (map[string]bool, bool) {
	note("")
	note("Welcome to the HTAN CLI! This command will walk you through configuration.")
	note("")
	note("Current configuration:")
	current := setup.Check(ctx, credentials.Default(logger, w.kc))
	for _, svc := range []string{setup.Portal, setup.Synapse, setup.BigQuery, setup.Gen3} {
		printStatus(setup.Labels[svc], current.Configured(svc), current.Detail(svc))
	}
	if statusOnly {
		return nil, false
	}

	switch {
	case services == nil && !w.nonInteractive:
		note("")
		note("Which services would you like to set up?")
		note("  [1] Portal database (recommended: query files, metadata, clinical data)")
		note("  [2] Synapse downloads (open-access data)")
		note("  [3] BigQuery (advanced metadata queries via ISB-CGC)")
		note("  [4] Gen3/CRDC (controlled-access data, requires dbGaP)")
		note("  [a] All services")
		note("  [q] Quit (keep current configuration)")
		note("")
		services = setup.MenuChoice(w.prompt("Your choice: ", "q"))
		if len(services) == 0 {
			note("\nNo changes made.")
			return nil, false
		}
	case services == nil:
		services = setup.InitOrder
	}
	ordered, err := setup.Order(services)
	if err != nil {
		pterm.Error.Println(err)
		return nil, false
	}

	results := map[string]bool{}
	for _, svc := range ordered {
		switch svc {
		case setup.Synapse:
			results[svc] = w.synapse(ctx)
		case setup.Portal:
			results[svc] = w.portal(ctx)
		case setup.BigQuery:
			results[svc] = w.bigquery()
		case setup.Gen3:
			results[svc] = w.gen3()
		}
	}

	note("")
	note("=== Setup Summary ===")
	for _, svc := range setup.InitOrder {
		good, tried := results[svc]
		if !tried {
			continue
		}
		detail := "Not configured"
		if good {
			detail = "Ready"
		}
		if setup.Optional(svc) {
			detail += " (optional)"
		}
		printStatus(setup.Labels[svc], good, detail)
	}
	note("")
	return results, true
}

func (w *wizard) synapse(ctx context.Context) bool {
	header(setup.Labels[setup.Synapse])
	token := os.Getenv(synapse.TokenEnvVar) != ""
	hasAuth := token || fileExists(synapse.ConfigPath())

	if hasAuth && !w.force {
		if token {
			printStatus("Synapse auth", true, "SYNAPSE_AUTH_TOKEN is set")
		} else {
			printStatus("Synapse auth", true, "~/.synapseConfig found")
		}
		if w.login(ctx) {
			return true
		}
		if w.nonInteractive {
			return false
		}
	}
	if w.nonInteractive {
		printSkip("Synapse", "Not configured (non-interactive mode)")
		return false
	}

	note("")
	note("  To set up Synapse auth:")
	note("    1. Create a free account at https://www.synapse.org")
	note("    2. Go to Account Settings > Personal Access Tokens")
	note("       https://www.synapse.org/#!PersonalAccessTokens:")
	note("    3. Generate a token with 'view', 'download' permissions")
	note("    4. Create ~/.synapseConfig:")
	note("         [authentication]")
	note("         authtoken = <your-token>")
	note("")
	if strings.EqualFold(w.prompt("  Press Enter when ready (or 'skip' to skip): ", ""), "skip") {
		printSkip("Synapse", "Skipped by user")
		return false
	}
	if synapse.LoadToken() == "" {
		printStatus("Synapse auth", false, "Still not configured")
		return false
	}
	return w.login(ctx)
}

// login verifies the Synapse token and keeps the client for the portal step.
func (w *wizard) login(ctx context.Context) bool {
	c, err := newSynapse()
	if err == nil {
		var p synapse.Profile
		if p, err = c.UserProfile(ctx); err == nil {
			printStatus("Synapse login", true, "Logged in as: "+p.UserName)
			w.syn = c
			return true
		}
	}
	printStatus("Synapse login", false, "Login failed: "+err.Error())
	return false
}

func (w *wizard) portal(ctx context.Context) bool {
	header(setup.Labels[setup.Portal])
	resolver := credentials.Default(logger, w.kc)

	if src := resolver.DetectSource(ctx); src != "" && !w.force {
		printStatus("Portal config", true, fmt.Sprintf("Credentials via %s", src))
		if w.verify(ctx) {
			printStatus("Portal connectivity", true, "SELECT 1 OK")
			return true
		}
		printStatus("Portal connectivity", false, "Config exists but connectivity failed. Use --force to re-download.")
		return false
	}

	var rec credentials.Record
	if w.manual {
		if w.nonInteractive {
			printSkip("Portal", "Manual entry needs an interactive terminal")
			return false
		}
		var err error
		if rec, err = w.promptRecord(); err != nil {
			printStatus("Portal credentials", false, err.Error())
			return false
		}
	} else {
		if w.syn == nil {
			if w.nonInteractive {
				printSkip("Portal", "Synapse auth required (non-interactive mode)")
				return false
			}
			c, err := newSynapse()
			if err != nil {
				printStatus("Portal credentials", false, "Synapse auth required first. Run: htan init synapse")
				return false
			}
			w.syn = c
		}
		var err error
		rec, err = setup.FetchPortalCredentials(ctx, w.syn, func(s string) { note("  " + s) })
		if err != nil {
			printStatus("Portal credentials", false, err.Error())
			return false
		}
	}

	saved, err := setup.SavePortalCredentials(ctx, w.kc, rec)
	if err != nil {
		printStatus("Portal credentials", false, "Could not save credentials: "+err.Error())
		return false
	}
	if saved.Source == credentials.SourceKeychain {
		printStatus("Portal credentials", true, "Saved to OS keychain")
	} else {
		printStatus("Portal credentials", true, "Saved to "+saved.Path)
	}

	if w.verify(ctx) {
		printStatus("Portal connectivity", true, "SELECT 1 OK")
		return true
	}
	printStatus("Portal connectivity", false, fmt.Sprintf("Credentials saved (%s) but connectivity check failed", saved.Source))
	note("  The portal endpoint may be temporarily unavailable.")
	return false
}

// verify runs SELECT 1 against the stored credentials.
func (w *wizard) verify(ctx context.Context) bool {
	stop := startInlineSpinner(os.Stderr, "verifying connection", spinnerFrames, 100*time.Millisecond)
	defer stop()
	gw := clickhouse.New(credentials.Default(logger, w.kc), clickhouse.WithLogger(logger))
	return setup.VerifyPortal(ctx, gw)
}

// promptRecord asks for the connection fields; the password is read
// without echo.
func (w *wizard) promptRecord() (credentials.Record, error) {
	var rec credentials.Record
	rec.Host = w.ask("Host", "")
	rec.Port = w.ask("Port", "8443")
	rec.User = w.ask("User", "")
	if rec.Host == "" || rec.User == "" {
		return rec, errors.New("host and user are required")
	}
	if _, err := strconv.Atoi(rec.Port); err != nil {
		return rec, fmt.Errorf("invalid port %q", rec.Port)
	}
	pw, err := terminal.ReadPassword("  Password: ")
	if err != nil {
		return rec, err
	}
	if pw == "" {
		return rec, errors.New("password is required")
	}
	rec.Password = pw
	rec.DefaultDatabase = w.ask("Database", credentials.AutoDatabase)
	return rec, nil
}

func (w *wizard) bigquery() bool {
	header(setup.Labels[setup.BigQuery])
	if detected, msg := bigQueryAuth(); detected && !w.force {
		printStatus("BigQuery auth", true, msg)
		return true
	}
	if w.nonInteractive {
		printSkip("BigQuery", "Not configured (non-interactive mode)")
		return false
	}

	note("")
	if !w.confirm("  Set up BigQuery?") {
		printSkip("BigQuery", "Skipped by user")
		return false
	}
	note("")
	note("  To set up BigQuery:")
	note("    1. Install Google Cloud SDK: https://cloud.google.com/sdk/docs/install")
	note("    2. In another terminal, run:")
	note("         gcloud auth application-default login")
	note("    3. Set your billing project:")
	note(`         export GOOGLE_CLOUD_PROJECT="your-project-id"`)
	note("")
	if strings.EqualFold(w.prompt("  Press Enter when ready (or 'skip' to skip): ", ""), "skip") {
		printSkip("BigQuery", "Skipped by user")
		return false
	}
	if detected, _ := bigQueryAuth(); detected {
		printStatus("BigQuery auth", true, "Credentials detected")
		return true
	}
	printStatus("BigQuery auth", false, "Still not configured. Set up later: gcloud auth application-default login")
	return false
}

func bigQueryAuth() (bool, string) {
	var msg string
	switch key := os.Getenv(setup.BigQueryKeyEnvVar); {
	case fileExists(key):
		msg = "Service account key: " + key
	case fileExists(setup.ADCPath()):
		msg = "Application Default Credentials found"
	default:
		return false, ""
	}
	if p := os.Getenv("GOOGLE_CLOUD_PROJECT"); p != "" {
		msg += ", project: " + p
	}
	return true, msg
}

func (w *wizard) gen3() bool {
	header(setup.Labels[setup.Gen3])
	if !w.force {
		if key := os.Getenv(gen3.KeyEnvVar); fileExists(key) {
			printStatus("Gen3 auth", true, gen3.KeyEnvVar+" -> "+key)
			return true
		}
		if fileExists(gen3.DefaultCredentialsPath()) {
			printStatus("Gen3 auth", true, "~/.gen3/credentials.json found")
			return true
		}
	}
	if w.nonInteractive {
		printSkip("Gen3/CRDC", "Not configured (non-interactive mode)")
		return false
	}
	note("")
	note("  Gen3/CRDC provides controlled-access data (raw sequencing, protected genomic data).")
	note("  Requires dbGaP authorization for HTAN study phs002371 (may take weeks).")
	note("")
	note("  Steps when you are ready:")
	note("    1. Apply for dbGaP access: https://dbgap.ncbi.nlm.nih.gov/")
	note("    2. Log in to CRDC: https://nci-crdc.datacommons.io/")
	note("    3. Download credentials to ~/.gen3/credentials.json")
	printSkip("Gen3/CRDC", "Requires dbGaP authorization; cannot automate")
	return false
}

// prompt reads one line; EOF or an empty answer yields def.
func (w *wizard) prompt(msg, def string) string {
	fmt.Fprint(os.Stderr, msg)
	line, err := w.in.ReadString('\n')
	line = strings.TrimSpace(line)
	if err != nil && !errors.Is(err, io.EOF) || line == "" {
		if errors.Is(err, io.EOF) {
			note("")
		}
		return def
	}
	return line
}

// ask reads a field value, with the pterm text input on a terminal.
func (w *wizard) ask(label, def string) string {
	if terminal.IsTerminal(os.Stdin) {
		in := pterm.DefaultInteractiveTextInput.WithDefaultValue(def)
		v, err := in.Show("  " + label)
		if err != nil || strings.TrimSpace(v) == "" {
			return def
		}
		return strings.TrimSpace(v)
	}
	msg := "  " + label + ": "
	if def != "" {
		msg = fmt.Sprintf("  %s [%s]: ", label, def)
	}
	return w.prompt(msg, def)
}

// confirm asks a yes/no question, defaulting to no. On a terminal the
// pterm confirm widget is used.
func (w *wizard) confirm(msg string) bool {
	if terminal.IsTerminal(os.Stdin) {
		ok, err := pterm.DefaultInteractiveConfirm.WithDefaultValue(false).Show(msg)
		return err == nil && ok
	}
	answer := strings.ToLower(w.prompt(msg+" [y/N]: ", "n"))
	return answer == "y" || answer == "yes"
}

func header(text string) {
	note(fmt.Sprintf("\n--- %s ---", text))
}

func printStatus(label string, ok bool, msg string) {
	icon := pterm.FgRed.Sprint("✗")
	if ok {
		icon = pterm.FgGreen.Sprint("✓")
	}
	note(fmt.Sprintf("  %s %s: %s", icon, label, msg))
}

func printSkip(label, msg string) {
	note(fmt.Sprintf("  - %s: %s", label, msg))
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(xdg.ExpandHome(path))
	return err == nil
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initStatus, "status", false, "Show current configuration status and exit")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Re-run setup even if already configured")
	initCmd.Flags().BoolVar(&initNonInteractive, "non-interactive", false, "Detect existing config only; no prompts (CI mode)")
	initCmd.Flags().BoolVar(&initManual, "manual", false, "Enter portal credentials by hand instead of fetching them from Synapse")
}
