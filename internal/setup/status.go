// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package setup reports and configures the credentials of every HTAN
// service: Synapse, the portal ClickHouse gateway, BigQuery and Gen3.
package setup

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ncihtan/htan-claude/internal/config"
	"github.com/ncihtan/htan-claude/internal/credentials"
	"github.com/ncihtan/htan-claude/internal/gen3"
	"github.com/ncihtan/htan-claude/internal/synapse"
	"github.com/ncihtan/htan-claude/internal/xdg"
)

// Service names.
const (
	Synapse  = "synapse"
	Portal   = "portal"
	BigQuery = "bigquery"
	Gen3     = "gen3"
)

// InitOrder is the order services are configured in. Portal credentials
// are fetched through Synapse, so Synapse comes first.
var InitOrder = []string{Synapse, Portal, BigQuery, Gen3}

// Labels are the display names of the services.
var Labels = map[string]string{
	Portal:   "Portal (ClickHouse)",
	Synapse:  "Synapse",
	BigQuery: "BigQuery (ISB-CGC)",
	Gen3:     "Gen3/CRDC",
}

// Optional reports whether a service is optional for everyday use.
func Optional(service string) bool {
	return service == BigQuery || service == Gen3
}

// Order validates services and returns them in InitOrder. An empty input
// selects every service.
func Order(services []string) ([]string, error) {
	if len(services) == 0 {
		return append([]string(nil), InitOrder...), nil
	}
	want := map[string]bool{}
	for _, s := range services {
		s = strings.ToLower(s)
		if _, ok := Labels[s]; !ok {
			return nil, fmt.Errorf("unknown service %q (choose from %s)", s, strings.Join(InitOrder, ", "))
		}
		want[s] = true
	}
	var out []string
	for _, s := range InitOrder {
		if want[s] {
			out = append(out, s)
		}
	}
	return out, nil
}

// MenuChoice maps an interactive menu answer to the services it selects.
// Unknown answers and "q" select nothing.
func MenuChoice(choice string) []string {
	switch strings.ToLower(strings.TrimSpace(choice)) {
	case "1":
		return []string{Portal}
	case "2":
		return []string{Synapse}
	case "3":
		return []string{BigQuery}
	case "4":
		return []string{Gen3}
	case "a":
		return append([]string(nil), InitOrder...)
	}
	return nil
}

// BigQueryKeyEnvVar points at a service-account key file.
const BigQueryKeyEnvVar = "GOOGLE_APPLICATION_CREDENTIALS"

// ADCPath is the gcloud Application Default Credentials file.
func ADCPath() string {
	return xdg.HomePath(".config", "gcloud", "application_default_credentials.json")
}

// MethodStatus reports whether a service is configured and how.
type MethodStatus struct {
	Configured bool    `json:"configured"`
	Method     *string `json:"method"`
}

// PortalStatus reports the credential tier that serves the portal.
type PortalStatus struct {
	Configured bool    `json:"configured"`
	Source     *string `json:"source"`
	Path       *string `json:"path"`
}

// Status is the configuration of every service.
type Status struct {
	Synapse  MethodStatus `json:"synapse"`
	Portal   PortalStatus `json:"portal"`
	Gen3     MethodStatus `json:"gen3"`
	BigQuery MethodStatus `json:"bigquery"`
}

// Report is the JSON envelope of a status check.
type Report struct {
	OK     bool   `json:"ok"`
	Status Status `json:"status"`
}

// Configured reports the state of one service by name.
func (s Status) Configured(service string) bool {
	switch service {
	case Synapse:
		return s.Synapse.Configured
	case Portal:
		return s.Portal.Configured
	case BigQuery:
		return s.BigQuery.Configured
	case Gen3:
		return s.Gen3.Configured
	}
	return false
}

// Detail is the one-line description of a service's state.
func (s Status) Detail(service string) string {
	var how *string
	switch service {
	case Synapse:
		how = s.Synapse.Method
	case Portal:
		how = s.Portal.Source
	case BigQuery:
		how = s.BigQuery.Method
	case Gen3:
		how = s.Gen3.Method
	}
	if !s.Configured(service) || how == nil {
		return "Not configured"
	}
	return fmt.Sprintf("Configured (%s)", *how)
}

// Check inspects every credential location without network access.
// The portal tiers are probed through r.
func Check(ctx context.Context, r *credentials.Resolver) Status {
	var st Status

	switch {
	case os.Getenv(synapse.TokenEnvVar) != "":
		st.Synapse = configured(synapse.TokenEnvVar)
	case exists(synapse.ConfigPath()):
		st.Synapse = configured("~/" + synapse.ConfigFile)
	}

	if src := r.DetectSource(ctx); src != "" {
		st.Portal = PortalStatus{Configured: true, Source: optional(string(src))}
		if src == credentials.SourceFile {
			if p, err := config.PortalPath(); err == nil {
				st.Portal.Path = optional(p)
			}
		}
	}

	switch {
	case exists(os.Getenv(gen3.KeyEnvVar)):
		st.Gen3 = configured(gen3.KeyEnvVar)
	case exists(gen3.DefaultCredentialsPath()):
		st.Gen3 = configured("~/.gen3/credentials.json")
	}

	switch {
	case exists(os.Getenv(BigQueryKeyEnvVar)):
		st.BigQuery = configured(BigQueryKeyEnvVar)
	case exists(ADCPath()):
		st.BigQuery = configured("application_default_credentials")
	}
	return st
}

func configured(method string) MethodStatus {
	return MethodStatus{Configured: true, Method: optional(method)}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(xdg.ExpandHome(path))
	return err == nil
}
