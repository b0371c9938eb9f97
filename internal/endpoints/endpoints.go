// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package endpoints holds the upstream service addresses htan talks to.
package endpoints

import "strings"

// Endpoints contains the base URLs of every upstream service.
type Endpoints struct {
	SynapseRepo string // Synapse repository REST API
	SynapseFile string // Synapse file-handle service
	Gen3        string // CRDC Gen3 Fence
	EUtils      string // NCBI E-utilities
	FileMapping string // pinned crdcgc_drs_mapping.json
	DataModel   string // raw ncihtan/data-models tree, without tag
}

// Default returns the production endpoints.
func Default() Endpoints {
	return Endpoints{
		SynapseRepo: "https://repo-prod.prod.sagebase.org",
		SynapseFile: "https://file-prod.prod.sagebase.org",
		Gen3:        "https://nci-crdc.datacommons.io",
		EUtils:      "https://eutils.ncbi.nlm.nih.gov/entrez/eutils",
		FileMapping: "https://raw.githubusercontent.com/ncihtan/htan-portal/4ce608118116f3e074415ef00a82bd460a9ba9ee/packages/data-portal-commons/src/assets/crdcgc_drs_mapping.json",
		DataModel:   "https://raw.githubusercontent.com/ncihtan/data-models",
	}
}

// Join appends path to base, avoiding a doubled slash.
func Join(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
