// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	herrors "github.com/ncihtan/htan-claude/internal/errors"
	"github.com/ncihtan/htan-claude/internal/rows"
)

// Manifest file names.
const (
	SynapseManifest = "synapse_manifest.tsv"
	Gen3Manifest    = "gen3_manifest.json"
)

// ManifestEntry is one file's download coordinates.
type ManifestEntry struct {
	DataFileID     string `json:"DataFileID"`
	Filename       string `json:"Filename"`
	SynapseID      string `json:"synapseId"`
	DRSURI         string `json:"drs_uri"`
	DownloadSource string `json:"downloadSource"`
}

// ManifestResult splits looked-up files by download route. A file with
// both a synapseId and a DRS URI appears in both lists.
type ManifestResult struct {
	Files    []ManifestEntry `json:"files"`
	NotFound []string        `json:"not_found"`
	Synapse  []ManifestEntry `json:"synapse"`
	Gen3     []ManifestEntry `json:"gen3"`
}

// Manifest looks up ids in the files table.
func (c *Client) Manifest(ctx context.Context, ids []string) (*ManifestResult, error) {
	if len(ids) == 0 {
		return nil, herrors.New(herrors.InvalidInput, "No file IDs provided.")
	}
	out, err := c.fetch(ctx, ManifestSQL(ids))
	if err != nil {
		return nil, err
	}
	return splitManifest(ids, out), nil
}

func splitManifest(ids []string, rs []*rows.Row) *ManifestResult {
	res := &ManifestResult{
		Files:    []ManifestEntry{},
		NotFound: []string{},
		Synapse:  []ManifestEntry{},
		Gen3:     []ManifestEntry{},
	}
	found := make(map[string]bool, len(rs))
	for _, r := range rs {
		e := ManifestEntry{
			DataFileID:     r.String("DataFileID"),
			Filename:       r.String("Filename"),
			SynapseID:      r.String("synapseId"),
			DRSURI:         r.String("drs_uri"),
			DownloadSource: r.String("downloadSource"),
		}
		found[e.DataFileID] = true
		res.Files = append(res.Files, e)
		if e.SynapseID != "" {
			res.Synapse = append(res.Synapse, e)
		}
		if e.DRSURI != "" {
			res.Gen3 = append(res.Gen3, e)
		}
	}
	for _, id := range ids {
		if !found[id] {
			res.NotFound = append(res.NotFound, id)
		}
	}
	return res
}

// ManifestSummary is printed after manifests are written.
type ManifestSummary struct {
	TotalFiles   int      `json:"total_files"`
	SynapseFiles int      `json:"synapse_files"`
	Gen3Files    int      `json:"gen3_files"`
	NotFound     []string `json:"not_found"`
	Manifests    []string `json:"manifests"`
}

type gen3Object struct {
	ObjectID   string `json:"object_id"`
	DataFileID string `json:"DataFileID"`
	Filename   string `json:"Filename"`
}

// WriteManifests writes the Synapse TSV and Gen3 JSON manifests into dir.
// A manifest is only written when it has entries.
func WriteManifests(dir string, res *ManifestResult) (*ManifestSummary, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create manifest dir: %w", err)
	}
	sum := &ManifestSummary{
		TotalFiles:   len(res.Files),
		SynapseFiles: len(res.Synapse),
		Gen3Files:    len(res.Gen3),
		NotFound:     res.NotFound,
		Manifests:    []string{},
	}
	if sum.NotFound == nil {
		sum.NotFound = []string{}
	}

	if len(res.Synapse) > 0 {
		var b strings.Builder
		b.WriteString("synapseId\tDataFileID\tFilename\n")
		for _, e := range res.Synapse {
			fmt.Fprintf(&b, "%s\t%s\t%s\n", e.SynapseID, e.DataFileID, e.Filename)
		}
		p := filepath.Join(dir, SynapseManifest)
		if err := os.WriteFile(p, []byte(b.String()), 0o644); err != nil {
			return nil, err
		}
		sum.Manifests = append(sum.Manifests, p)
	}

	if len(res.Gen3) > 0 {
		objs := make([]gen3Object, 0, len(res.Gen3))
		for _, e := range res.Gen3 {
			id := e.DRSURI
			if !strings.HasPrefix(id, "drs://") {
				id = "drs://" + id
			}
			objs = append(objs, gen3Object{ObjectID: id, DataFileID: e.DataFileID, Filename: e.Filename})
		}
		data, err := json.MarshalIndent(objs, "", "  ")
		if err != nil {
			return nil, err
		}
		p := filepath.Join(dir, Gen3Manifest)
		if err := os.WriteFile(p, data, 0o644); err != nil {
			return nil, err
		}
		sum.Manifests = append(sum.Manifests, p)
	}
	return sum, nil
}
