// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

package datamodel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	herrors "github.com/ncihtan/htan-claude/internal/errors"
)

const modelCSV = `Attribute,Description,Valid Values,DependsOn,Properties,Required,Parent,DependsOn Component,Source,Validation Rules
Demographics,Demographics component,,"Component,Ethnic Group,Gender",,FALSE,Component,Patient,,
Patient,Patient component,,"Component,HTAN Participant ID",,FALSE,Component,,,
scRNA-seq Level 1,Level 1 data,,"Component,Filename,File Format,Library Construction Method",,FALSE,Sequencing,Biospecimen,,
scRNA-seq Level 2,Level 2 data,,"Component,Filename",,FALSE,Sequencing,scRNA-seq Level 1,,
Biospecimen,Biospecimen component,,"Component,HTAN Biospecimen ID",,FALSE,Biospecimen,Patient,,
Ethnic Group,Ethnicity,"hispanic or latino,not hispanic or latino,unknown",,,TRUE,Demographics,,https://ncit.nci.nih.gov,
Gender,Gender desc,"female,male,unknown,not reported,unspecified,other",,,TRUE,Demographics,,,
Filename,Name of file,,,,TRUE,,,,str
File Format,Format of file,"fastq,bam,csv",,,TRUE,,,,
Library Construction Method,Method,"10x,Smart-seq2",,,FALSE,,,,
HTAN Participant ID,Participant,,,,TRUE,,,,regex
HTAN Biospecimen ID,Biospecimen id,,,,TRUE,,,,
`

func newModel(t *testing.T, body string) (*Model, *int32, *[]string) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.URL.Path != "/v9.9.9/HTAN.model.csv" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	var notes []string
	m, err := New(
		WithBaseURL(srv.URL),
		WithTag("v9.9.9"),
		WithCachePath(filepath.Join(t.TempDir(), CacheFile)),
		WithHTTPClient(srv.Client()),
		WithNotifier(func(s string) { notes = append(notes, s) }),
	)
	require.NoError(t, err)
	return m, &hits, &notes
}

func TestLoadDownloadsOnce(t *testing.T) {
	m, hits, notes := newModel(t, modelCSV)
	ctx := context.Background()

	comps, err := m.Components(ctx)
	require.NoError(t, err)
	assert.Len(t, comps, 5)
	assert.FileExists(t, m.Path())
	assert.Equal(t, []string{
		"Model cache not found. Downloading...",
		"Downloading data model (v9.9.9)...",
		"Saved 12 rows to " + m.Path(),
		"Loaded 12 attributes from data model",
	}, *notes)

	_, err = m.Search(ctx, "x")
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(hits))
}

func TestFetchRejectsBadCSV(t *testing.T) {
	empty, _, _ := newModel(t, "Attribute,Description\n")
	_, err := empty.Fetch(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Downloaded CSV is empty.", err.Error())
	assert.NoFileExists(t, empty.Path())

	noAttr, _, _ := newModel(t, "Name,Description\nx,y\n")
	_, err = noAttr.Fetch(context.Background())
	require.Error(t, err)
	assert.Equal(t, "CSV missing 'Attribute' column.", err.Error())

	m, _, _ := newModel(t, modelCSV)
	m.tag = "missing"
	_, err = m.Fetch(context.Background())
	assert.Equal(t, herrors.Server, herrors.KindOf(err))
}

func TestDefaultURL(t *testing.T) {
	m, err := New(WithCachePath(filepath.Join(t.TempDir(), CacheFile)))
	require.NoError(t, err)
	assert.Equal(t, DefaultTag, m.Tag())
	assert.Equal(t, "https://raw.githubusercontent.com/ncihtan/data-models/v25.2.1/HTAN.model.csv", m.URL())
}

func TestComponents(t *testing.T) {
	m, _, _ := newModel(t, modelCSV)
	comps, err := m.Components(context.Background())
	require.NoError(t, err)

	names := make([]string, len(comps))
	for i, c := range comps {
		names[i] = c.Name
	}
	assert.Equal(t, []string{"Demographics", "scRNA-seq Level 1", "scRNA-seq Level 2", "Biospecimen", "Patient"}, names)
	assert.Equal(t, 3, comps[0].AttributeCount)
	assert.Equal(t, []string{"Patient"}, comps[0].DependsOnComponents)
	assert.Equal(t, []string{}, comps[4].DependsOnComponents)

	text := FormatComponents(comps)
	assert.Contains(t, text, "=== Clinical (2 components) ===")
	assert.Contains(t, text, "=== Sequencing (2 components) ===")
	assert.Contains(t, text, "=== Biospecimen (1 components) ===")
	assert.Contains(t, text, "\nTotal: 5 components")
}

func TestAttributes(t *testing.T) {
	m, _, _ := newModel(t, modelCSV)
	ctx := context.Background()

	name, attrs, err := m.Attributes(ctx, "SCRNA-SEQ LEVEL 1")
	require.NoError(t, err)
	assert.Equal(t, "scRNA-seq Level 1", name)
	require.Len(t, attrs, 4)
	assert.Equal(t, Attribute{Name: "Component"}, attrs[0])
	assert.Equal(t, Attribute{
		Name: "Filename", Description: "Name of file", Required: true, ValidationRules: "str",
	}, attrs[1])
	assert.Equal(t, 3, attrs[2].ValidValuesCount)
	assert.Equal(t, "fastq, bam, csv", attrs[2].ValidValuesPreview)

	name, _, err = m.Attributes(ctx, "level 2")
	require.NoError(t, err)
	assert.Equal(t, "scRNA-seq Level 2", name)

	_, _, err = m.Attributes(ctx, "level")
	require.Error(t, err)
	assert.Equal(t, herrors.InvalidInput, herrors.KindOf(err))
	assert.Contains(t, err.Error(), "Did you mean: scRNA-seq Level 1, scRNA-seq Level 2")

	_, _, err = m.Attributes(ctx, "proteomics")
	assert.Equal(t, herrors.NotFound, herrors.KindOf(err))

	name, req, err := m.Required(ctx, "scRNA-seq Level 1")
	require.NoError(t, err)
	require.Len(t, req, 2)
	assert.Equal(t, "Filename", req[0].Name)
	text := FormatRequired(name, req, len(attrs))
	assert.Contains(t, text, "Required: 2, Optional: 2, Total: 4")
	assert.Contains(t, text, "\n  Filename  [str]")
}

func TestDescribeAndValidValues(t *testing.T) {
	m, _, _ := newModel(t, modelCSV)
	ctx := context.Background()

	d, err := m.Describe(ctx, "ethnic")
	require.NoError(t, err)
	assert.Equal(t, "Ethnic Group", d.Attribute)
	assert.True(t, d.Required)
	assert.Equal(t, "https://ncit.nci.nih.gov", d.Source)
	assert.Equal(t, []string{"hispanic or latino", "not hispanic or latino", "unknown"}, d.ValidValues)
	assert.Equal(t, []string{}, d.DependsOn)

	text := FormatDescribe(d)
	assert.Contains(t, text, "Required: True\n")
	assert.Contains(t, text, "DependsOn: None\n")
	assert.Contains(t, text, "Valid Values (3):\n  - hispanic or latino")

	name, vv, err := m.ValidValues(ctx, "gender")
	require.NoError(t, err)
	assert.Equal(t, "Gender", name)
	assert.Len(t, vv, 6)

	_, vv, err = m.ValidValues(ctx, "filename")
	require.NoError(t, err)
	assert.Empty(t, vv)
	assert.Contains(t, FormatValidValues("Filename", vv), "(none; free text or computed)")

	_, err = m.Describe(ctx, "e")
	assert.Equal(t, herrors.InvalidInput, herrors.KindOf(err))
	_, err = m.Describe(ctx, "zzz")
	assert.Equal(t, herrors.NotFound, herrors.KindOf(err))
}

func TestSearch(t *testing.T) {
	m, _, _ := newModel(t, modelCSV)
	ctx := context.Background()

	got, err := m.Search(ctx, "FILE")
	require.NoError(t, err)
	assert.Equal(t, []Match{
		{Name: "Filename", Description: "Name of file", MatchIn: "name, description"},
		{Name: "File Format", Description: "Format of file", MatchIn: "name, description"},
	}, got)

	got, err = m.Search(ctx, "unknown")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "valid values", got[0].MatchIn)

	got, err = m.Search(ctx, "nothing-here")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, "No matches found.", FormatSearch(got))
}

func TestDeps(t *testing.T) {
	m, _, _ := newModel(t, modelCSV)
	ctx := context.Background()

	chain, err := m.Deps(ctx, "scRNA-seq Level 2")
	require.NoError(t, err)
	names := make([]string, len(chain))
	for i, d := range chain {
		names[i] = d.Name
	}
	assert.Equal(t, []string{"scRNA-seq Level 2", "scRNA-seq Level 1", "Biospecimen", "Patient"}, names)
	assert.Equal(t, "scRNA-seq Level 2\n  → scRNA-seq Level 1\n    → Biospecimen\n      → Patient", FormatDeps(chain))

	chain, err = m.Deps(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, "Demographics\n  → Patient", FormatDeps(chain))

	_, err = m.Deps(ctx, "level")
	assert.Equal(t, herrors.InvalidInput, herrors.KindOf(err))
	_, err = m.Deps(ctx, "nope")
	assert.Equal(t, herrors.NotFound, herrors.KindOf(err))
	assert.Equal(t, "No dependency chain found.", FormatDeps(nil))
}

func TestCategory(t *testing.T) {
	tests := []struct {
		name, parent, want string
	}{
		{"Demographics", "", "Clinical"},
		{"Biospecimen", "", "Biospecimen"},
		{"scRNA-seq Level 1", "", "Sequencing"},
		{"10X Visium Spatial Transcriptomics", "", "Spatial Transcriptomics"},
		{"Imaging Level 2", "", "Imaging"},
		{"RPPA Level 2", "", "Proteomics"},
		{"Custom Level 1", "Assay", "Sequencing"},
		{"Thing", "", "Other"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Category(tt.name, tt.parent), tt.name)
	}
}
