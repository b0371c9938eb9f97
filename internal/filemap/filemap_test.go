// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

package filemap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	herrors "github.com/ncihtan/htan-claude/internal/errors"
)

const mappingJSON = `[
 {"HTAN_Data_File_ID":"HTA9_1_1","name":"a.fastq","entityId":"syn1","drs_uri":"dg.4DFC/aaa","HTAN_Center":"HTAN OHSU"},
 {"HTAN_Data_File_ID":"HTA9_1_2","name":"b.h5ad","entityId":"syn2","drs_uri":null,"HTAN_Center":"HTAN OHSU"},
 {"HTAN_Data_File_ID":"HTA1_1_1","name":"c.bam","entityId":null,"drs_uri":"drs://dg.4DFC/ccc","HTAN_Center":"HTAN HTAPP"},
 {"HTAN_Data_File_ID":"","name":"skip"},
 {"HTAN_Data_File_ID":"HTA2_1_1","name":"d"}
]`

func newStore(t *testing.T, body string, status int) (*Store, *int32, *[]string) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "htan-skill/1.0", r.Header.Get("User-Agent"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	var notes []string
	s, err := New(
		WithURL(srv.URL),
		WithCachePath(filepath.Join(t.TempDir(), "cache", CacheFile)),
		WithHTTPClient(srv.Client()),
		WithNotifier(func(n string) { notes = append(notes, n) }),
	)
	require.NoError(t, err)
	return s, &hits, &notes
}

func TestLookupDownloadsOnce(t *testing.T) {
	s, hits, notes := newStore(t, mappingJSON, http.StatusOK)
	ctx := context.Background()

	found, missing, err := s.Lookup(ctx, []string{"HTA1_1_1", "HTA9_1_1", "HTA0_0_0"})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "c.bam", found[0].Name)
	assert.Equal(t, "syn1", found[1].EntityID)
	assert.Equal(t, []string{"HTA0_0_0"}, missing)
	assert.FileExists(t, s.Path())
	assert.Contains(t, *notes, "Mapping cache not found. Downloading...")
	assert.Contains(t, *notes, "Loaded 4 file mappings")

	_, _, err = s.Lookup(ctx, []string{"HTA9_1_2"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(hits))
}

func TestUpdateRejectsNonArray(t *testing.T) {
	s, _, _ := newStore(t, `{"not":"an array"}`, http.StatusOK)
	_, err := s.Update(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Expected JSON array in mapping file.", err.Error())
	assert.NoFileExists(t, s.Path())

	bad, _, _ := newStore(t, `{{{`, http.StatusOK)
	_, err = bad.Update(context.Background())
	assert.Contains(t, err.Error(), "Downloaded file is not valid JSON")

	down, _, _ := newStore(t, ``, http.StatusBadGateway)
	_, err = down.Update(context.Background())
	assert.Equal(t, herrors.Server, herrors.KindOf(err))
}

func TestUpdateCounts(t *testing.T) {
	s, _, notes := newStore(t, mappingJSON, http.StatusOK)
	n, err := s.Update(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.JSONEq(t, mappingJSON, string(data))
	assert.Contains(t, (*notes)[len(*notes)-1], "Saved 5 records to ")
}

func TestStats(t *testing.T) {
	s, _, _ := newStore(t, mappingJSON, http.StatusOK)
	st, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, st.TotalFiles)
	assert.Equal(t, 2, st.WithEntityID)
	assert.Equal(t, 2, st.WithDRSURI)
	assert.Equal(t, []CenterCount{
		{Center: "HTAN OHSU", Files: 2},
		{Center: "HTAN HTAPP", Files: 1},
		{Center: "Unknown", Files: 1},
	}, st.FilesPerCenter)
}

func TestRecordCommands(t *testing.T) {
	r := Record{FileID: "HTA9_1_1", EntityID: "syn1", DRSURI: "dg.4DFC/aaa"}
	assert.Equal(t, "htan download synapse syn1", r.SynapseCommand())
	assert.Equal(t, `htan download gen3 "drs://dg.4DFC/aaa"`, r.Gen3Command())

	row := r.Row(true)
	assert.Equal(t, []string{"HTAN_Data_File_ID", "name", "entityId", "drs_uri", "HTAN_Center",
		"synapse_download_cmd", "gen3_download_cmd"}, row.Keys())
	assert.Equal(t, 5, Record{}.Row(true).Len())
}

func TestInferAccessTier(t *testing.T) {
	tests := []struct {
		level, assay string
		want         string
	}{
		{"", "", TierUnknown},
		{"Level 3", "scRNA-seq", TierSynapse},
		{"Auxiliary", "", TierSynapse},
		{"Level 1", "RPPA", TierSynapse},
		{"Level 2", "10X Visium", TierSynapse},
		{"Level 1", "CODEX", TierSynapse},
		{"Level 2", "CODEX", TierUnknown},
		{"Level 1", "scRNA-seq", TierGen3},
		{"Level 2", "Bulk WES", TierGen3},
		{"Level 1", "H&E", TierUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, InferAccessTier(tt.level, tt.assay), "%s/%s", tt.level, tt.assay)
	}
}

func TestFileIDPattern(t *testing.T) {
	assert.True(t, FileIDPattern.MatchString("HTA9_1_19512"))
	assert.True(t, FileIDPattern.MatchString("HTA10_2"))
	assert.False(t, FileIDPattern.MatchString("HTAX_1"))
	assert.False(t, FileIDPattern.MatchString("syn123"))
}
