// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

package bigquery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	herrors "github.com/ncihtan/htan-claude/internal/errors"
)

func TestResolveTable(t *testing.T) {
	tests := []struct {
		in        string
		versioned bool
		want      string
	}{
		{"clinical_tier1_demographics", false, "clinical_tier1_demographics_current"},
		{"clinical_tier1_demographics_current", false, "clinical_tier1_demographics_current"},
		{"biospecimen_r5", false, "biospecimen_r5"},
		{"biospecimen_r5_v2", false, "biospecimen_r5_v2"},
		{"biospecimen_rx", false, "biospecimen_rx_current"},
		{"biospecimen", true, "biospecimen"},
	}
	for _, tt := range tests {
		got, err := ResolveTable(tt.in, tt.versioned)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ResolveTable("x; DROP", false)
	assert.Equal(t, herrors.InvalidInput, herrors.KindOf(err))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "2.50 GB", FormatBytes(2_500_000_000))
	assert.Equal(t, "12.3 MB", FormatBytes(12_340_000))
	assert.Equal(t, "999,999 bytes", FormatBytes(999_999))
	assert.Equal(t, "0 bytes", FormatBytes(0))
}

func TestListTablesSQL(t *testing.T) {
	assert.Equal(t, "SELECT table_name FROM `isb-cgc-bq.HTAN.INFORMATION_SCHEMA.TABLES` ORDER BY table_name", ListTablesSQL(false))
	assert.Contains(t, ListTablesSQL(true), "isb-cgc-bq.HTAN_versioned.")
}

func TestSchemaContext(t *testing.T) {
	out := SchemaContext("How many patients?")
	assert.Contains(t, out, "USER QUESTION: How many patients?")
	assert.Contains(t, out, "clinical_tier1_demographics_current")
	assert.True(t, strings.HasSuffix(out, "htan query bq sql \"YOUR_SQL_HERE\"\n"))
}

// fakeAPI serves the jobs and tables endpoints of the BigQuery REST API.
type fakeAPI struct {
	queries int32
	polls   int32
	lastSQL atomic.Value
}

func (f *fakeAPI) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/projects/bill/queries"):
			atomic.AddInt32(&f.queries, 1)
			var req map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			f.lastSQL.Store(req["query"])
			if req["dryRun"] == true {
				_, _ = w.Write([]byte(`{"totalBytesProcessed":"1234567","jobComplete":true}`))
				return
			}
			// first page complete, second page pending behind a token
			_, _ = w.Write([]byte(`{
				"jobComplete": true,
				"jobReference": {"projectId":"bill","jobId":"j1","location":"US"},
				"pageToken": "p2",
				"schema": {"fields":[
					{"name":"table_name","type":"STRING"},
					{"name":"n","type":"INTEGER"},
					{"name":"tags","type":"STRING","mode":"REPEATED"},
					{"name":"ok","type":"BOOLEAN"}
				]},
				"rows": [{"f":[{"v":"a"},{"v":"1"},{"v":[{"v":"x"},{"v":"y"}]},{"v":"true"}]}]
			}`))
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/projects/bill/queries/j1"):
			atomic.AddInt32(&f.polls, 1)
			assert.Equal(t, "US", r.URL.Query().Get("location"))
			assert.Equal(t, "p2", r.URL.Query().Get("pageToken"))
			_, _ = w.Write([]byte(`{"jobComplete":true,"rows":[{"f":[{"v":"b"},{"v":null},{"v":[]},{"v":"false"}]}]}`))
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/projects/isb-cgc-bq/datasets/HTAN/tables/biospecimen_current"):
			_, _ = w.Write([]byte(`{
				"numRows":"1500","numBytes":"2048","description":"Biospecimens",
				"schema":{"fields":[{"name":"HTAN_Biospecimen_ID","type":"STRING","description":"id"},
					{"name":"Tags","type":"STRING","mode":"REPEATED"}]}
			}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":404,"message":"not found"}}`))
		}
	}
}

func newTestClient(t *testing.T) (*Client, *fakeAPI, *[]string) {
	t.Helper()
	f := &fakeAPI{}
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	var notes []string
	c, err := New(context.Background(), "bill",
		WithClientOptions(
			option.WithEndpoint(srv.URL+"/"),
			option.WithoutAuthentication(),
			option.WithHTTPClient(srv.Client()),
		),
		WithNotifier(func(s string) { notes = append(notes, s) }),
	)
	require.NoError(t, err)
	return c, f, &notes
}

func TestQueryPagesAndConverts(t *testing.T) {
	c, f, notes := newTestClient(t)

	rs, err := c.Query(context.Background(), "SELECT table_name FROM t;", 0)
	require.NoError(t, err)
	require.Len(t, rs, 2)

	assert.Equal(t, "SELECT table_name FROM t\nLIMIT 1000", f.lastSQL.Load())
	assert.Equal(t, []string{"Auto-applied LIMIT 1000"}, *notes)
	assert.EqualValues(t, 1, atomic.LoadInt32(&f.polls))

	assert.Equal(t, []string{"table_name", "n", "tags", "ok"}, rs[0].Keys())
	n, ok := rs[0].Int("n")
	assert.True(t, ok)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, "x, y", rs[0].String("tags"))
	v, _ := rs[0].Get("ok")
	assert.Equal(t, true, v)

	v, _ = rs[1].Get("n")
	assert.Nil(t, v)
}

func TestQueryRejectsWrites(t *testing.T) {
	c, f, _ := newTestClient(t)
	_, err := c.Query(context.Background(), "DELETE FROM t", 0)
	require.Error(t, err)
	assert.Equal(t, "Blocked SQL keyword: DELETE", err.Error())

	_, err = c.Query(context.Background(), "DESCRIBE t", 0)
	assert.Equal(t, herrors.InvalidInput, herrors.KindOf(err))
	assert.Zero(t, atomic.LoadInt32(&f.queries))
}

func TestDryRun(t *testing.T) {
	c, _, _ := newTestClient(t)
	res, err := c.DryRun(context.Background(), "SELECT 1 LIMIT 5", 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1234567, res.BytesProcessed)
	assert.Equal(t, "SELECT 1 LIMIT 5", res.SQL)
	assert.Equal(t, "1.2 MB", FormatBytes(res.BytesProcessed))
}

func TestListTables(t *testing.T) {
	c, f, _ := newTestClient(t)
	names, err := c.ListTables(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)
	assert.Equal(t, ListTablesSQL(false), f.lastSQL.Load())
}

func TestDescribeTable(t *testing.T) {
	c, _, _ := newTestClient(t)
	info, err := c.DescribeTable(context.Background(), "biospecimen", false)
	require.NoError(t, err)
	assert.Equal(t, "isb-cgc-bq.HTAN.biospecimen_current", info.Table)
	assert.EqualValues(t, 1500, info.NumRows)
	assert.EqualValues(t, 2048, info.NumBytes)
	assert.Equal(t, []Field{
		{Name: "HTAN_Biospecimen_ID", Type: "STRING", Mode: "NULLABLE", Description: "id"},
		{Name: "Tags", Type: "STRING", Mode: "REPEATED"},
	}, info.Schema)

	text := FormatSchema(info)
	assert.Contains(t, text, "Rows: 1,500\n")
	assert.Contains(t, text, "Description: Biospecimens\n")

	_, err = c.DescribeTable(context.Background(), "missing", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Could not access table 'isb-cgc-bq.HTAN.missing_current'")
}

func TestMissingProject(t *testing.T) {
	t.Setenv(ProjectEnvVar, "")
	c, err := New(context.Background(), "", WithClientOptions(option.WithoutAuthentication()))
	require.NoError(t, err)
	_, err = c.ListTables(context.Background(), false)
	assert.Equal(t, herrors.ConfigMissing, herrors.KindOf(err))
}
