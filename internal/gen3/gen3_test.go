// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

package gen3

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	herrors "github.com/ncihtan/htan-claude/internal/errors"
	"github.com/ncihtan/htan-claude/internal/rest"
)

func TestValidateURI(t *testing.T) {
	tests := []struct {
		uri  string
		want bool
	}{
		{"drs://dg.4DFC/abc-123", true},
		{"drs://dg.4DFC/dg.4DFC/0a1b.c_d", true},
		{"drs://nci-crdc.datacommons.io/dg.4DFC/abc", true},
		{"drs://dg.4DFC/", false},
		{"drs://dg.4dfc/abc", false},
		{"drs://other.host/abc", false},
		{"http://dg.4DFC/abc", false},
		{"drs://dg.4DFC/abc def", false},
		{"drs://dg.4DFC/abc;rm", false},
		{"", false},
	}
	for _, tt := range tests {
		err := ValidateURI(tt.uri)
		if tt.want {
			assert.NoError(t, err, tt.uri)
			continue
		}
		require.Error(t, err, tt.uri)
		assert.Equal(t, herrors.InvalidInput, herrors.KindOf(err), tt.uri)
	}
	assert.EqualError(t, ValidateURI("x"), "Invalid DRS URI 'x'. Expected format: drs://dg.4DFC/<guid>")
}

func TestExtractGUID(t *testing.T) {
	assert.Equal(t, "abc/def", ExtractGUID("drs://dg.4DFC/abc/def"))
	assert.Equal(t, "abc", ExtractGUID("drs://nci-crdc.datacommons.io/dg.4DFC/abc"))
	assert.Equal(t, "plain", ExtractGUID("plain"))
	assert.Equal(t, "abc_def", FileName("abc/def"))
}

func TestFindCredentials(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(KeyEnvVar, "")
	assert.Empty(t, FindCredentials())

	def := filepath.Join(home, ".gen3", "credentials.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(def), 0o700))
	require.NoError(t, os.WriteFile(def, []byte(`{"api_key":"k","key_id":"i"}`), 0o600))
	assert.Equal(t, def, FindCredentials())

	other := filepath.Join(home, "other.json")
	require.NoError(t, os.WriteFile(other, []byte(`{"api_key":"k2"}`), 0o600))
	t.Setenv(KeyEnvVar, "~/other.json")
	assert.Equal(t, other, FindCredentials())

	c, path, err := LoadCredentials("")
	require.NoError(t, err)
	assert.Equal(t, other, path)
	assert.Equal(t, "k2", c.APIKey)

	// a missing env path falls back to the default file
	t.Setenv(KeyEnvVar, filepath.Join(home, "missing.json"))
	assert.Equal(t, def, FindCredentials())
}

func TestLoadCredentialsMissing(t *testing.T) {
	_, _, err := LoadCredentials(filepath.Join(t.TempDir(), "nope.json"))
	assert.Equal(t, herrors.ConfigMissing, herrors.KindOf(err))
}

func fakeFence(t *testing.T, payload string) (*Client, *int32) {
	t.Helper()
	var tokenCalls int32
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/user/credentials/api/access_token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenCalls, 1)
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["api_key"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"at"}`))
	})
	mux.HandleFunc("/user/data/download/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path == "/user/data/download/missing" {
			_, _ = w.Write([]byte(`{"error":"nope"}`))
			return
		}
		_, _ = w.Write([]byte(`{"url":"` + srv.URL + `/blob?p=` + r.URL.Query().Get("protocol") + `"}`))
	})
	mux.HandleFunc("/blob", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(payload))
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return New(Credentials{APIKey: "secret"}, WithBaseURL(srv.URL), WithHTTPClient(srv.Client())), &tokenCalls
}

func TestResolve(t *testing.T) {
	c, calls := fakeFence(t, "")
	ctx := context.Background()

	u, err := c.Resolve(ctx, "drs://dg.4DFC/abc", ProtocolGS)
	require.NoError(t, err)
	assert.Contains(t, u, "/blob?p=gs")

	_, err = c.Resolve(ctx, "drs://dg.4DFC/abc", "")
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(calls), "access token is reused")

	_, err = c.Resolve(ctx, "drs://dg.4DFC/missing", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Could not resolve GUID missing")

	_, err = c.Resolve(ctx, "bad", "")
	assert.Equal(t, herrors.InvalidInput, herrors.KindOf(err))
}

func TestDownload(t *testing.T) {
	c, _ := fakeFence(t, "payload")
	dir := t.TempDir()
	ctx := context.Background()

	dry, err := c.Download(ctx, "drs://dg.4DFC/a/b", dir, "", true, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a_b"), dry.Path)
	assert.NoFileExists(t, dry.Path)

	d, err := c.Download(ctx, "drs://dg.4DFC/a/b", dir, "", false, nil)
	require.NoError(t, err)
	got, err := os.ReadFile(d.Path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))

	again, err := c.Download(ctx, "drs://dg.4DFC/a/b", dir, "", false, nil)
	require.NoError(t, err)
	assert.True(t, again.Skipped)
}

func TestDownloadOutlivesAPITimeout(t *testing.T) {
	old := rest.DefaultTimeout
	rest.DefaultTimeout = 200 * time.Millisecond
	t.Cleanup(func() { rest.DefaultTimeout = old })

	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/user/credentials/api/access_token", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"at"}`))
	})
	mux.HandleFunc("/user/data/download/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"url":"` + srv.URL + `/blob"}`))
	})
	mux.HandleFunc("/blob", func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for i := 0; i < 6; i++ {
			_, _ = w.Write([]byte("chunk"))
			flusher.Flush()
			time.Sleep(100 * time.Millisecond)
		}
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := New(Credentials{APIKey: "k"}, WithBaseURL(srv.URL))
	d, err := c.Download(context.Background(), "drs://dg.4DFC/slow", t.TempDir(), "", false, nil)
	require.NoError(t, err)
	got, err := os.ReadFile(d.Path)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("chunk", 6), string(got))
}

func TestReadURIList(t *testing.T) {
	p := filepath.Join(t.TempDir(), "uris.txt")
	require.NoError(t, os.WriteFile(p, []byte("# header\n\ndrs://dg.4DFC/a\n  drs://dg.4DFC/b  \n"), 0o644))
	uris, err := ReadURIList(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"drs://dg.4DFC/a", "drs://dg.4DFC/b"}, uris)

	_, err = ReadURIList(filepath.Join(t.TempDir(), "none"))
	assert.Equal(t, herrors.InvalidInput, herrors.KindOf(err))
}
