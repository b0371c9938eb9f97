// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

package synapse

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ncihtan/htan-claude/internal/endpoints"
	herrors "github.com/ncihtan/htan-claude/internal/errors"
	"github.com/ncihtan/htan-claude/internal/rest"
)

func TestValidateID(t *testing.T) {
	for _, id := range []string{"syn1", "syn26535909"} {
		assert.NoError(t, ValidateID(id), id)
	}
	for _, id := range []string{"", "syn", "SYN123", "syn12a", " syn1", "26535909"} {
		err := ValidateID(id)
		require.Error(t, err, id)
		assert.Equal(t, herrors.InvalidInput, herrors.KindOf(err))
	}
	assert.EqualError(t, ValidateID("abc"), "Invalid Synapse ID 'abc'. Must match 'synNNNNNN'.")
}

func TestLoadToken(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	t.Setenv(TokenEnvVar, "")
	assert.Empty(t, LoadToken())

	cfg := "[authentication]\nauthtoken = file-token\n"
	require.NoError(t, os.WriteFile(filepath.Join(home, ConfigFile), []byte(cfg), 0o600))
	assert.Equal(t, "file-token", LoadToken())

	t.Setenv(TokenEnvVar, " env-token ")
	assert.Equal(t, "env-token", LoadToken())
}

func TestNewRequiresToken(t *testing.T) {
	_, err := New("")
	assert.ErrorIs(t, err, ErrNoToken)
}

// fakeSynapse serves the repo and file endpoints from one mux.
func fakeSynapse(t *testing.T, content string) (*Client, *httptest.Server) {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server

	auth := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer tok" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next(w, r)
		}
	}
	mux.HandleFunc("/repo/v1/userProfile", auth(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ownerId":"42","userName":"ada"}`))
	}))
	mux.HandleFunc("/repo/v1/team/3574960/member/42/membershipStatus", auth(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"isMember":false,"canJoin":true}`))
	}))
	mux.HandleFunc("/repo/v1/membershipRequest", auth(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["teamId"] != "3574960" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	mux.HandleFunc("/repo/v1/entity/syn123/bundle2", auth(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_, _ = w.Write([]byte(`{"entity":{"id":"syn123","name":"data.csv","dataFileHandleId":"77"},
			"fileHandles":[{"id":"77","contentSize":11}]}`))
	}))
	mux.HandleFunc("/repo/v1/entity/syn403/bundle2", auth(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	mux.HandleFunc("/file/v1/fileHandle/77/url", auth(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "false", r.URL.Query().Get("redirect"))
		_, _ = w.Write([]byte(`"` + srv.URL + `/presigned/77"`))
	}))
	mux.HandleFunc("/presigned/77", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(content))
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	ep := endpoints.Endpoints{SynapseRepo: srv.URL, SynapseFile: srv.URL}
	c, err := New("tok", WithEndpoints(ep), WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c, srv
}

func TestTeamMembership(t *testing.T) {
	c, _ := fakeSynapse(t, "")
	ctx := context.Background()

	p, err := c.UserProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "42", p.OwnerID)

	m, err := c.MembershipStatus(ctx, "3574960", p.OwnerID)
	require.NoError(t, err)
	assert.False(t, m.IsMember)
	assert.True(t, m.CanJoin)

	assert.NoError(t, c.RequestMembership(ctx, "3574960", "join"))
}

func TestEntityBundleAndURL(t *testing.T) {
	c, srv := fakeSynapse(t, "")
	ctx := context.Background()

	e, err := c.EntityBundle(ctx, "syn123")
	require.NoError(t, err)
	assert.Equal(t, "data.csv", e.Name)
	assert.Equal(t, "77", e.DataFileHandleID)
	assert.EqualValues(t, 11, e.ContentSize)

	u, err := c.FileHandleURL(ctx, "77")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/presigned/77", u)

	_, err = c.EntityBundle(ctx, "syn403")
	assert.Equal(t, http.StatusForbidden, rest.StatusOf(err))
}

func TestDownload(t *testing.T) {
	c, _ := fakeSynapse(t, "hello world")
	dir := t.TempDir()
	ctx := context.Background()

	dry, err := c.Download(ctx, "syn123", dir, true, nil)
	require.NoError(t, err)
	assert.True(t, dry.DryRun)
	assert.Equal(t, filepath.Join(dir, "data.csv"), dry.Path)
	assert.NoFileExists(t, dry.Path)

	d, err := c.Download(ctx, "syn123", dir, false, nil)
	require.NoError(t, err)
	got, err := os.ReadFile(d.Path)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))
	assert.EqualValues(t, 11, d.Result.Bytes)

	again, err := c.Download(ctx, "syn123", dir, false, nil)
	require.NoError(t, err)
	assert.True(t, again.Result.Skipped)
}

func TestDownloadRejectsBadID(t *testing.T) {
	c, _ := fakeSynapse(t, "")
	_, err := c.Download(context.Background(), "nope", t.TempDir(), false, nil)
	assert.Equal(t, herrors.InvalidInput, herrors.KindOf(err))
}

func TestSafeName(t *testing.T) {
	assert.Equal(t, "a.txt", safeName("../../a.txt", "syn1"))
	assert.Equal(t, "syn1", safeName("", "syn1"))
}
