// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

package transfer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	started bool
	last    int64
	doneErr error
	done    bool
}

func (r *recorder) Start(string, int64) { r.started = true }
func (r *recorder) Update(d, _ int64)   { r.last = d }
func (r *recorder) Done(err error)      { r.done, r.doneErr = true, err }

func TestToFile(t *testing.T) {
	body := strings.Repeat("a", ChunkSize*2+10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "sub", "file.bin")
	rec := &recorder{}
	res, err := ToFile(context.Background(), srv.Client(), srv.URL, path, rec)
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), res.Bytes)
	assert.True(t, rec.started)
	assert.True(t, rec.done)
	assert.Equal(t, int64(len(body)), rec.last)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, body, string(got))

	// second call skips the existing file
	res, err = ToFile(context.Background(), srv.Client(), srv.URL, path, nil)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
}

func TestToFileHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "x")
	_, err := ToFile(context.Background(), srv.Client(), srv.URL, path, nil)
	var herr *HTTPError
	require.True(t, errors.As(err, &herr))
	assert.Equal(t, 403, herr.Status)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestToFileRemovesPartial(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100000")
		_, _ = w.Write([]byte("partial"))
		// handler returns early; the client sees an unexpected EOF
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "x")
	rec := &recorder{}
	_, err := ToFile(context.Background(), srv.Client(), srv.URL, path, rec)
	require.Error(t, err)
	assert.Equal(t, err, rec.doneErr)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "partial file must be removed")
}

func TestNewClientHasNoOverallTimeout(t *testing.T) {
	c := NewClient()
	assert.Zero(t, c.Timeout)
	tr, ok := c.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, HeaderTimeout, tr.ResponseHeaderTimeout)
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", FormatSize(512))
	assert.Equal(t, "1.5 KB", FormatSize(1536))
	assert.Equal(t, "2.0 MB", FormatSize(2*1024*1024))
	assert.Equal(t, "1.00 GB", FormatSize(1<<30))
	assert.Equal(t, "unknown size", FormatSize(-1))
}
