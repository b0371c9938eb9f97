// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package transfer streams a URL to a local file.
//
// Downloads are single-threaded and not resumable. An existing target is
// left alone, and a failed download removes the partial file.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// ChunkSize is the copy buffer size.
const ChunkSize = 8192

// HeaderTimeout bounds the wait for response headers on a download.
var HeaderTimeout = 30 * time.Second

// NewClient returns an HTTP client for downloads. It has no overall
// timeout, so a large body streams for as long as the context allows.
func NewClient() *http.Client {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.ResponseHeaderTimeout = HeaderTimeout
	return &http.Client{Transport: t}
}

// ErrExists is returned when the target already exists.
var ErrExists = errors.New("file already exists")

// Progress receives byte counts as a download proceeds. total is -1 when
// the server sent no Content-Length.
type Progress interface {
	Start(name string, total int64)
	Update(downloaded, total int64)
	Done(err error)
}

// HTTPError is a non-2xx download response.
type HTTPError struct {
	Status int
	URL    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("download failed: HTTP %d", e.Status)
}

type nopProgress struct{}

func (nopProgress) Start(string, int64) {}
func (nopProgress) Update(int64, int64) {}
func (nopProgress) Done(error)          {}

// Result describes a completed transfer.
type Result struct {
	Path    string `json:"path"`
	Bytes   int64  `json:"bytes"`
	Skipped bool   `json:"skipped"`
}

// ToFile downloads url into path. If path exists the download is skipped
// and Result.Skipped is set.
func ToFile(ctx context.Context, client *http.Client, url, path string, p Progress) (res Result, err error) {
	if p == nil {
		p = nopProgress{}
	}
	if client == nil {
		client = NewClient()
	}
	res.Path = path

	if _, statErr := os.Stat(path); statErr == nil {
		res.Skipped = true
		return res, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return res, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return res, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return res, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return res, &HTTPError{Status: resp.StatusCode, URL: url}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return res, ErrExists
		}
		return res, err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(path)
		}
		p.Done(err)
	}()

	total := resp.ContentLength
	p.Start(filepath.Base(path), total)

	buf := make([]byte, ChunkSize)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				return res, werr
			}
			res.Bytes += int64(n)
			p.Update(res.Bytes, total)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return res, rerr
		}
	}
	return res, nil
}

// FormatSize renders a byte count as B, KB, MB or GB.
func FormatSize(n int64) string {
	const unit = 1024
	switch {
	case n < 0:
		return "unknown size"
	case n < unit:
		return fmt.Sprintf("%d B", n)
	case n < unit*unit:
		return fmt.Sprintf("%.1f KB", float64(n)/unit)
	case n < unit*unit*unit:
		return fmt.Sprintf("%.1f MB", float64(n)/(unit*unit))
	default:
		return fmt.Sprintf("%.2f GB", float64(n)/(unit*unit*unit))
	}
}
