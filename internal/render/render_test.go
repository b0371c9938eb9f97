// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ncihtan/htan-claude/internal/rows"
)

func mustRows(t *testing.T, lines ...string) []*rows.Row {
	t.Helper()
	out := make([]*rows.Row, 0, len(lines))
	for _, l := range lines {
		r, err := rows.Decode([]byte(l))
		require.NoError(t, err)
		out = append(out, r)
	}
	return out
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"text", "JSON", "csv"} {
		_, err := ParseFormat(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestRowsNoResults(t *testing.T) {
	var out, errw bytes.Buffer
	r := &Renderer{Out: &out, Err: &errw}
	require.NoError(t, r.Rows(nil, Text))
	assert.Empty(t, out.String())
	assert.Equal(t, "No results.\n", errw.String())
}

func TestJSONKeepsColumnOrder(t *testing.T) {
	var out, errw bytes.Buffer
	r := &Renderer{Out: &out, Err: &errw}
	require.NoError(t, r.Rows(mustRows(t, `{"z":1,"a":"x"}`), JSON))
	assert.Equal(t, "[\n  {\n    \"z\": 1,\n    \"a\": \"x\"\n  }\n]\n", out.String())
}

func TestCSV(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, WriteCSV(&out, mustRows(t, `{"id":"HTA1","organ":["Breast","Lung"],"n":3}`)))
	assert.Equal(t, "id,organ,n\nHTA1,\"Breast, Lung\",3\n", out.String())
}

func TestTableTruncates(t *testing.T) {
	var out, errw bytes.Buffer
	r := &Renderer{Out: &out, Err: &errw, Width: 80}
	long := strings.Repeat("x", 200)
	require.NoError(t, r.Rows(mustRows(t, `{"a":"`+long+`","b":"short"}`), Text))
	assert.Contains(t, out.String(), strings.Repeat("x", 77)+"...")
	assert.NotContains(t, out.String(), long)
	assert.Equal(t, TruncationHint+"\n", errw.String())
}

func TestMaxColumnWidth(t *testing.T) {
	tests := []struct {
		width, cols, want int
	}{
		{200, 2, 100},
		{100, 3, 80},
		{200, 5, 40},
		{400, 5, 80},
		{100, 10, 20},
		{400, 10, 40},
	}
	for _, tt := range tests {
		if got := MaxColumnWidth(tt.width, tt.cols); got != tt.want {
			t.Errorf("MaxColumnWidth(%d, %d) = %d, want %d", tt.width, tt.cols, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	got, cut := Truncate("abcdefghij", 6)
	assert.True(t, cut)
	assert.Equal(t, "abc...", got)
	got, cut = Truncate("abc", 6)
	assert.False(t, cut)
	assert.Equal(t, "abc", got)
}
