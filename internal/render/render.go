// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package render writes result rows as an aligned text table, JSON or CSV.
package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/pterm/pterm"

	"github.com/ncihtan/htan-claude/internal/rows"
	"github.com/ncihtan/htan-claude/internal/terminal"
)

// Format is an output format name.
type Format string

const (
	Text Format = "text"
	JSON Format = "json"
	CSV  Format = "csv"
)

// TruncationHint is printed when a text table cell was shortened.
const TruncationHint = "Hint: Some values were truncated. Use --output json for full values."

// ParseFormat validates a --output value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case Text, JSON, CSV:
		return f, nil
	}
	return "", fmt.Errorf("invalid output format %q (choose text, json or csv)", s)
}

// Renderer writes data to Out and notes to Err.
type Renderer struct {
	Out   io.Writer
	Err   io.Writer
	Width int // terminal width; 0 means detect
}

// Rows writes rs in format f. No rows prints "No results." to Err.
func (r *Renderer) Rows(rs []*rows.Row, f Format) error {
	if len(rs) == 0 {
		fmt.Fprintln(r.Err, "No results.")
		return nil
	}
	switch f {
	case JSON:
		return WriteJSON(r.Out, rs)
	case CSV:
		return WriteCSV(r.Out, rs)
	default:
		table, truncated, err := r.Table(rs)
		if err != nil {
			return err
		}
		fmt.Fprintln(r.Out, table)
		if truncated {
			fmt.Fprintln(r.Err, TruncationHint)
		}
		return nil
	}
}

// Table renders rs as an aligned table. Columns come from the first row.
// It reports whether any cell was truncated.
func (r *Renderer) Table(rs []*rows.Row) (string, bool, error) {
	if len(rs) == 0 {
		return "", false, nil
	}
	cols := rows.Columns(rs)
	width := r.Width
	if width <= 0 {
		width = terminal.Width()
	}
	maxw := MaxColumnWidth(width, len(cols))

	truncated := false
	data := make([][]string, 0, len(rs)+1)
	data = append(data, cols)
	for _, row := range rs {
		line := make([]string, len(cols))
		for i, col := range cols {
			cell, cut := Truncate(row.String(col), maxw)
			truncated = truncated || cut
			line[i] = cell
		}
		data = append(data, line)
	}

	out, err := pterm.DefaultTable.
		WithHasHeader().
		WithSeparator("  ").
		WithData(data).
		Srender()
	if err != nil {
		return "", false, err
	}
	return out, truncated, nil
}

// MaxColumnWidth caps a column by terminal width and column count.
func MaxColumnWidth(termWidth, ncols int) int {
	if ncols < 1 {
		ncols = 1
	}
	switch {
	case ncols <= 3:
		return max(termWidth/2, 80)
	case ncols <= 6:
		return max(termWidth/ncols, 40)
	default:
		return max(termWidth/ncols, 20)
	}
}

// Truncate shortens s to width runes, ending in "...".
func Truncate(s string, width int) (string, bool) {
	if width < 4 || utf8.RuneCountInString(s) <= width {
		return s, false
	}
	r := []rune(s)
	return string(r[:width-3]) + "...", true
}

// WriteJSON writes v as indented JSON followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// WriteCSV writes a header and one record per row.
func WriteCSV(w io.Writer, rs []*rows.Row) error {
	cols := rows.Columns(rs)
	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return err
	}
	for _, row := range rs {
		rec := make([]string, len(cols))
		for i, col := range cols {
			rec[i] = row.String(col)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
