// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

package bigquery

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Grouped renders n with thousands separators.
func Grouped[T ~int | ~int64 | ~uint64](n T) string {
	return printer.Sprintf("%d", n)
}

// FormatBytes renders a dry-run estimate in decimal GB or MB, falling back
// to a grouped byte count.
func FormatBytes(n int64) string {
	switch {
	case n > 1_000_000_000:
		return fmt.Sprintf("%.2f GB", float64(n)/1_000_000_000)
	case n > 1_000_000:
		return fmt.Sprintf("%.1f MB", float64(n)/1_000_000)
	default:
		return Grouped(n) + " bytes"
	}
}

// FormatSchema renders a table description as fixed-width text.
func FormatSchema(info *TableInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Table: %s\n", info.Table)
	fmt.Fprintf(&b, "Rows: %s\n", Grouped(info.NumRows))
	fmt.Fprintf(&b, "Size: %s bytes\n", Grouped(info.NumBytes))
	if info.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", info.Description)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%-40s %-15s %-10s %s\n", "Column", "Type", "Mode", "Description")
	fmt.Fprintf(&b, "%s %s %s %s\n", strings.Repeat("-", 40), strings.Repeat("-", 15), strings.Repeat("-", 10), strings.Repeat("-", 30))
	for _, f := range info.Schema {
		desc := f.Description
		if r := []rune(desc); len(r) > 50 {
			desc = string(r[:47]) + "..."
		}
		fmt.Fprintf(&b, "%-40s %-15s %-10s %s\n", f.Name, f.Type, f.Mode, desc)
	}
	return b.String()
}
