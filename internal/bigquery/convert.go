// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

package bigquery

import (
	"encoding/json"

	bq "google.golang.org/api/bigquery/v2"

	"github.com/ncihtan/htan-claude/internal/rows"
)

// convertRows maps the API's positional cells onto ordered rows.
func convertRows(schema *bq.TableSchema, in []*bq.TableRow) []*rows.Row {
	if schema == nil {
		return nil
	}
	out := make([]*rows.Row, 0, len(in))
	for _, tr := range in {
		out = append(out, convertRecord(schema.Fields, tr.F))
	}
	return out
}

func convertRecord(fields []*bq.TableFieldSchema, cells []*bq.TableCell) *rows.Row {
	r := rows.New()
	for i, f := range fields {
		var v any
		if i < len(cells) && cells[i] != nil {
			v = convertCell(f, cells[i].V)
		}
		r.Set(f.Name, v)
	}
	return r
}

func convertCell(f *bq.TableFieldSchema, v any) any {
	if v == nil {
		return nil
	}
	if f.Mode == "REPEATED" {
		elem := *f
		elem.Mode = ""
		list, _ := v.([]any)
		out := make([]any, 0, len(list))
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				out = append(out, convertCell(&elem, m["v"]))
			}
		}
		return out
	}

	switch f.Type {
	case "RECORD", "STRUCT":
		m, ok := v.(map[string]any)
		if !ok {
			return v
		}
		raw, _ := m["f"].([]any)
		cells := make([]*bq.TableCell, 0, len(raw))
		for _, c := range raw {
			if cm, ok := c.(map[string]any); ok {
				cells = append(cells, &bq.TableCell{V: cm["v"]})
			}
		}
		return convertRecord(f.Fields, cells)
	case "INTEGER", "INT64", "FLOAT", "FLOAT64", "NUMERIC", "BIGNUMERIC":
		if s, ok := v.(string); ok {
			return json.Number(s)
		}
	case "BOOLEAN", "BOOL":
		if s, ok := v.(string); ok {
			return s == "true"
		}
	}
	return v
}
