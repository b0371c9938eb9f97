// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package rows holds the result shape shared by the portal and BigQuery
// clients: an ordered string-keyed mapping whose values are JSON values.
//
// Numbers are kept as json.Number so large counts and IDs survive without
// float rounding. Nested arrays and objects decode to []any and
// map[string]any.
package rows

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Row is one result row with columns in server order.
type Row struct {
	keys   []string
	values map[string]any
}

// New returns an empty row.
func New() *Row {
	return &Row{values: map[string]any{}}
}

// Set assigns a column, appending it if new.
func (r *Row) Set(key string, v any) {
	if r.values == nil {
		r.values = map[string]any{}
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = v
}

// Get returns the value for key.
func (r *Row) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Keys returns the column names in order.
func (r *Row) Keys() []string {
	return append([]string(nil), r.keys...)
}

// Len returns the number of columns.
func (r *Row) Len() int { return len(r.keys) }

// String returns the value for key as text: strings as-is, null and missing
// as "", numbers in their JSON form, arrays joined with ", ".
func (r *Row) String(key string) string {
	v, ok := r.values[key]
	if !ok {
		return ""
	}
	return Format(v)
}

// Int returns an integer column, or false when missing or non-numeric.
// ClickHouse quotes 64-bit integers in JSON, so numeric strings are accepted.
func (r *Row) Int(key string) (int64, bool) {
	switch v := r.values[key].(type) {
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		n, err := json.Number(v).Int64()
		return n, err == nil
	default:
		return 0, false
	}
}

// Format renders a JSON value as display text.
func Format(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = Format(e)
		}
		return strings.Join(parts, ", ")
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// MarshalJSON writes the row as an object with keys in column order.
func (r *Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, keeping key order.
func (r *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("row: expected JSON object")
	}

	r.keys = nil
	r.values = map[string]any{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("row: expected string key")
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return err
		}
		r.Set(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// Decode parses a single JSON object line.
func Decode(line []byte) (*Row, error) {
	r := New()
	if err := json.Unmarshal(line, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Columns returns the column order of the first row, or nil.
func Columns(rs []*Row) []string {
	if len(rs) == 0 {
		return nil
	}
	return rs[0].Keys()
}
