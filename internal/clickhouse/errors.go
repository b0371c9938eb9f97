// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

package clickhouse

import (
	"encoding/json"
	"strings"
)

// ErrorKind separates the gateway failure modes.
type ErrorKind string

const (
	KindHTTP     ErrorKind = "http"     // non-2xx response
	KindConnect  ErrorKind = "connect"  // DNS, TCP or TLS failure
	KindTimeout  ErrorKind = "timeout"  // request deadline expired
	KindResponse ErrorKind = "response" // 2xx body that is not the requested format
)

// Error is returned for every failed gateway call. None are retried.
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
	Hints   []string
}

func (e *Error) Error() string { return e.Message }

// ErrorHints returns remediation hints for the CLI and MCP server.
func (e *Error) ErrorHints() []string { return e.Hints }

const maxErrorBody = 500

// exceptionMessage extracts the server's message from an error body.
// A JSON object with an "exception" field yields that field; anything else
// yields the first 500 characters.
func exceptionMessage(body string) string {
	msg := body
	if r := []rune(body); len(r) > maxErrorBody {
		msg = string(r[:maxErrorBody])
	}
	if strings.HasPrefix(body, "{") {
		var obj map[string]any
		if err := json.Unmarshal([]byte(body), &obj); err == nil {
			if exc, ok := obj["exception"].(string); ok {
				return exc
			}
		}
	}
	return msg
}

// hintsFor derives remediation hints from a server error message.
func hintsFor(msg string) []string {
	var hints []string
	if strings.Contains(msg, "Unrecognized token") && strings.Contains(msg, "!=") {
		hints = append(hints, "Use <> instead of != for not-equal comparisons in ClickHouse")
	}
	if strings.Contains(msg, "UNKNOWN_IDENTIFIER") || strings.Contains(msg, "Missing columns") {
		hints = append(hints, "Run 'describe <table>' to see available column names")
	}
	if strings.Contains(msg, "CANNOT_PARSE_TEXT") || strings.Contains(msg, "CANNOT_PARSE_INPUT") {
		hints = append(hints, "Use toInt32OrNull() or toFloat64OrNull() for columns with non-numeric values")
	}
	if strings.Contains(msg, "Array") &&
		(strings.Contains(msg, "ILLEGAL_TYPE") || strings.Contains(msg, "argument of function")) {
		hints = append(hints, "Use arrayExists() or arrayJoin() for Array(String) columns like organType, Gender, Race")
	}
	return hints
}
