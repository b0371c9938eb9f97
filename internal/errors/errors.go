// Package errors defines typed errors with categories for user-friendly reporting.
// Every error carries a machine-readable Kind, a human message, and optional
// remediation hints that the CLI prints as "Hint:" lines and the MCP server
// returns as a "hints" array.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// InvalidInput marks malformed IDs, unsafe SQL, or bad table names.
	// These are detected before any network call.
	InvalidInput Kind = "invalid_input"
	// ConfigMissing marks absent or unusable credentials.
	ConfigMissing Kind = "config_missing"
	// Transport marks connection failures and timeouts.
	Transport Kind = "transport"
	// Server marks non-2xx responses from an upstream service.
	Server Kind = "server"
	// NotFound marks lookups that matched nothing.
	NotFound Kind = "not_found"
)

// E wraps an error with kind, human-friendly message and hints.
type E struct {
	Kind    Kind
	Message string
	Err     error
	Hints   []string
}

func (e *E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *E) Unwrap() error { return e.Err }

// WithHint appends a remediation hint and returns e for chaining.
func (e *E) WithHint(hint string) *E {
	e.Hints = append(e.Hints, hint)
	return e
}

func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }
func New(kind Kind, msg string) *E             { return &E{Kind: kind, Message: msg} }

// Newf formats the message.
func Newf(kind Kind, format string, args ...any) *E {
	return &E{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Hinter is implemented by errors that carry remediation hints.
type Hinter interface {
	ErrorHints() []string
}

func (e *E) ErrorHints() []string { return e.Hints }

// HintsOf collects hints from the first error in the chain that has any.
func HintsOf(err error) []string {
	var h Hinter
	if stderrors.As(err, &h) {
		return h.ErrorHints()
	}
	return nil
}

// KindOf returns the Kind of the first *E in the chain, or "".
func KindOf(err error) Kind {
	var e *E
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}
