// Package apperr defines the typed error kinds observable across the
// ingestion, importer, and query layers (spec section "ERROR HANDLING
// DESIGN"). Call sites wrap a cause with a Kind so the HTTP shell can map
// errors to status codes without string matching, and tests can assert on
// errors.Is/errors.As instead of substring checks.
package apperr

import "fmt"

// Kind is a comparable sentinel identifying the class of failure.
type Kind string

const (
	KindConfig          Kind = "config"           // unreadable/invalid manifest; fatal at startup
	KindSchema          Kind = "schema"           // DDL failure; fatal at startup
	KindIO              Kind = "io"               // file missing/unreadable
	KindParse           Kind = "parse"            // malformed XML/CSV/GPX
	KindDB              Kind = "db"               // query or transaction failure
	KindNotFound        Kind = "not_found"        // unknown table, session, job id, ecg id
	KindInvalidArgument Kind = "invalid_argument" // unknown bucket, malformed date, bad sort column
)

// Error carries a Kind alongside a human-readable message and optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, apperr.ErrNotFound) style kind comparisons: any
// *Error target matches when its Kind equals e.Kind, whatever its message
// or cause.
func (e *Error) Is(target error) bool {
	if k, ok := target.(*Error); ok {
		return e.Kind == k.Kind
	}
	return false
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Sentinel zero-cause errors usable with errors.Is(err, apperr.ErrNotFound).
var (
	ErrNotFound        = &Error{Kind: KindNotFound, Message: "not found"}
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument, Message: "invalid argument"}
)
