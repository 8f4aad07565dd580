package adapter

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotConnected       = errors.New("not connected to database")
	ErrCancelled          = errors.New("query cancelled")
	ErrNoDatabaseSelected = errors.New("no database selected")
	ErrDestroyed          = errors.New("connection closed")
)

// QueryError is a statement failure reported by the backend.
type QueryError struct {
	Message string
	Code    string
	// Position is the 1-based character offset of the error in the query,
	// 0 when the backend gave none.
	Position int
	// Line is the 1-based line hint, 0 when the backend gave none.
	Line   int
	Detail string
	Where  string
	Err    error
}

func (e *QueryError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Code != "" {
		fmt.Fprintf(&b, " (%s)", e.Code)
	}
	if e.Position > 0 {
		fmt.Fprintf(&b, " at position %d", e.Position)
	}
	if e.Detail != "" {
		b.WriteString("\n")
		b.WriteString(e.Detail)
	}
	if e.Where != "" {
		b.WriteString("\n")
		b.WriteString(e.Where)
	}
	return b.String()
}

func (e *QueryError) Unwrap() error { return e.Err }

// ConnectError is a failure to open a manager: network, auth, or a bad
// driver configuration.
type ConnectError struct {
	Adapter  string
	Identity string
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("%s connect %s: %v", e.Adapter, e.Identity, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// UnsupportedProtocolError is returned for URL schemes no adapter handles.
type UnsupportedProtocolError struct {
	Scheme     string
	Suggestion string
}

func (e *UnsupportedProtocolError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("unsupported protocol %q (did you mean %q?)", e.Scheme, e.Suggestion)
	}
	return fmt.Sprintf("unsupported protocol %q", e.Scheme)
}
