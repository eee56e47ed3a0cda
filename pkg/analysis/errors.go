// Package analysis recovers a structured model of a class component: its
// fields, state cells, props, refs, callbacks and lifecycle effects, with
// every read and write site. All passes are read-only over the syntax tree.
package analysis

import (
	"errors"
	"fmt"

	ts "github.com/tree-sitter/go-tree-sitter"
)

// Error is a recoverable analysis failure: the class uses a construct that
// cannot be proven safe to rewrite. The caller disables the transformation
// for that class and keeps going.
type Error struct {
	Message string
	// Line is the 1-based line of the offending node, or 0.
	Line int
}

func (e *Error) Error() string {
	return e.Message
}

// fail creates an analysis error located at node.
func fail(node *ts.Node, format string, args ...any) *Error {
	e := &Error{Message: fmt.Sprintf(format, args...)}
	if node != nil {
		e.Line = int(node.StartPosition().Row) + 1
	}
	return e
}

// AsError extracts an analysis error from err.
func AsError(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// InternalError is the panic value for broken invariants of the analysis
// or rewrite code itself. It is never turned into a disable comment.
type InternalError struct {
	Message string
}

func (e InternalError) String() string {
	return "internal error: " + e.Message
}

func internalf(format string, args ...any) InternalError {
	return InternalError{Message: fmt.Sprintf(format, args...)}
}
