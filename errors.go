package netbuf

import (
	"errors"
	"fmt"
)

// Error represents a structured netbuf error with operation context.
type Error struct {
	Op    string    // Operation that failed (e.g., "Reserve", "EndFlush")
	Code  ErrorCode // High-level error category
	Msg   string    // Human-readable message
	Inner error     // Wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Op != "" {
		return fmt.Sprintf("netbuf: %s: %s", e.Op, msg)
	}
	return fmt.Sprintf("netbuf: %s", msg)
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is provides errors.Is support, comparing by Code.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// ErrorCode represents high-level error categories.
type ErrorCode string

const (
	// ErrCodeOutOfMemory is returned when Reserve cannot grow a Block or
	// header. Non-fatal: the caller may retry or drop the packet.
	ErrCodeOutOfMemory ErrorCode = "out of memory"

	// ErrCodeProtocolMisuse marks a fatal upstream bug: release of a
	// pointer not owned by any active Block, enqueue of a zero-length
	// IOV, or an EndFlush whose nflushed exceeds the bytes still pending.
	ErrCodeProtocolMisuse ErrorCode = "protocol misuse"
)

// NewError creates a new structured error.
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// WrapError wraps an existing error with netbuf operation context. If
// inner is already a structured *Error, only its Op is updated.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	if ne, ok := inner.(*Error); ok {
		return &Error{Op: op, Code: ne.Code, Msg: ne.Msg, Inner: ne.Inner}
	}
	return &Error{Op: op, Code: ErrCodeProtocolMisuse, Msg: inner.Error(), Inner: inner}
}

// IsCode reports whether err is a *Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var ne *Error
	if errors.As(err, &ne) {
		return ne.Code == code
	}
	return false
}
