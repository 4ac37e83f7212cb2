// Package errs defines the coded error type shared by the orgwarden services.
//
// Services return *Error values carrying a Code so that the HTTP layer can map
// them to transport responses. The services themselves never perform that
// mapping.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes.
const (
	EInternal     = "internal error"
	ENotFound     = "not found"
	EConflict     = "conflict" // action cannot be performed
	EInvalid      = "invalid"  // validation failed
	EUnavailable  = "unavailable"
	EForbidden    = "forbidden"
	EUnauthorized = "unauthorized"
)

// Error is a coded error.
//
// Code targets automated handlers. Msg is a human-readable description. Op
// names the operation that failed and Err chains the underlying cause.
type Error struct {
	Code string
	Msg  string
	Op   string
	Err  error
}

// Error implements the error interface by writing out the recursive messages.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	switch {
	case e.Msg != "" && e.Err != nil:
		b.WriteString(e.Msg)
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	case e.Msg != "":
		b.WriteString(e.Msg)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		b.WriteString("<" + e.Code + ">")
	}
	return b.String()
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Code returns the code of the first *Error in err's chain. Errors that carry
// no code are internal.
func Code(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Code != "" {
			return e.Code
		}
		if e.Err != nil {
			return Code(e.Err)
		}
	}
	return EInternal
}

// Message returns the human-readable message of the first *Error in err's chain.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	return err != nil && Code(err) == code
}

// NotFound returns an ENotFound error.
func NotFound(format string, args ...any) *Error {
	return &Error{Code: ENotFound, Msg: fmt.Sprintf(format, args...)}
}

// Conflict returns an EConflict error.
func Conflict(format string, args ...any) *Error {
	return &Error{Code: EConflict, Msg: fmt.Sprintf(format, args...)}
}

// Invalid returns an EInvalid error, surfaced as a bad request.
func Invalid(format string, args ...any) *Error {
	return &Error{Code: EInvalid, Msg: fmt.Sprintf(format, args...)}
}

// Forbidden returns an EForbidden error.
func Forbidden(format string, args ...any) *Error {
	return &Error{Code: EForbidden, Msg: fmt.Sprintf(format, args...)}
}

var (
	// ErrRoleAlreadyAssigned is returned when a role identifier is derived for
	// an entity that already carries one.
	ErrRoleAlreadyAssigned = &Error{
		Code: EInternal,
		Msg:  "role identifier already assigned",
	}

	// ErrUnauthenticated is returned when no principal is attached to a request.
	ErrUnauthenticated = &Error{
		Code: EUnauthorized,
		Msg:  "authentication required",
	}
)
