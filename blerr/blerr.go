// Package blerr defines the error taxonomy shared by every blessbuf
// package: POSIX codes reused where their meaning matches, plus a small
// negative range reserved for library-specific conditions.
package blerr

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Code is an error code. Non-negative values are POSIX errno values from
// the host platform; negative values are library-specific.
type Code int

// POSIX codes reused verbatim from the host platform.
const (
	EINVAL    Code = Code(unix.EINVAL)
	EOVERFLOW Code = Code(unix.EOVERFLOW)
	EBADF     Code = Code(unix.EBADF)
	ENOSPC    Code = Code(unix.ENOSPC)
	ENOMEM    Code = Code(unix.ENOMEM)
	EIO       Code = Code(unix.EIO)
)

// Library-specific codes occupy a small negative range.
const (
	// ErrNotImplemented marks a code path reserved for future growth.
	ErrNotImplemented Code = -1
	// ErrCanceled marks an operation unwound because a caller-supplied
	// progress callback requested cancellation.
	ErrCanceled Code = -2
)

// Error pairs a Code with a human-readable message and an optional
// wrapped cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return Strerror(e.Code)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether err carries the given Code, unwrapping as needed.
func Is(err error, code Code) bool {
	var be *Error
	for err != nil {
		if e, ok := err.(*Error); ok {
			be = e
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return be != nil && be.Code == code
}

// New builds an *Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error that carries cause as its Unwrap target.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

var appSpecific = map[Code]string{
	ErrNotImplemented: "Not implemented",
	ErrCanceled:       "Operation canceled",
}

// Strerror returns the platform message for positive (POSIX) codes and a
// built-in message for negative (library-specific) codes.
func Strerror(code Code) string {
	if code < 0 {
		if msg, ok := appSpecific[code]; ok {
			return msg
		}
		return "Unknown error"
	}
	return unix.Errno(code).Error()
}
