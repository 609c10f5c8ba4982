package project

import (
	"fmt"

	errors "github.com/Laisky/errors/v2"
)

// ErrorCode identifies a machine-stable error class.
type ErrorCode string

const (
	// ErrCodeValidation rejects input before any persistence call.
	ErrCodeValidation ErrorCode = "VALIDATION"
	// ErrCodePolicy rejects an operation locally, e.g. deleting the last file.
	ErrCodePolicy ErrorCode = "POLICY"
	// ErrCodePersistence wraps a failed collaborator call.
	ErrCodePersistence   ErrorCode = "PERSISTENCE"
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
	// ErrCodeBusy rejects a second submission while the same operation is pending.
	ErrCodeBusy ErrorCode = "BUSY"
)

// Error is a typed error with a user-facing message.
type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Err     error
}

// Error returns the user-facing message.
func (e *Error) Error() string {
	if e == nil {
		return "project error: <nil>"
	}
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Err.Error())
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewError constructs a typed error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf constructs a typed error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// PersistenceError wraps a collaborator failure for op. Typed causes keep their code.
func PersistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	if typed, ok := AsError(err); ok {
		return &Error{Code: typed.Code, Op: op, Message: typed.Message, Err: typed.Err}
	}
	return &Error{Code: ErrCodePersistence, Op: op, Message: "persistence failed", Err: err}
}

// AsError extracts a typed error from the chain.
func AsError(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed, true
	}
	return nil, false
}

// IsCode reports whether the chain carries code.
func IsCode(err error, code ErrorCode) bool {
	typed, ok := AsError(err)
	return ok && typed.Code == code
}

// CodeOf returns the code carried by err, ErrCodePersistence for untyped errors.
func CodeOf(err error) ErrorCode {
	if typed, ok := AsError(err); ok {
		return typed.Code
	}
	return ErrCodePersistence
}
