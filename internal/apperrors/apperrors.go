// Package apperrors is the error taxonomy shared by the store, the remote
// client, the fetch coordinator, and the HTTP API (§7 of the spec): each
// layer returns one of these, and the HTTP layer maps Code to a fixed
// status without ever leaking internals to the client.
package apperrors

import "net/http"

// Code is a machine-readable error category.
type Code string

const (
	CodeConfig     Code = "config_error"
	CodeRemote     Code = "remote_error"
	CodeStore      Code = "store_error"
	CodeValidation Code = "validation_error"
	CodeFetchBusy  Code = "fetch_busy"
	CodeInternal   Code = "internal_error"
)

// HTTPStatus maps a Code to the status the HTTP API must answer with.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeConfig, CodeValidation:
		return http.StatusBadRequest
	case CodeFetchBusy:
		return http.StatusConflict
	case CodeRemote, CodeStore, CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Error is the concrete error type every component in this module returns.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error with no wrapped cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap builds an Error that carries an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// As extracts an *Error from any error value, synthesizing an internal one
// for errors that didn't originate in this package.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return &Error{Code: CodeInternal, Message: "internal error", Cause: err}
}
