package apierr

import (
	"errors"
	"fmt"
)

// Stable error codes surfaced to HTTP handlers and logs.
const (
	CodeFetchFailed       = "fetch_failed"
	CodeUnsupportedFormat = "unsupported_format"
	CodeEmbeddingFailed   = "embedding_failed"
	CodeNotFound          = "not_found"
	CodeInvalidArgument   = "invalid_argument"
	CodeInternal          = "internal"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func Newf(status int, code string, format string, args ...any) *Error {
	return &Error{Status: status, Code: code, Err: fmt.Errorf(format, args...)}
}

// CodeOf extracts the code from an *Error anywhere in the chain.
func CodeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

func IsCode(err error, code string) bool {
	return CodeOf(err) == code
}
