package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = NewError("NOT_FOUND", "resource not found")
	ErrConflict    = NewError("CONFLICT", "resource conflict")
	ErrDecode      = NewError("DECODE_ERROR", "message could not be decoded")
	ErrInvalidRule = NewError("INVALID_RULE", "rule tree is malformed")
	ErrInternal    = NewError("INTERNAL_ERROR", "internal error")
	ErrUnavailable = NewError("UNAVAILABLE", "dependency unavailable")
	ErrTimeout     = NewError("TIMEOUT", "operation timed out")
)

// Error is the application error shared by the worker packages. Values are
// treated as templates: the With* helpers return modified copies.
type Error struct {
	Code    string
	Message string
	Details map[string]interface{}
	Cause   error
}

func NewError(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

func (e *Error) Error() string {
	msg := e.Message
	if detailMsg, ok := e.Details["message"].(string); ok && detailMsg != "" {
		msg = detailMsg
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on Code so that a copy produced by WithCause or WithDetail
// still satisfies errors.Is against the package-level template.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

func (e *Error) WithCause(cause error) *Error {
	err := *e
	err.Cause = cause
	err.Details = copyDetails(e.Details)
	return &err
}

func (e *Error) WithDetail(key string, value interface{}) *Error {
	err := *e
	err.Details = copyDetails(e.Details)
	err.Details[key] = value
	return &err
}

func (e *Error) WithMessage(format string, args ...interface{}) *Error {
	return e.WithDetail("message", fmt.Sprintf(format, args...))
}

func copyDetails(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}

func Wrap(err error, appErr *Error) *Error {
	if err == nil {
		return nil
	}
	return appErr.WithCause(err)
}

func CodeOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

func IsNotFound(err error) bool {
	return CodeOf(err) == ErrNotFound.Code
}

func IsConflict(err error) bool {
	return CodeOf(err) == ErrConflict.Code
}

func IsDecode(err error) bool {
	return CodeOf(err) == ErrDecode.Code
}
