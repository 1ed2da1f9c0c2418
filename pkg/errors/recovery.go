package errors

import (
	"fmt"
	"runtime/debug"
)

// RecoverPanic converts a recovered panic value into an *Error carrying the
// stack trace. It returns nil when r is nil so it can be called
// unconditionally from a deferred recover.
func RecoverPanic(r interface{}) error {
	if r == nil {
		return nil
	}

	var err error
	switch v := r.(type) {
	case error:
		err = fmt.Errorf("panic: %w", v)
	case string:
		err = fmt.Errorf("panic: %s", v)
	default:
		err = fmt.Errorf("panic: %v", v)
	}

	return ErrInternal.
		WithCause(err).
		WithDetail("panic", true).
		WithDetail("stack_trace", string(debug.Stack()))
}

func IsPanic(err error) bool {
	var appErr *Error
	if !As(err, &appErr) {
		return false
	}
	panicked, _ := appErr.Details["panic"].(bool)
	return panicked
}
