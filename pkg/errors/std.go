package errors

import "errors"

// Re-exported so callers importing this package under the name "errors"
// keep access to the standard helpers.
var (
	Is     = errors.Is
	As     = errors.As
	New    = errors.New
	Join   = errors.Join
	Unwrap = errors.Unwrap
)
