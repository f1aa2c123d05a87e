// Package apperr holds the closed set of error kinds shared by the relay's components.
package apperr

import "fmt"

// OpError is a typed operation error with a stable Op + Kind contract for callers/tests.
//   - Kind MUST be one of the sentinel kinds.
//   - Msg is safe to show to clients; do not include secrets.
//   - Err keeps the underlying cause for logs. It is not exposed through Unwrap.
type OpError struct {
	Op   string
	Kind error
	Msg  string
	Err  error
}

func (e *OpError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Msg)
}

func (e *OpError) Unwrap() error { return e.Kind }

// Cause returns the wrapped low-level failure, if any.
func (e *OpError) Cause() error { return e.Err }

func E(op string, kind error, msg string) error {
	return &OpError{Op: op, Kind: kind, Msg: msg}
}

// Internal hides cause behind ErrInternal.
func Internal(op string, cause error) error {
	return &OpError{Op: op, Kind: ErrInternal, Err: cause}
}

func Unauthorized(op string) error {
	return &OpError{Op: op, Kind: ErrUnauthorized, Msg: "invalid credentials"}
}

func NotFound(op, msg string) error {
	return &OpError{Op: op, Kind: ErrNotFound, Msg: msg}
}

func InvalidParty(op string) error {
	return &OpError{Op: op, Kind: ErrInvalidParty, Msg: "sender or recipient does not exist"}
}

func InvalidInput(op, msg string) error {
	return &OpError{Op: op, Kind: ErrInvalidInput, Msg: msg}
}

func Conflict(op, field string) error {
	return &OpError{Op: op, Kind: ErrConflict, Msg: field + " already taken"}
}
