package apperr

import (
	"errors"
	"net/http"
)

// Sentinel error kinds (stable for errors.Is and for mapping to API status codes).
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidParty = errors.New("invalid_party")
	ErrNotFound     = errors.New("not_found")
	ErrInternal     = errors.New("internal_error")

	// Request/response glue kinds.
	ErrInvalidInput = errors.New("invalid_input")
	ErrConflict     = errors.New("conflict")
)

var kinds = []error{
	ErrUnauthorized,
	ErrInvalidParty,
	ErrNotFound,
	ErrInvalidInput,
	ErrConflict,
	ErrInternal,
}

// KindOf returns the sentinel kind carried by err.
// Anything outside the taxonomy is reported as ErrInternal.
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrInternal
}

// Status maps an error to the HTTP status that represents its kind.
func Status(err error) int {
	switch KindOf(err) {
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrInvalidParty, ErrInvalidInput:
		return http.StatusBadRequest
	case ErrNotFound:
		return http.StatusNotFound
	case ErrConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
