package token

import "errors"

// Public, stable errors for callers.
var (
	ErrTokenSize       = errors.New("token size out of range")
	ErrHMACKeyTooShort = errors.New("token HMAC key too short")
)
