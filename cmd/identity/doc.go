// Package identity is the relay's user directory and credential verifier.
//
// Stores create and look up users and answer CheckPassword(identity, secret).
// An unknown identity is a mismatch, not an error; errors are reserved for
// store failures so the session layer can report them as internal.
package identity
