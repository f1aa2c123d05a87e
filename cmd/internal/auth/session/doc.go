// Package session is the relay's in-memory session authority.
//
// A session binds one identity to one opaque, random token until its expiry.
// Logging in again while a session is live extends that session and returns the
// same token without re-checking the secret; it never rotates the token.
// Expired entries are not swept: they fail verification and are overwritten by
// the next successful login.
//
// State lives in a single process. Restarting the process logs everyone out.
package session
