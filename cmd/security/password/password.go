package password

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

type scheme int

const (
	schemeUnknown scheme = iota
	schemeArgon2id
	schemeBcrypt
)

func schemeOf(encoded string) scheme {
	switch {
	case strings.HasPrefix(encoded, "$argon2id$"):
		return schemeArgon2id
	case strings.HasPrefix(encoded, "$2a$"),
		strings.HasPrefix(encoded, "$2b$"),
		strings.HasPrefix(encoded, "$2y$"):
		return schemeBcrypt
	default:
		return schemeUnknown
	}
}

// Hash validates password against the policy and returns an Argon2id encoded hash.
func (c Config) Hash(password string) (string, error) {
	if err := c.Validate(password); err != nil {
		return "", err
	}
	return hashArgon2id(password, c.Params)
}

// Verify checks password against encodedHash.
// Returns (true, nil) for a match, (false, nil) for a mismatch and
// (false, ErrInvalidHash) for malformed or unsupported hashes.
func (c Config) Verify(encodedHash, password string) (bool, error) {
	switch schemeOf(encodedHash) {
	case schemeArgon2id:
		return verifyArgon2id(encodedHash, password, c.Params)
	case schemeBcrypt:
		err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, ErrInvalidHash
		}
	default:
		return false, ErrInvalidHash
	}
}

// NeedsRehash reports whether encodedHash was produced by another scheme or
// with weaker Argon2id parameters than c.
func (c Config) NeedsRehash(encodedHash string) bool {
	if schemeOf(encodedHash) != schemeArgon2id {
		return true
	}
	h, err := parseArgon2id(encodedHash)
	if err != nil {
		return true
	}
	return h.params.MemoryKiB < c.Params.MemoryKiB ||
		h.params.Iterations < c.Params.Iterations ||
		h.params.KeyLength < c.Params.KeyLength
}
