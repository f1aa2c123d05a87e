package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"os"
	"strings"
)

const (
	// HMACEnvKey is the env var name for the fingerprint HMAC secret.
	// #nosec G101 -- not a credential; it's an environment variable name.
	HMACEnvKey = "BABILADO_TOKEN_HMAC_KEY"

	MinBytes = 16
	MaxBytes = 64

	fingerprintLen = 12
)

// New returns nBytes of crypto/rand entropy as URL-safe base64 without padding.
func New(nBytes int) (string, error) {
	if nBytes < MinBytes || nBytes > MaxBytes {
		return "", ErrTokenSize
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Equal compares two tokens in constant time.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// HashSHA256Hex returns a SHA-256 hex digest of s.
func HashSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashHMACSHA256Hex returns an HMAC-SHA256 hex digest of s using key.
func HashHMACSHA256Hex(s string, key []byte) string {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(s))
	return hex.EncodeToString(m.Sum(nil))
}

// HMACKeyFromEnv returns the configured key, or nil when unset. Keys shorter
// than minBytes are rejected.
func HMACKeyFromEnv(minBytes int) ([]byte, error) {
	raw := strings.TrimSpace(os.Getenv(HMACEnvKey))
	if raw == "" {
		return nil, nil
	}
	if minBytes > 0 && len(raw) < minBytes {
		return nil, ErrHMACKeyTooShort
	}
	return []byte(raw), nil
}

// Fingerprint returns a short digest of tok suitable for logs.
// A nil key falls back to SHA-256.
func Fingerprint(tok string, key []byte) string {
	if tok == "" {
		return ""
	}
	var sum string
	if len(key) > 0 {
		sum = HashHMACSHA256Hex(tok, key)
	} else {
		sum = HashSHA256Hex(tok)
	}
	return sum[:fingerprintLen]
}
