// Package token generates and compares opaque bearer tokens.
//
// Tokens are crypto/rand bytes encoded as URL-safe base64 without padding.
// Fingerprint gives a short, non-reversible digest for log lines so raw
// tokens never reach the logs. With BABILADO_TOKEN_HMAC_KEY set the digest
// is keyed (HMAC-SHA256); otherwise it is plain SHA-256.
package token
