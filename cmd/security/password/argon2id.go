package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

var b64 = base64.RawStdEncoding

// argon2idHash is a decoded $argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt>$<key> string.
type argon2idHash struct {
	params Argon2idParams
	salt   []byte
	key    []byte
}

func (h argon2idHash) String() string {
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.MemoryKiB,
		h.params.Iterations,
		h.params.Parallelism,
		b64.EncodeToString(h.salt),
		b64.EncodeToString(h.key),
	)
}

func hashArgon2id(password string, p Argon2idParams) (string, error) {
	salt := make([]byte, p.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}

	h := argon2idHash{
		params: p,
		salt:   salt,
		key:    argon2.IDKey([]byte(password), salt, p.Iterations, p.MemoryKiB, p.Parallelism, p.KeyLength),
	}
	return h.String(), nil
}

func verifyArgon2id(encoded, password string, limits Argon2idParams) (bool, error) {
	h, err := parseArgon2id(encoded)
	if err != nil {
		return false, err
	}
	// Hash strings are untrusted input; refuse parameters far above our own.
	if !h.params.within(limits) {
		return false, ErrInvalidHash
	}

	got := argon2.IDKey(
		[]byte(password),
		h.salt,
		h.params.Iterations,
		h.params.MemoryKiB,
		h.params.Parallelism,
		h.params.KeyLength,
	)
	return subtle.ConstantTimeCompare(got, h.key) == 1, nil
}

func parseArgon2id(encoded string) (argon2idHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return argon2idHash{}, ErrInvalidHash
	}
	if parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return argon2idHash{}, ErrInvalidHash
	}

	var mem, iter, par uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iter, &par); err != nil {
		return argon2idHash{}, ErrInvalidHash
	}
	if mem == 0 || iter == 0 || par == 0 || par > 255 {
		return argon2idHash{}, ErrInvalidHash
	}

	salt, err := b64.DecodeString(parts[4])
	if err != nil {
		return argon2idHash{}, ErrInvalidHash
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil {
		return argon2idHash{}, ErrInvalidHash
	}

	return argon2idHash{
		params: Argon2idParams{
			MemoryKiB:   mem,
			Iterations:  iter,
			Parallelism: uint8(par),        // #nosec G115 -- bounded above.
			SaltLength:  uint32(len(salt)), // #nosec G115 -- base64 segment length.
			KeyLength:   uint32(len(key)),  // #nosec G115 -- base64 segment length.
		},
		salt: salt,
		key:  key,
	}, nil
}

// within allows older or smaller settings but rejects anything more than twice our own cost.
func (p Argon2idParams) within(limits Argon2idParams) bool {
	switch {
	case p.MemoryKiB > limits.MemoryKiB*2,
		p.Iterations > limits.Iterations*2,
		p.Parallelism > limits.Parallelism*2:
		return false
	case p.SaltLength < 8 || p.SaltLength > 64:
		return false
	case p.KeyLength < 16 || p.KeyLength > 128:
		return false
	}
	return true
}
