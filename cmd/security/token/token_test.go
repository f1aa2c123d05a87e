package token

import (
	"errors"
	"testing"
)

func TestNew_UniqueAndSized(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{}, 256)
	for i := 0; i < 256; i++ {
		tok, err := New(32)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if len(tok) != 43 {
			t.Fatalf("len=%d want 43", len(tok))
		}
		if _, dup := seen[tok]; dup {
			t.Fatalf("duplicate token %q", tok)
		}
		seen[tok] = struct{}{}
	}
}

func TestNew_RejectsSize(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, MinBytes - 1, MaxBytes + 1} {
		if _, err := New(n); !errors.Is(err, ErrTokenSize) {
			t.Fatalf("New(%d) err=%v want ErrTokenSize", n, err)
		}
	}
}

func TestEqual(t *testing.T) {
	t.Parallel()

	if !Equal("abc", "abc") {
		t.Fatalf("equal tokens reported different")
	}
	if Equal("abc", "abd") || Equal("abc", "abcd") || Equal("", "x") {
		t.Fatalf("different tokens reported equal")
	}
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	plain := Fingerprint("tok", nil)
	if len(plain) != fingerprintLen || plain != HashSHA256Hex("tok")[:fingerprintLen] {
		t.Fatalf("plain fingerprint=%q", plain)
	}
	keyed := Fingerprint("tok", []byte("0123456789abcdef0123456789abcdef"))
	if keyed == plain || len(keyed) != fingerprintLen {
		t.Fatalf("keyed fingerprint=%q plain=%q", keyed, plain)
	}
	if Fingerprint("", nil) != "" {
		t.Fatalf("empty token must have empty fingerprint")
	}
}

func TestHMACKeyFromEnv(t *testing.T) {
	t.Setenv(HMACEnvKey, "")
	if k, err := HMACKeyFromEnv(32); err != nil || k != nil {
		t.Fatalf("unset: key=%v err=%v", k, err)
	}

	t.Setenv(HMACEnvKey, "short")
	if _, err := HMACKeyFromEnv(32); !errors.Is(err, ErrHMACKeyTooShort) {
		t.Fatalf("short: err=%v", err)
	}

	t.Setenv(HMACEnvKey, "  0123456789abcdef0123456789abcdef  ")
	k, err := HMACKeyFromEnv(32)
	if err != nil || string(k) != "0123456789abcdef0123456789abcdef" {
		t.Fatalf("set: key=%q err=%v", k, err)
	}
}
