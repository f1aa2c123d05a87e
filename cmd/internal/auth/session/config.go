package session

import (
	"os"
	"strconv"
	"time"

	"github.com/grebenindmitry/babilado-backend/cmd/security/token"
)

type Config struct {
	// Window is how far past "now" a create or extend moves the expiry.
	Window time.Duration

	// TokenBytes is the number of random bytes behind each token.
	TokenBytes int

	// FingerprintKey keys the token digests written to logs. Empty means SHA-256.
	FingerprintKey string
}

func DefaultConfig() Config {
	return Config{
		Window:     30 * 24 * time.Hour,
		TokenBytes: 32,
	}
}

// LoadConfigFromEnv reads:
//   - BABILADO_SESSION_WINDOW (Go duration, > 0)
//   - BABILADO_SESSION_TOKEN_BYTES (16..64)
//   - BABILADO_TOKEN_HMAC_KEY (optional, >= 32 bytes)
//
// Returns ErrConfig if a value is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("BABILADO_SESSION_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.Window = d
	}

	if v := os.Getenv("BABILADO_SESSION_TOKEN_BYTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < token.MinBytes || n > token.MaxBytes {
			return Config{}, ErrConfig
		}
		cfg.TokenBytes = n
	}

	key, err := token.HMACKeyFromEnv(32)
	if err != nil {
		return Config{}, ErrConfig
	}
	cfg.FingerprintKey = string(key)

	return cfg, nil
}
