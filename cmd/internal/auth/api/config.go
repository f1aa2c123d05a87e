package authapi

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls HTTP API limits and login throttling.
type Config struct {
	MaxBodyBytes int64
	TrustProxy   bool

	LoginIPMax    int
	LoginIPWindow time.Duration

	// LoginUserWindow is how long failed logins per username are remembered.
	LoginUserWindow time.Duration

	LockoutShortThreshold  int
	LockoutShortDuration   time.Duration
	LockoutLongThreshold   int
	LockoutLongDuration    time.Duration
	LockoutSevereThreshold int
	LockoutSevereDuration  time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxBodyBytes:           1 << 20,
		LoginIPMax:             20,
		LoginIPWindow:          5 * time.Minute,
		LoginUserWindow:        2 * time.Hour,
		LockoutShortThreshold:  5,
		LockoutShortDuration:   5 * time.Minute,
		LockoutLongThreshold:   10,
		LockoutLongDuration:    30 * time.Minute,
		LockoutSevereThreshold: 20,
		LockoutSevereDuration:  2 * time.Hour,
	}
}

// LoadConfigFromEnv loads API config from BABILADO_API_* with safe defaults.
func LoadConfigFromEnv() Config {
	d := DefaultConfig()
	cfg := Config{
		MaxBodyBytes:           envInt64("BABILADO_API_MAX_BODY_BYTES", d.MaxBodyBytes),
		TrustProxy:             envBool("BABILADO_API_TRUST_PROXY", false),
		LoginIPMax:             envInt("BABILADO_API_LOGIN_IP_MAX", d.LoginIPMax),
		LoginIPWindow:          envDuration("BABILADO_API_LOGIN_IP_WINDOW", d.LoginIPWindow),
		LoginUserWindow:        envDuration("BABILADO_API_LOGIN_USER_WINDOW", d.LoginUserWindow),
		LockoutShortThreshold:  envInt("BABILADO_API_LOCKOUT_SHORT_THRESHOLD", d.LockoutShortThreshold),
		LockoutShortDuration:   envDuration("BABILADO_API_LOCKOUT_SHORT_DURATION", d.LockoutShortDuration),
		LockoutLongThreshold:   envInt("BABILADO_API_LOCKOUT_LONG_THRESHOLD", d.LockoutLongThreshold),
		LockoutLongDuration:    envDuration("BABILADO_API_LOCKOUT_LONG_DURATION", d.LockoutLongDuration),
		LockoutSevereThreshold: envInt("BABILADO_API_LOCKOUT_SEVERE_THRESHOLD", d.LockoutSevereThreshold),
		LockoutSevereDuration:  envDuration("BABILADO_API_LOCKOUT_SEVERE_DURATION", d.LockoutSevereDuration),
	}

	// A lockout must never outlive the memory of the failures that caused it.
	for _, dur := range []time.Duration{cfg.LockoutShortDuration, cfg.LockoutLongDuration, cfg.LockoutSevereDuration} {
		if dur > cfg.LoginUserWindow {
			cfg.LoginUserWindow = dur
		}
	}
	return cfg
}

func (c Config) lockoutTiers() []lockoutTier {
	return []lockoutTier{
		{Threshold: c.LockoutSevereThreshold, Duration: c.LockoutSevereDuration},
		{Threshold: c.LockoutLongThreshold, Duration: c.LockoutLongDuration},
		{Threshold: c.LockoutShortThreshold, Duration: c.LockoutShortDuration},
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
