package app

import (
	"errors"
	"time"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	// WriteTimeout stays 0 by default: it would cut long-lived websocket connections.
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MaxHeaderBytes  int
	ShutdownTimeout time.Duration

	// DatabaseURL empty selects in-memory stores.
	DatabaseURL   string
	DBMaxConns    int32
	DBMinConns    int32
	DBSchema      string
	DBApplySchema bool

	// If true, /readyz returns 503 unless a database is configured and reachable.
	ReadinessRequireDB bool

	MetricsEnabled bool

	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("BABILADO_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("BABILADO_LOG_LEVEL", "info"),
		LogFormat: EnvString("BABILADO_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("BABILADO_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("BABILADO_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("BABILADO_HTTP_WRITE_TIMEOUT", 0),
		IdleTimeout:       EnvDuration("BABILADO_HTTP_IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    EnvInt("BABILADO_HTTP_MAX_HEADER_BYTES", 1<<20),
		ShutdownTimeout:   EnvDuration("BABILADO_SHUTDOWN_TIMEOUT", 10*time.Second),

		DatabaseURL:   EnvString("BABILADO_DATABASE_URL", ""),
		DBMaxConns:    EnvInt32("BABILADO_DB_MAX_CONNS", 10),
		DBMinConns:    EnvInt32("BABILADO_DB_MIN_CONNS", 0),
		DBSchema:      EnvString("BABILADO_DB_SCHEMA", "public"),
		DBApplySchema: EnvBool("BABILADO_DB_APPLY_SCHEMA", true),

		ReadinessRequireDB: EnvBool("BABILADO_READINESS_REQUIRE_DB", false),
		MetricsEnabled:     EnvBool("BABILADO_METRICS_ENABLED", true),

		CORSAllowedOrigins:   EnvCSV("BABILADO_CORS_ALLOWED_ORIGINS"),
		CORSAllowCredentials: EnvBool("BABILADO_CORS_ALLOW_CREDENTIALS", false),
		CORSMaxAgeSeconds:    EnvInt("BABILADO_CORS_MAX_AGE_SECONDS", 600),
	}
}

// Validate rejects combinations the server cannot run with.
func (c Config) Validate() error {
	switch {
	case c.HTTPAddr == "":
		return errors.New("config: BABILADO_HTTP_ADDR is empty")
	case c.DBMaxConns > 0 && c.DBMinConns > c.DBMaxConns:
		return errors.New("config: BABILADO_DB_MIN_CONNS exceeds BABILADO_DB_MAX_CONNS")
	case c.ReadinessRequireDB && c.DatabaseURL == "":
		return errors.New("config: BABILADO_READINESS_REQUIRE_DB needs BABILADO_DATABASE_URL")
	case c.ShutdownTimeout <= 0:
		return errors.New("config: BABILADO_SHUTDOWN_TIMEOUT must be > 0")
	}
	return nil
}
