package realtime

import (
	"errors"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	defaultRateEvents = 120
	defaultRateWindow = 10 * time.Second

	minSendBuffer = 32
)

// GatewayConfig holds websocket limits and origin policy.
type GatewayConfig struct {
	// MaxFrameBytes is the hard read limit per inbound frame.
	MaxFrameBytes int64 `envconfig:"BABILADO_WS_MAX_FRAME_BYTES" default:"65536"`
	// SendBuffer is the outbound queue length per connection.
	SendBuffer int `envconfig:"BABILADO_WS_SEND_BUFFER" default:"256"`

	WriteTimeout time.Duration `envconfig:"BABILADO_WS_WRITE_TIMEOUT" default:"5s"`
	PingInterval time.Duration `envconfig:"BABILADO_WS_PING_INTERVAL" default:"25s"`
	PingTimeout  time.Duration `envconfig:"BABILADO_WS_PING_TIMEOUT" default:"5s"`
	// SendTimeout bounds persistence of one inbound message.
	SendTimeout time.Duration `envconfig:"BABILADO_WS_SEND_TIMEOUT" default:"10s"`

	// AllowedOrigins is a comma separated allowlist for browser clients.
	// Requests without an Origin header (native clients) are always accepted.
	// "*" accepts any origin.
	AllowedOrigins []string `envconfig:"BABILADO_WS_ALLOWED_ORIGINS"`

	RateEvents int           `envconfig:"BABILADO_WS_RATE_EVENTS" default:"120"`
	RateWindow time.Duration `envconfig:"BABILADO_WS_RATE_WINDOW" default:"10s"`
}

// DefaultGatewayConfig mirrors the envconfig defaults.
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		MaxFrameBytes: 64 << 10,
		SendBuffer:    256,
		WriteTimeout:  5 * time.Second,
		PingInterval:  25 * time.Second,
		PingTimeout:   5 * time.Second,
		SendTimeout:   10 * time.Second,
		RateEvents:    defaultRateEvents,
		RateWindow:    defaultRateWindow,
	}
}

// LoadGatewayConfig reads BABILADO_WS_* from the environment.
func LoadGatewayConfig() (GatewayConfig, error) {
	var cfg GatewayConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return GatewayConfig{}, err
	}
	cfg.AllowedOrigins = cleanOrigins(cfg.AllowedOrigins)
	if err := cfg.Validate(); err != nil {
		return GatewayConfig{}, err
	}
	return cfg, nil
}

func (c GatewayConfig) Validate() error {
	switch {
	case c.MaxFrameBytes <= 0:
		return errors.New("realtime: max frame bytes must be > 0")
	case c.WriteTimeout <= 0 || c.PingInterval <= 0 || c.PingTimeout <= 0 || c.SendTimeout <= 0:
		return errors.New("realtime: timeouts must be > 0")
	case c.RateEvents <= 0 || c.RateWindow <= 0:
		return errors.New("realtime: rate limit must be > 0")
	}
	return nil
}

// withDefaults fills zero fields so a partially built config stays usable.
func (c GatewayConfig) withDefaults() GatewayConfig {
	d := DefaultGatewayConfig()
	if c.MaxFrameBytes <= 0 {
		c.MaxFrameBytes = d.MaxFrameBytes
	}
	if c.SendBuffer < minSendBuffer {
		c.SendBuffer = minSendBuffer
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = d.PingInterval
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = d.PingTimeout
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = d.SendTimeout
	}
	if c.RateEvents <= 0 {
		c.RateEvents = d.RateEvents
	}
	if c.RateWindow <= 0 {
		c.RateWindow = d.RateWindow
	}
	return c
}

func cleanOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, o := range in {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
