package client

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bromq-dev/nukibridge/pkg/packet"
)

// Config holds client configuration.
type Config struct {
	// Host and Port of the broker.
	Host string
	Port uint16

	// ClientID is sent in CONNECT and must not be empty.
	ClientID string

	// CleanSession asks the broker to discard previous session state.
	CleanSession bool

	// KeepAlive is the keep-alive interval, sent in whole seconds (0 = disabled).
	KeepAlive time.Duration

	// Username and Password are sent when non-empty.
	Username string
	Password string

	// Will is registered with the broker on connect if set.
	Will *packet.Will

	// ConnectTimeout is the time allowed for the broker to answer CONNECT.
	ConnectTimeout time.Duration

	// MaxOutbox limits the number of queued packets (0 = unlimited).
	MaxOutbox int

	// RXBufferSize is the number of bytes read from the transport per loop.
	RXBufferSize int

	// Logger receives client events. Default: no-op.
	Logger *zap.Logger
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:           "localhost",
		Port:           1883,
		ClientID:       "nukibridge",
		CleanSession:   true,
		KeepAlive:      15 * time.Second,
		ConnectTimeout: 10 * time.Second,
		MaxOutbox:      0, // Unlimited
		RXBufferSize:   1440,
		Logger:         zap.NewNop(),
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("client id: %w", ErrMalformedParameter)
	}
	if c.KeepAlive < 0 || c.KeepAlive > 65535*time.Second {
		return fmt.Errorf("keep-alive %s: %w", c.KeepAlive, ErrMalformedParameter)
	}
	if c.Will != nil {
		if err := validateTopicName(c.Will.Topic); err != nil {
			return fmt.Errorf("will: %w", err)
		}
		if !c.Will.QoS.Valid() {
			return fmt.Errorf("will qos %d: %w", c.Will.QoS, ErrMalformedParameter)
		}
	}
	return nil
}

// withDefaults fills zero values from DefaultConfig.
func (c *Config) withDefaults() *Config {
	cfg := *c
	def := DefaultConfig()
	if cfg.Host == "" {
		cfg.Host = def.Host
	}
	if cfg.Port == 0 {
		cfg.Port = def.Port
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.RXBufferSize <= 0 {
		cfg.RXBufferSize = def.RXBufferSize
	}
	if cfg.Logger == nil {
		cfg.Logger = def.Logger
	}
	return &cfg
}
