// Package config handles loading and validating the nukibridge configuration.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/bromq-dev/nukibridge/pkg/mqttlog"
	"github.com/bromq-dev/nukibridge/pkg/topic"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// Transport names accepted in mqtt.transport.
const (
	TransportTCP = "tcp"
	TransportTLS = "tls"
	TransportWS  = "ws"
	TransportWSS = "wss"
)

// Config is the root configuration of the bridge.
type Config struct {
	MQTT    MQTTConfig    `mapstructure:"mqtt"`
	Network NetworkConfig `mapstructure:"network"`
	Lock    LockConfig    `mapstructure:"lock"`
	Opener  OpenerConfig  `mapstructure:"opener"`
	HASS    HASSConfig    `mapstructure:"hass"`
	Logging LoggingConfig `mapstructure:"logging"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

// MQTTConfig configures the broker connection.
type MQTTConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Transport      string        `mapstructure:"transport"` // tcp, tls, ws, wss
	Path           string        `mapstructure:"path"`      // WebSocket path
	ClientID       string        `mapstructure:"client_id"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	CleanSession   bool          `mapstructure:"clean_session"`
	KeepAlive      time.Duration `mapstructure:"keep_alive"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	MaxOutbox      int           `mapstructure:"max_outbox"`
	TLSInsecure    bool          `mapstructure:"tls_insecure"`
}

// NetworkConfig configures the topic layout and reconnect behaviour.
type NetworkConfig struct {
	Prefix              string        `mapstructure:"prefix"`
	ReconnectInterval   time.Duration `mapstructure:"reconnect_interval"`
	MaintenanceInterval time.Duration `mapstructure:"maintenance_interval"`
	IP                  string        `mapstructure:"ip"`
}

// LockConfig describes the lock exposed by the bridge.
type LockConfig struct {
	Name       string `mapstructure:"name"`
	UID        string `mapstructure:"uid"`
	DeviceType string `mapstructure:"device_type"`
}

// OpenerConfig describes the intercom opener exposed next to the lock.
type OpenerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"` // below network.prefix
}

// HASSConfig configures Home Assistant discovery.
type HASSConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	DiscoveryPrefix string `mapstructure:"discovery_prefix"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level    string `mapstructure:"level"`     // debug, info, warn, error
	MQTT     bool   `mapstructure:"mqtt"`      // publish log lines to <prefix>/maintenance/log
	MQTTMode string `mapstructure:"mqtt_mode"` // see mqttlog.ParseMode
}

// Load reads the configuration from file, environment variables, and defaults.
// If configFile is non-empty it is used directly; otherwise the standard
// search order applies: ./nukibridge.yaml, ./configs/nukibridge.yaml, /etc/nukibridge/nukibridge.yaml.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("mqtt.host", "localhost")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.transport", TransportTCP)
	v.SetDefault("mqtt.path", "/mqtt")
	v.SetDefault("mqtt.client_id", "nukibridge")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.clean_session", true)
	v.SetDefault("mqtt.keep_alive", 15*time.Second)
	v.SetDefault("mqtt.connect_timeout", 10*time.Second)
	v.SetDefault("mqtt.max_outbox", 256)
	v.SetDefault("mqtt.tls_insecure", false)
	v.SetDefault("network.prefix", "nuki")
	v.SetDefault("network.reconnect_interval", 5*time.Second)
	v.SetDefault("network.maintenance_interval", 30*time.Second)
	v.SetDefault("network.ip", "")
	v.SetDefault("lock.name", "Nuki")
	v.SetDefault("lock.uid", "0")
	v.SetDefault("lock.device_type", "SmartLock")
	v.SetDefault("opener.enabled", false)
	v.SetDefault("opener.path", "opener")
	v.SetDefault("hass.enabled", false)
	v.SetDefault("hass.discovery_prefix", "homeassistant")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.mqtt", false)
	v.SetDefault("logging.mqtt_mode", mqttlog.ModeMQTTWithFallback.String())

	// Config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("nukibridge")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/nukibridge")
	}

	// Environment variables: NUKIBRIDGE_MQTT_HOST, NUKIBRIDGE_NETWORK_PREFIX, etc.
	v.SetEnvPrefix("NUKIBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The file is optional; defaults and environment are sufficient.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values the bridge cannot run with.
func (c *Config) Validate() error {
	m := c.MQTT
	if m.Host == "" {
		return fmt.Errorf("%w: mqtt.host is empty", ErrInvalid)
	}
	if m.Port < 1 || m.Port > 65535 {
		return fmt.Errorf("%w: mqtt.port %d out of range", ErrInvalid, m.Port)
	}
	switch m.Transport {
	case TransportTCP, TransportTLS, TransportWS, TransportWSS:
	default:
		return fmt.Errorf("%w: mqtt.transport %q", ErrInvalid, m.Transport)
	}
	if m.ClientID == "" {
		return fmt.Errorf("%w: mqtt.client_id is empty", ErrInvalid)
	}
	if m.KeepAlive < 0 || m.KeepAlive > 65535*time.Second {
		return fmt.Errorf("%w: mqtt.keep_alive %s out of range", ErrInvalid, m.KeepAlive)
	}
	if m.MaxOutbox < 0 {
		return fmt.Errorf("%w: mqtt.max_outbox is negative", ErrInvalid)
	}

	if err := topic.ValidateName(c.Network.Prefix); err != nil {
		return fmt.Errorf("%w: network.prefix %q: %w", ErrInvalid, c.Network.Prefix, err)
	}
	if c.Opener.Enabled {
		if err := topic.ValidateName(c.Opener.Path); err != nil {
			return fmt.Errorf("%w: opener.path %q: %w", ErrInvalid, c.Opener.Path, err)
		}
	}
	if c.HASS.Enabled {
		if err := topic.ValidateName(c.HASS.DiscoveryPrefix); err != nil {
			return fmt.Errorf("%w: hass.discovery_prefix %q: %w", ErrInvalid, c.HASS.DiscoveryPrefix, err)
		}
		if c.Lock.UID == "" || topic.HasWildcard(c.Lock.UID) || strings.Contains(c.Lock.UID, "/") {
			return fmt.Errorf("%w: lock.uid %q cannot be used in a topic", ErrInvalid, c.Lock.UID)
		}
	}

	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: logging.level: %w", ErrInvalid, err)
	}
	if _, ok := mqttlog.ParseMode(c.Logging.MQTTMode); !ok {
		return fmt.Errorf("%w: logging.mqtt_mode %q", ErrInvalid, c.Logging.MQTTMode)
	}
	return nil
}
