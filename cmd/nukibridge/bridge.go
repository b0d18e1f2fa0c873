package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bromq-dev/nukibridge/internal/config"
	"github.com/bromq-dev/nukibridge/pkg/client"
	"github.com/bromq-dev/nukibridge/pkg/packet"
	"github.com/bromq-dev/nukibridge/pkg/transport"
)

const disconnectTimeout = 2 * time.Second

// newTransport returns the transport selected by mqtt.transport.
func newTransport(m config.MQTTConfig) transport.Transport {
	var tlsConfig *tls.Config
	if m.Transport == config.TransportTLS || m.Transport == config.TransportWSS {
		tlsConfig = &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: m.TLSInsecure, // #nosec G402 -- opt-in for self-signed brokers
		}
	}

	switch m.Transport {
	case config.TransportWS, config.TransportWSS:
		return transport.NewWebSocket(&transport.WebSocketConfig{
			TLSConfig: tlsConfig,
			Path:      m.Path,
		})
	default:
		return transport.NewTCP(&transport.TCPConfig{TLSConfig: tlsConfig})
	}
}

// newClient builds a client from the configuration. clientID overrides
// mqtt.client_id when set.
func newClient(cfg *config.Config, clientID string, will *packet.Will, logger *zap.Logger) (*client.Client, error) {
	cc := client.DefaultConfig()
	cc.Host = cfg.MQTT.Host
	cc.Port = uint16(cfg.MQTT.Port)
	cc.ClientID = cfg.MQTT.ClientID
	if clientID != "" {
		cc.ClientID = clientID
	}
	cc.CleanSession = cfg.MQTT.CleanSession
	cc.KeepAlive = cfg.MQTT.KeepAlive
	cc.Username = cfg.MQTT.Username
	cc.Password = cfg.MQTT.Password
	cc.ConnectTimeout = cfg.MQTT.ConnectTimeout
	cc.MaxOutbox = cfg.MQTT.MaxOutbox
	cc.Will = will
	cc.Logger = logger.Named("mqtt")

	c, err := client.New(cc, newTransport(cfg.MQTT))
	if err != nil {
		return nil, fmt.Errorf("mqtt client: %w", err)
	}
	return c, nil
}

// connectWaiter records connection events for the one-shot commands.
type connectWaiter struct {
	connected bool
	reason    *client.DisconnectReason
}

func (w *connectWaiter) ID() string { return "connect-waiter" }

func (w *connectWaiter) OnConnected(ctx context.Context, sessionPresent bool) {
	w.connected = true
}

func (w *connectWaiter) OnDisconnected(ctx context.Context, reason client.DisconnectReason) {
	w.connected = false
	w.reason = &reason
}

// connect starts a connection and loops until the broker accepts or the attempt fails.
func connect(ctx context.Context, c *client.Client) error {
	w := &connectWaiter{}
	c.RegisterHook(w)
	if err := c.Connect(); err != nil {
		return err
	}
	for !w.connected {
		if w.reason != nil {
			return fmt.Errorf("connect: %s", *w.reason)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		c.Loop(ctx)
	}
	return nil
}

// disconnect sends DISCONNECT and loops until the connection is closed. The
// connection is dropped if that takes longer than disconnectTimeout.
func disconnect(ctx context.Context, c *client.Client) {
	ctx, cancel := context.WithTimeout(ctx, disconnectTimeout)
	defer cancel()
	c.Disconnect(false)
	for !c.Disconnected() {
		if ctx.Err() != nil {
			c.Disconnect(true)
			c.Loop(context.Background())
			return
		}
		c.Loop(ctx)
	}
}
