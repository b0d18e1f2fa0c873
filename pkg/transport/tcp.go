package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"
)

// TCPConfig holds configuration for TCP transports.
type TCPConfig struct {
	// TLSConfig enables TLS if set. ServerName defaults to the dialed host.
	TLSConfig *tls.Config

	// PollInterval is how long Read waits for data. Default: DefaultPollInterval.
	PollInterval time.Duration

	// DialTimeout applies when the Connect context has no deadline. Default: DefaultDialTimeout.
	DialTimeout time.Duration
}

// TCP is a plain or TLS TCP transport.
type TCP struct {
	config *TCPConfig
	conn   net.Conn
	mu     sync.Mutex
}

// NewTCP creates a new TCP transport.
// Use config.TLSConfig to enable TLS.
func NewTCP(config *TCPConfig) *TCP {
	if config == nil {
		config = &TCPConfig{}
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.DialTimeout <= 0 {
		config.DialTimeout = DefaultDialTimeout
	}
	return &TCP{config: config}
}

// Connect dials the broker and completes the TLS handshake when configured.
func (t *TCP) Connect(ctx context.Context, host string, port uint16) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return ErrAlreadyConnected
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.DialTimeout)
		defer cancel()
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", hostPort(host, port))
	if err != nil {
		return fmt.Errorf("dial %s: %w", hostPort(host, port), err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}

	if t.config.TLSConfig != nil {
		cfg := t.config.TLSConfig.Clone()
		if cfg.ServerName == "" {
			cfg.ServerName = host
		}
		tlsConn := tls.Client(conn, cfg)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return fmt.Errorf("tls handshake with %s: %w", host, err)
		}
		conn = tlsConn
	}

	t.conn = conn
	return nil
}

// Write sends p on the connection.
func (t *TCP) Write(p []byte) (int, error) {
	conn := t.current()
	if conn == nil {
		return 0, ErrNotConnected
	}
	return conn.Write(p)
}

// Read waits up to PollInterval for data.
func (t *TCP) Read(p []byte) (int, error) {
	conn := t.current()
	if conn == nil {
		return 0, ErrNotConnected
	}
	if err := conn.SetReadDeadline(time.Now().Add(t.config.PollInterval)); err != nil {
		return 0, err
	}
	n, err := conn.Read(p)
	if err != nil && isTimeout(err) {
		return n, nil
	}
	return n, err
}

// Stop closes the connection.
func (t *TCP) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

// Connected reports whether the connection is open.
func (t *TCP) Connected() bool {
	return t.current() != nil
}

func (t *TCP) current() net.Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn
}
