package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketConfig holds configuration for WebSocket transports.
type WebSocketConfig struct {
	// TLSConfig selects wss:// when set.
	TLSConfig *tls.Config

	// Path is the URL path of the broker endpoint. Default: "/mqtt".
	Path string

	// Header is sent with the upgrade request.
	Header http.Header

	// PollInterval is how long Read waits for data. Default: DefaultPollInterval.
	PollInterval time.Duration
}

// WebSocket carries MQTT in binary WebSocket messages.
// A reader goroutine drains incoming messages into a buffer so Read never blocks.
type WebSocket struct {
	config *WebSocketConfig
	dialer websocket.Dialer

	mu      sync.Mutex
	conn    *websocket.Conn
	buf     []byte
	readErr error
	done    chan struct{}
	ready   chan struct{} // signalled when buf or readErr changes
}

// NewWebSocket creates a new WebSocket transport.
func NewWebSocket(config *WebSocketConfig) *WebSocket {
	if config == nil {
		config = &WebSocketConfig{}
	}
	if config.Path == "" {
		config.Path = "/mqtt"
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	return &WebSocket{
		config: config,
		ready:  make(chan struct{}, 1),
		dialer: websocket.Dialer{
			Subprotocols:     []string{"mqtt"},
			TLSClientConfig:  config.TLSConfig,
			HandshakeTimeout: DefaultDialTimeout,
		},
	}
}

// Connect performs the WebSocket upgrade against host:port.
func (w *WebSocket) Connect(ctx context.Context, host string, port uint16) error {
	w.mu.Lock()
	if w.conn != nil {
		w.mu.Unlock()
		return ErrAlreadyConnected
	}
	w.mu.Unlock()

	scheme := "ws"
	if w.config.TLSConfig != nil {
		scheme = "wss"
	}
	u := url.URL{Scheme: scheme, Host: hostPort(host, port), Path: w.config.Path}

	conn, _, err := w.dialer.DialContext(ctx, u.String(), w.config.Header)
	if err != nil {
		return fmt.Errorf("websocket dial %s: %w", u.String(), err)
	}

	w.mu.Lock()
	w.conn = conn
	w.buf = w.buf[:0]
	w.readErr = nil
	w.done = make(chan struct{})
	done := w.done
	w.mu.Unlock()

	go w.readLoop(conn, done)
	return nil
}

func (w *WebSocket) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		messageType, r, err := conn.NextReader()
		if err != nil {
			w.mu.Lock()
			if w.conn == conn {
				w.readErr = err
			}
			w.mu.Unlock()
			w.signal()
			return
		}
		// MQTT over WebSocket uses binary messages
		if messageType != websocket.BinaryMessage {
			continue
		}
		data, err := io.ReadAll(r)
		w.mu.Lock()
		if w.conn == conn {
			w.buf = append(w.buf, data...)
			if err != nil {
				w.readErr = err
			}
		}
		w.mu.Unlock()
		w.signal()
		if err != nil {
			return
		}
	}
}

func (w *WebSocket) signal() {
	select {
	case w.ready <- struct{}{}:
	default:
	}
}

// Write sends p as one binary message.
func (w *WebSocket) Write(p []byte) (int, error) {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return 0, ErrNotConnected
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Read returns buffered bytes, or (0, nil) when none arrive within the poll interval.
func (w *WebSocket) Read(p []byte) (int, error) {
	w.mu.Lock()
	if w.conn != nil && len(w.buf) == 0 && w.readErr == nil {
		w.mu.Unlock()
		timer := time.NewTimer(w.config.PollInterval)
		select {
		case <-w.ready:
		case <-timer.C:
		}
		timer.Stop()
		w.mu.Lock()
	}
	defer w.mu.Unlock()

	if w.conn == nil {
		return 0, ErrNotConnected
	}
	if len(w.buf) > 0 {
		n := copy(p, w.buf)
		w.buf = w.buf[:copy(w.buf, w.buf[n:])]
		return n, nil
	}
	if w.readErr != nil {
		return 0, w.readErr
	}
	return 0, nil
}

// Stop closes the connection and waits for the reader goroutine.
func (w *WebSocket) Stop() error {
	w.mu.Lock()
	conn, done := w.conn, w.done
	w.conn = nil
	w.buf = w.buf[:0]
	w.mu.Unlock()

	if conn == nil {
		return nil
	}
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err := conn.Close()
	<-done
	return err
}

// Connected reports whether the connection is open and has not failed.
func (w *WebSocket) Connected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn != nil && w.readErr == nil
}
