// Package transport provides the byte-stream connections an MQTT client runs over.
//
// A Transport is polled by a single client loop: Read never blocks for long and
// reports "no data right now" as (0, nil), so the loop can interleave reading,
// writing and keep-alive bookkeeping without goroutines of its own.
package transport

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"
)

// Transport is a client-side connection to a broker.
type Transport interface {
	// Connect dials host:port. It blocks until connected, failed, or ctx is done.
	Connect(ctx context.Context, host string, port uint16) error

	// Write sends p and returns the number of bytes accepted, which may be less than len(p).
	Write(p []byte) (int, error)

	// Read copies received bytes into p. (0, nil) means no data is available now.
	// A non-nil error means the connection is gone.
	Read(p []byte) (int, error)

	// Stop closes the connection. Stopping a closed transport is a no-op.
	Stop() error

	// Connected reports whether the connection is open.
	Connected() bool
}

// Transport errors.
var (
	// ErrNotConnected is returned by Read and Write before Connect or after Stop.
	ErrNotConnected = errors.New("transport not connected")

	// ErrAlreadyConnected is returned by Connect on an open transport.
	ErrAlreadyConnected = errors.New("transport already connected")
)

// DefaultPollInterval bounds how long Read waits for data before reporting none.
const DefaultPollInterval = 10 * time.Millisecond

// DefaultDialTimeout bounds how long Connect waits when ctx has no deadline.
const DefaultDialTimeout = 10 * time.Second

func hostPort(host string, port uint16) string {
	return net.JoinHostPort(host, strconv.Itoa(int(port)))
}

// isTimeout reports whether err is a deadline expiry rather than a broken connection.
func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
