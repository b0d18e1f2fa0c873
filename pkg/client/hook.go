// Package client provides a cooperative MQTT 3.1.1 client driven by Loop.
package client

import (
	"context"

	"github.com/bromq-dev/nukibridge/pkg/packet"
)

// Hook provides extension points for observing client behavior.
// Implementations register with Client.RegisterHook and are checked for every
// interface below.
//
// Hook methods are called synchronously from Loop. They must not block and may
// call Publish, Subscribe and Unsubscribe on the same client.
type Hook interface {
	// ID returns a unique identifier for this hook.
	ID() string
}

// ConnectionHook handles connection lifecycle events.
type ConnectionHook interface {
	Hook

	// OnConnected is called when the broker accepts CONNECT.
	OnConnected(ctx context.Context, sessionPresent bool)

	// OnDisconnected is called when a connection ends or a connect attempt fails.
	OnDisconnected(ctx context.Context, reason DisconnectReason)
}

// MessageHook receives incoming application messages.
type MessageHook interface {
	Hook

	// OnMessage is called once per payload chunk of an incoming PUBLISH.
	// msg and its Payload are only valid for the duration of the call.
	OnMessage(ctx context.Context, msg *Message)
}

// AckHook handles completion of outgoing requests.
type AckHook interface {
	Hook

	// OnPublished is called when a QoS 1 or QoS 2 publish completes.
	OnPublished(ctx context.Context, packetID uint16)

	// OnSubscribed is called when a SUBACK arrives.
	OnSubscribed(ctx context.Context, packetID uint16, codes []packet.SubackReturnCode)

	// OnUnsubscribed is called when an UNSUBACK arrives.
	OnUnsubscribed(ctx context.Context, packetID uint16)
}

// Message is one payload chunk of an incoming PUBLISH.
type Message struct {
	Topic    string
	QoS      packet.QoS
	Retain   bool
	Dup      bool
	PacketID uint16

	// Payload is the chunk, Index its offset and Total the full payload length.
	Payload []byte
	Index   int
	Total   int
}

// Last reports whether this chunk completes the payload.
func (m *Message) Last() bool {
	return m.Index+len(m.Payload) == m.Total
}
