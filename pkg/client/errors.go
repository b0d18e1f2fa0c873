package client

import (
	"errors"

	"github.com/bromq-dev/nukibridge/pkg/packet"
)

// Client errors.
var (
	// ErrMalformedParameter indicates an argument that cannot be encoded.
	ErrMalformedParameter = packet.ErrMalformedParameter

	// ErrPacketTooLarge indicates the packet exceeds the protocol limits.
	ErrPacketTooLarge = packet.ErrPacketTooLarge

	// ErrInvalidTopic indicates an invalid topic name or filter.
	ErrInvalidTopic = errors.New("invalid topic")

	// ErrOutboxFull indicates MaxOutbox packets are already queued.
	ErrOutboxFull = errors.New("outbox full")

	// ErrNotDisconnected indicates the operation requires a disconnected client.
	ErrNotDisconnected = errors.New("client not disconnected")

	// ErrNoTransport indicates the client was created without a transport.
	ErrNoTransport = errors.New("no transport")
)
