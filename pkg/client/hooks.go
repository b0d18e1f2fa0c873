package client

import (
	"context"
	"sync"

	"github.com/bromq-dev/nukibridge/pkg/packet"
)

// Hooks manages registered hooks and dispatches events.
type Hooks struct {
	mu sync.RWMutex

	connection []ConnectionHook
	message    []MessageHook
	ack        []AckHook
}

// NewHooks creates a new hook manager.
func NewHooks() *Hooks {
	return &Hooks{}
}

// Register registers a hook. The hook is checked for all supported interfaces.
func (h *Hooks) Register(hook Hook) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := hook.(ConnectionHook); ok {
		h.connection = append(h.connection, ch)
	}
	if mh, ok := hook.(MessageHook); ok {
		h.message = append(h.message, mh)
	}
	if ah, ok := hook.(AckHook); ok {
		h.ack = append(h.ack, ah)
	}
}

// OnConnected notifies all connection hooks of an accepted CONNECT.
func (h *Hooks) OnConnected(ctx context.Context, sessionPresent bool) {
	h.mu.RLock()
	hooks := h.connection
	h.mu.RUnlock()

	for _, hook := range hooks {
		hook.OnConnected(ctx, sessionPresent)
	}
}

// OnDisconnected notifies all connection hooks of a closed connection.
func (h *Hooks) OnDisconnected(ctx context.Context, reason DisconnectReason) {
	h.mu.RLock()
	hooks := h.connection
	h.mu.RUnlock()

	for _, hook := range hooks {
		hook.OnDisconnected(ctx, reason)
	}
}

// OnMessage passes a payload chunk to all message hooks.
func (h *Hooks) OnMessage(ctx context.Context, msg *Message) {
	h.mu.RLock()
	hooks := h.message
	h.mu.RUnlock()

	for _, hook := range hooks {
		hook.OnMessage(ctx, msg)
	}
}

// OnPublished notifies all ack hooks of a completed publish.
func (h *Hooks) OnPublished(ctx context.Context, packetID uint16) {
	h.mu.RLock()
	hooks := h.ack
	h.mu.RUnlock()

	for _, hook := range hooks {
		hook.OnPublished(ctx, packetID)
	}
}

// OnSubscribed notifies all ack hooks of a SUBACK.
func (h *Hooks) OnSubscribed(ctx context.Context, packetID uint16, codes []packet.SubackReturnCode) {
	h.mu.RLock()
	hooks := h.ack
	h.mu.RUnlock()

	for _, hook := range hooks {
		hook.OnSubscribed(ctx, packetID, codes)
	}
}

// OnUnsubscribed notifies all ack hooks of an UNSUBACK.
func (h *Hooks) OnUnsubscribed(ctx context.Context, packetID uint16) {
	h.mu.RLock()
	hooks := h.ack
	h.mu.RUnlock()

	for _, hook := range hooks {
		hook.OnUnsubscribed(ctx, packetID)
	}
}
