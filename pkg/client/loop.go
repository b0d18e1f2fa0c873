package client

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/bromq-dev/nukibridge/pkg/outbox"
	"github.com/bromq-dev/nukibridge/pkg/packet"
)

var (
	errProtocol         = errors.New("protocol violation")
	errConnectTimeout   = errors.New("no CONNACK within connect timeout")
	errKeepAliveTimeout = errors.New("broker silent for twice the keep-alive")
)

// Loop runs one iteration of the client: it dials when a connect is pending,
// writes queued packets, processes received bytes and enforces timeouts.
// It returns quickly and must be called repeatedly.
func (c *Client) Loop(ctx context.Context) {
	switch c.state {
	case StateDisconnected:
		return
	case StateConnectingTCP:
		if err := c.transport.Connect(ctx, c.config.Host, c.config.Port); err != nil {
			c.lost(ctx, err)
			return
		}
		now := c.now()
		c.connectStarted = now
		c.lastClientAct = now
		c.lastServerAct = now
		c.state = StateConnectingMQTT
	case StateDisconnectingTCP:
		c.closed(ctx, c.reason)
		return
	}

	if !c.transport.Connected() {
		c.closed(ctx, ReasonTCPDisconnected)
		return
	}
	if err := c.send(); err != nil {
		c.lost(ctx, err)
		return
	}
	if c.state != StateDisconnectingTCP {
		if err := c.receive(ctx); err != nil {
			c.lost(ctx, err)
			return
		}
		if err := c.checkTimeouts(); err != nil {
			c.lost(ctx, err)
			return
		}
	}
	if c.state == StateDisconnectingTCP {
		c.closed(ctx, c.reason)
	}
}

// send writes outbox entries from current until the outbox is drained, a write
// is partial, or the current entry may not be sent in this state.
func (c *Client) send() error {
	if c.written == 0 {
		if c.queuePing {
			c.queuePing = false
			c.queue(true, &packet.Pingreq{})
		}
		if c.queueDisconnect {
			c.queueDisconnect = false
			c.queue(true, &packet.Disconnect{})
		}
	}

	for {
		e := c.outbox.Current()
		if e == nil {
			return nil
		}
		// EmplaceFront moves the cursor behind entries awaiting acks.
		if e.sent {
			c.outbox.Next()
			continue
		}
		// A partly written entry is finished first so the stream stays framed.
		if c.written == 0 && !c.sendable(e.kind) {
			return nil
		}

		n, err := c.transport.Write(e.data[c.written:])
		if err != nil {
			return err
		}
		c.written += n
		if c.written < len(e.data) {
			return nil
		}
		c.written = 0
		c.lastClientAct = c.now()

		kind := e.kind
		c.logger.Debug("sent packet",
			zap.Stringer("type", kind),
			zap.Uint16("packet_id", e.packetID),
		)
		if packet.RemovableAfterSend(e.data) {
			c.outbox.RemoveCurrent()
		} else {
			e.sent = true
			c.outbox.Next()
		}
		if kind == packet.TypeDisconnect {
			c.state = StateDisconnectingTCP
			return nil
		}
	}
}

// sendable reports whether a packet of kind may be written in the current state.
func (c *Client) sendable(kind packet.Type) bool {
	switch c.state {
	case StateConnectingMQTT:
		return kind == packet.TypeConnect
	case StateConnected:
		return kind != packet.TypeConnect
	case StateDisconnectingMQTT:
		return kind == packet.TypeDisconnect
	default:
		return false
	}
}

// receive reads once from the transport and handles every packet in the bytes read.
func (c *Client) receive(ctx context.Context) error {
	n, err := c.transport.Read(c.rx)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	c.lastServerAct = c.now()

	data := c.rx[:n]
	for len(data) > 0 {
		result, consumed := c.parser.Parse(data)
		data = data[consumed:]

		switch result {
		case packet.ResultPacket:
			if err := c.handle(ctx, c.parser.Packet()); err != nil {
				return err
			}
			if c.state == StateDisconnectingTCP {
				return nil
			}
		case packet.ResultProtocolError:
			return errProtocol
		}
	}
	return nil
}

func (c *Client) handle(ctx context.Context, p *packet.IncomingPacket) error {
	if (p.Type == packet.TypeConnack) != (c.state == StateConnectingMQTT) {
		c.logger.Warn("unexpected packet",
			zap.Stringer("type", p.Type),
			zap.Stringer("state", c.state),
		)
		return errProtocol
	}

	switch p.Type {
	case packet.TypeConnack:
		c.onConnack(ctx, p)
	case packet.TypePublish:
		c.onPublish(ctx, p)
	case packet.TypePuback:
		if it, ok := c.find(packet.TypePublish, p.PacketID); ok {
			c.outbox.Remove(&it)
			c.hooks.OnPublished(ctx, p.PacketID)
		} else {
			c.unknownAck(p)
		}
	case packet.TypePubrec:
		if it, ok := c.find(packet.TypePublish, p.PacketID); ok {
			c.outbox.Remove(&it)
		}
		if _, ok := c.find(packet.TypePubrel, p.PacketID); !ok {
			c.queue(false, &packet.Pubrel{PacketID: p.PacketID})
		}
	case packet.TypePubrel:
		if it, ok := c.find(packet.TypePubrec, p.PacketID); ok {
			c.outbox.Remove(&it)
		}
		c.queue(false, &packet.Pubcomp{PacketID: p.PacketID})
	case packet.TypePubcomp:
		if it, ok := c.find(packet.TypePubrel, p.PacketID); ok {
			c.outbox.Remove(&it)
			c.hooks.OnPublished(ctx, p.PacketID)
		} else {
			c.unknownAck(p)
		}
	case packet.TypeSuback:
		if it, ok := c.find(packet.TypeSubscribe, p.PacketID); ok {
			c.outbox.Remove(&it)
			c.hooks.OnSubscribed(ctx, p.PacketID, p.SubackCodes)
		} else {
			c.unknownAck(p)
		}
	case packet.TypeUnsuback:
		if it, ok := c.find(packet.TypeUnsubscribe, p.PacketID); ok {
			c.outbox.Remove(&it)
			c.hooks.OnUnsubscribed(ctx, p.PacketID)
		} else {
			c.unknownAck(p)
		}
	case packet.TypePingresp:
		c.pingSent = false
	}
	return nil
}

func (c *Client) onConnack(ctx context.Context, p *packet.IncomingPacket) {
	if !p.ConnackCode.IsAccepted() {
		c.logger.Warn("connection refused", zap.Stringer("code", p.ConnackCode))
		c.outbox.Clear()
		c.written = 0
		c.reason = reasonFromConnack(p.ConnackCode)
		c.state = StateDisconnectingTCP
		return
	}

	c.state = StateConnected
	if !p.SessionPresent {
		// Only messages survive a lost session; acks and requests refer to the old one.
		for it := c.outbox.Front(); it.Valid(); {
			if it.Get().kind != packet.TypePublish {
				c.outbox.Remove(&it)
				continue
			}
			it.Next()
		}
	}
	c.logger.Info("connected", zap.Bool("session_present", p.SessionPresent))
	c.hooks.OnConnected(ctx, p.SessionPresent)
}

func (c *Client) onPublish(ctx context.Context, p *packet.IncomingPacket) {
	if p.Payload.Index == 0 {
		c.dropPub = false
		if p.QoS == packet.QoS2 {
			// A PUBREC still queued means this message was already delivered.
			if it, ok := c.find(packet.TypePubrec, p.PacketID); ok {
				c.dropPub = true
				c.outbox.Remove(&it)
			}
		}
	}

	if !c.dropPub {
		c.hooks.OnMessage(ctx, &Message{
			Topic:    p.Topic,
			QoS:      p.QoS,
			Retain:   p.Retain,
			Dup:      p.Dup,
			PacketID: p.PacketID,
			Payload:  p.Payload.Data,
			Index:    p.Payload.Index,
			Total:    p.Payload.Total,
		})
	} else {
		c.logger.Debug("duplicate publish dropped", zap.Uint16("packet_id", p.PacketID))
	}

	if !p.Payload.Last() {
		return
	}
	switch p.QoS {
	case packet.QoS1:
		c.queue(false, &packet.Puback{PacketID: p.PacketID})
	case packet.QoS2:
		c.queue(false, &packet.Pubrec{PacketID: p.PacketID})
	}
}

func (c *Client) unknownAck(p *packet.IncomingPacket) {
	c.logger.Debug("ack for unknown packet",
		zap.Stringer("type", p.Type),
		zap.Uint16("packet_id", p.PacketID),
	)
}

// find returns an iterator at the first entry of kind with packetID.
// An entry that is partly written is never returned.
func (c *Client) find(kind packet.Type, packetID uint16) (outbox.Iterator[outgoing], bool) {
	cur := c.outbox.Current()
	for it := c.outbox.Front(); it.Valid(); it.Next() {
		e := it.Get()
		if e == cur && c.written > 0 {
			continue
		}
		if e.kind == kind && e.packetID == packetID {
			return it, true
		}
	}
	return outbox.Iterator[outgoing]{}, false
}

// queue encodes p and adds it at the tail, or at the head when front is set.
func (c *Client) queue(front bool, p packet.Packet) {
	data, err := packet.Marshal(p)
	if err != nil {
		c.logger.Error("encode failed", zap.Stringer("type", p.Type()), zap.Error(err))
		return
	}
	if front {
		c.outbox.EmplaceFront(newOutgoing(data))
		return
	}
	c.outbox.Emplace(newOutgoing(data))
}

func (c *Client) checkTimeouts() error {
	now := c.now()

	switch c.state {
	case StateConnectingMQTT:
		if now.Sub(c.connectStarted) > c.config.ConnectTimeout {
			return errConnectTimeout
		}
	case StateConnected:
		ka := c.config.KeepAlive
		if ka <= 0 {
			return nil
		}
		if now.Sub(c.lastServerAct) > 2*ka {
			return errKeepAliveTimeout
		}
		if !c.pingSent && (now.Sub(c.lastClientAct) >= ka || now.Sub(c.lastServerAct) >= ka) {
			c.queuePing = true
			c.pingSent = true
		}
	}
	return nil
}

// lost closes a connection that failed underneath the client.
func (c *Client) lost(ctx context.Context, err error) {
	c.logger.Warn("connection lost", zap.Stringer("state", c.state), zap.Error(err))
	c.closed(ctx, ReasonTCPDisconnected)
}

// closed stops the transport, keeps the session data for a later reconnect and
// notifies hooks.
func (c *Client) closed(ctx context.Context, reason DisconnectReason) {
	_ = c.transport.Stop()
	c.parser.Reset()
	c.keepSessionData()
	c.written = 0
	c.queuePing = false
	c.queueDisconnect = false
	c.pingSent = false
	c.dropPub = false
	c.state = StateDisconnected

	c.logger.Info("disconnected", zap.Stringer("reason", reason))
	c.hooks.OnDisconnected(ctx, reason)
}

// keepSessionData drops everything but unfinished QoS 1/2 exchanges and moves
// the cursor back to the front so they are resent. Publishes that were already
// sent get the DUP flag.
func (c *Client) keepSessionData() {
	var kept []outgoing
	for it := c.outbox.Front(); it.Valid(); it.Next() {
		e := it.Get()
		switch e.kind {
		case packet.TypePublish:
			if e.qos() == packet.QoS0 {
				continue
			}
			if e.sent {
				packet.SetDup(e.data)
			}
		case packet.TypePubrec, packet.TypePubrel:
		default:
			continue
		}
		e.sent = false
		kept = append(kept, *e)
	}

	c.outbox.Clear()
	for _, e := range kept {
		c.outbox.Emplace(e)
	}
}
