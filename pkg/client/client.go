package client

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bromq-dev/nukibridge/pkg/outbox"
	"github.com/bromq-dev/nukibridge/pkg/packet"
	"github.com/bromq-dev/nukibridge/pkg/topic"
	"github.com/bromq-dev/nukibridge/pkg/transport"
)

// outgoing is an encoded packet waiting in the outbox.
type outgoing struct {
	data     []byte
	kind     packet.Type
	packetID uint16
	sent     bool
}

func newOutgoing(data []byte) outgoing {
	return outgoing{
		data:     data,
		kind:     packet.EncodedType(data),
		packetID: packet.EncodedPacketID(data),
	}
}

// qos returns the QoS of an outgoing PUBLISH.
func (o *outgoing) qos() packet.QoS {
	return packet.QoS((o.data[0] >> 1) & 0x03)
}

// Client is an MQTT 3.1.1 client.
//
// A Client is driven by repeated calls to Loop from a single goroutine and is
// not safe for concurrent use. Publish, Subscribe and Unsubscribe only queue
// packets; Loop sends them, reads the broker's replies and runs keep-alive.
type Client struct {
	config    *Config
	transport transport.Transport
	hooks     *Hooks
	logger    *zap.Logger
	now       func() time.Time

	state  State
	outbox *outbox.Outbox[outgoing]

	// Receive side
	parser  *packet.Parser
	rx      []byte
	dropPub bool // current incoming PUBLISH is a QoS 2 duplicate

	// Send side
	written         int // bytes of the current entry already written
	queuePing       bool
	queueDisconnect bool
	pingSent        bool

	nextPacketID uint16

	connectStarted time.Time
	lastClientAct  time.Time
	lastServerAct  time.Time
	reason         DisconnectReason
}

// New creates a client that connects over tr.
func New(config *Config, tr transport.Transport) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if tr == nil {
		return nil, ErrNoTransport
	}
	config = config.withDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Client{
		config:       config,
		transport:    tr,
		hooks:        NewHooks(),
		logger:       config.Logger.With(zap.String("client_id", config.ClientID)),
		now:          time.Now,
		outbox:       outbox.New[outgoing](),
		parser:       packet.NewParser(),
		rx:           make([]byte, config.RXBufferSize),
		nextPacketID: 1,
	}, nil
}

// RegisterHook registers a hook for observing client events.
func (c *Client) RegisterHook(hook Hook) {
	c.hooks.Register(hook)
}

// State returns the connection state.
func (c *Client) State() State {
	return c.state
}

// Connected reports whether the broker has accepted the connection.
func (c *Client) Connected() bool {
	return c.state == StateConnected
}

// Disconnected reports whether the client is fully disconnected.
func (c *Client) Disconnected() bool {
	return c.state == StateDisconnected
}

// Pending returns the number of queued or unacknowledged packets.
func (c *Client) Pending() int {
	return c.outbox.Len()
}

// Connect starts connecting. The connection is made by subsequent Loop calls.
func (c *Client) Connect() error {
	if c.state != StateDisconnected {
		return ErrNotDisconnected
	}

	pkt := &packet.Connect{
		CleanSession: c.config.CleanSession,
		KeepAlive:    uint16(c.config.KeepAlive / time.Second),
		ClientID:     c.config.ClientID,
		Will:         c.config.Will,
		Username:     c.config.Username,
	}
	if c.config.Password != "" {
		pkt.Password = []byte(c.config.Password)
	}
	if err := pkt.Validate(); err != nil {
		return err
	}
	data, err := packet.Marshal(pkt)
	if err != nil {
		return err
	}

	c.outbox.EmplaceFront(newOutgoing(data))
	c.state = StateConnectingTCP
	c.reason = ReasonUserOK
	c.logger.Debug("connecting",
		zap.String("host", c.config.Host),
		zap.Uint16("port", c.config.Port),
	)
	return nil
}

// Disconnect ends the connection. A graceful disconnect sends DISCONNECT first;
// force closes the transport on the next Loop. Queued session data is kept.
func (c *Client) Disconnect(force bool) {
	switch c.state {
	case StateDisconnected, StateDisconnectingTCP:
		return
	case StateConnectingTCP:
		force = true
	}

	c.reason = ReasonUserOK
	if force {
		c.state = StateDisconnectingTCP
		return
	}
	c.state = StateDisconnectingMQTT
	c.queueDisconnect = true
}

// ClearSession drops every queued and unacknowledged packet.
// It is only allowed while disconnected.
func (c *Client) ClearSession() error {
	if c.state != StateDisconnected {
		return ErrNotDisconnected
	}
	c.outbox.Clear()
	c.written = 0
	return nil
}

// Publish queues a message and returns its packet identifier (0 for QoS 0).
// Messages may be queued while disconnected; they are sent after connecting.
func (c *Client) Publish(topicName string, qos packet.QoS, retain bool, payload []byte) (uint16, error) {
	if err := validateTopicName(topicName); err != nil {
		return 0, err
	}
	if !qos.Valid() {
		return 0, fmt.Errorf("qos %d: %w", qos, ErrMalformedParameter)
	}
	if err := c.checkCapacity(); err != nil {
		return 0, err
	}

	var id uint16
	if qos > packet.QoS0 {
		id = c.nextID()
	}
	data, err := packet.Marshal(packet.NewPublish(topicName, payload, qos, retain, id))
	if err != nil {
		return 0, err
	}

	c.outbox.Emplace(newOutgoing(data))
	return id, nil
}

// Subscribe queues a SUBSCRIBE for one or more filters and returns its packet identifier.
func (c *Client) Subscribe(subs ...packet.Subscription) (uint16, error) {
	for _, s := range subs {
		if err := topic.ValidateFilter(s.TopicFilter); err != nil {
			return 0, fmt.Errorf("%w %q: %w", ErrInvalidTopic, s.TopicFilter, err)
		}
	}
	if err := c.checkCapacity(); err != nil {
		return 0, err
	}

	id := c.nextID()
	pkt, err := packet.NewSubscribe(id, subs...)
	if err != nil {
		return 0, err
	}
	data, err := packet.Marshal(pkt)
	if err != nil {
		return 0, err
	}

	c.outbox.Emplace(newOutgoing(data))
	return id, nil
}

// Unsubscribe queues an UNSUBSCRIBE for one or more filters and returns its packet identifier.
func (c *Client) Unsubscribe(filters ...string) (uint16, error) {
	for _, f := range filters {
		if err := topic.ValidateFilter(f); err != nil {
			return 0, fmt.Errorf("%w %q: %w", ErrInvalidTopic, f, err)
		}
	}
	if err := c.checkCapacity(); err != nil {
		return 0, err
	}

	id := c.nextID()
	pkt, err := packet.NewUnsubscribe(id, filters...)
	if err != nil {
		return 0, err
	}
	data, err := packet.Marshal(pkt)
	if err != nil {
		return 0, err
	}

	c.outbox.Emplace(newOutgoing(data))
	return id, nil
}

func (c *Client) checkCapacity() error {
	if c.config.MaxOutbox > 0 && c.outbox.Len() >= c.config.MaxOutbox {
		return ErrOutboxFull
	}
	return nil
}

// nextID generates the next packet identifier.
func (c *Client) nextID() uint16 {
	id := c.nextPacketID
	c.nextPacketID++
	if c.nextPacketID == 0 {
		c.nextPacketID = 1 // Skip 0
	}
	return id
}

func validateTopicName(name string) error {
	if err := topic.ValidateName(name); err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidTopic, name, err)
	}
	return nil
}
