// Package network runs the bridge's MQTT side: it keeps the client connected,
// restores subscriptions after every reconnect and publishes state under a
// common topic prefix.
package network

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/bromq-dev/nukibridge/pkg/client"
	"github.com/bromq-dev/nukibridge/pkg/packet"
	"github.com/bromq-dev/nukibridge/pkg/topic"
)

// ErrPayloadTooLarge is logged when an incoming message exceeds Config.MaxPayload.
var ErrPayloadTooLarge = errors.New("payload too large")

// Client is the MQTT client the network drives. *client.Client implements it.
type Client interface {
	Connect() error
	Connected() bool
	Disconnected() bool
	Disconnect(force bool)
	Pending() int
	Loop(ctx context.Context)
	Publish(topic string, qos packet.QoS, retain bool, payload []byte) (uint16, error)
	Subscribe(subs ...packet.Subscription) (uint16, error)
	RegisterHook(hook client.Hook)
}

// Handler receives a complete incoming message on a subscribed topic.
type Handler func(ctx context.Context, topic string, payload []byte)

// Ticker is run on every Update while the client is connected.
type Ticker interface {
	Tick(ctx context.Context, now time.Time)
}

// Status is the result of Update.
type Status int

const (
	StatusConnected Status = iota
	StatusDisconnected
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Config configures a Network.
type Config struct {
	// Prefix is prepended to every topic path. Default: "nuki".
	Prefix string

	// ReconnectInterval is the minimum time between connect attempts. Default: 5s.
	ReconnectInterval time.Duration

	// SubscribeQoS is the QoS requested for every subscription.
	SubscribeQoS packet.QoS

	// MaxPayload bounds reassembled incoming payloads. Default: 4096.
	MaxPayload int

	// Logger is the zap.Logger to use (default: zap.NewNop()).
	Logger *zap.Logger
}

// DefaultConfig returns a config with default values.
func DefaultConfig() *Config {
	return &Config{
		Prefix:            "nuki",
		ReconnectInterval: 5 * time.Second,
		MaxPayload:        4096,
		Logger:            zap.NewNop(),
	}
}

// Will returns the last will that marks the bridge offline under prefix.
func Will(prefix string) *packet.Will {
	return &packet.Will{
		Topic:   topic.Join(prefix, TopicConnectionState),
		Payload: []byte(StateOffline),
		QoS:     packet.QoS1,
		Retain:  true,
	}
}

type subscription struct {
	filter  string
	handler Handler
}

type initTopic struct {
	name  string
	value string
}

// Network owns the connection lifecycle of a Client.
//
// Like the client, a Network is driven from one goroutine: Update, the
// publish helpers and registered handlers all run there.
type Network struct {
	config *Config
	client Client
	logger *zap.Logger
	now    func() time.Time

	subscriptions []subscription
	initTopics    []initTopic
	tickers       []Ticker
	onConnect     []func(first bool)

	connects      int
	nextReconnect time.Time

	// Reassembly of the incoming message
	rx      []byte
	rxTopic string
	rxDrop  bool
}

// New creates a Network for c and registers it as a hook on c.
func New(c Client, config *Config) *Network {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config
	if cfg.Prefix == "" {
		cfg.Prefix = "nuki"
	}
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = 5 * time.Second
	}
	if cfg.MaxPayload <= 0 {
		cfg.MaxPayload = 4096
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	n := &Network{
		config: &cfg,
		client: c,
		logger: cfg.Logger.With(zap.String("prefix", cfg.Prefix)),
		now:    time.Now,
	}
	c.RegisterHook(n)
	return n
}

func (n *Network) ID() string { return "network" }

// Prefix returns the topic prefix.
func (n *Network) Prefix() string {
	return n.config.Prefix
}

// Topic returns the full topic name of path.
func (n *Network) Topic(path string) string {
	return topic.Join(n.config.Prefix, path)
}

// Connected reports whether the client is connected to the broker.
func (n *Network) Connected() bool {
	return n.client.Connected()
}

// Subscribe registers handler for path, which may contain wildcards.
// The subscription is sent now when connected and again after every reconnect.
func (n *Network) Subscribe(path string, handler Handler) error {
	filter := n.Topic(path)
	if err := topic.ValidateFilter(filter); err != nil {
		return err
	}
	n.subscriptions = append(n.subscriptions, subscription{filter: filter, handler: handler})
	if n.client.Connected() {
		_, err := n.client.Subscribe(packet.Subscription{TopicFilter: filter, QoS: n.config.SubscribeQoS})
		return err
	}
	return nil
}

// InitTopic sets a retained value that is published once, after the first
// successful connect. A later call for the same path replaces the value.
func (n *Network) InitTopic(path, value string) {
	name := n.Topic(path)
	for i := range n.initTopics {
		if n.initTopics[i].name == name {
			n.initTopics[i].value = value
			return
		}
	}
	n.initTopics = append(n.initTopics, initTopic{name: name, value: value})
}

// AddTicker runs t on every Update while connected.
func (n *Network) AddTicker(t Ticker) {
	n.tickers = append(n.tickers, t)
}

// OnConnect calls fn after every accepted connect; first is set only once.
func (n *Network) OnConnect(fn func(first bool)) {
	n.onConnect = append(n.onConnect, fn)
}

// Update starts a connect attempt when disconnected and the reconnect interval
// has passed, then runs one client loop iteration and the tickers.
func (n *Network) Update(ctx context.Context) Status {
	now := n.now()
	if n.client.Disconnected() && !now.Before(n.nextReconnect) {
		n.nextReconnect = now.Add(n.config.ReconnectInterval)
		n.logger.Debug("attempting mqtt connection")
		if err := n.client.Connect(); err != nil {
			n.logger.Warn("mqtt connect failed", zap.Error(err))
		}
	}

	n.client.Loop(ctx)

	if !n.client.Connected() {
		return StatusDisconnected
	}
	for _, t := range n.tickers {
		t.Tick(ctx, now)
	}
	return StatusConnected
}

// Stop publishes the offline state, waits for queued packets to be flushed and
// disconnects gracefully. When ctx is done first the connection is closed
// without DISCONNECT and ctx's error is returned.
func (n *Network) Stop(ctx context.Context) error {
	if n.client.Connected() {
		if err := n.PublishString(TopicConnectionState, StateOffline); err != nil {
			n.logger.Warn("publish offline state failed", zap.Error(err))
		}
		// DISCONNECT goes out ahead of queued packets.
		for n.client.Connected() && n.client.Pending() > 0 && ctx.Err() == nil {
			n.client.Loop(ctx)
		}
	}
	n.client.Disconnect(false)
	for !n.client.Disconnected() {
		if err := ctx.Err(); err != nil {
			n.client.Disconnect(true)
			n.client.Loop(context.Background())
			return err
		}
		n.client.Loop(ctx)
	}
	return nil
}

// PublishString publishes value retained at QoS 0 under path.
func (n *Network) PublishString(path, value string) error {
	_, err := n.client.Publish(n.Topic(path), packet.QoS0, true, []byte(value))
	return err
}

// PublishInt publishes a signed integer.
func (n *Network) PublishInt(path string, value int64) error {
	return n.PublishString(path, strconv.FormatInt(value, 10))
}

// PublishUInt publishes an unsigned integer.
func (n *Network) PublishUInt(path string, value uint64) error {
	return n.PublishString(path, strconv.FormatUint(value, 10))
}

// PublishFloat publishes value with precision digits after the decimal point.
func (n *Network) PublishFloat(path string, value float64, precision int) error {
	return n.PublishString(path, strconv.FormatFloat(value, 'f', precision, 64))
}

// PublishBool publishes "1" or "0".
func (n *Network) PublishBool(path string, value bool) error {
	if value {
		return n.PublishString(path, "1")
	}
	return n.PublishString(path, "0")
}

// ConnectionHook implementation

func (n *Network) OnConnected(ctx context.Context, sessionPresent bool) {
	n.connects++
	first := n.connects == 1
	n.logger.Info("mqtt connected",
		zap.Bool("session_present", sessionPresent),
		zap.Int("connects", n.connects),
	)

	if _, err := n.client.Publish(n.Topic(TopicConnectionState), packet.QoS1, true, []byte(StateOnline)); err != nil {
		n.logger.Warn("publish online state failed", zap.Error(err))
	}

	if len(n.subscriptions) > 0 {
		subs := make([]packet.Subscription, len(n.subscriptions))
		for i, s := range n.subscriptions {
			subs[i] = packet.Subscription{TopicFilter: s.filter, QoS: n.config.SubscribeQoS}
		}
		if _, err := n.client.Subscribe(subs...); err != nil {
			n.logger.Error("resubscribe failed", zap.Error(err))
		}
	}

	if first {
		for _, t := range n.initTopics {
			if _, err := n.client.Publish(t.name, packet.QoS0, true, []byte(t.value)); err != nil {
				n.logger.Warn("publish init topic failed", zap.String("topic", t.name), zap.Error(err))
			}
		}
	}

	for _, fn := range n.onConnect {
		fn(first)
	}
}

func (n *Network) OnDisconnected(ctx context.Context, reason client.DisconnectReason) {
	n.rx = n.rx[:0]
	n.rxDrop = false
	n.nextReconnect = n.now().Add(n.config.ReconnectInterval)
}

// MessageHook implementation

func (n *Network) OnMessage(ctx context.Context, msg *client.Message) {
	if msg.Index == 0 {
		n.rx = n.rx[:0]
		n.rxTopic = msg.Topic
		n.rxDrop = msg.Total > n.config.MaxPayload
		if n.rxDrop {
			n.logger.Warn("message dropped",
				zap.String("topic", msg.Topic),
				zap.Int("payload_size", msg.Total),
				zap.Error(ErrPayloadTooLarge),
			)
		}
	}
	if n.rxDrop {
		return
	}
	n.rx = append(n.rx, msg.Payload...)
	if !msg.Last() {
		return
	}
	n.dispatch(ctx, n.rxTopic, n.rx)
}

func (n *Network) dispatch(ctx context.Context, name string, payload []byte) {
	matched := false
	for _, s := range n.subscriptions {
		if topic.Match(s.filter, name) {
			matched = true
			s.handler(ctx, name, payload)
		}
	}
	if !matched {
		n.logger.Debug("no handler for topic", zap.String("topic", name))
	}
}
