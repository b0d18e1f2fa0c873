package hooks

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/bromq-dev/nukibridge/pkg/client"
	"github.com/bromq-dev/nukibridge/pkg/network"
	"github.com/bromq-dev/nukibridge/pkg/packet"
)

// MaintenanceHook publishes bridge health to the maintenance and info topics.
// Topics published (relative to the network prefix):
//   - /maintenance/uptime (minutes, only when it grows)
//   - /maintenance/mqttReconnects
//   - /maintenance/mqttMessagesReceived
//   - /maintenance/restartReasonNukiHub, /info/nukiHubVersion, /info/nukiHubBuild (first tick only)
//   - /info/nukiHubIp (on every connect)
//
// Register it on the client for the counters and on the network as a ticker.
type MaintenanceHook struct {
	publisher     MaintenancePublisher
	interval      time.Duration
	version       string
	build         string
	restartReason string
	ip            string

	// Metrics
	startTime    time.Time
	connects     atomic.Int64
	disconnects  atomic.Int64
	msgsReceived atomic.Int64
	bytesRecv    atomic.Int64
	published    atomic.Int64

	ticked     bool
	lastTick   time.Time
	lastUptime int64
}

// MaintenancePublisher publishes value retained under a prefixed path.
// Network.PublishString satisfies it.
type MaintenancePublisher func(path, value string) error

// MaintenanceConfig configures the maintenance hook.
type MaintenanceConfig struct {
	// Publisher is called to publish maintenance values.
	Publisher MaintenancePublisher

	// Interval is how often to publish (default: 30s).
	Interval time.Duration

	// Version and Build identify the running binary.
	Version string
	Build   string

	// RestartReason explains why the bridge last started (default: "started").
	RestartReason string

	// IP is published on connect when set.
	IP string

	// StartTime is the reference for the uptime (default: now).
	StartTime time.Time
}

// NewMaintenanceHook creates a new maintenance hook.
func NewMaintenanceHook(cfg MaintenanceConfig) *MaintenanceHook {
	if cfg.Interval == 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.RestartReason == "" {
		cfg.RestartReason = "started"
	}
	if cfg.StartTime.IsZero() {
		cfg.StartTime = time.Now()
	}

	return &MaintenanceHook{
		publisher:     cfg.Publisher,
		interval:      cfg.Interval,
		version:       cfg.Version,
		build:         cfg.Build,
		restartReason: cfg.RestartReason,
		ip:            cfg.IP,
		startTime:     cfg.StartTime,
	}
}

func (h *MaintenanceHook) ID() string { return "maintenance" }

// Tick publishes the maintenance values when the interval has passed.
// It runs on the network's loop.
func (h *MaintenanceHook) Tick(ctx context.Context, now time.Time) {
	if h.ticked && now.Sub(h.lastTick) < h.interval {
		return
	}
	first := !h.ticked
	h.ticked = true
	h.lastTick = now

	uptime := int64(now.Sub(h.startTime) / time.Minute)
	if first || uptime > h.lastUptime {
		h.lastUptime = uptime
		h.publishInt(network.TopicUptime, uptime)
	}
	if first {
		h.publish(network.TopicRestartReason, h.restartReason)
		h.publish(network.TopicVersion, h.version)
		h.publish(network.TopicBuild, h.build)
	}

	reconnects := h.connects.Load() - 1
	if reconnects < 0 {
		reconnects = 0
	}
	h.publishInt(network.TopicReconnects, reconnects)
	h.publishInt(network.TopicMessages, h.msgsReceived.Load())
}

func (h *MaintenanceHook) publishInt(path string, v int64) {
	h.publish(path, strconv.FormatInt(v, 10))
}

func (h *MaintenanceHook) publish(path, value string) {
	if h.publisher != nil {
		_ = h.publisher(path, value)
	}
}

// ConnectionHook implementation

func (h *MaintenanceHook) OnConnected(ctx context.Context, sessionPresent bool) {
	h.connects.Add(1)
	if h.ip != "" {
		h.publish(network.TopicIP, h.ip)
	}
}

func (h *MaintenanceHook) OnDisconnected(ctx context.Context, reason client.DisconnectReason) {
	h.disconnects.Add(1)
}

// MessageHook implementation

func (h *MaintenanceHook) OnMessage(ctx context.Context, msg *client.Message) {
	if msg.Index == 0 {
		h.msgsReceived.Add(1)
	}
	h.bytesRecv.Add(int64(len(msg.Payload)))
}

// AckHook implementation

func (h *MaintenanceHook) OnPublished(ctx context.Context, packetID uint16) {
	h.published.Add(1)
}

func (h *MaintenanceHook) OnSubscribed(ctx context.Context, packetID uint16, codes []packet.SubackReturnCode) {
}

func (h *MaintenanceHook) OnUnsubscribed(ctx context.Context, packetID uint16) {}

// Metrics provides direct access to current metrics.
func (h *MaintenanceHook) Metrics() MaintenanceMetrics {
	return MaintenanceMetrics{
		Uptime:             time.Since(h.startTime),
		Connects:           h.connects.Load(),
		Disconnects:        h.disconnects.Load(),
		MessagesReceived:   h.msgsReceived.Load(),
		BytesReceived:      h.bytesRecv.Load(),
		PublishesCompleted: h.published.Load(),
	}
}

// MaintenanceMetrics holds current bridge metrics.
type MaintenanceMetrics struct {
	Uptime             time.Duration
	Connects           int64
	Disconnects        int64
	MessagesReceived   int64
	BytesReceived      int64
	PublishesCompleted int64
}
