// Package hooks provides ready-made client hooks.
package hooks

import (
	"context"

	"go.uber.org/zap"

	"github.com/bromq-dev/nukibridge/pkg/client"
	"github.com/bromq-dev/nukibridge/pkg/packet"
)

// LoggerHook logs client events using zap.
type LoggerHook struct {
	logger *zap.Logger
	level  LogLevel
}

// LogLevel controls which events are logged.
type LogLevel int

const (
	// LogLevelConnection logs connect/disconnect events.
	LogLevelConnection LogLevel = 1 << iota
	// LogLevelSubscribe logs subscribe/unsubscribe acknowledgements.
	LogLevelSubscribe
	// LogLevelPublish logs incoming messages and completed publishes.
	LogLevelPublish
	// LogLevelAll logs all events.
	LogLevelAll = LogLevelConnection | LogLevelSubscribe | LogLevelPublish
)

// LoggerConfig configures the logger hook.
type LoggerConfig struct {
	// Logger is the zap.Logger to use (default: zap.L()).
	Logger *zap.Logger

	// Level controls which events are logged (default: LogLevelAll).
	Level LogLevel
}

// NewLoggerHook creates a new logging hook.
func NewLoggerHook(cfg LoggerConfig) *LoggerHook {
	if cfg.Logger == nil {
		cfg.Logger = zap.L()
	}
	if cfg.Level == 0 {
		cfg.Level = LogLevelAll
	}
	return &LoggerHook{
		logger: cfg.Logger,
		level:  cfg.Level,
	}
}

func (h *LoggerHook) ID() string { return "logger" }

// ConnectionHook implementation

func (h *LoggerHook) OnConnected(ctx context.Context, sessionPresent bool) {
	if h.level&LogLevelConnection == 0 {
		return
	}
	h.logger.Info("mqtt connected",
		zap.Bool("session_present", sessionPresent),
	)
}

func (h *LoggerHook) OnDisconnected(ctx context.Context, reason client.DisconnectReason) {
	if h.level&LogLevelConnection == 0 {
		return
	}
	if reason == client.ReasonUserOK {
		h.logger.Info("mqtt disconnected")
		return
	}
	h.logger.Warn("mqtt disconnected",
		zap.Stringer("reason", reason),
	)
}

// MessageHook implementation

func (h *LoggerHook) OnMessage(ctx context.Context, msg *client.Message) {
	if h.level&LogLevelPublish == 0 || msg.Index != 0 {
		return
	}
	h.logger.Debug("message received",
		zap.String("topic", msg.Topic),
		zap.Stringer("qos", msg.QoS),
		zap.Bool("retain", msg.Retain),
		zap.Bool("dup", msg.Dup),
		zap.Int("payload_size", msg.Total),
	)
}

// AckHook implementation

func (h *LoggerHook) OnPublished(ctx context.Context, packetID uint16) {
	if h.level&LogLevelPublish == 0 {
		return
	}
	h.logger.Debug("publish complete",
		zap.Uint16("packet_id", packetID),
	)
}

func (h *LoggerHook) OnSubscribed(ctx context.Context, packetID uint16, codes []packet.SubackReturnCode) {
	if h.level&LogLevelSubscribe == 0 {
		return
	}
	for i, code := range codes {
		if !code.Granted() {
			h.logger.Warn("subscription refused",
				zap.Uint16("packet_id", packetID),
				zap.Int("index", i),
			)
			continue
		}
		h.logger.Info("subscribed",
			zap.Uint16("packet_id", packetID),
			zap.Int("index", i),
			zap.Stringer("granted", code),
		)
	}
}

func (h *LoggerHook) OnUnsubscribed(ctx context.Context, packetID uint16) {
	if h.level&LogLevelSubscribe == 0 {
		return
	}
	h.logger.Info("unsubscribed",
		zap.Uint16("packet_id", packetID),
	)
}
