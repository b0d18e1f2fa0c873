package network

import (
	"context"

	"go.uber.org/zap"
)

// LockState is the motor state reported by a smart lock.
type LockState uint8

const (
	LockStateUncalibrated LockState = 0x00
	LockStateLocked       LockState = 0x01
	LockStateUnlocking    LockState = 0x02
	LockStateUnlocked     LockState = 0x03
	LockStateLocking      LockState = 0x04
	LockStateUnlatched    LockState = 0x05
	LockStateUnlockedLnga LockState = 0x06
	LockStateUnlatching   LockState = 0x07
	LockStateCalibration  LockState = 0xFC
	LockStateBootRun      LockState = 0xFD
	LockStateMotorBlocked LockState = 0xFE
	LockStateUndefined    LockState = 0xFF
)

// String returns the name published on the lock state topic.
func (s LockState) String() string {
	switch s {
	case LockStateUncalibrated:
		return "uncalibrated"
	case LockStateLocked:
		return "locked"
	case LockStateUnlocking:
		return "unlocking"
	case LockStateUnlocked:
		return "unlocked"
	case LockStateLocking:
		return "locking"
	case LockStateUnlatched:
		return "unlatched"
	case LockStateUnlockedLnga:
		return "unlockedLnga"
	case LockStateUnlatching:
		return "unlatching"
	case LockStateCalibration:
		return "calibration"
	case LockStateBootRun:
		return "bootRun"
	case LockStateMotorBlocked:
		return "motorBlocked"
	default:
		return "undefined"
	}
}

// Binary maps the state to "locked" or "unlocked" for Home Assistant.
// States that are neither return "".
func (s LockState) Binary() string {
	switch s {
	case LockStateLocked, LockStateLocking:
		return "locked"
	case LockStateUnlocked, LockStateUnlocking, LockStateUnlatched, LockStateUnlatching, LockStateUnlockedLnga:
		return "unlocked"
	default:
		return ""
	}
}

// KeyTurnerState is a snapshot of a lock's state.
type KeyTurnerState struct {
	LockState        LockState
	Trigger          string
	LastLockAction   string
	CompletionStatus string
	DoorSensorState  string
	BatteryCritical  bool
	BatteryCharging  bool
	BatteryLevel     int
}

// ActionResult is the outcome of a lock action.
type ActionResult int

const (
	ActionSuccess ActionResult = iota
	ActionUnknown
	ActionDenied
	ActionFailed
)

// reply returns the payload published back to the action topic.
func (r ActionResult) reply() string {
	switch r {
	case ActionSuccess:
		return ReplyAck
	case ActionUnknown:
		return ReplyUnknownAction
	case ActionDenied:
		return ReplyDenied
	default:
		return ReplyError
	}
}

// ActionFunc executes a lock action received over MQTT.
type ActionFunc func(ctx context.Context, action string) ActionResult

// LockConfig configures a Lock.
type LockConfig struct {
	// Action executes actions written to the action topic. Nil fails every action.
	Action ActionFunc

	// Reset is called when "1" is written to the reset topic.
	Reset func()

	// HASS enables Home Assistant discovery. Nil disables it.
	HASS *HASSConfig
}

// Lock exposes a smart lock over MQTT.
type Lock struct {
	network *Network
	config  LockConfig
	logger  *zap.Logger

	last         KeyTurnerState
	firstPublish bool
}

// NewLock registers the lock's topics on n.
func NewLock(n *Network, config LockConfig) (*Lock, error) {
	l := &Lock{
		network:      n,
		config:       config,
		logger:       n.logger.Named("lock"),
		firstPublish: true,
	}

	n.InitTopic(TopicLockAction, actionIdle)
	if err := n.Subscribe(TopicLockAction, l.onAction); err != nil {
		return nil, err
	}
	n.InitTopic(TopicReset, "0")
	if err := n.Subscribe(TopicReset, l.onReset); err != nil {
		return nil, err
	}

	// A reconnect may have missed changes; publish the full state again.
	n.OnConnect(func(first bool) {
		if !first {
			l.firstPublish = true
		}
	})
	return l, nil
}

func (l *Lock) onAction(ctx context.Context, topic string, payload []byte) {
	handleAction(ctx, l.network, TopicLockAction, l.config.Action, payload, l.logger)
}

// handleAction runs fn for an action written to path and publishes the reply
// back to path. Idle values and replies are ignored.
func handleAction(ctx context.Context, n *Network, path string, fn ActionFunc, payload []byte, logger *zap.Logger) {
	action := string(payload)
	switch action {
	case "", actionIdle, ReplyAck, ReplyUnknownAction, ReplyDenied, ReplyError:
		return
	}

	logger.Info("action received", zap.String("action", action))
	result := ActionFailed
	if fn != nil {
		result = fn(ctx, action)
	}
	if err := n.PublishString(path, result.reply()); err != nil {
		logger.Warn("publish action reply failed", zap.Error(err))
	}
}

func (l *Lock) onReset(ctx context.Context, topic string, payload []byte) {
	if string(payload) != "1" {
		return
	}
	l.logger.Info("restart requested via mqtt")
	if err := l.network.PublishString(TopicReset, "0"); err != nil {
		l.logger.Warn("publish reset acknowledgement failed", zap.Error(err))
	}
	if l.config.Reset != nil {
		l.config.Reset()
	}
}

// PublishKeyTurnerState publishes the fields of state that changed since the
// last call. The first call after creation or a reconnect publishes every field.
// An undefined lock state is never published.
func (l *Lock) PublishKeyTurnerState(state KeyTurnerState) {
	n := l.network
	first := l.firstPublish
	last := l.last

	publish := func(err error) {
		if err != nil {
			l.logger.Warn("publish lock state failed", zap.Error(err))
		}
	}

	if (first || state.LockState != last.LockState) && state.LockState != LockStateUndefined {
		publish(n.PublishString(TopicLockState, state.LockState.String()))
		if l.config.HASS != nil {
			if b := state.LockState.Binary(); b != "" {
				publish(n.PublishString(TopicLockBinaryState, b))
			}
		}
	}
	if first || state.Trigger != last.Trigger {
		publish(n.PublishString(TopicLockTrigger, state.Trigger))
	}
	if first || state.LastLockAction != last.LastLockAction {
		publish(n.PublishString(TopicLockLastAction, state.LastLockAction))
	}
	if first || state.CompletionStatus != last.CompletionStatus {
		publish(n.PublishString(TopicLockCompletionStatus, state.CompletionStatus))
	}
	if first || state.DoorSensorState != last.DoorSensorState {
		publish(n.PublishString(TopicLockDoorSensorState, state.DoorSensorState))
	}
	if first || state.BatteryCritical != last.BatteryCritical ||
		state.BatteryCharging != last.BatteryCharging || state.BatteryLevel != last.BatteryLevel {
		publish(n.PublishBool(TopicBatteryCritical, state.BatteryCritical))
		publish(n.PublishBool(TopicBatteryCharging, state.BatteryCharging))
		publish(n.PublishInt(TopicBatteryLevel, int64(state.BatteryLevel)))
	}

	l.last = state
	l.firstPublish = false
}
