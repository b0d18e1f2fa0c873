package network

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bromq-dev/nukibridge/pkg/topic"
)

// OpenerState is the state reported by an intercom opener.
type OpenerState uint8

const (
	OpenerStateUncalibrated OpenerState = 0x00
	OpenerStateLocked       OpenerState = 0x01
	OpenerStateRTOActive    OpenerState = 0x03
	OpenerStateOpen         OpenerState = 0x05
	OpenerStateOpening      OpenerState = 0x07
	OpenerStateBootRun      OpenerState = 0xFD
	OpenerStateUndefined    OpenerState = 0xFF
)

func (s OpenerState) String() string {
	switch s {
	case OpenerStateUncalibrated:
		return "uncalibrated"
	case OpenerStateLocked:
		return "locked"
	case OpenerStateRTOActive:
		return "RTOactive"
	case OpenerStateOpen:
		return "open"
	case OpenerStateOpening:
		return "opening"
	case OpenerStateBootRun:
		return "bootRun"
	default:
		return "undefined"
	}
}

// Published on the opener state topic while continuous mode is on, and for
// RingDuration after a ring.
const (
	OpenerContinuousMode = "ContinuousMode"
	OpenerRing           = "ring"
)

// OpenerStatus is a snapshot of an opener's state.
type OpenerStatus struct {
	State            OpenerState
	ContinuousMode   bool
	Trigger          string
	CompletionStatus string
	DoorSensorState  string
	BatteryCritical  bool
}

// binary maps the status to "locked" or "unlocked" for Home Assistant.
func (s OpenerStatus) binary() string {
	if s.ContinuousMode {
		return "unlocked"
	}
	switch s.State {
	case OpenerStateLocked:
		return "locked"
	case OpenerStateRTOActive, OpenerStateOpen, OpenerStateOpening:
		return "unlocked"
	default:
		return ""
	}
}

// OpenerConfig configures an Opener.
type OpenerConfig struct {
	// Path is the opener's topic root below the network prefix. Default: "opener".
	Path string

	// Action executes actions written to the opener's action topic.
	Action ActionFunc

	// RingDuration is how long "ring" stays published. Default: 2s.
	RingDuration time.Duration

	// BinaryState publishes "locked"/"unlocked" for Home Assistant.
	BinaryState bool
}

// Opener exposes an intercom opener over MQTT, next to a lock on the same network.
type Opener struct {
	network *Network
	config  OpenerConfig
	logger  *zap.Logger

	last         OpenerStatus
	firstPublish bool
	ringEnds     time.Time
}

// NewOpener registers the opener's topics on n and runs it as a ticker.
func NewOpener(n *Network, config OpenerConfig) (*Opener, error) {
	if config.Path == "" {
		config.Path = "opener"
	}
	if config.RingDuration <= 0 {
		config.RingDuration = 2 * time.Second
	}
	o := &Opener{
		network:      n,
		config:       config,
		logger:       n.logger.Named("opener"),
		firstPublish: true,
	}

	n.InitTopic(o.path(TopicLockAction), actionIdle)
	if err := n.Subscribe(o.path(TopicLockAction), o.onAction); err != nil {
		return nil, err
	}
	n.AddTicker(o)
	n.OnConnect(func(first bool) {
		if !first {
			o.firstPublish = true
		}
	})
	return o, nil
}

// path returns p below the opener's topic root.
func (o *Opener) path(p string) string {
	return topic.Join(o.config.Path, p)
}

func (o *Opener) onAction(ctx context.Context, topic string, payload []byte) {
	handleAction(ctx, o.network, o.path(TopicLockAction), o.config.Action, payload, o.logger)
}

// PublishState publishes the fields of status that changed since the last
// call; the first call after creation or a reconnect publishes all of them.
func (o *Opener) PublishState(status OpenerStatus) {
	n := o.network
	first := o.firstPublish
	last := o.last

	publish := func(err error) {
		if err != nil {
			o.logger.Warn("publish opener state failed", zap.Error(err))
		}
	}

	changed := status.State != last.State || status.ContinuousMode != last.ContinuousMode
	if (first || changed) && status.State != OpenerStateUndefined {
		state := status.State.String()
		if status.ContinuousMode {
			state = OpenerContinuousMode
		}
		publish(n.PublishString(o.path(TopicLockState), state))
		if o.config.BinaryState {
			if b := status.binary(); b != "" {
				publish(n.PublishString(o.path(TopicLockBinaryState), b))
			}
		}
	}
	if first || status.Trigger != last.Trigger {
		publish(n.PublishString(o.path(TopicLockTrigger), status.Trigger))
	}
	if first || status.CompletionStatus != last.CompletionStatus {
		publish(n.PublishString(o.path(TopicLockCompletionStatus), status.CompletionStatus))
	}
	if first || status.DoorSensorState != last.DoorSensorState {
		publish(n.PublishString(o.path(TopicLockDoorSensorState), status.DoorSensorState))
	}
	if first || status.BatteryCritical != last.BatteryCritical {
		publish(n.PublishBool(o.path(TopicBatteryCritical), status.BatteryCritical))
	}

	o.last = status
	o.firstPublish = false
}

// PublishRing publishes "ring" on the state topic. The locked state is
// published again once RingDuration has passed.
func (o *Opener) PublishRing() {
	if err := o.network.PublishString(o.path(TopicLockState), OpenerRing); err != nil {
		o.logger.Warn("publish ring failed", zap.Error(err))
		return
	}
	o.ringEnds = o.network.now().Add(o.config.RingDuration)
}

// Tick restores the state topic after a ring.
func (o *Opener) Tick(ctx context.Context, now time.Time) {
	if o.ringEnds.IsZero() || now.Before(o.ringEnds) {
		return
	}
	o.ringEnds = time.Time{}
	if err := o.network.PublishString(o.path(TopicLockState), OpenerStateLocked.String()); err != nil {
		o.logger.Warn("publish opener state failed", zap.Error(err))
	}
}
