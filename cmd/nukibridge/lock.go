package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/bromq-dev/nukibridge/pkg/network"
)

// dryRunLock simulates a smart lock: actions change its state without moving
// any hardware.
type dryRunLock struct {
	logger *zap.Logger
	state  network.KeyTurnerState
}

func newDryRunLock(logger *zap.Logger) *dryRunLock {
	return &dryRunLock{
		logger: logger.Named("dry-run"),
		state: network.KeyTurnerState{
			LockState:        network.LockStateLocked,
			Trigger:          "system",
			LastLockAction:   "lock",
			CompletionStatus: "success",
			DoorSensorState:  "doorClosed",
			BatteryLevel:     100,
		},
	}
}

// Action executes action and reports the result published to the action topic.
func (d *dryRunLock) Action(ctx context.Context, action string) network.ActionResult {
	var next network.LockState
	switch action {
	case "unlock":
		next = network.LockStateUnlocked
	case "lock", "lockNgo", "fullLock":
		next = network.LockStateLocked
	case "unlatch", "lockNgoUnlatch":
		next = network.LockStateUnlatched
	default:
		d.logger.Warn("unknown lock action", zap.String("action", action))
		return network.ActionUnknown
	}

	d.logger.Info("lock action executed",
		zap.String("action", action),
		zap.Stringer("from", d.state.LockState),
		zap.Stringer("to", next),
	)
	d.state.LockState = next
	d.state.Trigger = "system"
	d.state.LastLockAction = action
	d.state.CompletionStatus = "success"
	return network.ActionSuccess
}

// State returns the current simulated state.
func (d *dryRunLock) State() network.KeyTurnerState {
	return d.state
}

// dryRunOpener simulates an intercom opener.
type dryRunOpener struct {
	logger *zap.Logger
	status network.OpenerStatus
	rang   bool
}

func newDryRunOpener(logger *zap.Logger) *dryRunOpener {
	return &dryRunOpener{
		logger: logger.Named("dry-run-opener"),
		status: network.OpenerStatus{
			State:            network.OpenerStateLocked,
			Trigger:          "system",
			CompletionStatus: "success",
			DoorSensorState:  "unavailable",
		},
	}
}

// Action executes an opener action. electricStrikeActuation also reports a
// ring, so the ring handling can be exercised without a doorbell.
func (d *dryRunOpener) Action(ctx context.Context, action string) network.ActionResult {
	switch action {
	case "activateRTO":
		d.status.State = network.OpenerStateRTOActive
	case "deactivateRTO":
		d.status.State = network.OpenerStateLocked
	case "activateCM":
		d.status.ContinuousMode = true
	case "deactivateCM":
		d.status.ContinuousMode = false
	case "electricStrikeActuation":
		d.rang = true
	default:
		d.logger.Warn("unknown opener action", zap.String("action", action))
		return network.ActionUnknown
	}
	d.logger.Info("opener action executed", zap.String("action", action))
	d.status.CompletionStatus = "success"
	return network.ActionSuccess
}

// Status returns the current simulated status.
func (d *dryRunOpener) Status() network.OpenerStatus {
	return d.status
}

// Rang reports and clears a pending ring.
func (d *dryRunOpener) Rang() bool {
	r := d.rang
	d.rang = false
	return r
}
