package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bromq-dev/nukibridge/internal/config"
	"github.com/bromq-dev/nukibridge/internal/version"
	"github.com/bromq-dev/nukibridge/pkg/hooks"
	"github.com/bromq-dev/nukibridge/pkg/mqttlog"
	"github.com/bromq-dev/nukibridge/pkg/network"
	"github.com/bromq-dev/nukibridge/pkg/packet"
)

const (
	shutdownTimeout = 5 * time.Second
	// idleDelay paces the run loop while there is no connection to poll.
	idleDelay = 100 * time.Millisecond
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bridge with a simulated lock",
	Long: `Connects to the broker and exposes a dry-run lock under the topic prefix.

Actions written to <prefix>/lock/action (unlock, lock, unlatch, lockNgo,
lockNgoUnlatch, fullLock) change the simulated state, which is published back
under <prefix>/lock/ and <prefix>/battery/.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, logw, err := setup()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runBridge(ctx, cfg, logger, logw)
	},
}

func runBridge(ctx context.Context, cfg *config.Config, logger *zap.Logger, logw *mqttlog.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c, err := newClient(cfg, "", network.Will(cfg.Network.Prefix), logger)
	if err != nil {
		return err
	}
	c.RegisterHook(hooks.NewLoggerHook(hooks.LoggerConfig{
		Logger: logger.Named("mqtt"),
		Level:  hooks.LogLevelConnection | hooks.LogLevelSubscribe,
	}))

	n := network.New(c, &network.Config{
		Prefix:            cfg.Network.Prefix,
		ReconnectInterval: cfg.Network.ReconnectInterval,
		SubscribeQoS:      packet.QoS1,
		Logger:            logger.Named("network"),
	})

	maintenance := hooks.NewMaintenanceHook(hooks.MaintenanceConfig{
		Publisher: n.PublishString,
		Interval:  cfg.Network.MaintenanceInterval,
		Version:   version.Version,
		Build:     version.Commit,
		IP:        cfg.Network.IP,
	})
	c.RegisterHook(maintenance)
	n.AddTicker(maintenance)

	dry := newDryRunLock(logger)
	lockConfig := network.LockConfig{
		Action: dry.Action,
		Reset: func() {
			logger.Info("restart requested, shutting down")
			cancel()
		},
	}
	if cfg.HASS.Enabled {
		lockConfig.HASS = &network.HASSConfig{
			DiscoveryPrefix: cfg.HASS.DiscoveryPrefix,
			DeviceType:      cfg.Lock.DeviceType,
			Name:            cfg.Lock.Name,
			UID:             cfg.Lock.UID,
			LockAction:      "lock",
			UnlockAction:    "unlock",
			OpenAction:      "unlatch",
		}
	}
	lock, err := network.NewLock(n, lockConfig)
	if err != nil {
		return err
	}
	var (
		opener    *network.Opener
		dryOpener *dryRunOpener
	)
	if cfg.Opener.Enabled {
		dryOpener = newDryRunOpener(logger)
		opener, err = network.NewOpener(n, network.OpenerConfig{
			Path:        cfg.Opener.Path,
			Action:      dryOpener.Action,
			BinaryState: cfg.HASS.Enabled,
		})
		if err != nil {
			return err
		}
	}
	n.OnConnect(func(first bool) {
		if first && lockConfig.HASS != nil {
			if err := lock.PublishHASSConfig(); err != nil {
				logger.Warn("publish discovery failed", zap.Error(err))
			}
		}
	})

	logger.Info("bridge started",
		zap.String("version", version.Full()),
		zap.String("broker", cfg.MQTT.Host),
		zap.Int("port", cfg.MQTT.Port),
		zap.String("transport", cfg.MQTT.Transport),
		zap.String("prefix", cfg.Network.Prefix),
	)

	last := network.StatusDisconnected
	for ctx.Err() == nil {
		status := n.Update(ctx)
		if status != last {
			logger.Debug("network status changed", zap.Stringer("status", status))
			last = status
		}
		if status == network.StatusConnected {
			lock.PublishKeyTurnerState(dry.State())
			if opener != nil {
				opener.PublishState(dryOpener.Status())
				if dryOpener.Rang() {
					opener.PublishRing()
				}
			}
		}
		if logw != nil {
			logw.Drain(c)
		}
		if c.Disconnected() {
			select {
			case <-ctx.Done():
			case <-time.After(idleDelay):
			}
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if logw != nil {
		_ = logw.Sync()
		logw.Drain(c)
	}
	if err := n.Stop(shutdownCtx); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
	return nil
}
