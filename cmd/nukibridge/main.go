// Nukibridge exposes a smart lock over MQTT.
//
// It keeps a session with the broker, publishes the lock state under a topic
// prefix, executes actions written to <prefix>/lock/action and announces
// itself to Home Assistant.
//
// Usage:
//
//	nukibridge run [--config nukibridge.yaml]
//	nukibridge pub -t nuki/lock/action -m unlock -q 1
//	nukibridge sub -t 'nuki/#'
//
// Configuration is read from nukibridge.yaml and NUKIBRIDGE_* environment
// variables; see internal/config.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bromq-dev/nukibridge/internal/config"
	"github.com/bromq-dev/nukibridge/internal/logging"
	"github.com/bromq-dev/nukibridge/internal/version"
	"github.com/bromq-dev/nukibridge/pkg/mqttlog"
	"github.com/bromq-dev/nukibridge/pkg/network"
	"github.com/bromq-dev/nukibridge/pkg/topic"
)

var (
	configFile string
	logLevel   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "nukibridge",
	Short:         "Smart lock to MQTT bridge",
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: ./nukibridge.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")

	rootCmd.AddCommand(runCmd, pubCmd, subCmd, versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "nukibridge %s\n", version.Full())
	},
}

// setup loads the configuration and builds the logger. logw is non-nil when
// log lines are also published over MQTT.
func setup() (cfg *config.Config, logger *zap.Logger, logw *mqttlog.Writer, err error) {
	cfg, err = config.Load(configFile)
	if err != nil {
		return nil, nil, nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if cfg.Logging.MQTT {
		mode, _ := mqttlog.ParseMode(cfg.Logging.MQTTMode)
		logw = mqttlog.New(mqttlog.Config{
			Topic:    topic.Join(cfg.Network.Prefix, network.TopicLog),
			Mode:     mode,
			Fallback: os.Stderr,
			Retain:   true,
		})
	}

	opts := logging.Options{Level: cfg.Logging.Level, MQTT: logw}
	if logw != nil {
		// The mqtt writer handles the console through its fallback.
		opts.Output = io.Discard
	}
	logger, err = logging.New(opts)
	if err != nil {
		return nil, nil, nil, err
	}
	if cfg.File != "" {
		logger.Info("loaded config file", zap.String("path", cfg.File))
	}
	return cfg, logger, logw, nil
}
