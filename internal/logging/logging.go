// Package logging builds the zap logger used by the nukibridge binaries.
package logging

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bromq-dev/nukibridge/pkg/mqttlog"
)

// Options configures New.
type Options struct {
	// Level is one of debug, info, warn, error. Default: info.
	Level string

	// Output receives console-encoded entries. Default: os.Stderr.
	Output io.Writer

	// MQTT, when set, also receives every entry at the same level.
	MQTT *mqttlog.Writer
}

// New creates a console logger at the given level.
func New(opts Options) (*zap.Logger, error) {
	if opts.Level == "" {
		opts.Level = "info"
	}
	level, err := zapcore.ParseLevel(opts.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	if opts.Output == nil {
		opts.Output = os.Stderr
	}

	enabled := zap.NewAtomicLevelAt(level)
	encoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(opts.Output)), enabled)
	if opts.MQTT != nil {
		core = zapcore.NewTee(core, mqttlog.NewCore(opts.MQTT, enabled))
	}
	return zap.New(core), nil
}
