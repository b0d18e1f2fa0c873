// Package mqttlog publishes log output to an MQTT topic.
//
// A Writer collects lines from any goroutine. The goroutine that owns the MQTT
// client calls Drain to publish them, so the client itself is only ever used
// from its own loop.
package mqttlog

import (
	"bytes"
	"io"
	"sync"

	"go.uber.org/zap/zapcore"

	"github.com/bromq-dev/nukibridge/pkg/packet"
)

// Mode selects where log lines go.
type Mode int

const (
	// ModeMQTTWithFallback publishes to MQTT and uses the fallback writer while disconnected.
	ModeMQTTWithFallback Mode = iota
	// ModeFallbackOnly writes to the fallback writer only.
	ModeFallbackOnly
	// ModeMQTTOnly publishes to MQTT and drops lines while disconnected.
	ModeMQTTOnly
	// ModeMQTTAndFallback publishes to MQTT and always writes to the fallback writer.
	ModeMQTTAndFallback
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeMQTTWithFallback:
		return "mqtt-with-fallback"
	case ModeFallbackOnly:
		return "fallback-only"
	case ModeMQTTOnly:
		return "mqtt-only"
	case ModeMQTTAndFallback:
		return "mqtt-and-fallback"
	default:
		return "unknown"
	}
}

// ParseMode returns the mode named by s, or false.
func ParseMode(s string) (Mode, bool) {
	for m := ModeMQTTWithFallback; m <= ModeMQTTAndFallback; m++ {
		if m.String() == s {
			return m, true
		}
	}
	return 0, false
}

// Publisher is the part of a client the writer needs.
type Publisher interface {
	Connected() bool
	Publish(topic string, qos packet.QoS, retain bool, payload []byte) (uint16, error)
}

// Config configures a Writer.
type Config struct {
	// Topic receives one message per log line.
	Topic string

	// Mode selects the destinations. Default: ModeMQTTWithFallback.
	Mode Mode

	// Fallback receives lines MQTT cannot take. Default: io.Discard.
	Fallback io.Writer

	// LineSize caps a single message; longer lines are split. Default: 1024.
	LineSize int

	// MaxQueued bounds lines waiting for Drain; the oldest are dropped. Default: 64.
	MaxQueued int

	// Retain sets the retain flag on published lines. The last line stays visible to new subscribers.
	Retain bool
}

// Writer buffers log output into lines for publishing.
type Writer struct {
	config Config

	mu      sync.Mutex
	partial []byte
	queue   [][]byte
	dropped int
}

// New creates a Writer.
func New(config Config) *Writer {
	if config.Fallback == nil {
		config.Fallback = io.Discard
	}
	if config.LineSize <= 0 {
		config.LineSize = 1024
	}
	if config.MaxQueued <= 0 {
		config.MaxQueued = 64
	}
	return &Writer{config: config}
}

// Write splits p into lines and queues them. It never fails.
func (w *Writer) Write(p []byte) (int, error) {
	if w.config.Mode == ModeFallbackOnly {
		return w.config.Fallback.Write(p)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.config.Mode == ModeMQTTAndFallback {
		_, _ = w.config.Fallback.Write(p)
	}

	rest := p
	for len(rest) > 0 {
		i := bytes.IndexByte(rest, '\n')
		chunk := rest
		if i >= 0 {
			chunk = rest[:i]
		}
		room := w.config.LineSize - len(w.partial)
		if len(chunk) >= room {
			w.partial = append(w.partial, chunk[:room]...)
			w.flushLocked()
			rest = rest[room:]
			continue
		}
		w.partial = append(w.partial, chunk...)
		if i < 0 {
			break
		}
		w.flushLocked()
		rest = rest[i+1:]
	}
	return len(p), nil
}

// Sync flushes an unterminated line into the queue.
func (w *Writer) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushLocked()
	return nil
}

func (w *Writer) flushLocked() {
	if len(w.partial) == 0 {
		return
	}
	line := append([]byte(nil), w.partial...)
	w.partial = w.partial[:0]
	if len(w.queue) == w.config.MaxQueued {
		w.queue = w.queue[1:]
		w.dropped++
	}
	w.queue = append(w.queue, line)
}

// Drain publishes queued lines through pub. It must be called from the
// goroutine that runs pub's loop. It returns the number of lines published.
func (w *Writer) Drain(pub Publisher) int {
	w.mu.Lock()
	lines := w.queue
	w.queue = nil
	w.mu.Unlock()

	connected := pub != nil && pub.Connected()
	published := 0
	for _, line := range lines {
		if connected {
			if _, err := pub.Publish(w.config.Topic, packet.QoS0, w.config.Retain, line); err == nil {
				published++
				continue
			}
		}
		if w.config.Mode == ModeMQTTWithFallback {
			_, _ = w.config.Fallback.Write(append(line, '\n'))
		}
	}
	return published
}

// Queued returns the number of lines waiting for Drain.
func (w *Writer) Queued() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

// Dropped returns how many lines were discarded because the queue was full.
func (w *Writer) Dropped() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dropped
}

var _ zapcore.WriteSyncer = (*Writer)(nil)

// NewCore returns a zap core that encodes entries as console lines into w.
func NewCore(w *Writer, level zapcore.LevelEnabler) zapcore.Core {
	enc := zapcore.EncoderConfig{
		TimeKey:        "",
		LevelKey:       "L",
		NameKey:        "N",
		MessageKey:     "M",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	return zapcore.NewCore(zapcore.NewConsoleEncoder(enc), w, level)
}
