package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bromq-dev/nukibridge/pkg/client"
	"github.com/bromq-dev/nukibridge/pkg/packet"
)

var pubFlags struct {
	topic   string
	message string
	qos     int
	retain  bool
	timeout time.Duration
}

var pubCmd = &cobra.Command{
	Use:   "pub",
	Short: "Publish one message and wait for the broker to acknowledge it",
	Example: `  nukibridge pub -t nuki/lock/action -m unlock
  nukibridge pub -t nuki/maintenance/reset -m 1 -q 2`,
	Args: cobra.NoArgs,
	RunE: runPub,
}

func init() {
	f := pubCmd.Flags()
	f.StringVarP(&pubFlags.topic, "topic", "t", "", "topic to publish to")
	f.StringVarP(&pubFlags.message, "message", "m", "", "message payload")
	f.IntVarP(&pubFlags.qos, "qos", "q", 0, "quality of service (0, 1 or 2)")
	f.BoolVarP(&pubFlags.retain, "retain", "r", false, "retain the message")
	f.DurationVar(&pubFlags.timeout, "timeout", 10*time.Second, "time allowed for connect and acknowledgement")
	_ = pubCmd.MarkFlagRequired("topic")
}

// ackWaiter records completed publishes.
type ackWaiter struct {
	done map[uint16]bool
}

func (w *ackWaiter) ID() string { return "ack-waiter" }

func (w *ackWaiter) OnPublished(ctx context.Context, packetID uint16) {
	w.done[packetID] = true
}

func (w *ackWaiter) OnSubscribed(ctx context.Context, packetID uint16, codes []packet.SubackReturnCode) {
}

func (w *ackWaiter) OnUnsubscribed(ctx context.Context, packetID uint16) {}

func runPub(cmd *cobra.Command, args []string) error {
	qos := packet.QoS(pubFlags.qos)
	if pubFlags.qos < 0 || !qos.Valid() {
		return fmt.Errorf("invalid qos %d", pubFlags.qos)
	}

	cfg, logger, _, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, pubFlags.timeout)
	defer cancel()

	c, err := newClient(cfg, cfg.MQTT.ClientID+"-pub", nil, logger)
	if err != nil {
		return err
	}
	acks := &ackWaiter{done: map[uint16]bool{}}
	c.RegisterHook(acks)

	if err := connect(ctx, c); err != nil {
		return err
	}
	defer disconnect(context.Background(), c)

	id, err := c.Publish(pubFlags.topic, qos, pubFlags.retain, []byte(pubFlags.message))
	if err != nil {
		return err
	}

	// QoS 0 is done once written, QoS 1 and 2 once acknowledged.
	for {
		if (qos == packet.QoS0 && c.Pending() == 0) || (qos > packet.QoS0 && acks.done[id]) {
			break
		}
		if !c.Connected() {
			return fmt.Errorf("publish: connection lost")
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("publish: %w", err)
		}
		c.Loop(ctx)
	}

	logger.Info("published",
		zap.String("topic", pubFlags.topic),
		zap.Stringer("qos", qos),
		zap.Uint16("packet_id", id),
	)
	return nil
}

var _ client.AckHook = (*ackWaiter)(nil)
