package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bromq-dev/nukibridge/pkg/client"
	"github.com/bromq-dev/nukibridge/pkg/packet"
)

var subFlags struct {
	topics  []string
	qos     int
	verbose bool
}

var subCmd = &cobra.Command{
	Use:     "sub",
	Short:   "Subscribe to topics and print incoming messages",
	Example: `  nukibridge sub -t 'nuki/#' -v`,
	Args:    cobra.NoArgs,
	RunE:    runSub,
}

func init() {
	f := subCmd.Flags()
	f.StringArrayVarP(&subFlags.topics, "topic", "t", nil, "topic filter (can be repeated)")
	f.IntVarP(&subFlags.qos, "qos", "q", 0, "requested quality of service (0, 1 or 2)")
	f.BoolVarP(&subFlags.verbose, "verbose", "v", false, "print the topic before each message")
	_ = subCmd.MarkFlagRequired("topic")
}

// printer writes incoming messages, one per line.
type printer struct {
	out     io.Writer
	verbose bool
}

func (p *printer) ID() string { return "printer" }

func (p *printer) OnMessage(ctx context.Context, msg *client.Message) {
	if msg.Index == 0 && p.verbose {
		fmt.Fprintf(p.out, "%s ", msg.Topic)
	}
	_, _ = p.out.Write(msg.Payload)
	if msg.Last() {
		fmt.Fprintln(p.out)
	}
}

func runSub(cmd *cobra.Command, args []string) error {
	qos := packet.QoS(subFlags.qos)
	if subFlags.qos < 0 || !qos.Valid() {
		return fmt.Errorf("invalid qos %d", subFlags.qos)
	}

	cfg, logger, _, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := newClient(cfg, cfg.MQTT.ClientID+"-sub", nil, logger)
	if err != nil {
		return err
	}
	c.RegisterHook(&printer{out: cmd.OutOrStdout(), verbose: subFlags.verbose})

	if err := connect(ctx, c); err != nil {
		return err
	}

	subs := make([]packet.Subscription, len(subFlags.topics))
	for i, t := range subFlags.topics {
		subs[i] = packet.Subscription{TopicFilter: t, QoS: qos}
	}
	if _, err := c.Subscribe(subs...); err != nil {
		return err
	}
	logger.Info("subscribed", zap.Strings("topics", subFlags.topics))

	for ctx.Err() == nil {
		if c.Disconnected() {
			return fmt.Errorf("subscribe: connection lost")
		}
		c.Loop(ctx)
	}
	disconnect(context.Background(), c)
	return nil
}
