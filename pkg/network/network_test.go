package network

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bromq-dev/nukibridge/pkg/client"
	"github.com/bromq-dev/nukibridge/pkg/packet"
)

var _ Client = (*client.Client)(nil)

type publishedMsg struct {
	topic   string
	qos     packet.QoS
	retain  bool
	payload string
}

// fakeClient records requests and lets tests set the connection state.
type fakeClient struct {
	state       client.State
	connectErr  error
	connects    int
	loops       int
	pending     int
	disconnects []bool
	published   []publishedMsg
	subscribed  [][]packet.Subscription
	hooks       []client.Hook
}

func (f *fakeClient) Connect() error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connects++
	f.state = client.StateConnectingTCP
	return nil
}

func (f *fakeClient) Connected() bool    { return f.state == client.StateConnected }
func (f *fakeClient) Disconnected() bool { return f.state == client.StateDisconnected }
func (f *fakeClient) Pending() int       { return f.pending }

func (f *fakeClient) Disconnect(force bool) {
	f.disconnects = append(f.disconnects, force)
	if force {
		f.state = client.StateDisconnectingTCP
		return
	}
	f.state = client.StateDisconnectingMQTT
}

func (f *fakeClient) Loop(ctx context.Context) {
	f.loops++
	switch f.state {
	case client.StateDisconnectingMQTT, client.StateDisconnectingTCP:
		f.state = client.StateDisconnected
	case client.StateConnected:
		if f.pending > 0 {
			f.pending--
		}
	}
}

func (f *fakeClient) Publish(topic string, qos packet.QoS, retain bool, payload []byte) (uint16, error) {
	f.published = append(f.published, publishedMsg{topic, qos, retain, string(payload)})
	return 0, nil
}

func (f *fakeClient) Subscribe(subs ...packet.Subscription) (uint16, error) {
	f.subscribed = append(f.subscribed, subs)
	return 1, nil
}

func (f *fakeClient) RegisterHook(hook client.Hook) {
	f.hooks = append(f.hooks, hook)
}

// take returns and clears the recorded publishes.
func (f *fakeClient) take() []publishedMsg {
	p := f.published
	f.published = nil
	return p
}

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestNetwork(t *testing.T) (*Network, *fakeClient, *clock) {
	t.Helper()
	fc := &fakeClient{state: client.StateDisconnected}
	n := New(fc, nil)
	clk := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	n.now = clk.now
	if len(fc.hooks) != 1 || fc.hooks[0] != n {
		t.Fatalf("network not registered as hook: %v", fc.hooks)
	}
	return n, fc, clk
}

// accept simulates the broker accepting a connection.
func accept(n *Network, fc *fakeClient) {
	fc.state = client.StateConnected
	n.OnConnected(context.Background(), false)
}

// drop simulates a lost connection.
func drop(n *Network, fc *fakeClient) {
	fc.state = client.StateDisconnected
	n.OnDisconnected(context.Background(), client.ReasonTCPDisconnected)
}

func TestWill(t *testing.T) {
	w := Will("nuki")
	if w.Topic != "nuki/maintenance/mqttConnectionState" || string(w.Payload) != "offline" ||
		w.QoS != packet.QoS1 || !w.Retain {
		t.Fatalf("Will() = %+v", w)
	}
}

func TestUpdateReconnectInterval(t *testing.T) {
	n, fc, clk := newTestNetwork(t)
	ctx := context.Background()

	if got := n.Update(ctx); got != StatusDisconnected {
		t.Fatalf("Update() = %s", got)
	}
	if fc.connects != 1 || fc.loops != 1 {
		t.Fatalf("connects = %d, loops = %d", fc.connects, fc.loops)
	}

	drop(n, fc)
	clk.advance(time.Second)
	n.Update(ctx)
	if fc.connects != 1 {
		t.Fatalf("reconnected after 1s: connects = %d", fc.connects)
	}

	clk.advance(4 * time.Second)
	n.Update(ctx)
	if fc.connects != 2 {
		t.Fatalf("no reconnect after 5s: connects = %d", fc.connects)
	}

	accept(n, fc)
	if got := n.Update(ctx); got != StatusConnected {
		t.Fatalf("Update() = %s", got)
	}
	if fc.connects != 2 {
		t.Fatalf("connect attempted while connected")
	}
}

func TestUpdateConnectError(t *testing.T) {
	n, fc, _ := newTestNetwork(t)
	fc.connectErr = client.ErrMalformedParameter

	if got := n.Update(context.Background()); got != StatusDisconnected {
		t.Fatalf("Update() = %s", got)
	}
	if fc.loops != 1 {
		t.Fatal("client loop not run after failed connect")
	}
}

func TestOnConnected(t *testing.T) {
	n, fc, _ := newTestNetwork(t)
	var firsts []bool
	n.OnConnect(func(first bool) { firsts = append(firsts, first) })

	noop := func(context.Context, string, []byte) {}
	if err := n.Subscribe(TopicLockAction, noop); err != nil {
		t.Fatal(err)
	}
	if err := n.Subscribe("/configuration/+", noop); err != nil {
		t.Fatal(err)
	}
	if len(fc.subscribed) != 0 {
		t.Fatal("subscribed while disconnected")
	}
	n.InitTopic(TopicLockAction, "--")
	n.InitTopic(TopicReset, "1")
	n.InitTopic(TopicReset, "0")

	accept(n, fc)

	want := []publishedMsg{
		{"nuki/maintenance/mqttConnectionState", packet.QoS1, true, "online"},
		{"nuki/lock/action", packet.QoS0, true, "--"},
		{"nuki/maintenance/reset", packet.QoS0, true, "0"},
	}
	got := fc.take()
	if len(got) != len(want) {
		t.Fatalf("published %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("publish %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if len(fc.subscribed) != 1 || len(fc.subscribed[0]) != 2 ||
		fc.subscribed[0][0].TopicFilter != "nuki/lock/action" ||
		fc.subscribed[0][1].TopicFilter != "nuki/configuration/+" {
		t.Fatalf("subscribed %+v", fc.subscribed)
	}

	drop(n, fc)
	accept(n, fc)

	got = fc.take()
	if len(got) != 1 || got[0].payload != "online" {
		t.Fatalf("reconnect published %+v, want only the online state", got)
	}
	if len(fc.subscribed) != 2 {
		t.Fatalf("not resubscribed after reconnect")
	}
	if len(firsts) != 2 || !firsts[0] || firsts[1] {
		t.Fatalf("OnConnect first flags = %v", firsts)
	}
}

func TestSubscribeWhileConnected(t *testing.T) {
	n, fc, _ := newTestNetwork(t)
	accept(n, fc)

	if err := n.Subscribe("/lock/#", func(context.Context, string, []byte) {}); err != nil {
		t.Fatal(err)
	}
	if len(fc.subscribed) != 1 || fc.subscribed[0][0].TopicFilter != "nuki/lock/#" {
		t.Fatalf("subscribed %+v", fc.subscribed)
	}

	if err := n.Subscribe("/lock/#/state", nil); err == nil {
		t.Fatal("invalid filter accepted")
	}
}

func TestMessageDispatch(t *testing.T) {
	n, fc, _ := newTestNetwork(t)
	n.config.MaxPayload = 8
	accept(n, fc)
	ctx := context.Background()

	type delivery struct{ handler, topic, payload string }
	var got []delivery
	handler := func(name string) Handler {
		return func(_ context.Context, topic string, payload []byte) {
			got = append(got, delivery{name, topic, string(payload)})
		}
	}
	_ = n.Subscribe(TopicLockAction, handler("action"))
	_ = n.Subscribe("/lock/+", handler("wildcard"))

	// Chunked payload is delivered once, reassembled.
	n.OnMessage(ctx, &client.Message{Topic: "nuki/lock/action", Payload: []byte("unl"), Index: 0, Total: 6})
	n.OnMessage(ctx, &client.Message{Topic: "nuki/lock/action", Payload: []byte("ock"), Index: 3, Total: 6})
	// Oversized payloads are dropped.
	n.OnMessage(ctx, &client.Message{Topic: "nuki/lock/action", Payload: []byte("0123"), Index: 0, Total: 9})
	n.OnMessage(ctx, &client.Message{Topic: "nuki/lock/action", Payload: []byte("45678"), Index: 4, Total: 9})
	// Unmatched topics reach no handler.
	n.OnMessage(ctx, &client.Message{Topic: "other/lock/action", Payload: []byte("x"), Index: 0, Total: 1})
	// Empty payloads are delivered.
	n.OnMessage(ctx, &client.Message{Topic: "nuki/lock/state", Index: 0, Total: 0})

	want := []delivery{
		{"action", "nuki/lock/action", "unlock"},
		{"wildcard", "nuki/lock/action", "unlock"},
		{"wildcard", "nuki/lock/state", ""},
	}
	if len(got) != len(want) {
		t.Fatalf("deliveries %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("delivery %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestPublishHelpers(t *testing.T) {
	n, fc, _ := newTestNetwork(t)

	tests := []struct {
		name    string
		publish func() error
		topic   string
		want    string
	}{
		{"string", func() error { return n.PublishString("/lock/state", "locked") }, "nuki/lock/state", "locked"},
		{"int", func() error { return n.PublishInt(TopicBatteryLevel, -3) }, "nuki/battery/level", "-3"},
		{"uint", func() error { return n.PublishUInt(TopicUptime, 4294967296) }, "nuki/maintenance/uptime", "4294967296"},
		{"float", func() error { return n.PublishFloat("/battery/voltage", 5.8849, 2) }, "nuki/battery/voltage", "5.88"},
		{"float no decimals", func() error { return n.PublishFloat("/battery/voltage", 5.5, 0) }, "nuki/battery/voltage", "6"},
		{"bool true", func() error { return n.PublishBool(TopicBatteryCritical, true) }, "nuki/battery/critical", "1"},
		{"bool false", func() error { return n.PublishBool(TopicBatteryCritical, false) }, "nuki/battery/critical", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.publish(); err != nil {
				t.Fatal(err)
			}
			got := fc.take()
			want := publishedMsg{tt.topic, packet.QoS0, true, tt.want}
			if len(got) != 1 || got[0] != want {
				t.Fatalf("published %+v, want %+v", got, want)
			}
		})
	}
}

type countingTicker struct {
	ticks []time.Time
}

func (c *countingTicker) Tick(ctx context.Context, now time.Time) {
	c.ticks = append(c.ticks, now)
}

func TestTickersRunWhileConnected(t *testing.T) {
	n, fc, clk := newTestNetwork(t)
	tk := &countingTicker{}
	n.AddTicker(tk)
	ctx := context.Background()

	n.Update(ctx)
	if len(tk.ticks) != 0 {
		t.Fatal("ticker ran while disconnected")
	}

	accept(n, fc)
	clk.advance(time.Second)
	n.Update(ctx)
	if len(tk.ticks) != 1 || !tk.ticks[0].Equal(clk.t) {
		t.Fatalf("ticks = %v", tk.ticks)
	}
}

func TestStop(t *testing.T) {
	t.Run("graceful", func(t *testing.T) {
		n, fc, _ := newTestNetwork(t)
		accept(n, fc)
		fc.take()
		fc.pending = 2

		if err := n.Stop(context.Background()); err != nil {
			t.Fatal(err)
		}
		got := fc.take()
		if len(got) != 1 || got[0].topic != "nuki/maintenance/mqttConnectionState" || got[0].payload != "offline" {
			t.Fatalf("published %+v", got)
		}
		if fc.pending != 0 {
			t.Fatal("disconnected before the queue was flushed")
		}
		if len(fc.disconnects) != 1 || fc.disconnects[0] {
			t.Fatalf("disconnects = %v, want one graceful", fc.disconnects)
		}
		if !fc.Disconnected() {
			t.Fatal("still connected")
		}
	})

	t.Run("canceled", func(t *testing.T) {
		n, fc, _ := newTestNetwork(t)
		accept(n, fc)
		fc.pending = 5

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := n.Stop(ctx); !errors.Is(err, context.Canceled) {
			t.Fatalf("Stop() = %v", err)
		}
		if len(fc.disconnects) != 2 || !fc.disconnects[1] {
			t.Fatalf("disconnects = %v, want graceful then forced", fc.disconnects)
		}
		if !fc.Disconnected() {
			t.Fatal("still connected")
		}
	})

	t.Run("disconnected", func(t *testing.T) {
		n, fc, _ := newTestNetwork(t)
		if err := n.Stop(context.Background()); err != nil {
			t.Fatal(err)
		}
		if len(fc.published) != 0 {
			t.Fatal("offline state published while disconnected")
		}
	})
}
