package packet

import (
	"bytes"
	"errors"
	"testing"
)

func mustMarshal(t *testing.T, p Packet) []byte {
	t.Helper()
	b, err := Marshal(p)
	if err != nil {
		t.Fatalf("Marshal(%s): %v", p.Type(), err)
	}
	return b
}

func TestConnectEncoding(t *testing.T) {
	tests := []struct {
		name string
		pkt  *Connect
		want []byte
	}{
		{
			name: "minimal",
			pkt:  &Connect{ClientID: "cli", CleanSession: true, KeepAlive: 16},
			want: []byte{
				0x10, 0x0F,
				0x00, 0x04, 'M', 'Q', 'T', 'T',
				0x04,
				0x02,
				0x00, 0x10,
				0x00, 0x03, 'c', 'l', 'i',
			},
		},
		{
			name: "will qos1 with credentials",
			pkt: &Connect{
				ClientID:     "cli",
				CleanSession: true,
				KeepAlive:    16,
				Will:         &Will{Topic: "top", Payload: []byte("pl"), QoS: QoS1, Retain: true},
				Username:     "un",
				Password:     []byte("pa"),
			},
			want: []byte{
				0x10, 0x20,
				0x00, 0x04, 'M', 'Q', 'T', 'T',
				0x04,
				0xEE,
				0x00, 0x10,
				0x00, 0x03, 'c', 'l', 'i',
				0x00, 0x03, 't', 'o', 'p',
				0x00, 0x02, 'p', 'l',
				0x00, 0x02, 'u', 'n',
				0x00, 0x02, 'p', 'a',
			},
		},
		{
			name: "will qos2",
			pkt: &Connect{
				ClientID:     "cli",
				CleanSession: true,
				KeepAlive:    16,
				Will:         &Will{Topic: "top", Payload: []byte("pl"), QoS: QoS2, Retain: true},
				Username:     "un",
				Password:     []byte("pa"),
			},
			want: []byte{
				0x10, 0x20,
				0x00, 0x04, 'M', 'Q', 'T', 'T',
				0x04,
				0xF6,
				0x00, 0x10,
				0x00, 0x03, 'c', 'l', 'i',
				0x00, 0x03, 't', 'o', 'p',
				0x00, 0x02, 'p', 'l',
				0x00, 0x02, 'u', 'n',
				0x00, 0x02, 'p', 'a',
			},
		},
		{
			name: "will without payload",
			pkt: &Connect{
				ClientID:  "c",
				KeepAlive: 60,
				Will:      &Will{Topic: "t"},
			},
			want: []byte{
				0x10, 0x12,
				0x00, 0x04, 'M', 'Q', 'T', 'T',
				0x04,
				0x04,
				0x00, 0x3C,
				0x00, 0x01, 'c',
				0x00, 0x01, 't',
				0x00, 0x00,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustMarshal(t, tt.pkt)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("encoded\n got % X\nwant % X", got, tt.want)
			}

			SetDup(got)
			if !bytes.Equal(got, tt.want) {
				t.Error("SetDup modified a CONNECT")
			}
			if !RemovableAfterSend(got) {
				t.Error("CONNECT should be removable after send")
			}
			if id := EncodedPacketID(got); id != 0 {
				t.Errorf("EncodedPacketID = %d, want 0", id)
			}
		})
	}
}

func TestConnectRejectsEmptyClientID(t *testing.T) {
	if _, err := NewConnect("", true, 16); !errors.Is(err, ErrMalformedParameter) {
		t.Fatalf("NewConnect(\"\") err = %v, want %v", err, ErrMalformedParameter)
	}
	if _, err := Marshal(&Connect{}); err == nil {
		t.Fatal("Marshal accepted a CONNECT without client id")
	}
}

func TestPublishEncoding(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03, 0x04}

	tests := []struct {
		name      string
		pkt       *Publish
		want      []byte
		wantDup   []byte
		removable bool
		id        uint16
	}{
		{
			name:      "qos0 ignores packet id",
			pkt:       NewPublish("top", payload, QoS0, false, 22),
			want:      []byte{0x30, 0x09, 0x00, 0x03, 't', 'o', 'p', 0x01, 0x02, 0x03, 0x04},
			wantDup:   []byte{0x30, 0x09, 0x00, 0x03, 't', 'o', 'p', 0x01, 0x02, 0x03, 0x04},
			removable: true,
			id:        0,
		},
		{
			name:    "qos1 retained",
			pkt:     NewPublish("top", payload, QoS1, true, 22),
			want:    []byte{0x33, 0x0B, 0x00, 0x03, 't', 'o', 'p', 0x00, 0x16, 0x01, 0x02, 0x03, 0x04},
			wantDup: []byte{0x3B, 0x0B, 0x00, 0x03, 't', 'o', 'p', 0x00, 0x16, 0x01, 0x02, 0x03, 0x04},
			id:      22,
		},
		{
			name:    "qos2 retained",
			pkt:     NewPublish("top", payload, QoS2, true, 22),
			want:    []byte{0x35, 0x0B, 0x00, 0x03, 't', 'o', 'p', 0x00, 0x16, 0x01, 0x02, 0x03, 0x04},
			wantDup: []byte{0x3D, 0x0B, 0x00, 0x03, 't', 'o', 'p', 0x00, 0x16, 0x01, 0x02, 0x03, 0x04},
			id:      22,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustMarshal(t, tt.pkt)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("encoded\n got % X\nwant % X", got, tt.want)
			}
			if RemovableAfterSend(got) != tt.removable {
				t.Errorf("RemovableAfterSend = %v, want %v", !tt.removable, tt.removable)
			}
			if id := EncodedPacketID(got); id != tt.id {
				t.Errorf("EncodedPacketID = %d, want %d", id, tt.id)
			}
			SetDup(got)
			if !bytes.Equal(got, tt.wantDup) {
				t.Errorf("after SetDup\n got % X\nwant % X", got, tt.wantDup)
			}
		})
	}
}

func TestPublishRequiresPacketIDForQoS(t *testing.T) {
	if _, err := Marshal(NewPublish("top", nil, QoS1, false, 0)); err == nil {
		t.Fatal("Marshal accepted a QoS1 PUBLISH without packet id")
	}
}

func TestAckEncoding(t *testing.T) {
	tests := []struct {
		pkt       Packet
		want      []byte
		removable bool
	}{
		{&Puback{PacketID: 22}, []byte{0x40, 0x02, 0x00, 0x16}, true},
		{&Pubrec{PacketID: 22}, []byte{0x50, 0x02, 0x00, 0x16}, false},
		{&Pubrel{PacketID: 22}, []byte{0x62, 0x02, 0x00, 0x16}, false},
		{&Pubcomp{PacketID: 22}, []byte{0x70, 0x02, 0x00, 0x16}, true},
	}

	for _, tt := range tests {
		t.Run(tt.pkt.Type().String(), func(t *testing.T) {
			got := mustMarshal(t, tt.pkt)
			SetDup(got)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("encoded\n got % X\nwant % X", got, tt.want)
			}
			if RemovableAfterSend(got) != tt.removable {
				t.Errorf("RemovableAfterSend = %v, want %v", !tt.removable, tt.removable)
			}
			if id := EncodedPacketID(got); id != 22 {
				t.Errorf("EncodedPacketID = %d, want 22", id)
			}
		})
	}
}

func TestSubscribeEncoding(t *testing.T) {
	tests := []struct {
		name string
		subs []Subscription
		want []byte
	}{
		{
			name: "single",
			subs: []Subscription{{"a/b", QoS2}},
			want: []byte{0x82, 0x08, 0x00, 0x16, 0x00, 0x03, 'a', '/', 'b', 0x02},
		},
		{
			name: "two filters",
			subs: []Subscription{{"a/b", QoS1}, {"c/d", QoS2}},
			want: []byte{
				0x82, 0x0E, 0x00, 0x16,
				0x00, 0x03, 'a', '/', 'b', 0x01,
				0x00, 0x03, 'c', '/', 'd', 0x02,
			},
		},
		{
			name: "three filters",
			subs: []Subscription{{"a/b", QoS1}, {"c/d", QoS2}, {"e/f", QoS0}},
			want: []byte{
				0x82, 0x14, 0x00, 0x16,
				0x00, 0x03, 'a', '/', 'b', 0x01,
				0x00, 0x03, 'c', '/', 'd', 0x02,
				0x00, 0x03, 'e', '/', 'f', 0x00,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkt, err := NewSubscribe(22, tt.subs...)
			if err != nil {
				t.Fatalf("NewSubscribe: %v", err)
			}
			got := mustMarshal(t, pkt)
			SetDup(got)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("encoded\n got % X\nwant % X", got, tt.want)
			}
			if RemovableAfterSend(got) {
				t.Error("SUBSCRIBE should wait for SUBACK")
			}
			if id := EncodedPacketID(got); id != 22 {
				t.Errorf("EncodedPacketID = %d, want 22", id)
			}
		})
	}

	if _, err := NewSubscribe(22); !errors.Is(err, ErrMalformedParameter) {
		t.Errorf("NewSubscribe without filters err = %v", err)
	}
	if _, err := NewSubscribe(0, Subscription{"a", QoS0}); !errors.Is(err, ErrInvalidPacketID) {
		t.Errorf("NewSubscribe with id 0 err = %v", err)
	}
}

func TestUnsubscribeEncoding(t *testing.T) {
	tests := []struct {
		name    string
		filters []string
		want    []byte
	}{
		{"single", []string{"a/b"}, []byte{0xA2, 0x07, 0x00, 0x16, 0x00, 0x03, 'a', '/', 'b'}},
		{"two filters", []string{"a/b", "c/d"}, []byte{
			0xA2, 0x0C, 0x00, 0x16,
			0x00, 0x03, 'a', '/', 'b',
			0x00, 0x03, 'c', '/', 'd',
		}},
		{"three filters", []string{"a/b", "c/d", "e/f"}, []byte{
			0xA2, 0x11, 0x00, 0x16,
			0x00, 0x03, 'a', '/', 'b',
			0x00, 0x03, 'c', '/', 'd',
			0x00, 0x03, 'e', '/', 'f',
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkt, err := NewUnsubscribe(22, tt.filters...)
			if err != nil {
				t.Fatalf("NewUnsubscribe: %v", err)
			}
			got := mustMarshal(t, pkt)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("encoded\n got % X\nwant % X", got, tt.want)
			}
			if RemovableAfterSend(got) {
				t.Error("UNSUBSCRIBE should wait for UNSUBACK")
			}
		})
	}
}

func TestControlPackets(t *testing.T) {
	ping := mustMarshal(t, &Pingreq{})
	if !bytes.Equal(ping, []byte{0xC0, 0x00}) || !RemovableAfterSend(ping) {
		t.Errorf("PINGREQ = % X", ping)
	}
	disc := mustMarshal(t, &Disconnect{})
	if !bytes.Equal(disc, []byte{0xE0, 0x00}) || !RemovableAfterSend(disc) {
		t.Errorf("DISCONNECT = % X", disc)
	}
	if EncodedType(disc) != TypeDisconnect {
		t.Errorf("EncodedType = %v", EncodedType(disc))
	}
}

func TestDecodeConnack(t *testing.T) {
	c, err := DecodeConnack([]byte{0x01, 0x00})
	if err != nil || !c.SessionPresent || c.ReturnCode != ConnackAccepted {
		t.Fatalf("DecodeConnack = %+v, %v", c, err)
	}
	if _, err := DecodeConnack([]byte{0x02, 0x00}); !errors.Is(err, ErrMalformedPacket) {
		t.Errorf("reserved ack flag err = %v", err)
	}
	if _, err := DecodeConnack([]byte{0x00, 0x06}); !errors.Is(err, ErrInvalidReturnCode) {
		t.Errorf("unknown return code err = %v", err)
	}
	if _, err := DecodeConnack([]byte{0x01, 0x05}); !errors.Is(err, ErrMalformedPacket) {
		t.Errorf("session present on refusal err = %v", err)
	}
}

func TestDecodeSuback(t *testing.T) {
	s, err := DecodeSuback([]byte{0x00, 0x0A, 0x02, 0x80})
	if err != nil {
		t.Fatalf("DecodeSuback: %v", err)
	}
	if s.PacketID != 10 || len(s.ReturnCodes) != 2 || s.ReturnCodes[0] != SubackGrantedQoS2 || s.ReturnCodes[1].Granted() {
		t.Errorf("DecodeSuback = %+v", s)
	}
	if _, err := DecodeSuback([]byte{0x00, 0x0A, 0x03}); !errors.Is(err, ErrInvalidReturnCode) {
		t.Errorf("invalid code err = %v", err)
	}
}
