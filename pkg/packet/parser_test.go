package packet

import (
	"bytes"
	"testing"
)

func TestParserConnack(t *testing.T) {
	p := NewParser()
	res, n := p.Parse([]byte{0x20, 0x02, 0x01, 0x00})
	if res != ResultPacket || n != 4 {
		t.Fatalf("Parse = %v, %d", res, n)
	}
	pkt := p.Packet()
	if pkt.Type != TypeConnack || !pkt.SessionPresent || pkt.ConnackCode != ConnackAccepted {
		t.Errorf("packet = %+v", pkt)
	}
	if pkt.QoS != QoS0 || pkt.Retain || pkt.Dup {
		t.Errorf("CONNACK carries publish flags: %+v", pkt)
	}
}

func TestParserEmptyInput(t *testing.T) {
	p := NewParser()
	if res, n := p.Parse(nil); res != ResultAwaitData || n != 0 {
		t.Errorf("Parse(nil) = %v, %d", res, n)
	}
}

func TestParserRejectsClientPackets(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
	}{
		{"connect", []byte{0x12, 0x13, 0x14}},
		{"subscribe", []byte{0x82, 0x05}},
		{"pingreq", []byte{0xC0, 0x00}},
		{"disconnect", []byte{0xE0, 0x00}},
		{"reserved", []byte{0xF0, 0x00}},
		{"puback with flags", []byte{0x41, 0x02}},
		{"pubrel without flags", []byte{0x60, 0x02}},
		{"publish qos3", []byte{0x36, 0x02}},
		{"publish qos0 dup", []byte{0x38, 0x02}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParser()
			res, n := p.Parse(tt.in)
			if res != ResultProtocolError || n != 1 {
				t.Errorf("Parse = %v, %d; want protocol error after 1 byte", res, n)
			}
		})
	}
}

func TestParserRejectsBadLengths(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
	}{
		{"connack too long", []byte{0x20, 0x03}},
		{"puback too short", []byte{0x40, 0x01}},
		{"pingresp with body", []byte{0xD0, 0x01}},
		{"suback without codes", []byte{0x90, 0x02}},
		{"suback over bound", []byte{0x90, 0x82, 0x80, 0x04}},
		{"suback of 256 MB", []byte{0x90, 0xFF, 0xFF, 0xFF, 0x7F}},
		{"five byte length", []byte{0x30, 0xFF, 0xFF, 0xFF, 0xFF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParser()
			res, _ := p.Parse(tt.in)
			if res != ResultProtocolError {
				t.Errorf("Parse = %v, want protocol error", res)
			}
		})
	}
}

func TestParserSubackLengthBound(t *testing.T) {
	p := NewParser()
	// 65537 bytes: packet id plus 65535 return codes.
	res, n := p.Parse([]byte{0x90, 0x81, 0x80, 0x04, 0x00, 0x01})
	if res != ResultAwaitData || n != 6 {
		t.Fatalf("Parse = %v, %d, want await data, 6", res, n)
	}
}

func TestParserPublishChunks(t *testing.T) {
	p := NewParser()
	stream := []byte{
		0x32, 0x0B,
		0x00, 0x03, 'a', '/', 'b',
		0x00, 0x0A,
		0x01, 0x02,
	}

	res, n := p.Parse(stream)
	if res != ResultPacket || n != len(stream) {
		t.Fatalf("Parse = %v, %d", res, n)
	}
	pkt := p.Packet()
	if pkt.Type != TypePublish || pkt.Topic != "a/b" || pkt.PacketID != 10 || pkt.QoS != QoS1 {
		t.Fatalf("packet = %+v", pkt)
	}
	if pkt.Payload.Index != 0 || !bytes.Equal(pkt.Payload.Data, []byte{1, 2}) || pkt.Payload.Total != 4 {
		t.Errorf("first chunk = %+v", pkt.Payload)
	}
	if pkt.Payload.Last() {
		t.Error("first chunk reported as last")
	}

	res, n = p.Parse([]byte{0x03, 0x04})
	if res != ResultPacket || n != 2 {
		t.Fatalf("Parse = %v, %d", res, n)
	}
	pkt = p.Packet()
	if pkt.Topic != "a/b" || pkt.PacketID != 10 {
		t.Errorf("packet header lost between chunks: %+v", pkt)
	}
	if pkt.Payload.Index != 2 || !bytes.Equal(pkt.Payload.Data, []byte{3, 4}) || pkt.Payload.Total != 4 {
		t.Errorf("second chunk = %+v", pkt.Payload)
	}
	if !pkt.Payload.Last() {
		t.Error("second chunk not reported as last")
	}
}

func TestParserEmptyPublish(t *testing.T) {
	p := NewParser()
	stream := []byte{0x30, 0x05, 0x00, 0x03, 'a', '/', 'b'}

	for i := 0; i < 2; i++ {
		res, n := p.Parse(stream)
		if res != ResultPacket || n != len(stream) {
			t.Fatalf("round %d: Parse = %v, %d", i, res, n)
		}
		pkt := p.Packet()
		if pkt.Topic != "a/b" || pkt.Payload.Total != 0 || len(pkt.Payload.Data) != 0 || pkt.Payload.Index != 0 {
			t.Errorf("round %d: packet = %+v", i, pkt)
		}
		if !pkt.Payload.Last() {
			t.Errorf("round %d: empty payload not reported as last", i)
		}
	}
}

func TestParserAcks(t *testing.T) {
	tests := []struct {
		in  []byte
		typ Type
		id  uint16
	}{
		{[]byte{0x40, 0x02, 0x12, 0x34}, TypePuback, 0x1234},
		{[]byte{0x50, 0x02, 0x56, 0x78}, TypePubrec, 0x5678},
		{[]byte{0x62, 0x02, 0x9A, 0xBC}, TypePubrel, 0x9ABC},
		{[]byte{0x70, 0x02, 0xDE, 0xF0}, TypePubcomp, 0xDEF0},
		{[]byte{0xB0, 0x02, 0x00, 0x0A}, TypeUnsuback, 10},
	}

	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			p := NewParser()
			res, n := p.Parse(tt.in)
			if res != ResultPacket || n != 4 {
				t.Fatalf("Parse = %v, %d", res, n)
			}
			if pkt := p.Packet(); pkt.Type != tt.typ || pkt.PacketID != tt.id {
				t.Errorf("packet = %+v", pkt)
			}
		})
	}
}

func TestParserSuback(t *testing.T) {
	p := NewParser()
	res, n := p.Parse([]byte{0x90, 0x04, 0x00, 0x0A, 0x02, 0x01})
	if res != ResultPacket || n != 6 {
		t.Fatalf("Parse = %v, %d", res, n)
	}
	pkt := p.Packet()
	want := []SubackReturnCode{SubackGrantedQoS2, SubackGrantedQoS1}
	if pkt.PacketID != 10 || len(pkt.SubackCodes) != 2 || pkt.SubackCodes[0] != want[0] || pkt.SubackCodes[1] != want[1] {
		t.Errorf("packet = %+v", pkt)
	}
}

func TestParserPingresp(t *testing.T) {
	p := NewParser()
	if res, n := p.Parse([]byte{0xD0, 0x00}); res != ResultPacket || n != 2 {
		t.Fatalf("Parse = %v, %d", res, n)
	}
	if p.Packet().Type != TypePingresp {
		t.Errorf("type = %v", p.Packet().Type)
	}
}

func TestParserLongStream(t *testing.T) {
	stream := []byte{
		0x90, 0x03, 0x00, 0x01, 0x00, 0x31, 0x0F, 0x00, 0x09, 0x66, 0x6F, 0x6F, 0x2F, 0x62, 0x61, 0x72,
		0x2F, 0x30, 0x74, 0x65, 0x73, 0x74, 0x90, 0x03, 0x00, 0x02, 0x01, 0x33, 0x11, 0x00, 0x09, 0x66,
		0x6F, 0x6F, 0x2F, 0x62, 0x61, 0x72, 0x2F, 0x31, 0x00, 0x01, 0x74, 0x65, 0x73, 0x74, 0x90, 0x03,
		0x00, 0x03, 0x02, 0x30, 0x0F, 0x00, 0x09, 0x66, 0x6F, 0x6F, 0x2F, 0x62, 0x61, 0x72, 0x2F, 0x30,
		0x74, 0x65, 0x73, 0x74, 0x32, 0x11, 0x00, 0x09, 0x66, 0x6F, 0x6F, 0x2F, 0x62, 0x61, 0x72, 0x2F,
		0x31, 0x00, 0x02, 0x74, 0x65, 0x73, 0x74, 0x40, 0x02, 0x00, 0x04, 0x50, 0x02, 0x00, 0x05,
	}

	want := []struct {
		typ    Type
		read   int
		retain bool
		qos    QoS
	}{
		{TypeSuback, 5, false, QoS0},
		{TypePublish, 22, true, QoS0},
		{TypeSuback, 27, false, QoS0},
		{TypePublish, 46, true, QoS1},
		{TypeSuback, 51, false, QoS0},
		{TypePublish, 68, false, QoS0},
		{TypePublish, 87, false, QoS1},
		{TypePuback, 91, false, QoS0},
		{TypePubrec, 95, false, QoS0},
	}

	p := NewParser()
	read := 0
	for i, w := range want {
		res, n := p.Parse(stream[read:])
		read += n
		if res != ResultPacket {
			t.Fatalf("packet %d: result %v", i, res)
		}
		pkt := p.Packet()
		if pkt.Type != w.typ || read != w.read || pkt.Retain != w.retain || pkt.QoS != w.qos {
			t.Fatalf("packet %d: type %v read %d retain %v qos %v", i, pkt.Type, read, pkt.Retain, pkt.QoS)
		}
		if pkt.Type == TypePublish && string(pkt.Payload.Data) != "test" {
			t.Errorf("packet %d: payload %q", i, pkt.Payload.Data)
		}
	}
	if read != len(stream) {
		t.Errorf("consumed %d of %d bytes", read, len(stream))
	}
}

func TestParserByteAtATime(t *testing.T) {
	pub := mustMarshal(t, NewPublish("nuki/lock/action", []byte("unlock"), QoS2, false, 7))
	stream := append(pub, 0xD0, 0x00)

	p := NewParser()
	var payload []byte
	var types []Type
	for i := range stream {
		res, n := p.Parse(stream[i : i+1])
		if n != 1 {
			t.Fatalf("byte %d: consumed %d", i, n)
		}
		switch res {
		case ResultPacket:
			pkt := p.Packet()
			types = append(types, pkt.Type)
			if pkt.Type == TypePublish {
				if pkt.Payload.Index != len(payload) || pkt.PacketID != 7 || pkt.Topic != "nuki/lock/action" {
					t.Fatalf("byte %d: chunk %+v", i, pkt)
				}
				payload = append(payload, pkt.Payload.Data...)
			}
		case ResultProtocolError:
			t.Fatalf("byte %d: protocol error", i)
		}
	}

	if string(payload) != "unlock" {
		t.Errorf("payload = %q", payload)
	}
	if types[len(types)-1] != TypePingresp {
		t.Errorf("last packet = %v", types[len(types)-1])
	}
}

func TestParserRecoversAfterReset(t *testing.T) {
	p := NewParser()
	p.Parse([]byte{0x32, 0x0B, 0x00})
	p.Reset()
	if res, n := p.Parse([]byte{0xD0, 0x00}); res != ResultPacket || n != 2 {
		t.Errorf("Parse after Reset = %v, %d", res, n)
	}
}
