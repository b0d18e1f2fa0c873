package packet

// Publish represents an MQTT PUBLISH packet.
// MQTT 3.1.1 Section 3.3
type Publish struct {
	// Fixed header flags
	Dup    bool // Duplicate delivery flag
	QoS    QoS  // Quality of Service level
	Retain bool // Retain flag

	// Variable header
	TopicName string // Topic name
	PacketID  uint16 // Packet identifier (only for QoS > 0)

	// Payload
	Payload []byte
}

// Type returns TypePublish.
func (p *Publish) Type() Type {
	return TypePublish
}

// flags returns the fixed header flags for this PUBLISH packet.
func (p *Publish) flags() byte {
	var flags byte
	if p.Retain {
		flags |= PublishFlagRetain
	}
	flags |= byte(p.QoS) << 1
	if p.Dup && p.QoS > QoS0 {
		flags |= PublishFlagDup
	}
	return flags
}

func (p *Publish) remainingLength() int {
	n := 2 + len(p.TopicName)
	if p.QoS > QoS0 {
		n += 2
	}
	return n + len(p.Payload)
}

// EncodedSize returns the total size of the encoded PUBLISH packet.
func (p *Publish) EncodedSize() int {
	remainingLength := p.remainingLength()
	return FixedHeaderSize(uint32(remainingLength)) + remainingLength
}

// Encode encodes the PUBLISH packet into buf.
// Returns the number of bytes written, or 0 on error.
func (p *Publish) Encode(buf []byte) int {
	if !p.QoS.Valid() || p.TopicName == "" || len(p.TopicName) > MaxStringLength {
		return 0
	}
	if p.QoS > QoS0 && p.PacketID == 0 {
		return 0
	}
	size := p.EncodedSize()
	if len(buf) < size {
		return 0
	}

	pos := EncodeFixedHeader(buf, TypePublish, p.flags(), uint32(p.remainingLength()))
	if pos == 0 {
		return 0
	}

	pos += EncodeString(buf[pos:], p.TopicName)
	if p.QoS > QoS0 {
		pos += EncodeUint16(buf[pos:], p.PacketID)
	}

	copy(buf[pos:], p.Payload)
	pos += len(p.Payload)

	return pos
}

// DecodePublish decodes a complete PUBLISH packet from buf.
// flags are the fixed header flags (lower 4 bits of first byte).
// buf should contain the packet data starting after the fixed header.
func DecodePublish(flags byte, buf []byte) (*Publish, error) {
	p := &Publish{}
	pos := 0

	p.Retain = flags&PublishFlagRetain != 0
	p.QoS = QoS((flags >> 1) & 0x03)
	p.Dup = flags&PublishFlagDup != 0

	if !p.QoS.Valid() {
		return nil, ErrInvalidQoS
	}

	// DUP must be 0 for QoS 0
	if p.QoS == QoS0 && p.Dup {
		return nil, ErrMalformedPacket
	}

	topic, n, ok := DecodeStringCopy(buf[pos:])
	if !ok {
		return nil, ErrIncompletePacket
	}
	p.TopicName = topic
	pos += n

	if p.QoS > QoS0 {
		packetID, n, ok := DecodeUint16(buf[pos:])
		if !ok {
			return nil, ErrIncompletePacket
		}
		if packetID == 0 {
			return nil, ErrInvalidPacketID
		}
		p.PacketID = packetID
		pos += n
	}

	if pos < len(buf) {
		p.Payload = make([]byte, len(buf)-pos)
		copy(p.Payload, buf[pos:])
	}

	return p, nil
}

// NewPublish creates a new PUBLISH packet. packetID is ignored for QoS 0.
func NewPublish(topic string, payload []byte, qos QoS, retain bool, packetID uint16) *Publish {
	p := &Publish{
		TopicName: topic,
		Payload:   payload,
		QoS:       qos,
		Retain:    retain,
	}
	if qos > QoS0 {
		p.PacketID = packetID
	}
	return p
}
