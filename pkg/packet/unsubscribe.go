package packet

// Unsubscribe represents an MQTT UNSUBSCRIBE packet.
// MQTT 3.1.1 Section 3.10
type Unsubscribe struct {
	PacketID     uint16
	TopicFilters []string
}

// Type returns TypeUnsubscribe.
func (u *Unsubscribe) Type() Type {
	return TypeUnsubscribe
}

func (u *Unsubscribe) remainingLength() int {
	n := 2 // Packet ID
	for _, topic := range u.TopicFilters {
		n += 2 + len(topic)
	}
	return n
}

// Validate checks the fields that cannot be put on the wire.
func (u *Unsubscribe) Validate() error {
	if u.PacketID == 0 {
		return ErrInvalidPacketID
	}
	if len(u.TopicFilters) == 0 {
		return ErrMalformedParameter
	}
	for _, topic := range u.TopicFilters {
		if topic == "" {
			return ErrMalformedParameter
		}
		if len(topic) > MaxStringLength {
			return ErrStringTooLong
		}
	}
	return nil
}

// EncodedSize returns the total size of the encoded UNSUBSCRIBE packet.
func (u *Unsubscribe) EncodedSize() int {
	remainingLength := u.remainingLength()
	return FixedHeaderSize(uint32(remainingLength)) + remainingLength
}

// Encode encodes the UNSUBSCRIBE packet into buf.
func (u *Unsubscribe) Encode(buf []byte) int {
	if u.Validate() != nil {
		return 0
	}
	size := u.EncodedSize()
	if len(buf) < size {
		return 0
	}

	// Fixed header (UNSUBSCRIBE has reserved flags 0010)
	pos := EncodeFixedHeader(buf, TypeUnsubscribe, UnsubscribeFlags, uint32(u.remainingLength()))
	if pos == 0 {
		return 0
	}

	pos += EncodeUint16(buf[pos:], u.PacketID)
	for _, topic := range u.TopicFilters {
		pos += EncodeString(buf[pos:], topic)
	}

	return pos
}

// NewUnsubscribe creates an UNSUBSCRIBE packet for one or more filters.
func NewUnsubscribe(packetID uint16, filters ...string) (*Unsubscribe, error) {
	u := &Unsubscribe{PacketID: packetID, TopicFilters: filters}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

// Unsuback represents an MQTT UNSUBACK packet.
// MQTT 3.1.1 Section 3.11
type Unsuback struct {
	PacketID uint16
}

// Type returns TypeUnsuback.
func (u *Unsuback) Type() Type {
	return TypeUnsuback
}

// EncodedSize returns the total size of the encoded UNSUBACK packet.
func (u *Unsuback) EncodedSize() int {
	return 4
}

// Encode encodes the UNSUBACK packet into buf.
func (u *Unsuback) Encode(buf []byte) int {
	return encodeAck(buf, TypeUnsuback, 0, u.PacketID)
}

// DecodeUnsuback decodes an UNSUBACK packet from buf.
func DecodeUnsuback(buf []byte) (*Unsuback, error) {
	id, err := decodeAckID(buf)
	if err != nil {
		return nil, err
	}
	return &Unsuback{PacketID: id}, nil
}
