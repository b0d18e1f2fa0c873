package packet

// Subscription represents a single topic subscription.
type Subscription struct {
	TopicFilter string
	QoS         QoS
}

// Subscribe represents an MQTT SUBSCRIBE packet.
// MQTT 3.1.1 Section 3.8
type Subscribe struct {
	PacketID      uint16
	Subscriptions []Subscription
}

// Type returns TypeSubscribe.
func (s *Subscribe) Type() Type {
	return TypeSubscribe
}

func (s *Subscribe) remainingLength() int {
	n := 2
	for _, sub := range s.Subscriptions {
		n += 2 + len(sub.TopicFilter) + 1 // length + topic + requested QoS
	}
	return n
}

// Validate checks the fields that cannot be put on the wire.
func (s *Subscribe) Validate() error {
	if s.PacketID == 0 {
		return ErrInvalidPacketID
	}
	if len(s.Subscriptions) == 0 {
		return ErrMalformedParameter
	}
	for _, sub := range s.Subscriptions {
		if sub.TopicFilter == "" {
			return ErrMalformedParameter
		}
		if len(sub.TopicFilter) > MaxStringLength {
			return ErrStringTooLong
		}
		if !sub.QoS.Valid() {
			return ErrInvalidQoS
		}
	}
	return nil
}

// EncodedSize returns the total size of the encoded SUBSCRIBE packet.
func (s *Subscribe) EncodedSize() int {
	remainingLength := s.remainingLength()
	return FixedHeaderSize(uint32(remainingLength)) + remainingLength
}

// Encode encodes the SUBSCRIBE packet into buf.
func (s *Subscribe) Encode(buf []byte) int {
	if s.Validate() != nil {
		return 0
	}
	size := s.EncodedSize()
	if len(buf) < size {
		return 0
	}

	// Fixed header (SUBSCRIBE has reserved flags 0010)
	pos := EncodeFixedHeader(buf, TypeSubscribe, SubscribeFlags, uint32(s.remainingLength()))
	if pos == 0 {
		return 0
	}

	pos += EncodeUint16(buf[pos:], s.PacketID)

	for _, sub := range s.Subscriptions {
		pos += EncodeString(buf[pos:], sub.TopicFilter)
		buf[pos] = byte(sub.QoS)
		pos++
	}

	return pos
}

// NewSubscribe creates a SUBSCRIBE packet for one or more filters.
func NewSubscribe(packetID uint16, subs ...Subscription) (*Subscribe, error) {
	s := &Subscribe{PacketID: packetID, Subscriptions: subs}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Suback represents an MQTT SUBACK packet.
// MQTT 3.1.1 Section 3.9
type Suback struct {
	PacketID    uint16
	ReturnCodes []SubackReturnCode
}

// Type returns TypeSuback.
func (s *Suback) Type() Type {
	return TypeSuback
}

// EncodedSize returns the total size of the encoded SUBACK packet.
func (s *Suback) EncodedSize() int {
	remainingLength := 2 + len(s.ReturnCodes)
	return FixedHeaderSize(uint32(remainingLength)) + remainingLength
}

// Encode encodes the SUBACK packet into buf.
func (s *Suback) Encode(buf []byte) int {
	size := s.EncodedSize()
	if len(buf) < size {
		return 0
	}

	pos := EncodeFixedHeader(buf, TypeSuback, 0, uint32(2+len(s.ReturnCodes)))
	if pos == 0 {
		return 0
	}
	pos += EncodeUint16(buf[pos:], s.PacketID)
	for _, code := range s.ReturnCodes {
		buf[pos] = byte(code)
		pos++
	}
	return pos
}

// DecodeSuback decodes a SUBACK packet from buf.
func DecodeSuback(buf []byte) (*Suback, error) {
	if len(buf) < 3 { // Minimum: packet ID + one return code
		return nil, ErrIncompletePacket
	}

	packetID, n, _ := DecodeUint16(buf)
	if packetID == 0 {
		return nil, ErrInvalidPacketID
	}

	s := &Suback{
		PacketID:    packetID,
		ReturnCodes: make([]SubackReturnCode, 0, len(buf)-n),
	}
	for _, b := range buf[n:] {
		code := SubackReturnCode(b)
		if !code.Valid() {
			return nil, ErrInvalidReturnCode
		}
		s.ReturnCodes = append(s.ReturnCodes, code)
	}

	return s, nil
}
