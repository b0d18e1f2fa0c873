package packet

// encodeAck writes the four-byte form shared by PUBACK, PUBREC, PUBREL and PUBCOMP.
func encodeAck(buf []byte, t Type, flags byte, packetID uint16) int {
	if len(buf) < 4 || packetID == 0 {
		return 0
	}
	pos := EncodeFixedHeader(buf, t, flags, 2)
	pos += EncodeUint16(buf[pos:], packetID)
	return pos
}

// decodeAckID decodes the packet identifier of a PUBACK, PUBREC, PUBREL or PUBCOMP body.
func decodeAckID(buf []byte) (uint16, error) {
	if len(buf) < 2 {
		return 0, ErrIncompletePacket
	}
	if len(buf) > 2 {
		return 0, ErrMalformedPacket
	}
	packetID, _, _ := DecodeUint16(buf)
	if packetID == 0 {
		return 0, ErrInvalidPacketID
	}
	return packetID, nil
}

// Puback represents an MQTT PUBACK packet (QoS 1 acknowledgment).
// MQTT 3.1.1 Section 3.4
type Puback struct {
	PacketID uint16
}

// Type returns TypePuback.
func (p *Puback) Type() Type {
	return TypePuback
}

// EncodedSize returns the total size of the encoded PUBACK packet.
func (p *Puback) EncodedSize() int {
	return 4
}

// Encode encodes the PUBACK packet into buf.
func (p *Puback) Encode(buf []byte) int {
	return encodeAck(buf, TypePuback, 0, p.PacketID)
}

// DecodePuback decodes a PUBACK packet from buf.
func DecodePuback(buf []byte) (*Puback, error) {
	id, err := decodeAckID(buf)
	if err != nil {
		return nil, err
	}
	return &Puback{PacketID: id}, nil
}

// Pubrec represents an MQTT PUBREC packet (QoS 2 step 1).
// MQTT 3.1.1 Section 3.5
type Pubrec struct {
	PacketID uint16
}

// Type returns TypePubrec.
func (p *Pubrec) Type() Type {
	return TypePubrec
}

// EncodedSize returns the total size of the encoded PUBREC packet.
func (p *Pubrec) EncodedSize() int {
	return 4
}

// Encode encodes the PUBREC packet into buf.
func (p *Pubrec) Encode(buf []byte) int {
	return encodeAck(buf, TypePubrec, 0, p.PacketID)
}

// DecodePubrec decodes a PUBREC packet from buf.
func DecodePubrec(buf []byte) (*Pubrec, error) {
	id, err := decodeAckID(buf)
	if err != nil {
		return nil, err
	}
	return &Pubrec{PacketID: id}, nil
}

// Pubrel represents an MQTT PUBREL packet (QoS 2 step 2).
// MQTT 3.1.1 Section 3.6
type Pubrel struct {
	PacketID uint16
}

// Type returns TypePubrel.
func (p *Pubrel) Type() Type {
	return TypePubrel
}

// EncodedSize returns the total size of the encoded PUBREL packet.
func (p *Pubrel) EncodedSize() int {
	return 4
}

// Encode encodes the PUBREL packet into buf.
// PUBREL has fixed flags 0010 (0x02).
func (p *Pubrel) Encode(buf []byte) int {
	return encodeAck(buf, TypePubrel, PubrelFlags, p.PacketID)
}

// DecodePubrel decodes a PUBREL packet from buf.
func DecodePubrel(buf []byte) (*Pubrel, error) {
	id, err := decodeAckID(buf)
	if err != nil {
		return nil, err
	}
	return &Pubrel{PacketID: id}, nil
}

// Pubcomp represents an MQTT PUBCOMP packet (QoS 2 step 3).
// MQTT 3.1.1 Section 3.7
type Pubcomp struct {
	PacketID uint16
}

// Type returns TypePubcomp.
func (p *Pubcomp) Type() Type {
	return TypePubcomp
}

// EncodedSize returns the total size of the encoded PUBCOMP packet.
func (p *Pubcomp) EncodedSize() int {
	return 4
}

// Encode encodes the PUBCOMP packet into buf.
func (p *Pubcomp) Encode(buf []byte) int {
	return encodeAck(buf, TypePubcomp, 0, p.PacketID)
}

// DecodePubcomp decodes a PUBCOMP packet from buf.
func DecodePubcomp(buf []byte) (*Pubcomp, error) {
	id, err := decodeAckID(buf)
	if err != nil {
		return nil, err
	}
	return &Pubcomp{PacketID: id}, nil
}
