package packet

import "fmt"

// Packet is the interface implemented by all MQTT control packets.
type Packet interface {
	// Type returns the packet type.
	Type() Type

	// Encode encodes the packet into buf.
	// Returns the number of bytes written, or 0 on error.
	Encode(buf []byte) int

	// EncodedSize returns the total size of the encoded packet.
	EncodedSize() int
}

// Will represents an MQTT Will Message configuration.
type Will struct {
	Topic   string
	Payload []byte
	QoS     QoS
	Retain  bool
}

// Marshal encodes p into a newly allocated buffer of exactly the encoded size.
func Marshal(p Packet) ([]byte, error) {
	size := p.EncodedSize()
	if size <= 0 || size > MaxPacketSize {
		return nil, fmt.Errorf("%s: %w", p.Type(), ErrPacketTooLarge)
	}
	buf := make([]byte, size)
	if n := p.Encode(buf); n != size {
		return nil, fmt.Errorf("%s: %w", p.Type(), ErrMalformedPacket)
	}
	return buf, nil
}

// SetDup sets the DUP flag on an encoded PUBLISH with QoS greater than zero.
// Any other packet is left untouched.
func SetDup(encoded []byte) {
	if len(encoded) == 0 {
		return
	}
	if Type(encoded[0]>>4) != TypePublish {
		return
	}
	if encoded[0]&(PublishFlagQoS1|PublishFlagQoS2) == 0 {
		return
	}
	encoded[0] |= PublishFlagDup
}

// encodedTypeAndQoS reads the packet type and, for PUBLISH, the QoS from an encoded packet.
func encodedTypeAndQoS(encoded []byte) (Type, QoS) {
	if len(encoded) == 0 {
		return TypeReserved0, QoS0
	}
	t := Type(encoded[0] >> 4)
	if t != TypePublish {
		return t, QoS0
	}
	return t, QoS((encoded[0] >> 1) & 0x03)
}

// RemovableAfterSend reports whether an encoded packet needs no acknowledgement
// and can be dropped from the outbox once it has been written in full.
func RemovableAfterSend(encoded []byte) bool {
	t, qos := encodedTypeAndQoS(encoded)
	switch t {
	case TypeConnect, TypePuback, TypePubcomp, TypePingreq, TypeDisconnect:
		return true
	case TypePublish:
		return qos == QoS0
	default:
		return false
	}
}

// EncodedPacketID returns the packet identifier carried by an encoded packet,
// or 0 when the packet has none.
func EncodedPacketID(encoded []byte) uint16 {
	t, qos := encodedTypeAndQoS(encoded)
	_, _, _, hdr, ok := DecodeFixedHeader(encoded)
	if !ok {
		return 0
	}
	body := encoded[hdr:]
	switch t {
	case TypePuback, TypePubrec, TypePubrel, TypePubcomp, TypeSubscribe, TypeUnsubscribe:
		id, _, ok := DecodeUint16(body)
		if !ok {
			return 0
		}
		return id
	case TypePublish:
		if qos == QoS0 {
			return 0
		}
		_, n, ok := DecodeString(body)
		if !ok {
			return 0
		}
		id, _, ok := DecodeUint16(body[n:])
		if !ok {
			return 0
		}
		return id
	default:
		return 0
	}
}

// EncodedType returns the control packet type of an encoded packet.
func EncodedType(encoded []byte) Type {
	t, _ := encodedTypeAndQoS(encoded)
	return t
}
