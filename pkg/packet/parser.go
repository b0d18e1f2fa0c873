package packet

import "encoding/binary"

// ParseResult is the outcome of a single Parser.Parse call.
type ParseResult int

const (
	// ResultAwaitData means all offered bytes were consumed without completing a packet.
	ResultAwaitData ParseResult = iota
	// ResultPacket means a packet, or the next chunk of a PUBLISH payload, is available.
	ResultPacket
	// ResultProtocolError means the stream violates MQTT 3.1.1. The parser has been reset.
	ResultProtocolError
)

// String returns the string representation of the parse result.
func (r ParseResult) String() string {
	switch r {
	case ResultAwaitData:
		return "await data"
	case ResultPacket:
		return "packet"
	case ResultProtocolError:
		return "protocol error"
	default:
		return "unknown"
	}
}

// Payload is a window onto a PUBLISH payload.
// Data references the buffer given to Parse and is only valid until that buffer is reused.
type Payload struct {
	Data  []byte
	Index int // offset of Data within the full payload
	Total int // full payload length
}

// Last reports whether this chunk completes the payload.
func (p Payload) Last() bool {
	return p.Index+len(p.Data) == p.Total
}

// IncomingPacket is a packet received from a server.
// Only the fields relevant to Type are set.
type IncomingPacket struct {
	Type  Type
	Flags byte

	// CONNACK
	SessionPresent bool
	ConnackCode    ConnackReturnCode

	// PUBLISH, PUBACK, PUBREC, PUBREL, PUBCOMP, SUBACK, UNSUBACK
	PacketID uint16

	// SUBACK
	SubackCodes []SubackReturnCode

	// PUBLISH
	Topic   string
	QoS     QoS
	Retain  bool
	Dup     bool
	Payload Payload
}

type parserState int

const (
	stateFixedHeader parserState = iota
	stateRemainingLength
	stateBody
	stateVariableHeader
	statePayload
)

// Parser decodes server-to-client packets from a byte stream delivered in arbitrary pieces.
// PUBLISH payloads are not buffered: each Parse call that sees payload bytes reports
// them as a chunk of the current packet.
type Parser struct {
	state     parserState
	header    byte
	lenBytes  int
	remaining uint32
	buf       []byte // body, or PUBLISH variable header
	need      int    // PUBLISH variable header length once known
	payloadAt int
	packet    IncomingPacket
}

// NewParser creates a parser ready for the first byte of a packet.
func NewParser() *Parser {
	return &Parser{buf: make([]byte, 0, 64)}
}

// Packet returns the packet produced by the last ResultPacket.
func (p *Parser) Packet() *IncomingPacket {
	return &p.packet
}

// Reset drops any partially parsed packet.
func (p *Parser) Reset() {
	p.state = stateFixedHeader
	p.header = 0
	p.lenBytes = 0
	p.remaining = 0
	p.buf = p.buf[:0]
	p.need = 0
	p.payloadAt = 0
}

func (p *Parser) fail(consumed int) (ParseResult, int) {
	p.Reset()
	return ResultProtocolError, consumed
}

// Parse consumes bytes from data until one packet (or PUBLISH payload chunk) is
// available, data is exhausted, or a protocol error is found. It returns the result
// and the number of bytes consumed; unconsumed bytes must be offered again.
func (p *Parser) Parse(data []byte) (ParseResult, int) {
	consumed := 0

	for consumed < len(data) || p.state == statePayload {
		switch p.state {
		case stateFixedHeader:
			b := data[consumed]
			consumed++
			if !validHeader(b) {
				return p.fail(consumed)
			}
			p.header = b
			p.lenBytes = 0
			p.remaining = 0
			p.buf = p.buf[:0]
			p.state = stateRemainingLength

		case stateRemainingLength:
			b := data[consumed]
			consumed++
			p.remaining |= uint32(b&0x7F) << (7 * p.lenBytes)
			p.lenBytes++
			if b&0x80 != 0 {
				if p.lenBytes == 4 {
					return p.fail(consumed)
				}
				continue
			}
			if !validLength(Type(p.header>>4), p.header&0x0F, p.remaining) {
				return p.fail(consumed)
			}
			if Type(p.header>>4) == TypePublish {
				p.need = 2
				p.state = stateVariableHeader
				continue
			}
			if p.remaining == 0 {
				return p.complete(consumed)
			}
			p.state = stateBody

		case stateBody:
			n := min(int(p.remaining)-len(p.buf), len(data)-consumed)
			p.buf = append(p.buf, data[consumed:consumed+n]...)
			consumed += n
			if len(p.buf) == int(p.remaining) {
				return p.complete(consumed)
			}

		case stateVariableHeader:
			n := min(p.need-len(p.buf), len(data)-consumed)
			p.buf = append(p.buf, data[consumed:consumed+n]...)
			consumed += n
			if len(p.buf) < p.need {
				continue
			}
			if p.need == 2 {
				p.need += int(binary.BigEndian.Uint16(p.buf))
				if QoS((p.header>>1)&0x03) > QoS0 {
					p.need += 2
				}
				if p.need > int(p.remaining) {
					return p.fail(consumed)
				}
				if len(p.buf) < p.need {
					continue
				}
			}
			if !p.startPublish() {
				return p.fail(consumed)
			}
			if p.packet.Payload.Total == 0 {
				p.state = stateFixedHeader
				return ResultPacket, consumed
			}
			p.state = statePayload

		case statePayload:
			avail := len(data) - consumed
			if avail == 0 {
				return ResultAwaitData, consumed
			}
			n := min(p.packet.Payload.Total-p.payloadAt, avail)
			p.packet.Payload.Data = data[consumed : consumed+n]
			p.packet.Payload.Index = p.payloadAt
			p.payloadAt += n
			consumed += n
			if p.payloadAt == p.packet.Payload.Total {
				p.state = stateFixedHeader
			}
			return ResultPacket, consumed
		}
	}

	return ResultAwaitData, consumed
}

// startPublish decodes the PUBLISH variable header held in p.buf.
func (p *Parser) startPublish() bool {
	topic, n, ok := DecodeString(p.buf)
	if !ok || len(topic) == 0 || ValidateUTF8String(topic) != nil {
		return false
	}
	flags := p.header & 0x0F
	pkt := IncomingPacket{
		Type:   TypePublish,
		Flags:  flags,
		Topic:  string(topic),
		QoS:    QoS((flags >> 1) & 0x03),
		Retain: flags&PublishFlagRetain != 0,
		Dup:    flags&PublishFlagDup != 0,
	}
	if pkt.QoS > QoS0 {
		pkt.PacketID = binary.BigEndian.Uint16(p.buf[n:])
		if pkt.PacketID == 0 {
			return false
		}
	}
	pkt.Payload.Total = int(p.remaining) - p.need
	p.packet = pkt
	p.payloadAt = 0
	return true
}

// complete decodes a fully buffered non-PUBLISH packet.
func (p *Parser) complete(consumed int) (ParseResult, int) {
	t := Type(p.header >> 4)
	pkt := IncomingPacket{Type: t, Flags: p.header & 0x0F}

	switch t {
	case TypeConnack:
		c, err := DecodeConnack(p.buf)
		if err != nil {
			return p.fail(consumed)
		}
		pkt.SessionPresent = c.SessionPresent
		pkt.ConnackCode = c.ReturnCode
	case TypePuback, TypePubrec, TypePubrel, TypePubcomp, TypeUnsuback:
		id, err := decodeAckID(p.buf)
		if err != nil {
			return p.fail(consumed)
		}
		pkt.PacketID = id
	case TypeSuback:
		s, err := DecodeSuback(p.buf)
		if err != nil {
			return p.fail(consumed)
		}
		pkt.PacketID = s.PacketID
		pkt.SubackCodes = s.ReturnCodes
	case TypePingresp:
	default:
		return p.fail(consumed)
	}

	p.packet = pkt
	p.state = stateFixedHeader
	p.buf = p.buf[:0]
	return ResultPacket, consumed
}

// validHeader checks the packet type and fixed header flags of the first byte.
func validHeader(b byte) bool {
	t := Type(b >> 4)
	flags := b & 0x0F
	if !t.FromServer() {
		return false
	}
	switch t {
	case TypePublish:
		qos := QoS((flags >> 1) & 0x03)
		if !qos.Valid() {
			return false
		}
		// DUP must be 0 for QoS 0
		return !(qos == QoS0 && flags&PublishFlagDup != 0)
	case TypePubrel:
		return flags == PubrelFlags
	default:
		return flags == 0
	}
}

// maxSubackLength bounds a SUBACK body: a packet id and one return code for
// each filter that fits in a single SUBSCRIBE.
const maxSubackLength = 2 + 65535

// validLength checks the remaining length against the fixed layout of each type.
func validLength(t Type, flags byte, length uint32) bool {
	switch t {
	case TypeConnack, TypePuback, TypePubrec, TypePubrel, TypePubcomp, TypeUnsuback:
		return length == 2
	case TypePingresp:
		return length == 0
	case TypeSuback:
		return length >= 3 && length <= maxSubackLength
	case TypePublish:
		if QoS((flags>>1)&0x03) > QoS0 {
			return length >= 4
		}
		return length >= 2
	default:
		return false
	}
}
