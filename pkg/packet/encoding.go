package packet

import (
	"encoding/binary"
	"unicode/utf8"
)

// RemainingLengthSize returns the number of bytes needed to encode value as a
// Remaining Length. Returns 0 if value exceeds MaxRemainingLength.
// MQTT 3.1.1 Section 2.2.3
func RemainingLengthSize(value uint32) int {
	switch {
	case value < 128:
		return 1
	case value < 16384:
		return 2
	case value < 2097152:
		return 3
	case value <= MaxRemainingLength:
		return 4
	default:
		return 0
	}
}

// EncodeRemainingLength encodes value into buf and returns the number of bytes written.
// Returns 0 if the value is too large or the buffer is too small.
// MQTT 3.1.1 Section 2.2.3
func EncodeRemainingLength(buf []byte, value uint32) int {
	size := RemainingLengthSize(value)
	if size == 0 || len(buf) < size {
		return 0
	}

	for i := 0; i < size; i++ {
		encodedByte := byte(value % 128)
		value /= 128
		if i < size-1 {
			encodedByte |= 0x80
		}
		buf[i] = encodedByte
	}
	return size
}

// DecodeRemainingLength decodes a Remaining Length from the start of buf.
// Returns -1 when the fourth byte still carries a continuation bit or when buf
// ends before the terminating byte.
func DecodeRemainingLength(buf []byte) int32 {
	value, _, err := decodeVarInt(buf)
	if err != nil {
		return -1
	}
	return int32(value)
}

// decodeVarInt decodes a variable byte integer from buf.
// Returns the value and number of bytes consumed. The error is ErrIncompletePacket
// when more bytes are needed and ErrMalformedRemainingLength when a fifth byte
// would be required.
func decodeVarInt(buf []byte) (value uint32, n int, err error) {
	var shift uint

	for i := 0; i < 4; i++ {
		if i >= len(buf) {
			return 0, 0, ErrIncompletePacket
		}
		encodedByte := buf[i]
		value |= uint32(encodedByte&0x7F) << shift

		if encodedByte&0x80 == 0 {
			return value, i + 1, nil
		}
		shift += 7
	}

	return 0, 0, ErrMalformedRemainingLength
}

// EncodeUint16 encodes a 16-bit unsigned integer in big-endian order.
// Returns 2 on success, 0 if buffer is too small.
func EncodeUint16(buf []byte, value uint16) int {
	if len(buf) < 2 {
		return 0
	}
	binary.BigEndian.PutUint16(buf, value)
	return 2
}

// DecodeUint16 decodes a 16-bit unsigned integer from big-endian bytes.
// Returns the value, 2 bytes consumed, and success flag.
func DecodeUint16(buf []byte) (value uint16, n int, ok bool) {
	if len(buf) < 2 {
		return 0, 0, false
	}
	return binary.BigEndian.Uint16(buf), 2, true
}

// EncodeString encodes a string with a 2-byte big-endian length prefix.
// Returns the number of bytes written, or 0 without touching buf when the string
// is longer than 65535 bytes or buf cannot hold the result.
// MQTT 3.1.1 Section 1.5.3
func EncodeString(buf []byte, s string) int {
	slen := len(s)
	if slen > MaxStringLength {
		return 0
	}
	if len(buf) < 2+slen {
		return 0
	}
	binary.BigEndian.PutUint16(buf, uint16(slen))
	copy(buf[2:], s)
	return 2 + slen
}

// EncodeBytes encodes binary data with a 2-byte length prefix.
// Returns the number of bytes written, or 0 on error.
func EncodeBytes(buf []byte, data []byte) int {
	dlen := len(data)
	if dlen > MaxStringLength {
		return 0
	}
	if len(buf) < 2+dlen {
		return 0
	}
	binary.BigEndian.PutUint16(buf, uint16(dlen))
	copy(buf[2:], data)
	return 2 + dlen
}

// DecodeString decodes a length-prefixed string from buf.
// Returns a slice referencing the original buffer (zero-copy), bytes consumed, and success flag.
// The caller should copy the string if needed beyond the buffer's lifetime.
func DecodeString(buf []byte) (s []byte, n int, ok bool) {
	if len(buf) < 2 {
		return nil, 0, false
	}
	slen := int(binary.BigEndian.Uint16(buf))
	if len(buf) < 2+slen {
		return nil, 0, false
	}
	return buf[2 : 2+slen], 2 + slen, true
}

// DecodeStringCopy decodes a length-prefixed string from buf.
// Returns a copied string, bytes consumed, and success flag.
func DecodeStringCopy(buf []byte) (s string, n int, ok bool) {
	data, n, ok := DecodeString(buf)
	if !ok {
		return "", 0, false
	}
	return string(data), n, true
}

// ValidateUTF8String validates that a byte slice is valid UTF-8 without null characters.
// MQTT 3.1.1 Section 1.5.3
func ValidateUTF8String(data []byte) error {
	if !utf8.Valid(data) {
		return ErrInvalidUTF8
	}
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == 0 {
			return ErrInvalidUTF8NullChar
		}
		i += size
	}
	return nil
}

// FixedHeaderSize calculates the size of the fixed header for a given remaining length.
// Returns 0 if the remaining length cannot be encoded.
func FixedHeaderSize(remainingLength uint32) int {
	n := RemainingLengthSize(remainingLength)
	if n == 0 {
		return 0
	}
	return 1 + n
}

// EncodeFixedHeader encodes the fixed header into buf.
// Returns the number of bytes written, or 0 on error.
func EncodeFixedHeader(buf []byte, packetType Type, flags byte, remainingLength uint32) int {
	if len(buf) < 1 {
		return 0
	}
	n := EncodeRemainingLength(buf[1:], remainingLength)
	if n == 0 {
		return 0
	}
	buf[0] = byte(packetType)<<4 | (flags & 0x0F)
	return 1 + n
}

// DecodeFixedHeader decodes the fixed header from buf.
// Returns packet type, flags, remaining length, bytes consumed, and success flag.
func DecodeFixedHeader(buf []byte) (packetType Type, flags byte, remainingLength uint32, n int, ok bool) {
	if len(buf) < 2 {
		return 0, 0, 0, 0, false
	}

	packetType = Type(buf[0] >> 4)
	flags = buf[0] & 0x0F

	remainingLength, varIntLen, err := decodeVarInt(buf[1:])
	if err != nil {
		return 0, 0, 0, 0, false
	}

	return packetType, flags, remainingLength, 1 + varIntLen, true
}
