package packet

import "errors"

// Sentinel errors for packet parsing and encoding.
var (
	// ErrMalformedPacket indicates the packet structure is invalid.
	ErrMalformedPacket = errors.New("malformed packet")

	// ErrMalformedRemainingLength indicates the remaining length encoding is invalid.
	ErrMalformedRemainingLength = errors.New("malformed remaining length")

	// ErrMalformedParameter indicates a constructor argument cannot be encoded,
	// such as an empty client identifier or an empty topic list.
	ErrMalformedParameter = errors.New("malformed parameter")

	// ErrPacketTooLarge indicates the packet exceeds maximum allowed size.
	ErrPacketTooLarge = errors.New("packet too large")

	// ErrStringTooLong indicates a string or binary field exceeds 65535 bytes.
	ErrStringTooLong = errors.New("string exceeds 65535 bytes")

	// ErrInvalidPacketType indicates an unknown or reserved packet type.
	ErrInvalidPacketType = errors.New("invalid packet type")

	// ErrInvalidFlags indicates invalid fixed header flags for the packet type.
	ErrInvalidFlags = errors.New("invalid packet flags")

	// ErrInvalidQoS indicates an invalid QoS level.
	ErrInvalidQoS = errors.New("invalid QoS level")

	// ErrInvalidUTF8 indicates a string contains invalid UTF-8.
	ErrInvalidUTF8 = errors.New("invalid UTF-8 string")

	// ErrInvalidUTF8NullChar indicates a string contains a null character.
	ErrInvalidUTF8NullChar = errors.New("UTF-8 string contains null character")

	// ErrInvalidPacketID indicates an invalid packet identifier (zero).
	ErrInvalidPacketID = errors.New("invalid packet identifier")

	// ErrShortBuffer indicates insufficient buffer space for encoding.
	ErrShortBuffer = errors.New("buffer too short")

	// ErrIncompletePacket indicates more data is needed to complete the packet.
	ErrIncompletePacket = errors.New("incomplete packet")

	// ErrInvalidReturnCode indicates an unknown CONNACK or SUBACK return code.
	ErrInvalidReturnCode = errors.New("invalid return code")
)
