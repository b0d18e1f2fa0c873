package packet

// ConnackReturnCode is the return code carried by a CONNACK.
// MQTT 3.1.1 Section 3.2.2.3
type ConnackReturnCode byte

const (
	ConnackAccepted                    ConnackReturnCode = 0x00 // Connection Accepted
	ConnackUnacceptableProtocolVersion ConnackReturnCode = 0x01 // Connection Refused, unacceptable protocol version
	ConnackIdentifierRejected          ConnackReturnCode = 0x02 // Connection Refused, identifier rejected
	ConnackServerUnavailable           ConnackReturnCode = 0x03 // Connection Refused, Server unavailable
	ConnackBadUsernameOrPassword       ConnackReturnCode = 0x04 // Connection Refused, bad user name or password
	ConnackNotAuthorized               ConnackReturnCode = 0x05 // Connection Refused, not authorized
)

// IsAccepted returns true if the connection was accepted.
func (c ConnackReturnCode) IsAccepted() bool {
	return c == ConnackAccepted
}

// Valid returns true for the return codes defined by MQTT 3.1.1.
func (c ConnackReturnCode) Valid() bool {
	return c <= ConnackNotAuthorized
}

// String returns the string representation of the CONNACK return code.
func (c ConnackReturnCode) String() string {
	switch c {
	case ConnackAccepted:
		return "Connection Accepted"
	case ConnackUnacceptableProtocolVersion:
		return "Connection Refused, unacceptable protocol version"
	case ConnackIdentifierRejected:
		return "Connection Refused, identifier rejected"
	case ConnackServerUnavailable:
		return "Connection Refused, Server unavailable"
	case ConnackBadUsernameOrPassword:
		return "Connection Refused, bad user name or password"
	case ConnackNotAuthorized:
		return "Connection Refused, not authorized"
	default:
		return "Unknown return code"
	}
}

// SubackReturnCode is the per-filter result carried by a SUBACK.
// MQTT 3.1.1 Section 3.9.3
type SubackReturnCode byte

const (
	SubackGrantedQoS0 SubackReturnCode = 0x00
	SubackGrantedQoS1 SubackReturnCode = 0x01
	SubackGrantedQoS2 SubackReturnCode = 0x02
	SubackFailure     SubackReturnCode = 0x80
)

// Valid returns true for the return codes defined by MQTT 3.1.1.
func (s SubackReturnCode) Valid() bool {
	return s <= SubackGrantedQoS2 || s == SubackFailure
}

// Granted reports whether the server accepted the subscription.
func (s SubackReturnCode) Granted() bool {
	return s <= SubackGrantedQoS2
}

// String returns the string representation of the SUBACK return code.
func (s SubackReturnCode) String() string {
	switch s {
	case SubackGrantedQoS0:
		return "Granted QoS 0"
	case SubackGrantedQoS1:
		return "Granted QoS 1"
	case SubackGrantedQoS2:
		return "Granted QoS 2"
	case SubackFailure:
		return "Failure"
	default:
		return "Unknown return code"
	}
}
