package client

import "github.com/bromq-dev/nukibridge/pkg/packet"

// State is the connection state of a client.
type State int

const (
	StateDisconnected State = iota
	StateConnectingTCP
	StateConnectingMQTT
	StateConnected
	StateDisconnectingMQTT
	StateDisconnectingTCP
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnectingTCP:
		return "connecting tcp"
	case StateConnectingMQTT:
		return "connecting mqtt"
	case StateConnected:
		return "connected"
	case StateDisconnectingMQTT:
		return "disconnecting mqtt"
	case StateDisconnectingTCP:
		return "disconnecting tcp"
	default:
		return "unknown"
	}
}

// DisconnectReason tells hooks why a connection ended.
type DisconnectReason int

const (
	ReasonUserOK DisconnectReason = iota
	ReasonUnacceptableProtocolVersion
	ReasonIdentifierRejected
	ReasonServerUnavailable
	ReasonMalformedCredentials
	ReasonNotAuthorized
	ReasonTCPDisconnected
)

// String returns the string representation of the reason.
func (r DisconnectReason) String() string {
	switch r {
	case ReasonUserOK:
		return "user ok"
	case ReasonUnacceptableProtocolVersion:
		return "unacceptable protocol version"
	case ReasonIdentifierRejected:
		return "identifier rejected"
	case ReasonServerUnavailable:
		return "server unavailable"
	case ReasonMalformedCredentials:
		return "malformed credentials"
	case ReasonNotAuthorized:
		return "not authorized"
	case ReasonTCPDisconnected:
		return "tcp disconnected"
	default:
		return "unknown"
	}
}

// reasonFromConnack maps a refused CONNACK return code to a disconnect reason.
func reasonFromConnack(code packet.ConnackReturnCode) DisconnectReason {
	switch code {
	case packet.ConnackUnacceptableProtocolVersion:
		return ReasonUnacceptableProtocolVersion
	case packet.ConnackIdentifierRejected:
		return ReasonIdentifierRejected
	case packet.ConnackServerUnavailable:
		return ReasonServerUnavailable
	case packet.ConnackBadUsernameOrPassword:
		return ReasonMalformedCredentials
	case packet.ConnackNotAuthorized:
		return ReasonNotAuthorized
	default:
		return ReasonTCPDisconnected
	}
}
