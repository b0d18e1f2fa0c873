package packet

// Connect represents an MQTT CONNECT packet.
// MQTT 3.1.1 Section 3.1
type Connect struct {
	CleanSession bool

	// Keep alive (seconds)
	KeepAlive uint16

	ClientID string
	Will     *Will
	Username string
	Password []byte

	// UsernameFlag and PasswordFlag allow an empty username or password to be sent.
	UsernameFlag bool
	PasswordFlag bool
}

// Type returns TypeConnect.
func (c *Connect) Type() Type {
	return TypeConnect
}

// connectFlagBits defines the bit positions in the connect flags byte.
const (
	connectFlagCleanSession = 1 << 1
	connectFlagWill         = 1 << 2
	connectFlagWillRetain   = 1 << 5
	connectFlagPassword     = 1 << 6
	connectFlagUsername     = 1 << 7
)

func (c *Connect) hasUsername() bool {
	return c.UsernameFlag || c.Username != ""
}

func (c *Connect) hasPassword() bool {
	return c.PasswordFlag || len(c.Password) > 0
}

func (c *Connect) remainingLength() int {
	// Variable header: protocol name (2 + 4) + level (1) + flags (1) + keepalive (2)
	n := 2 + len(ProtocolName) + 1 + 1 + 2

	n += 2 + len(c.ClientID)
	if c.Will != nil {
		n += 2 + len(c.Will.Topic)
		n += 2 + len(c.Will.Payload)
	}
	if c.hasUsername() {
		n += 2 + len(c.Username)
	}
	if c.hasPassword() {
		n += 2 + len(c.Password)
	}
	return n
}

// Validate checks the fields that cannot be put on the wire.
func (c *Connect) Validate() error {
	if c.ClientID == "" {
		return ErrMalformedParameter
	}
	if len(c.ClientID) > MaxStringLength || len(c.Username) > MaxStringLength ||
		len(c.Password) > MaxStringLength {
		return ErrStringTooLong
	}
	if c.Will != nil {
		if c.Will.Topic == "" {
			return ErrMalformedParameter
		}
		if !c.Will.QoS.Valid() {
			return ErrInvalidQoS
		}
		if len(c.Will.Topic) > MaxStringLength || len(c.Will.Payload) > MaxStringLength {
			return ErrStringTooLong
		}
	}
	return nil
}

// EncodedSize returns the total size of the encoded CONNECT packet.
func (c *Connect) EncodedSize() int {
	remainingLength := c.remainingLength()
	return FixedHeaderSize(uint32(remainingLength)) + remainingLength
}

// Encode encodes the CONNECT packet into buf.
// Returns the number of bytes written, or 0 on error.
func (c *Connect) Encode(buf []byte) int {
	if c.Validate() != nil {
		return 0
	}
	size := c.EncodedSize()
	if len(buf) < size {
		return 0
	}

	pos := EncodeFixedHeader(buf, TypeConnect, 0, uint32(c.remainingLength()))
	if pos == 0 {
		return 0
	}

	// Variable header
	pos += EncodeString(buf[pos:], ProtocolName)
	buf[pos] = ProtocolLevel
	pos++

	var flags byte
	if c.CleanSession {
		flags |= connectFlagCleanSession
	}
	if c.Will != nil {
		flags |= connectFlagWill
		flags |= byte(c.Will.QoS) << 3
		if c.Will.Retain {
			flags |= connectFlagWillRetain
		}
	}
	if c.hasPassword() {
		flags |= connectFlagPassword
	}
	if c.hasUsername() {
		flags |= connectFlagUsername
	}
	buf[pos] = flags
	pos++

	pos += EncodeUint16(buf[pos:], c.KeepAlive)

	// Payload
	pos += EncodeString(buf[pos:], c.ClientID)
	if c.Will != nil {
		pos += EncodeString(buf[pos:], c.Will.Topic)
		pos += EncodeBytes(buf[pos:], c.Will.Payload)
	}
	if c.hasUsername() {
		pos += EncodeString(buf[pos:], c.Username)
	}
	if c.hasPassword() {
		pos += EncodeBytes(buf[pos:], c.Password)
	}

	return pos
}

// NewConnect creates a CONNECT packet. An empty client id is rejected.
func NewConnect(clientID string, cleanSession bool, keepAlive uint16) (*Connect, error) {
	c := &Connect{
		ClientID:     clientID,
		CleanSession: cleanSession,
		KeepAlive:    keepAlive,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
