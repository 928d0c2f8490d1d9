package packets

import (
	"fmt"

	"github.com/craftgate/craftgate/internal/protocol"
)

// HandshakeID is the id of the serverbound Handshake packet.
const HandshakeID int32 = 0x00

// MaxServerAddressLen is the byte cap on the handshake server address.
const MaxServerAddressLen = 255

// NextState is the phase the client asks to continue in after the
// handshake. Only Status and Login exist on the wire.
type NextState int32

const (
	// NextStateStatus requests the status (server list ping) phase.
	NextStateStatus NextState = 1
	// NextStateLogin requests the login phase.
	NextStateLogin NextState = 2
)

// String returns the human-readable name of the requested state.
func (s NextState) String() string {
	switch s {
	case NextStateStatus:
		return "Status"
	case NextStateLogin:
		return "Login"
	default:
		return fmt.Sprintf("Unknown(%d)", int32(s))
	}
}

// Handshake is the first packet of every connection.
type Handshake struct {
	ProtocolVersion int32
	ServerAddress   string
	ServerPort      uint16
	NextState       NextState
}

func (*Handshake) inbound() {}

func parseHandshake(body *protocol.Buffer) (*Handshake, error) {
	var (
		h   Handshake
		err error
	)

	if h.ProtocolVersion, err = protocol.ReadVarInt(body); err != nil {
		return nil, fmt.Errorf("handshake protocol version: %w", err)
	}
	if h.ServerAddress, err = protocol.ReadString(body, MaxServerAddressLen); err != nil {
		return nil, fmt.Errorf("handshake server address: %w", err)
	}
	if h.ServerPort, err = protocol.ReadUnsignedShort(body); err != nil {
		return nil, fmt.Errorf("handshake server port: %w", err)
	}

	next, err := protocol.ReadVarInt(body)
	if err != nil {
		return nil, fmt.Errorf("handshake next state: %w", err)
	}
	switch NextState(next) {
	case NextStateStatus, NextStateLogin:
		h.NextState = NextState(next)
	default:
		return nil, &protocol.MalformedError{
			What:   "Handshake",
			Reason: fmt.Sprintf("unknown next state %d", next),
		}
	}

	return &h, nil
}
