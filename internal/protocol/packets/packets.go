// Package packets defines the typed packets of every connection phase
// and the closed per-phase parse tables that map a wire id to one of
// them.
//
// The same numeric id means different packets in different phases, and
// the inbound id set of each phase is closed: parsing goes through a
// small switch per phase rather than a global id→type map.
package packets

import (
	"fmt"

	"github.com/craftgate/craftgate/internal/protocol"
)

// Inbound is a serverbound packet parsed from a wire body.
type Inbound interface {
	inbound()
}

// Outbound is a clientbound packet that can serialize its body.
type Outbound interface {
	// ID returns the packet id within the sending phase.
	ID() int32
	// Size returns the encoded body size in bytes.
	Size() int
	// MarshalBody appends the body fields in declaration order.
	MarshalBody(dst *protocol.Buffer)
}

// UnknownIDError reports an inbound packet id that is not defined for
// the phase it arrived in. Always fatal for the connection.
type UnknownIDError struct {
	Phase string
	ID    int32
}

func (e *UnknownIDError) Error() string {
	return fmt.Sprintf("unrecognized %s packet id %#02x", e.Phase, e.ID)
}

// ParseHandshaking parses an inbound packet of the Handshaking phase.
func ParseHandshaking(id int32, body *protocol.Buffer) (Inbound, error) {
	switch id {
	case HandshakeID:
		h, err := parseHandshake(body)
		if err != nil {
			return nil, err
		}
		return h, nil
	default:
		return nil, &UnknownIDError{Phase: "handshaking", ID: id}
	}
}

// ParseStatus parses an inbound packet of the Status phase.
func ParseStatus(id int32, body *protocol.Buffer) (Inbound, error) {
	switch id {
	case StatusRequestID:
		req, err := parseStatusRequest(body)
		if err != nil {
			return nil, err
		}
		return req, nil
	case StatusPingID:
		ping, err := parseStatusPing(body)
		if err != nil {
			return nil, err
		}
		return ping, nil
	default:
		return nil, &UnknownIDError{Phase: "status", ID: id}
	}
}

// ParseLogin parses an inbound packet of the Login phase.
func ParseLogin(id int32, body *protocol.Buffer) (Inbound, error) {
	switch id {
	case LoginStartID:
		start, err := parseLoginStart(body)
		if err != nil {
			return nil, err
		}
		return start, nil
	default:
		return nil, &UnknownIDError{Phase: "login", ID: id}
	}
}

// ParseEncrypt parses an inbound packet of the Encrypt phase.
func ParseEncrypt(id int32, body *protocol.Buffer) (Inbound, error) {
	switch id {
	case EncryptionResponseID:
		resp, err := parseEncryptionResponse(body)
		if err != nil {
			return nil, err
		}
		return resp, nil
	default:
		return nil, &UnknownIDError{Phase: "encrypt", ID: id}
	}
}
