package packets

import (
	"encoding/json"
	"fmt"

	"github.com/craftgate/craftgate/internal/protocol"
)

// Packet ids of the Status phase.
const (
	StatusRequestID  int32 = 0x00
	StatusPingID     int32 = 0x01
	StatusResponseID int32 = 0x00
	StatusPongID     int32 = 0x01
)

// StatusRequest asks for the server list entry. Its body is empty.
type StatusRequest struct{}

func (StatusRequest) inbound() {}

func parseStatusRequest(body *protocol.Buffer) (StatusRequest, error) {
	if body.Len() != 0 {
		return StatusRequest{}, &protocol.MalformedError{
			What:   "Status Request",
			Reason: "bytes remaining after empty body",
		}
	}
	return StatusRequest{}, nil
}

// StatusPing carries an opaque payload the client expects echoed back.
type StatusPing struct {
	Payload int64
}

func (StatusPing) inbound() {}

func parseStatusPing(body *protocol.Buffer) (StatusPing, error) {
	payload, err := protocol.ReadLong(body)
	if err != nil {
		return StatusPing{}, fmt.Errorf("status ping payload: %w", err)
	}
	return StatusPing{Payload: payload}, nil
}

// statusJSON is the server list entry document.
type statusJSON struct {
	Version     statusVersion `json:"version"`
	Players     statusPlayers `json:"players"`
	Description statusText    `json:"description"`
	Favicon     string        `json:"favicon"`
}

type statusVersion struct {
	Name     string `json:"name"`
	Protocol int32  `json:"protocol"`
}

type statusPlayers struct {
	Max    int `json:"max"`
	Online int `json:"online"`
}

type statusText struct {
	Text string `json:"text"`
}

// StatusResponse answers a StatusRequest with the server list JSON.
type StatusResponse struct {
	response string
}

// NewStatusResponse builds a StatusResponse document. An empty favicon
// is sent as the empty string, matching what vanilla clients tolerate.
func NewStatusResponse(versionName string, protocolVersion int32, maxPlayers, online int, motd, favicon string) (StatusResponse, error) {
	doc, err := json.Marshal(statusJSON{
		Version:     statusVersion{Name: versionName, Protocol: protocolVersion},
		Players:     statusPlayers{Max: maxPlayers, Online: online},
		Description: statusText{Text: motd},
		Favicon:     favicon,
	})
	if err != nil {
		return StatusResponse{}, fmt.Errorf("marshal status response: %w", err)
	}
	return StatusResponse{response: string(doc)}, nil
}

// ID returns the Status phase id of the response packet.
func (StatusResponse) ID() int32 { return StatusResponseID }

// Size returns the encoded body size in bytes.
func (r StatusResponse) Size() int { return protocol.StringSize(r.response) }

// MarshalBody appends the JSON document as a protocol String.
func (r StatusResponse) MarshalBody(dst *protocol.Buffer) {
	protocol.WriteString(dst, r.response)
}

// StatusPong echoes a StatusPing payload.
type StatusPong struct {
	Payload int64
}

// ID returns the Status phase id of the pong packet.
func (StatusPong) ID() int32 { return StatusPongID }

// Size returns the encoded body size in bytes.
func (StatusPong) Size() int { return 8 }

// MarshalBody appends the payload.
func (p StatusPong) MarshalBody(dst *protocol.Buffer) {
	protocol.WriteLong(dst, p.Payload)
}
