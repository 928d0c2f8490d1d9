// Package gate drives client connections through the login handshake of
// the Minecraft Java Edition protocol (wire version 578): handshaking,
// status queries, the RSA key exchange, session authentication, and the
// transition into the play phase.
package gate

// ProtocolVersion is the wire protocol version the gate speaks.
const ProtocolVersion = 578

// VersionName is the game version advertised in status responses.
const VersionName = "1.15.2"

// Phase is one of the five operating modes of a connection. It selects
// which packet id table is valid and whether the stream cipher is active.
type Phase uint8

const (
	// PhaseHandshaking is the initial phase of every connection.
	PhaseHandshaking Phase = iota

	// PhaseStatus serves server list queries.
	PhaseStatus

	// PhaseLogin waits for the client's claimed username.
	PhaseLogin

	// PhaseEncrypt waits for the client's half of the key exchange.
	PhaseEncrypt

	// PhasePlay is reached after LoginSuccess; the gate sends JoinGame
	// and nothing more.
	PhasePlay
)

// String returns the human-readable name of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseHandshaking:
		return "Handshaking"
	case PhaseStatus:
		return "Status"
	case PhaseLogin:
		return "Login"
	case PhaseEncrypt:
		return "Encrypt"
	case PhasePlay:
		return "Play"
	default:
		return "Unknown"
	}
}
