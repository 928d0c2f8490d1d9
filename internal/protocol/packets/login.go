package packets

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/craftgate/craftgate/internal/protocol"
)

// Packet ids of the Login phase.
const (
	LoginStartID         int32 = 0x00
	EncryptionResponseID int32 = 0x01
	EncryptionRequestID  int32 = 0x01
	LoginSuccessID       int32 = 0x02
)

// MaxUsernameLen is the byte cap on player usernames.
const MaxUsernameLen = 16

// MaxKeyExchangeLen caps the RSA-encrypted fields of the encryption
// response. A 1024-bit key produces 128-byte ciphertexts.
const MaxKeyExchangeLen = 128

// LoginStart opens the login exchange with the claimed username.
type LoginStart struct {
	Username string
}

func (*LoginStart) inbound() {}

func parseLoginStart(body *protocol.Buffer) (*LoginStart, error) {
	username, err := protocol.ReadString(body, MaxUsernameLen)
	if err != nil {
		return nil, fmt.Errorf("login start username: %w", err)
	}
	return &LoginStart{Username: username}, nil
}

// EncryptionRequest carries the server's public key and a fresh verify
// token for the client to echo back under RSA.
type EncryptionRequest struct {
	// ServerID is historical and always empty for this protocol version.
	ServerID    string
	PublicKey   []byte
	VerifyToken []byte
}

// ID returns the Login phase id of the encryption request.
func (*EncryptionRequest) ID() int32 { return EncryptionRequestID }

// Size returns the encoded body size in bytes.
func (r *EncryptionRequest) Size() int {
	return protocol.StringSize(r.ServerID) +
		protocol.ByteArraySize(r.PublicKey) +
		protocol.ByteArraySize(r.VerifyToken)
}

// MarshalBody appends the fields in declaration order.
func (r *EncryptionRequest) MarshalBody(dst *protocol.Buffer) {
	protocol.WriteString(dst, r.ServerID)
	protocol.WriteByteArray(dst, r.PublicKey)
	protocol.WriteByteArray(dst, r.VerifyToken)
}

// EncryptionResponse returns the client's key exchange material: the
// shared secret and the verify token, each RSA-encrypted with the
// server's public key.
type EncryptionResponse struct {
	SharedSecret []byte
	VerifyToken  []byte
}

func (*EncryptionResponse) inbound() {}

func parseEncryptionResponse(body *protocol.Buffer) (*EncryptionResponse, error) {
	var (
		r   EncryptionResponse
		err error
	)

	if r.SharedSecret, err = protocol.ReadByteArray(body, MaxKeyExchangeLen); err != nil {
		return nil, fmt.Errorf("encryption response shared secret: %w", err)
	}
	if r.VerifyToken, err = protocol.ReadByteArray(body, MaxKeyExchangeLen); err != nil {
		return nil, fmt.Errorf("encryption response verify token: %w", err)
	}
	return &r, nil
}

// LoginSuccess completes login and moves the connection into Play.
// It MUST be the first packet sent encrypted.
type LoginSuccess struct {
	UUID     uuid.UUID
	Username string
}

// ID returns the Login phase id of the success packet.
func (*LoginSuccess) ID() int32 { return LoginSuccessID }

// Size returns the encoded body size in bytes.
func (s *LoginSuccess) Size() int {
	return 16 + protocol.StringSize(s.Username)
}

// MarshalBody appends the fields in declaration order.
func (s *LoginSuccess) MarshalBody(dst *protocol.Buffer) {
	protocol.WriteUUID(dst, s.UUID)
	protocol.WriteString(dst, s.Username)
}
