package packets

import "github.com/craftgate/craftgate/internal/protocol"

// JoinGameID is the id of the clientbound JoinGame packet.
const JoinGameID int32 = 0x24

// JoinGame marks the transition into the in-world phase. The gate sends
// exactly one, with values drawn from configuration; no further play
// traffic follows.
type JoinGame struct {
	EntityID            int32
	Hardcore            bool
	Gamemode            uint8
	PreviousGamemode    int8
	WorldNames          []string
	DimensionCodec      string
	HashedSeed          int64
	MaxPlayers          uint8
	LevelType           string
	ViewDistance        int32
	ReducedDebugInfo    bool
	EnableRespawnScreen bool
}

// ID returns the Play phase id of the join packet.
func (*JoinGame) ID() int32 { return JoinGameID }

// Size returns the encoded body size in bytes.
func (j *JoinGame) Size() int {
	return 4 + 1 + 1 + 1 +
		protocol.IdentifierArraySize(j.WorldNames) +
		protocol.StringSize(j.DimensionCodec) +
		8 + 1 +
		protocol.StringSize(j.LevelType) +
		protocol.VarIntSize(j.ViewDistance) +
		1 + 1
}

// MarshalBody appends the fields in declaration order.
func (j *JoinGame) MarshalBody(dst *protocol.Buffer) {
	protocol.WriteInt(dst, j.EntityID)
	protocol.WriteBool(dst, j.Hardcore)
	protocol.WriteUnsignedByte(dst, j.Gamemode)
	protocol.WriteByte(dst, j.PreviousGamemode)
	protocol.WriteIdentifierArray(dst, j.WorldNames)
	protocol.WriteIdentifier(dst, j.DimensionCodec)
	protocol.WriteLong(dst, j.HashedSeed)
	protocol.WriteUnsignedByte(dst, j.MaxPlayers)
	protocol.WriteString(dst, j.LevelType)
	protocol.WriteVarInt(dst, j.ViewDistance)
	protocol.WriteBool(dst, j.ReducedDebugInfo)
	protocol.WriteBool(dst, j.EnableRespawnScreen)
}
