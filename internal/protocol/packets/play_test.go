package packets_test

import (
	"testing"

	"github.com/craftgate/craftgate/internal/protocol"
	"github.com/craftgate/craftgate/internal/protocol/packets"
)

func TestJoinGameBody(t *testing.T) {
	t.Parallel()

	join := &packets.JoinGame{
		EntityID:            1,
		Hardcore:            false,
		Gamemode:            0,
		PreviousGamemode:    -1,
		WorldNames:          []string{"minecraft:overworld"},
		DimensionCodec:      "minecraft:overworld",
		HashedSeed:          0,
		MaxPlayers:          20,
		LevelType:           "default",
		ViewDistance:        10,
		ReducedDebugInfo:    false,
		EnableRespawnScreen: true,
	}

	if join.ID() != 0x24 {
		t.Errorf("ID = %#02x, want 0x24", join.ID())
	}

	body := protocol.NewBuffer(nil)
	join.MarshalBody(body)

	if body.Len() != join.Size() {
		t.Fatalf("body is %d bytes, Size() says %d", body.Len(), join.Size())
	}

	// Walk the fields back out in declaration order.
	if v, err := protocol.ReadInt(body); err != nil || v != 1 {
		t.Errorf("entity id = (%d, %v)", v, err)
	}
	if v, err := protocol.ReadBool(body); err != nil || v != false {
		t.Errorf("hardcore = (%v, %v)", v, err)
	}
	if v, err := protocol.ReadUnsignedByte(body); err != nil || v != 0 {
		t.Errorf("gamemode = (%d, %v)", v, err)
	}
	if v, err := protocol.ReadByte(body); err != nil || v != -1 {
		t.Errorf("previous gamemode = (%d, %v)", v, err)
	}
	if v, err := protocol.ReadIdentifierArray(body, 16); err != nil || len(v) != 1 || v[0] != "minecraft:overworld" {
		t.Errorf("world names = (%v, %v)", v, err)
	}
	if v, err := protocol.ReadIdentifier(body); err != nil || v != "minecraft:overworld" {
		t.Errorf("dimension codec = (%q, %v)", v, err)
	}
	if v, err := protocol.ReadLong(body); err != nil || v != 0 {
		t.Errorf("hashed seed = (%d, %v)", v, err)
	}
	if v, err := protocol.ReadUnsignedByte(body); err != nil || v != 20 {
		t.Errorf("max players = (%d, %v)", v, err)
	}
	if v, err := protocol.ReadString(body, protocol.MaxStringLen); err != nil || v != "default" {
		t.Errorf("level type = (%q, %v)", v, err)
	}
	if v, err := protocol.ReadVarInt(body); err != nil || v != 10 {
		t.Errorf("view distance = (%d, %v)", v, err)
	}
	if v, err := protocol.ReadBool(body); err != nil || v != false {
		t.Errorf("reduced debug info = (%v, %v)", v, err)
	}
	if v, err := protocol.ReadBool(body); err != nil || v != true {
		t.Errorf("enable respawn screen = (%v, %v)", v, err)
	}

	if body.Len() != 0 {
		t.Errorf("%d bytes left unread", body.Len())
	}
}
