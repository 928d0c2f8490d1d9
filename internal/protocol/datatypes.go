package protocol

import (
	"encoding/binary"
	"math"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Primitive data types of the wire protocol. All multi-byte integers are
// big-endian. Each type has a Read, a Write, and where the size is not
// fixed, a Size function. Reads consume from the front of the Buffer and
// leave it in an undefined position on error.

// MaxStringLen is the generic cap on String fields, in UTF-8 bytes.
// Individual fields carry tighter caps (handshake address 255,
// username 16).
const MaxStringLen = 32767

// ReadBool reads a Boolean: one byte, 0x01 is true, anything else false.
func ReadBool(buf *Buffer) (bool, error) {
	c, ok := buf.readByte()
	if !ok {
		return false, &OutOfBytesError{What: "Boolean"}
	}
	return c == 0x01, nil
}

// WriteBool appends a Boolean.
func WriteBool(buf *Buffer, v bool) {
	if v {
		buf.AppendByte(0x01)
	} else {
		buf.AppendByte(0x00)
	}
}

// ReadByte reads a signed byte.
func ReadByte(buf *Buffer) (int8, error) {
	c, ok := buf.readByte()
	if !ok {
		return 0, &OutOfBytesError{What: "Byte"}
	}
	return int8(c), nil
}

// WriteByte appends a signed byte.
func WriteByte(buf *Buffer, v int8) {
	buf.AppendByte(byte(v))
}

// ReadUnsignedByte reads an unsigned byte.
func ReadUnsignedByte(buf *Buffer) (uint8, error) {
	c, ok := buf.readByte()
	if !ok {
		return 0, &OutOfBytesError{What: "Unsigned Byte"}
	}
	return c, nil
}

// WriteUnsignedByte appends an unsigned byte.
func WriteUnsignedByte(buf *Buffer, v uint8) {
	buf.AppendByte(v)
}

// ReadShort reads a big-endian signed 16-bit integer.
func ReadShort(buf *Buffer) (int16, error) {
	p, ok := buf.next(2)
	if !ok {
		return 0, &OutOfBytesError{What: "Short"}
	}
	return int16(binary.BigEndian.Uint16(p)), nil
}

// WriteShort appends a big-endian signed 16-bit integer.
func WriteShort(buf *Buffer, v int16) {
	buf.Append(binary.BigEndian.AppendUint16(nil, uint16(v)))
}

// ReadUnsignedShort reads a big-endian unsigned 16-bit integer.
func ReadUnsignedShort(buf *Buffer) (uint16, error) {
	p, ok := buf.next(2)
	if !ok {
		return 0, &OutOfBytesError{What: "Unsigned Short"}
	}
	return binary.BigEndian.Uint16(p), nil
}

// WriteUnsignedShort appends a big-endian unsigned 16-bit integer.
func WriteUnsignedShort(buf *Buffer, v uint16) {
	buf.Append(binary.BigEndian.AppendUint16(nil, v))
}

// ReadInt reads a big-endian signed 32-bit integer.
func ReadInt(buf *Buffer) (int32, error) {
	p, ok := buf.next(4)
	if !ok {
		return 0, &OutOfBytesError{What: "Int"}
	}
	return int32(binary.BigEndian.Uint32(p)), nil
}

// WriteInt appends a big-endian signed 32-bit integer.
func WriteInt(buf *Buffer, v int32) {
	buf.Append(binary.BigEndian.AppendUint32(nil, uint32(v)))
}

// ReadLong reads a big-endian signed 64-bit integer.
func ReadLong(buf *Buffer) (int64, error) {
	p, ok := buf.next(8)
	if !ok {
		return 0, &OutOfBytesError{What: "Long"}
	}
	return int64(binary.BigEndian.Uint64(p)), nil
}

// WriteLong appends a big-endian signed 64-bit integer.
func WriteLong(buf *Buffer, v int64) {
	buf.Append(binary.BigEndian.AppendUint64(nil, uint64(v)))
}

// ReadFloat reads an IEEE-754 32-bit float.
func ReadFloat(buf *Buffer) (float32, error) {
	p, ok := buf.next(4)
	if !ok {
		return 0, &OutOfBytesError{What: "Float"}
	}
	return math.Float32frombits(binary.BigEndian.Uint32(p)), nil
}

// WriteFloat appends an IEEE-754 32-bit float.
func WriteFloat(buf *Buffer, v float32) {
	buf.Append(binary.BigEndian.AppendUint32(nil, math.Float32bits(v)))
}

// ReadDouble reads an IEEE-754 64-bit float.
func ReadDouble(buf *Buffer) (float64, error) {
	p, ok := buf.next(8)
	if !ok {
		return 0, &OutOfBytesError{What: "Double"}
	}
	return math.Float64frombits(binary.BigEndian.Uint64(p)), nil
}

// WriteDouble appends an IEEE-754 64-bit float.
func WriteDouble(buf *Buffer, v float64) {
	buf.Append(binary.BigEndian.AppendUint64(nil, math.Float64bits(v)))
}

// ReadString reads a VarInt-length-prefixed UTF-8 string. The length
// prefix counts bytes, not code points. A prefix larger than max bytes
// is malformed.
func ReadString(buf *Buffer, max int) (string, error) {
	n, err := ReadVarInt(buf)
	if err != nil {
		if IsOutOfBytes(err) {
			return "", &OutOfBytesError{What: "String"}
		}
		return "", &MalformedError{What: "String", Reason: "bad length prefix"}
	}
	if n < 0 {
		return "", &MalformedError{What: "String", Reason: "negative length"}
	}
	if int(n) > max {
		return "", &MalformedError{What: "String", Reason: "length exceeds field maximum"}
	}
	p, ok := buf.next(int(n))
	if !ok {
		return "", &OutOfBytesError{What: "String"}
	}
	if !utf8.Valid(p) {
		return "", &MalformedError{What: "String", Reason: "invalid UTF-8"}
	}
	return string(p), nil
}

// WriteString appends a VarInt-length-prefixed UTF-8 string.
func WriteString(buf *Buffer, s string) {
	WriteVarInt(buf, int32(len(s)))
	buf.Append([]byte(s))
}

// StringSize returns the encoded size of s in bytes.
func StringSize(s string) int {
	return VarIntSize(int32(len(s))) + len(s)
}

// ReadIdentifier reads a namespaced identifier. Identifiers share the
// String wire form with the generic 32767-byte cap.
func ReadIdentifier(buf *Buffer) (string, error) {
	return ReadString(buf, MaxStringLen)
}

// WriteIdentifier appends a namespaced identifier.
func WriteIdentifier(buf *Buffer, s string) {
	WriteString(buf, s)
}

// ReadChat reads a JSON chat component. Chat shares the String wire form
// with the generic 32767-byte cap; the body is not validated as JSON here.
func ReadChat(buf *Buffer) (string, error) {
	return ReadString(buf, MaxStringLen)
}

// WriteChat appends a JSON chat component.
func WriteChat(buf *Buffer, s string) {
	WriteString(buf, s)
}

// Position is a block position packed into 64 bits on the wire:
// bits 63..38 are X (26-bit signed), 37..12 are Z (26-bit signed),
// 11..0 are Y (12-bit signed), two's-complement within each field.
type Position struct {
	X int32
	Y int16
	Z int32
}

// ReadPosition reads a packed Position.
func ReadPosition(buf *Buffer) (Position, error) {
	v, err := ReadLong(buf)
	if err != nil {
		return Position{}, &OutOfBytesError{What: "Position"}
	}
	u := uint64(v)
	return Position{
		X: signExtend26(uint32(u >> 38)),
		Z: signExtend26(uint32(u >> 12 & 0x3FFFFFF)),
		Y: signExtend12(uint16(u & 0xFFF)),
	}, nil
}

// WritePosition appends a packed Position. Fields outside their packed
// width are truncated to it.
func WritePosition(buf *Buffer, p Position) {
	u := uint64(uint32(p.X)&0x3FFFFFF)<<38 |
		uint64(uint32(p.Z)&0x3FFFFFF)<<12 |
		uint64(uint16(p.Y)&0xFFF)
	WriteLong(buf, int64(u))
}

func signExtend26(v uint32) int32 {
	if v&(1<<25) != 0 {
		v |= ^uint32(0) << 26
	}
	return int32(v)
}

func signExtend12(v uint16) int16 {
	if v&(1<<11) != 0 {
		v |= ^uint16(0) << 12
	}
	return int16(v)
}

// Angle is a rotation in steps of 1/256 of a full turn.
type Angle uint8

// ReadAngle reads an Angle.
func ReadAngle(buf *Buffer) (Angle, error) {
	c, ok := buf.readByte()
	if !ok {
		return 0, &OutOfBytesError{What: "Angle"}
	}
	return Angle(c), nil
}

// WriteAngle appends an Angle.
func WriteAngle(buf *Buffer, a Angle) {
	buf.AppendByte(byte(a))
}

// ReadUUID reads a 16-byte big-endian UUID.
func ReadUUID(buf *Buffer) (uuid.UUID, error) {
	p, ok := buf.next(16)
	if !ok {
		return uuid.UUID{}, &OutOfBytesError{What: "UUID"}
	}
	var id uuid.UUID
	copy(id[:], p)
	return id, nil
}

// WriteUUID appends a 16-byte big-endian UUID.
func WriteUUID(buf *Buffer, id uuid.UUID) {
	buf.Append(id[:])
}

// ReadByteArray reads a VarInt-count-prefixed array of unsigned bytes.
// A count above max is malformed.
func ReadByteArray(buf *Buffer, max int) ([]byte, error) {
	n, err := ReadVarInt(buf)
	if err != nil {
		if IsOutOfBytes(err) {
			return nil, &OutOfBytesError{What: "Array of Unsigned Byte"}
		}
		return nil, &MalformedError{What: "Array of Unsigned Byte", Reason: "bad count prefix"}
	}
	if n < 0 {
		return nil, &MalformedError{What: "Array of Unsigned Byte", Reason: "negative count"}
	}
	if int(n) > max {
		return nil, &MalformedError{What: "Array of Unsigned Byte", Reason: "count exceeds field maximum"}
	}
	p, ok := buf.next(int(n))
	if !ok {
		return nil, &OutOfBytesError{What: "Array of Unsigned Byte"}
	}
	out := make([]byte, len(p))
	copy(out, p)
	return out, nil
}

// WriteByteArray appends a VarInt-count-prefixed array of unsigned bytes.
func WriteByteArray(buf *Buffer, p []byte) {
	WriteVarInt(buf, int32(len(p)))
	buf.Append(p)
}

// ByteArraySize returns the encoded size of p in bytes.
func ByteArraySize(p []byte) int {
	return VarIntSize(int32(len(p))) + len(p)
}

// ReadIdentifierArray reads a VarInt-count-prefixed array of Identifiers.
// A malformed element aborts the whole array.
func ReadIdentifierArray(buf *Buffer, max int) ([]string, error) {
	n, err := ReadVarInt(buf)
	if err != nil {
		if IsOutOfBytes(err) {
			return nil, &OutOfBytesError{What: "Array of Identifier"}
		}
		return nil, &MalformedError{What: "Array of Identifier", Reason: "bad count prefix"}
	}
	if n < 0 || int(n) > max {
		return nil, &MalformedError{What: "Array of Identifier", Reason: "bad count"}
	}
	out := make([]string, 0, n)
	for i := int32(0); i < n; i++ {
		s, err := ReadIdentifier(buf)
		if err != nil {
			if IsOutOfBytes(err) {
				return nil, &OutOfBytesError{What: "Array of Identifier"}
			}
			return nil, &MalformedError{What: "Array of Identifier", Reason: "bad element"}
		}
		out = append(out, s)
	}
	return out, nil
}

// WriteIdentifierArray appends a VarInt-count-prefixed array of
// Identifiers.
func WriteIdentifierArray(buf *Buffer, names []string) {
	WriteVarInt(buf, int32(len(names)))
	for _, s := range names {
		WriteIdentifier(buf, s)
	}
}

// IdentifierArraySize returns the encoded size of names in bytes.
func IdentifierArraySize(names []string) int {
	n := VarIntSize(int32(len(names)))
	for _, s := range names {
		n += StringSize(s)
	}
	return n
}
