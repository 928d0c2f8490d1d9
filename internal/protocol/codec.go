package protocol

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"math"
)

// Packet framing. Every frame on the wire, after the stream cipher if
// enabled, is VarInt(total_length) || VarInt(packet_id) || body, where
// total_length covers the id and the body. Encryption applies to the
// entire framed bytestream including the length prefix.

// RawPacket is a framed packet before (inbound) or after (outbound)
// typed interpretation: an id and the undecoded body bytes.
type RawPacket struct {
	ID   int32
	Body *Buffer
}

// Decoder extracts framed packets from an inbound bytestream, optionally
// decrypting it first. One Decoder per connection; not safe for
// concurrent use.
type Decoder struct {
	decrypter cipher.Stream
	// plaintext buffers decrypted bytes across calls once encryption is
	// enabled. Before that the decoder works on the source buffer
	// directly.
	plaintext Buffer
}

// EnableEncryption switches the inbound stream to AES-128/CFB8 with the
// 16-byte shared secret as both key and IV. Must be called at the exact
// boundary between the last cleartext packet and the first encrypted
// byte: every byte appended to the source buffer afterwards is run
// through the cipher.
func (d *Decoder) EnableEncryption(secret []byte) error {
	block, err := aes.NewCipher(secret)
	if err != nil {
		return fmt.Errorf("enable decryption: %w", err)
	}
	d.decrypter = NewCFB8Decrypter(block, secret)
	return nil
}

// Decode attempts to extract one complete packet from src. Returns
// (nil, nil) when more bytes are needed; the caller appends to src and
// calls again. A malformed or overlong length prefix is a fatal error.
//
// Once encryption is enabled all newly-arrived source bytes are drained
// through the cipher into an internal plaintext buffer first, so the
// source buffer never holds a mix of consumed ciphertext and pending
// cleartext.
func (d *Decoder) Decode(src *Buffer) (*RawPacket, error) {
	readFrom := src
	if d.decrypter != nil {
		if n := src.Len(); n > 0 {
			ciphertext := src.Split(n)
			plain := make([]byte, n)
			d.decrypter.XORKeyStream(plain, ciphertext.Bytes())
			d.plaintext.Append(plain)
		}
		readFrom = &d.plaintext
	}

	mark := readFrom.Snapshot()
	length, err := PeekVarInt(readFrom)
	if err != nil {
		if IsOutOfBytes(err) {
			src.Reserve(MaxVarIntLen)
			return nil, nil
		}
		return nil, fmt.Errorf("read packet length: %w", err)
	}
	if length < 0 {
		return nil, &MalformedError{What: "packet length", Reason: "negative"}
	}

	if missing := int(length) - readFrom.Len(); missing > 0 {
		// Rewind past the length prefix so the next attempt re-reads
		// it, and reserve only the remainder that still has to arrive.
		readFrom.Restore(mark)
		src.Reserve(missing)
		return nil, nil
	}

	// Reserve ahead of Split: Reserve may compact the buffer, which
	// would invalidate the split view if done after.
	src.Reserve(MaxVarIntLen)

	body := readFrom.Split(int(length))
	id, err := ReadVarInt(body)
	if err != nil {
		// The length prefix promised these bytes; inside the frame
		// OutOfBytes is no longer recoverable.
		return nil, fmt.Errorf("read packet id: %w", err)
	}

	return &RawPacket{ID: id, Body: body}, nil
}

// Encoder frames outbound packets, optionally encrypting them. One
// Encoder per connection; not safe for concurrent use.
type Encoder struct {
	encrypter cipher.Stream
}

// EnableEncryption switches the outbound stream to AES-128/CFB8 with the
// 16-byte shared secret as both key and IV. The next packet encoded is
// the first encrypted one.
func (e *Encoder) EnableEncryption(secret []byte) error {
	block, err := aes.NewCipher(secret)
	if err != nil {
		return fmt.Errorf("enable encryption: %w", err)
	}
	e.encrypter = NewCFB8Encrypter(block, secret)
	return nil
}

// Encode frames a packet with the given id and body into dst.
func (e *Encoder) Encode(id int32, body []byte, dst *Buffer) error {
	innerLen := VarIntSize(id) + len(body)
	if innerLen > math.MaxInt32 {
		return &MalformedError{What: "packet", Reason: "length exceeds 32-bit integer"}
	}

	if e.encrypter == nil {
		WriteVarInt(dst, int32(innerLen))
		WriteVarInt(dst, id)
		dst.Append(body)
		return nil
	}

	// CFB8 has no in-place support here; one scratch per encrypted
	// packet.
	scratch := NewBuffer(make([]byte, 0, VarIntSize(int32(innerLen))+innerLen))
	WriteVarInt(scratch, int32(innerLen))
	WriteVarInt(scratch, id)
	scratch.Append(body)

	out := make([]byte, scratch.Len())
	e.encrypter.XORKeyStream(out, scratch.Bytes())
	dst.Append(out)
	return nil
}
