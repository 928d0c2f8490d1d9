// Package protocol implements the Minecraft Java Edition wire protocol
// (protocol version 578, game version 1.15.2) up through login.
//
// This includes the primitive data-type codec, VarInt/VarLong encodings,
// length-prefixed packet framing, and the AES-128/CFB8 stream cipher that
// the framing layer switches to mid-stream during login.
package protocol

// Buffer is a growable byte buffer with an explicit read offset.
//
// Reads consume bytes from the front; writes append to the back. The
// consumed prefix is reclaimed lazily. All data-type read functions
// operate on a Buffer and leave it in an undefined position on error —
// callers that need retry semantics must snapshot first (see Snapshot).
type Buffer struct {
	data []byte
	off  int
}

// NewBuffer returns a Buffer reading from (and appending after) data.
// The Buffer takes ownership of the slice.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{data: data}
}

// Len returns the number of unread bytes.
func (b *Buffer) Len() int {
	return len(b.data) - b.off
}

// Bytes returns the unread bytes. The slice is only valid until the
// next write or Split.
func (b *Buffer) Bytes() []byte {
	return b.data[b.off:]
}

// next consumes and returns the next n unread bytes. Returns false
// without consuming anything if fewer than n bytes remain.
func (b *Buffer) next(n int) ([]byte, bool) {
	if b.Len() < n {
		return nil, false
	}
	p := b.data[b.off : b.off+n]
	b.off += n
	return p, true
}

// readByte consumes a single byte.
func (b *Buffer) readByte() (byte, bool) {
	if b.Len() < 1 {
		return 0, false
	}
	c := b.data[b.off]
	b.off++
	return c, true
}

// Split removes the next n unread bytes from b and returns them as a
// new Buffer. The returned Buffer owns a copy-free view; b must not be
// written to while the split Buffer is still being read.
func (b *Buffer) Split(n int) *Buffer {
	p, ok := b.next(n)
	if !ok {
		panic("protocol: Split past end of buffer")
	}
	return &Buffer{data: p}
}

// Append appends p to the buffer.
func (b *Buffer) Append(p []byte) {
	b.compact()
	b.data = append(b.data, p...)
}

// AppendByte appends a single byte.
func (b *Buffer) AppendByte(c byte) {
	b.compact()
	b.data = append(b.data, c)
}

// Reserve grows the buffer's capacity so that at least n more bytes can
// be appended without reallocation.
func (b *Buffer) Reserve(n int) {
	b.compact()
	if cap(b.data)-len(b.data) >= n {
		return
	}
	grown := make([]byte, len(b.data), len(b.data)+n)
	copy(grown, b.data)
	b.data = grown
}

// Snapshot returns an opaque mark of the current read position.
func (b *Buffer) Snapshot() int {
	return b.off
}

// Restore rewinds the read position to a mark previously returned by
// Snapshot. Only valid if the buffer has not been written to since.
func (b *Buffer) Restore(mark int) {
	b.off = mark
}

// compact reclaims the consumed prefix once it dominates the buffer.
// Called before writes so read views handed out by Split stay valid
// between a read and the writes that respond to it.
func (b *Buffer) compact() {
	if b.off == 0 {
		return
	}
	if b.off == len(b.data) {
		b.data = b.data[:0]
		b.off = 0
		return
	}
	if b.off > len(b.data)/2 {
		n := copy(b.data, b.data[b.off:])
		b.data = b.data[:n]
		b.off = 0
	}
}
