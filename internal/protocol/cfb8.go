package protocol

import "crypto/cipher"

// AES-128/CFB8 as the login protocol uses it: an 8-bit feedback window so
// the stream stays byte-synchronous, with the 16-byte shared secret doing
// double duty as both key and IV. The standard library only ships full
// block CFB, so the 8-bit variant is implemented here as a cipher.Stream.

type cfb8 struct {
	block   cipher.Block
	sr      []byte // shift register, blockSize bytes
	tmp     []byte
	decrypt bool
}

// NewCFB8Encrypter returns a cipher.Stream that encrypts in CFB-8 mode
// using the given block cipher and IV. len(iv) must equal the block size.
func NewCFB8Encrypter(block cipher.Block, iv []byte) cipher.Stream {
	return newCFB8(block, iv, false)
}

// NewCFB8Decrypter returns a cipher.Stream that decrypts in CFB-8 mode
// using the given block cipher and IV. len(iv) must equal the block size.
func NewCFB8Decrypter(block cipher.Block, iv []byte) cipher.Stream {
	return newCFB8(block, iv, true)
}

func newCFB8(block cipher.Block, iv []byte, decrypt bool) cipher.Stream {
	size := block.BlockSize()
	if len(iv) != size {
		panic("protocol: IV length must equal block size")
	}
	s := &cfb8{
		block:   block,
		sr:      make([]byte, size),
		tmp:     make([]byte, size),
		decrypt: decrypt,
	}
	copy(s.sr, iv)
	return s
}

// XORKeyStream processes one byte of keystream per byte of src. Exactly
// one output byte is produced per input byte, so the stream can be
// enabled at any frame boundary without padding concerns.
func (s *cfb8) XORKeyStream(dst, src []byte) {
	if len(dst) < len(src) {
		panic("protocol: dst shorter than src")
	}
	for i := range src {
		s.block.Encrypt(s.tmp, s.sr)
		c := src[i] ^ s.tmp[0]

		feedback := c
		if s.decrypt {
			feedback = src[i]
		}
		copy(s.sr, s.sr[1:])
		s.sr[len(s.sr)-1] = feedback

		dst[i] = c
	}
}
