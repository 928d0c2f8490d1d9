package mojang

import (
	"crypto/sha1"
	"math/big"
)

// Digest computes the join-proof server id hash: SHA1 over the server id
// (empty for this protocol version), the shared secret, and the server's
// DER public key, rendered in the session authority's signed hex format.
//
// The 20-byte digest is interpreted as a signed big-endian integer and
// formatted in lowercase hex with no fixed width and a leading minus for
// negative values. Standard unsigned hex is not an acceptable
// substitute: roughly half of all hashes are negative and would silently
// fail authentication.
func Digest(serverID string, sharedSecret, publicKeyDER []byte) string {
	h := sha1.New()
	h.Write([]byte(serverID))
	h.Write(sharedSecret)
	h.Write(publicKeyDER)
	sum := h.Sum(nil)

	n := new(big.Int).SetBytes(sum)

	// Bit 159 set means the signed interpretation is negative:
	// two's complement by subtracting 2^160.
	if n.Bit(159) == 1 {
		n.Sub(n, new(big.Int).Lsh(big.NewInt(1), 160))
	}

	return n.Text(16)
}
