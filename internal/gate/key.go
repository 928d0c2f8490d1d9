package gate

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
)

// serverKeyBits is the RSA key size of the login key exchange. 1024 bits
// is what protocol version 578 clients speak; a larger key is rejected
// by the client.
const serverKeyBits = 1024

// ServerKey is the process-wide RSA key pair, generated fresh at every
// start and shared read-only by all connections.
type ServerKey struct {
	// Private is the RSA private key used to decrypt the client's key
	// exchange material.
	Private *rsa.PrivateKey

	// PublicDER is the PKIX/DER encoding of the public key, as sent in
	// EncryptionRequest and hashed into the session digest.
	PublicDER []byte
}

// GenerateServerKey generates a fresh server key pair.
func GenerateServerKey() (*ServerKey, error) {
	priv, err := rsa.GenerateKey(rand.Reader, serverKeyBits)
	if err != nil {
		return nil, fmt.Errorf("generate server key: %w", err)
	}

	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("encode server public key: %w", err)
	}

	return &ServerKey{Private: priv, PublicDER: der}, nil
}
