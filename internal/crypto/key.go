package crypto

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"

	"fdb/internal/ferrors"
)

// keyMaterial is the pair of derived keys used by the cipher: one for
// AES-256-CBC, one for the HMAC-SHA-256 authentication tag. Both are
// derived via HKDF from the secret passed to Encrypt/Decrypt (a KEK or
// a table's DEK) so the cipher and the MAC
// never share raw key material.
type keyMaterial struct {
	encKey  [32]byte
	hmacKey [32]byte
}

const hkdfInfoEnc = "fdb/aes-256-cbc"
const hkdfInfoMAC = "fdb/hmac-sha256"

func deriveKeys(secret []byte) (keyMaterial, error) {
	var km keyMaterial

	encReader := hkdf.New(sha256.New, secret, nil, []byte(hkdfInfoEnc))
	if _, err := io.ReadFull(encReader, km.encKey[:]); err != nil {
		return keyMaterial{}, ferrors.Wrap(ferrors.Internal, "crypto.deriveKeys", "derive encryption key", err)
	}

	macReader := hkdf.New(sha256.New, secret, nil, []byte(hkdfInfoMAC))
	if _, err := io.ReadFull(macReader, km.hmacKey[:]); err != nil {
		return keyMaterial{}, ferrors.Wrap(ferrors.Internal, "crypto.deriveKeys", "derive hmac key", err)
	}

	return km, nil
}
