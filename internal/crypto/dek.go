package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"io"

	"fdb/internal/ferrors"
)

// DEKSize is the length in bytes of a table's data-encryption key.
const DEKSize = 32

// DEK is a table's unwrapped data-encryption key, used to encrypt and
// decrypt the values of that table's encrypted columns. It is derived
// on demand from the wrapped form stored in table metadata and is never
// persisted in the clear.
type DEK [DEKSize]byte

// NewDEK generates a fresh random 32-byte data-encryption key.
func NewDEK() (DEK, error) {
	var dek DEK
	if _, err := io.ReadFull(rand.Reader, dek[:]); err != nil {
		return DEK{}, ferrors.Wrap(ferrors.Internal, "crypto.NewDEK", "read random bytes", err)
	}
	return dek, nil
}

// WrapDEK encrypts dek under kek using the same AES-CBC+HMAC scheme as
// column values, producing the blob stored in table metadata under
// "dek".
func WrapDEK(dek DEK, kek []byte) (string, error) {
	if len(kek) == 0 {
		return "", ferrors.New(ferrors.CryptoRequired, "crypto.WrapDEK", "kek required to wrap a dek")
	}
	return Encrypt(base64.StdEncoding.EncodeToString(dek[:]), kek)
}

// UnwrapDEK decrypts a wrapped DEK blob with kek. Any HMAC failure or
// wrong-key decryption bubbles up as CryptoFailed.
func UnwrapDEK(wrapped string, kek []byte) (DEK, error) {
	if len(kek) == 0 {
		return DEK{}, ferrors.New(ferrors.CryptoRequired, "crypto.UnwrapDEK", "kek required to unwrap a dek")
	}
	decoded, err := Decrypt(wrapped, kek)
	if err != nil {
		return DEK{}, err
	}
	encoded, ok := decoded.(string)
	if !ok {
		return DEK{}, ferrors.New(ferrors.CryptoFailed, "crypto.UnwrapDEK", "unexpected dek payload shape")
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(raw) != DEKSize {
		return DEK{}, ferrors.New(ferrors.CryptoFailed, "crypto.UnwrapDEK", "malformed dek payload")
	}
	var dek DEK
	copy(dek[:], raw)
	return dek, nil
}
