package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"io"

	"fdb/internal/ferrors"
)

// RandomID returns n random bytes, hex-encoded, for use as a row
// identifier.
func RandomID(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", ferrors.Wrap(ferrors.Internal, "crypto.RandomID", "read random bytes", err)
	}
	return hex.EncodeToString(buf), nil
}
