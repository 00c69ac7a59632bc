package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fdb/internal/ferrors"
)

func TestWrapUnwrapDEKRoundTrip(t *testing.T) {
	dek, err := NewDEK()
	require.NoError(t, err)

	kek := []byte("top-secret-passphrase")
	wrapped, err := WrapDEK(dek, kek)
	require.NoError(t, err)

	unwrapped, err := UnwrapDEK(wrapped, kek)
	require.NoError(t, err)
	assert.Equal(t, dek, unwrapped)
}

func TestUnwrapDEKWrongKekFails(t *testing.T) {
	dek, err := NewDEK()
	require.NoError(t, err)

	wrapped, err := WrapDEK(dek, []byte("right"))
	require.NoError(t, err)

	_, err = UnwrapDEK(wrapped, []byte("wrong"))
	require.Error(t, err)
	assert.Equal(t, ferrors.CryptoFailed, ferrors.KindOf(err))
}

func TestWrapDEKRequiresKek(t *testing.T) {
	dek, err := NewDEK()
	require.NoError(t, err)

	_, err = WrapDEK(dek, nil)
	require.Error(t, err)
	assert.Equal(t, ferrors.CryptoRequired, ferrors.KindOf(err))
}
