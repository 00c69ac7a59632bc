package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetRoundTrip(t *testing.T) {
	c := New(t.TempDir(), "d", "t", 0)
	key := Key([]byte("payload-a"))

	type row struct {
		Name string `json:"name"`
	}
	in := []row{{Name: "bob"}, {Name: "alice"}}
	require.NoError(t, c.Put(key, in))

	assert.True(t, c.Valid(key))

	var out []row
	require.NoError(t, c.Get(key, &out))
	assert.Equal(t, in, out)
}

func TestValidFalseForMissingKey(t *testing.T) {
	c := New(t.TempDir(), "d", "t", 0)
	assert.False(t, c.Valid("nonexistent"))
}

func TestFlushRemovesAllEntries(t *testing.T) {
	c := New(t.TempDir(), "d", "t", 0)
	key := Key([]byte("payload-a"))
	require.NoError(t, c.Put(key, []int{1, 2, 3}))
	require.True(t, c.Valid(key))

	require.NoError(t, c.Flush())
	assert.False(t, c.Valid(key))
}

func TestExpirationInvalidatesOldEntry(t *testing.T) {
	c := New(t.TempDir(), "d", "t", time.Millisecond)
	key := Key([]byte("payload-a"))
	require.NoError(t, c.Put(key, 42))

	time.Sleep(5 * time.Millisecond)
	assert.False(t, c.Valid(key))
}

func TestKeyIsDeterministic(t *testing.T) {
	a := Key([]byte("same"))
	b := Key([]byte("same"))
	assert.Equal(t, a, b)

	c := Key([]byte("different"))
	assert.NotEqual(t, a, c)
}
