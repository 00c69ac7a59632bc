package rowcodec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fdb/internal/crypto"
	"fdb/internal/schema"
)

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s := schema.New()
	require.NoError(t, s.Add("age", schema.Column{Type: schema.TypeInt}))
	require.NoError(t, s.Add("name", schema.Column{Type: schema.TypeText}))
	require.NoError(t, s.Add("ssn", schema.Column{Type: schema.TypeText, Encrypted: true}))
	return s
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	s := testSchema(t)
	dek, err := crypto.NewDEK()
	require.NoError(t, err)

	in := map[string]any{"age": float64(30), "name": "bob", "ssn": "123-45-6789"}
	data, err := Encode(s, in, dek)
	require.NoError(t, err)

	out, err := Decode(s, data, dek)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestEncodeHeaderIsSortedColumnNames(t *testing.T) {
	s := testSchema(t)
	dek, err := crypto.NewDEK()
	require.NoError(t, err)

	data, err := Encode(s, map[string]any{"age": float64(1), "name": "a"}, dek)
	require.NoError(t, err)

	lines := strings.SplitN(string(data), "\n", 2)
	assert.Equal(t, `["age","name"]`, lines[0])
}

func TestEncodeEncryptedColumnIsNotPlaintextOnDisk(t *testing.T) {
	s := testSchema(t)
	dek, err := crypto.NewDEK()
	require.NoError(t, err)

	data, err := Encode(s, map[string]any{"ssn": "123-45-6789"}, dek)
	require.NoError(t, err)

	assert.NotContains(t, string(data), "123-45-6789")
}

func TestDecodeWithWrongDEKFailsOnEncryptedColumn(t *testing.T) {
	s := testSchema(t)
	dek, err := crypto.NewDEK()
	require.NoError(t, err)
	wrongDEK, err := crypto.NewDEK()
	require.NoError(t, err)

	data, err := Encode(s, map[string]any{"ssn": "123-45-6789"}, dek)
	require.NoError(t, err)

	_, err = Decode(s, data, wrongDEK)
	require.Error(t, err)
}

func TestHeaderReadsWithoutDecodingValues(t *testing.T) {
	s := testSchema(t)
	dek, err := crypto.NewDEK()
	require.NoError(t, err)

	data, err := Encode(s, map[string]any{"age": float64(1), "name": "a"}, dek)
	require.NoError(t, err)

	names, err := Header(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"age", "name"}, names)
}

func TestEncodeStoresColumnsUnknownToSchema(t *testing.T) {
	s := schema.New()
	dek, err := crypto.NewDEK()
	require.NoError(t, err)

	in := map[string]any{"whatever": "value", "count": float64(3)}
	data, err := Encode(s, in, dek)
	require.NoError(t, err)

	out, err := Decode(s, data, dek)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestEncodeIgnoresReservedIDColumn(t *testing.T) {
	s := schema.New()
	dek, err := crypto.NewDEK()
	require.NoError(t, err)

	data, err := Encode(s, map[string]any{schema.IDColumn: "abc", "name": "x"}, dek)
	require.NoError(t, err)

	names, err := Header(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, names)
}

func TestDecodeColumnSingleValue(t *testing.T) {
	s := testSchema(t)
	dek, err := crypto.NewDEK()
	require.NoError(t, err)

	data, err := Encode(s, map[string]any{"age": float64(1), "name": "bob"}, dek)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	value, err := DecodeColumn(s, "name", []byte(lines[2]), dek)
	require.NoError(t, err)
	assert.Equal(t, "bob", value)
}
