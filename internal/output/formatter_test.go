package output

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fdb/internal/collection"
)

func sampleCollection() *collection.Collection {
	rows := []map[string]any{
		{"_id": "1", "name": "bob"},
		{"_id": "2", "name": "alice"},
	}
	return collection.New(rows, 0, 2)
}

func TestNewFormatterDefaultsToHuman(t *testing.T) {
	f, err := NewFormatter("")
	require.NoError(t, err)
	assert.IsType(t, humanFormatter{}, f)
}

func TestNewFormatterRejectsUnknown(t *testing.T) {
	_, err := NewFormatter("xml")
	assert.Error(t, err)
}

func TestHumanFormatterRendersRows(t *testing.T) {
	f, err := NewFormatter("human")
	require.NoError(t, err)
	out, err := f.FormatCollection(sampleCollection())
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, "bob"))
	assert.True(t, strings.Contains(out, "count=2"))
}

func TestHumanFormatterEmptyCollection(t *testing.T) {
	f, _ := NewFormatter("human")
	out, err := f.FormatCollection(collection.New(nil, 0, 0))
	require.NoError(t, err)
	assert.Contains(t, out, "no rows")
}

func TestJSONFormatterRendersPayload(t *testing.T) {
	f, err := NewFormatter("json")
	require.NoError(t, err)
	out, err := f.FormatCollection(sampleCollection())
	require.NoError(t, err)
	assert.Contains(t, out, `"totalCount": 2`)
	assert.Contains(t, out, `"name": "bob"`)
}
