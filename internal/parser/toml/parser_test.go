package toml

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fdb/internal/schema"
)

func parseString(t *testing.T, content string) (*Definition, error) {
	t.Helper()
	return NewParser().Parse(strings.NewReader(content))
}

func TestParseFullDefinition(t *testing.T) {
	def, err := parseString(t, `
[database]
name = "shop"

[[tables]]
name = "customers"

[[tables.columns]]
name = "email"
type = "text"
required = true

[[tables.columns]]
name = "creditCard"
type = "text"
encrypted = true

[[tables]]
name = "orders"

[[tables.columns]]
name = "status"
type = "enum"
values = ["pending", "processing", "shipped"]

[[tables.columns]]
name = "totalAmount"
type = "number"
`)
	require.NoError(t, err)

	assert.Equal(t, "shop", def.Database)
	require.Len(t, def.Tables, 2)

	customers := def.Tables[0]
	assert.Equal(t, "customers", customers.Name)
	email, ok := customers.Schema.Get("email")
	require.True(t, ok)
	assert.Equal(t, schema.TypeText, email.Type)
	assert.True(t, email.Required)
	assert.False(t, email.Encrypted)

	card, ok := customers.Schema.Get("creditCard")
	require.True(t, ok)
	assert.True(t, card.Encrypted)
	assert.True(t, customers.Schema.HasEncryptedColumns())

	orders := def.Tables[1]
	status, ok := orders.Schema.Get("status")
	require.True(t, ok)
	assert.Equal(t, schema.TypeEnum, status.Type)
	assert.Equal(t, []any{"pending", "processing", "shipped"}, status.EnumValues)
}

func TestParseEmptyDatabaseNameAllowed(t *testing.T) {
	def, err := parseString(t, `
[[tables]]
name = "t1"

[[tables.columns]]
name = "a"
type = "int"
`)
	require.NoError(t, err)
	assert.Equal(t, "", def.Database)
	require.Len(t, def.Tables, 1)
}

func TestParseRejectsNonAlphanumericDatabaseName(t *testing.T) {
	_, err := parseString(t, `
[database]
name = "my-shop"
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alphanumeric")
}

func TestParseRejectsDuplicateTables(t *testing.T) {
	_, err := parseString(t, `
[[tables]]
name = "users"
[[tables.columns]]
name = "a"
type = "int"

[[tables]]
name = "Users"
[[tables.columns]]
name = "a"
type = "int"
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate table name")
}

func TestParseRejectsInvalidToml(t *testing.T) {
	_, err := parseString(t, `[[tables]`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode error")
}

func TestParseValidationLimits(t *testing.T) {
	_, err := parseString(t, `
[validation]
max_table_name_length = 4

[[tables]]
name = "toolong"
[[tables.columns]]
name = "a"
type = "int"
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds maximum length")
}

func TestParseFileMissing(t *testing.T) {
	_, err := NewParser().ParseFile("does/not/exist.toml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open file")
}
