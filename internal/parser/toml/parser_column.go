package toml

import (
	"errors"
	"fmt"
	"strings"

	"fdb/internal/schema"
)

// tomlColumn maps [[tables.columns]].
type tomlColumn struct {
	Name      string `toml:"name"`
	Type      string `toml:"type"`
	Required  bool   `toml:"required"`
	Encrypted bool   `toml:"encrypted"`

	// EnumValues holds the allowed value list for enum columns. It is
	// read from the declaration's `values` key, never from a half-built
	// descriptor.
	EnumValues []string `toml:"values"`
}

func (c *converter) convertColumn(tc *tomlColumn) (string, schema.Column, error) {
	if err := c.validateColumnName(tc.Name); err != nil {
		return "", schema.Column{}, err
	}

	colType, err := resolveColumnType(tc)
	if err != nil {
		return "", schema.Column{}, err
	}

	col := schema.Column{
		Type:      colType,
		Required:  tc.Required,
		Encrypted: tc.Encrypted,
	}
	if colType == schema.TypeEnum {
		col.EnumValues = make([]any, len(tc.EnumValues))
		for i, v := range tc.EnumValues {
			col.EnumValues[i] = v
		}
	}

	return tc.Name, col, nil
}

func (c *converter) validateColumnName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("column name is empty")
	}
	if name == schema.IDColumn {
		return fmt.Errorf("column name %q is reserved", name)
	}
	if !schema.ValidName(name) {
		return fmt.Errorf("column %q must be alphanumeric", name)
	}
	if c.rules != nil && c.rules.MaxColumnNameLength > 0 && len(name) > c.rules.MaxColumnNameLength {
		return fmt.Errorf("column %q exceeds maximum length %d", name, c.rules.MaxColumnNameLength)
	}
	return nil
}

// resolveColumnType validates the declared type against the closed
// column-type set and requires a non-empty value list for enums.
func resolveColumnType(tc *tomlColumn) (schema.ColumnType, error) {
	raw := strings.ToLower(strings.TrimSpace(tc.Type))
	if raw == "" {
		return "", errors.New("type is empty")
	}

	colType := schema.ColumnType(raw)
	if !schema.ValidType(colType) {
		return "", fmt.Errorf("unsupported type %q", tc.Type)
	}
	if colType == schema.TypeEnum && len(tc.EnumValues) == 0 {
		return "", errors.New("enum type requires a non-empty values list")
	}
	if colType != schema.TypeEnum && len(tc.EnumValues) > 0 {
		return "", fmt.Errorf("values list is only valid for enum columns, not %q", tc.Type)
	}

	return colType, nil
}
