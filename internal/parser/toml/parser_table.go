package toml

import (
	"errors"
	"fmt"
	"strings"

	"fdb/internal/schema"
)

// tomlTable maps [[tables]].
type tomlTable struct {
	Name    string       `toml:"name"`
	Columns []tomlColumn `toml:"columns"`
}

func (c *converter) convertTable(tt *tomlTable) (TableDef, error) {
	if err := c.validateTableName(tt.Name); err != nil {
		return TableDef{}, err
	}

	s := schema.New()
	seenCols := make(map[string]bool, len(tt.Columns))
	for i := range tt.Columns {
		name, col, err := c.convertColumn(&tt.Columns[i])
		if err != nil {
			return TableDef{}, fmt.Errorf("column %q: %w", tt.Columns[i].Name, err)
		}
		lower := strings.ToLower(name)
		if seenCols[lower] {
			return TableDef{}, fmt.Errorf("duplicate column name %q", name)
		}
		seenCols[lower] = true
		if err := s.Add(name, col); err != nil {
			return TableDef{}, err
		}
	}

	if len(tt.Columns) == 0 {
		return TableDef{}, errors.New("table has no columns")
	}

	return TableDef{Name: tt.Name, Schema: s}, nil
}

// validateTableName checks emptiness, duplicates, length, and the
// alphanumeric rule - all before we spend any time converting columns.
func (c *converter) validateTableName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("table name is empty")
	}

	lower := strings.ToLower(name)
	if c.seenTables[lower] {
		return fmt.Errorf("duplicate table name %q", name)
	}
	c.seenTables[lower] = true

	if !schema.ValidName(name) {
		return fmt.Errorf("table name %q must be alphanumeric", name)
	}
	if c.rules != nil && c.rules.MaxTableNameLength > 0 && len(name) > c.rules.MaxTableNameLength {
		return fmt.Errorf("table %q exceeds maximum length %d", name, c.rules.MaxTableNameLength)
	}

	return nil
}
