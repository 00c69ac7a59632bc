// Package toml provides a parser for fdb schema-definition files. It
// reads a TOML document declaring a database and its tables' column
// layouts and converts it into the schema.Schema representation the
// store operates on, so a whole database layout can be created from one
// declarative file instead of a sequence of builder calls.
package toml

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"

	"fdb/internal/schema"
)

// schemaFile is the top-level TOML document. [database], [validation],
// and [[tables]] are all top-level keys.
type schemaFile struct {
	Database   tomlDatabase    `toml:"database"`
	Validation *tomlValidation `toml:"validation"`
	Tables     []tomlTable     `toml:"tables"`
}

// tomlDatabase maps [database].
type tomlDatabase struct {
	Name string `toml:"name"`
}

// tomlValidation maps [validation]: optional length caps applied on top
// of the store's alphanumeric identifier rule.
type tomlValidation struct {
	MaxTableNameLength  int `toml:"max_table_name_length"`
	MaxColumnNameLength int `toml:"max_column_name_length"`
}

// Definition is the parsed form of a schema file: the database name and
// each table's column layout, in declaration order.
type Definition struct {
	Database string
	Tables   []TableDef
}

// TableDef pairs one table name with its parsed column layout.
type TableDef struct {
	Name   string
	Schema *schema.Schema
}

// Parser reads fdb TOML schema-definition files.
type Parser struct{}

// NewParser creates a new TOML schema parser.
func NewParser() *Parser {
	return &Parser{}
}

// ParseFile opens the file at the given path and parses it as a TOML
// schema definition.
func (p *Parser) ParseFile(path string) (*Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("toml: open file %q: %w", path, err)
	}
	defer f.Close()

	return p.Parse(f)
}

// Parse reads TOML content from reader and returns the corresponding
// Definition.
func (p *Parser) Parse(r io.Reader) (*Definition, error) {
	var sf schemaFile
	if _, err := toml.NewDecoder(r).Decode(&sf); err != nil {
		return nil, fmt.Errorf("toml: decode error: %w", err)
	}

	return newConverter(&sf).convert()
}

type converter struct {
	sf         *schemaFile
	rules      *tomlValidation
	seenTables map[string]bool
}

func newConverter(sf *schemaFile) *converter {
	return &converter{
		sf:         sf,
		rules:      sf.Validation,
		seenTables: make(map[string]bool, len(sf.Tables)),
	}
}

func (c *converter) convert() (*Definition, error) {
	if c.sf.Database.Name != "" && !schema.ValidName(c.sf.Database.Name) {
		return nil, fmt.Errorf("toml: database name %q must be alphanumeric", c.sf.Database.Name)
	}

	def := &Definition{
		Database: c.sf.Database.Name,
		Tables:   make([]TableDef, 0, len(c.sf.Tables)),
	}

	for i := range c.sf.Tables {
		t, err := c.convertTable(&c.sf.Tables[i])
		if err != nil {
			return nil, fmt.Errorf("toml: table %q: %w", c.sf.Tables[i].Name, err)
		}
		def.Tables = append(def.Tables, t)
	}

	return def, nil
}
