// Package output formats query results for the command-line front end.
// It provides two formats, human and JSON, behind a small Formatter
// interface so a new format is one more switch case away.
package output

import (
	"fmt"
	"strings"

	"fdb/internal/collection"
)

// Format is an enum type representing the available output formats.
type Format string

const (
	FormatHuman Format = "human"
	FormatJSON  Format = "json"
)

// Formatter renders a query result for display.
type Formatter interface {
	FormatCollection(*collection.Collection) (string, error)
}

// NewFormatter creates a Formatter for the given name. An empty name
// defaults to human format.
func NewFormatter(name string) (Formatter, error) {
	format := Format(strings.ToLower(strings.TrimSpace(name)))
	switch format {
	case "", FormatHuman:
		return humanFormatter{}, nil
	case FormatJSON:
		return jsonFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s; use 'human' or 'json'", name)
	}
}
