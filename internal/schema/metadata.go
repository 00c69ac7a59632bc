package schema

// MetadataColumn is the on-disk shape of one column inside a table's
// .metadata JSON: {type, args, required, encrypted}.
type MetadataColumn struct {
	Type      ColumnType `json:"type"`
	Args      []any      `json:"args,omitempty"`
	Required  bool       `json:"required,omitempty"`
	Encrypted bool       `json:"encrypted,omitempty"`
}

// ToMetadata converts the schema to its serializable metadata form.
func (s *Schema) ToMetadata() map[string]MetadataColumn {
	out := make(map[string]MetadataColumn, len(s.columns))
	for name, col := range s.columns {
		out[name] = MetadataColumn{
			Type:      col.Type,
			Args:      col.EnumValues,
			Required:  col.Required,
			Encrypted: col.Encrypted,
		}
	}
	return out
}

// FromMetadata rebuilds a Schema from its serialized metadata form.
func FromMetadata(meta map[string]MetadataColumn) (*Schema, error) {
	s := New()
	for name, mc := range meta {
		if err := s.Add(name, Column{
			Type:       mc.Type,
			Required:   mc.Required,
			Encrypted:  mc.Encrypted,
			EnumValues: mc.Args,
		}); err != nil {
			return nil, err
		}
	}
	return s, nil
}
