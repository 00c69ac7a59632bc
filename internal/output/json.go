package output

import (
	"encoding/json"

	"fdb/internal/collection"
)

type jsonFormatter struct{}

type collectionPayload struct {
	Format     string           `json:"format"`
	Count      int              `json:"count"`
	TotalCount int              `json:"totalCount"`
	Rows       []map[string]any `json:"rows"`
}

// FormatCollection renders the windowed rows of col as indented JSON.
func (jsonFormatter) FormatCollection(col *collection.Collection) (string, error) {
	payload := collectionPayload{Format: string(FormatJSON)}
	if col != nil {
		payload.Rows = col.Rows()
		payload.Count = col.Count()
		payload.TotalCount = col.TotalCount()
	}
	b, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}
