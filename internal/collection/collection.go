// Package collection wraps an already-materialized row slice with a
// lazy pagination window, so callers can ask for a count or a page
// without the evaluator eagerly copying the whole result.
package collection

// Collection is the result of a query evaluation: the full row vector
// plus an offset/limit window applied on read.
type Collection struct {
	rows   []map[string]any
	offset int
	limit  int
}

// New wraps rows with the [offset, offset+limit) window. Offsets past
// the end of rows, or a non-positive limit, yield an empty window
// rather than an error.
func New(rows []map[string]any, offset, limit int) *Collection {
	return &Collection{rows: rows, offset: offset, limit: limit}
}

// Rows materializes the windowed page.
func (c *Collection) Rows() []map[string]any {
	if c.offset >= len(c.rows) || c.limit <= 0 {
		return []map[string]any{}
	}
	end := c.offset + c.limit
	if end > len(c.rows) || end < c.offset {
		end = len(c.rows)
	}
	return c.rows[c.offset:end]
}

// At returns the row at index i within the window, or nil when i is
// out of range.
func (c *Collection) At(i int) map[string]any {
	rows := c.Rows()
	if i < 0 || i >= len(rows) {
		return nil
	}
	return rows[i]
}

// Count returns the number of rows in the current window.
func (c *Collection) Count() int {
	return len(c.Rows())
}

// TotalCount returns the number of rows before the window was applied.
func (c *Collection) TotalCount() int {
	return len(c.rows)
}

// Each iterates the windowed rows, stopping early if fn returns false.
func (c *Collection) Each(fn func(row map[string]any) bool) {
	for _, row := range c.Rows() {
		if !fn(row) {
			return
		}
	}
}
