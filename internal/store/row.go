package store

import (
	"encoding/json"

	"fdb/internal/ioutil"
	"fdb/internal/rowcodec"
)

// Row is a small value identifying one row within a table. It carries
// only its id and a pointer back to its owning Table, fetching schema
// and DEK from the Table on demand rather than holding its own copy of
// the enclosing scope.
type Row struct {
	id    string
	table *Table
}

// ID returns the row's filename stem.
func (r *Row) ID() string { return r.id }

// Columns decodes the row's full column set.
func (r *Row) Columns() (map[string]any, error) {
	data, err := ioutil.ReadAll(r.table.rowPath(r.id))
	if err != nil {
		return nil, err
	}
	return r.table.decodeRowFile(data)
}

// Get reads and decodes a single column without loading the rest of the
// row file. A column absent from the row's header is a valid null, not
// an error.
func (r *Row) Get(column string) (any, error) {
	path := r.table.rowPath(r.id)
	header, err := ioutil.ReadLine(path, 0)
	if err != nil {
		return nil, err
	}
	var names []string
	if err := json.Unmarshal(header, &names); err != nil {
		return nil, err
	}

	index := -1
	for i, name := range names {
		if name == column {
			index = i
			break
		}
	}
	if index == -1 {
		return nil, nil
	}

	line, err := ioutil.ReadLine(path, index+1)
	if err != nil {
		return nil, err
	}
	dek, err := r.table.dek()
	if err != nil {
		return nil, err
	}
	return rowcodec.DecodeColumn(r.table.schema, column, line, dek)
}

// Delete unlinks the row's file.
func (r *Row) Delete() error {
	if err := ioutil.Remove(r.table.rowPath(r.id)); err != nil {
		return err
	}
	return r.table.db.TableCache(r.table.name).Flush()
}
