package store

import (
	"sort"
	"strings"

	"fdb/internal/collection"
	"fdb/internal/crypto"
	"fdb/internal/ferrors"
	"fdb/internal/ioutil"
	"fdb/internal/query"
	"fdb/internal/rowcodec"
	"fdb/internal/schema"
)

const rowExt = ".ndjson"

type tableMetadata struct {
	Created int64                            `json:"created"`
	Schema  map[string]schema.MetadataColumn `json:"schema"`
	DEK     string                           `json:"dek"`
}

// Table owns the row lifecycle for one table directory: insert, find,
// update, delete, and schema alteration. It holds its schema and wrapped
// DEK, and unwraps the DEK with its owning Database's KEK on demand
// rather than caching a long-lived unwrapped key.
type Table struct {
	name       string
	db         *Database
	schema     *schema.Schema
	wrappedDEK string
}

// Name returns the table's identifier.
func (t *Table) Name() string { return t.name }

// Schema returns the table's current column layout.
func (t *Table) Schema() *schema.Schema { return t.schema }

func (t *Table) dir() string {
	return t.db.tableDir(t.name)
}

func (t *Table) metadataPath() string {
	return ioutil.Join(t.dir(), ".metadata")
}

func (t *Table) rowPath(id string) string {
	return ioutil.Join(t.dir(), id+rowExt)
}

// dek returns the table's unwrapped data-encryption key. Tables with no
// encrypted column never touch the KEK and get the zero key, which
// rowcodec ignores.
func (t *Table) dek() (crypto.DEK, error) {
	if !t.schema.HasEncryptedColumns() {
		return crypto.DEK{}, nil
	}
	if t.wrappedDEK == "" {
		return crypto.DEK{}, ferrors.New(ferrors.CryptoRequired, "store.Table.dek", "table "+t.name+" has encrypted columns but no wrapped dek")
	}
	if len(t.db.kek) == 0 {
		return crypto.DEK{}, ferrors.New(ferrors.CryptoRequired, "store.Table.dek", "kek required to open table "+t.name)
	}
	return crypto.UnwrapDEK(t.wrappedDEK, t.db.kek)
}

// identity is a string that changes whenever a column is added or
// removed or its type, required or encrypted flag changes, used by the
// query cache to scope keys to a schema version. Enum value lists are
// not part of it.
func (t *Table) identity() string {
	var b strings.Builder
	b.WriteString(t.db.name)
	b.WriteByte('/')
	b.WriteString(t.name)
	for _, name := range t.schema.Sorted() {
		col, _ := t.schema.Get(name)
		b.WriteByte('|')
		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(string(col.Type))
		if col.Required {
			b.WriteString(",req")
		}
		if col.Encrypted {
			b.WriteString(",enc")
		}
	}
	return b.String()
}

func extractID(columns map[string]any) (string, bool) {
	raw, ok := columns[schema.IDColumn]
	if !ok {
		return "", false
	}
	id, ok := raw.(string)
	return id, ok
}

func mergeColumns(existing, incoming map[string]any) map[string]any {
	merged := make(map[string]any, len(existing)+len(incoming))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range incoming {
		if k == schema.IDColumn {
			continue
		}
		merged[k] = v
	}
	return merged
}

func (t *Table) validateRow(merged map[string]any) error {
	for _, name := range t.schema.Sorted() {
		value := merged[name]
		if !t.schema.Valid(name, value) {
			return ferrors.New(ferrors.SchemaViolation, "store.Table.validateRow", "column "+name+" failed validation")
		}
	}
	return nil
}

func (t *Table) freshID() (string, error) {
	for {
		id, err := crypto.RandomID(8)
		if err != nil {
			return "", err
		}
		if !ioutil.Exists(t.rowPath(id)) {
			return id, nil
		}
	}
}

func (t *Table) decodeRowFile(data []byte) (map[string]any, error) {
	dek, err := t.dek()
	if err != nil {
		return nil, err
	}
	return rowcodec.Decode(t.schema, data, dek)
}

// Insert creates or updates a row. If columns carries an explicit "_id"
// and a row with that id exists, the row is updated by merging columns
// over the existing values (full-rewrite semantics, never in-place
// mutation). An explicit "_id" with no matching row fails NotFound. No
// "_id" generates a fresh one. Every column is validated against the
// schema before anything is written; a table with encrypted columns
// requires a usable KEK, or the insert fails CryptoRequired/CryptoFailed.
func (t *Table) Insert(columns map[string]any) (*Row, error) {
	id, explicit := extractID(columns)

	var existing map[string]any
	if explicit {
		if err := schema.ValidateName("row", id); err != nil {
			return nil, err
		}
		path := t.rowPath(id)
		if !ioutil.Exists(path) {
			return nil, ferrors.New(ferrors.NotFound, "store.Table.Insert", "row "+id+" not found")
		}
		data, err := ioutil.ReadAll(path)
		if err != nil {
			return nil, err
		}
		existing, err = t.decodeRowFile(data)
		if err != nil {
			return nil, err
		}
	} else {
		var err error
		id, err = t.freshID()
		if err != nil {
			return nil, err
		}
	}

	merged := mergeColumns(existing, columns)
	if err := t.validateRow(merged); err != nil {
		return nil, err
	}

	dek, err := t.dek()
	if err != nil {
		return nil, err
	}
	encoded, err := rowcodec.Encode(t.schema, merged, dek)
	if err != nil {
		return nil, err
	}
	if err := ioutil.AtomicWrite(t.rowPath(id), encoded); err != nil {
		return nil, err
	}

	if err := t.db.TableCache(t.name).Flush(); err != nil {
		return nil, err
	}

	return &Row{id: id, table: t}, nil
}

// InsertResult is one outcome of a best-effort InsertMany call.
type InsertResult struct {
	Row *Row
	Err error
}

// InsertMany inserts each record independently; a failure on one record
// does not abort the rest. Non-atomic across rows, by design: the store
// offers no multi-row transaction.
func (t *Table) InsertMany(records []map[string]any) []InsertResult {
	out := make([]InsertResult, len(records))
	for i, rec := range records {
		row, err := t.Insert(rec)
		out[i] = InsertResult{Row: row, Err: err}
	}
	return out
}

// Row returns a handle to the row named id, or NotFound if its file is
// absent.
func (t *Table) Row(id string) (*Row, error) {
	if !ioutil.Exists(t.rowPath(id)) {
		return nil, ferrors.New(ferrors.NotFound, "store.Table.Row", "row "+id+" not found")
	}
	return &Row{id: id, table: t}, nil
}

// Rows enumerates every row file under the table, excluding any id in
// exclude, returning a handle per row.
func (t *Table) Rows(exclude []string) ([]*Row, error) {
	skip := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}

	names, err := readDirNames(t.dir())
	if err != nil {
		return nil, err
	}

	var out []*Row
	for _, name := range names {
		if !strings.HasSuffix(name, rowExt) {
			continue
		}
		id := strings.TrimSuffix(name, rowExt)
		if skip[id] {
			continue
		}
		out = append(out, &Row{id: id, table: t})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out, nil
}

// allColumns decodes every row in the table, injecting the row's id
// under schema.IDColumn so query predicates and joins can reference it.
func (t *Table) allColumns() ([]map[string]any, error) {
	rows, err := t.Rows(nil)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		cols, err := r.Columns()
		if err != nil {
			return nil, err
		}
		cols[schema.IDColumn] = r.id
		out = append(out, cols)
	}
	return out, nil
}

// query returns a builder reading from this table against its owning
// database.
func (t *Table) query() *query.Builder {
	return t.db.Query(t.name)
}

// FindOne builds an equality query over criteria, caching disabled,
// limited to the first match.
func (t *Table) FindOne(criteria map[string]any) (map[string]any, error) {
	b := t.query().NoCache().Limit(1, 0)
	for col, val := range criteria {
		b = b.Where(col, "=", val)
	}
	col, err := b.Evaluate()
	if err != nil {
		return nil, err
	}
	rows := col.Rows()
	if len(rows) == 0 {
		return nil, ferrors.New(ferrors.NotFound, "store.Table.FindOne", "no row matched criteria")
	}
	return rows[0], nil
}

// Find builds an equality query over criteria with no pagination
// applied beyond the evaluator's defaults.
func (t *Table) Find(criteria map[string]any) (*collection.Collection, error) {
	b := t.query()
	for col, val := range criteria {
		b = b.Where(col, "=", val)
	}
	return b.Evaluate()
}

// Delete tombstones and removes the table's directory, then flushes its
// cache namespace.
func (t *Table) Delete() error {
	tomb, err := ioutil.Tombstone(t.dir())
	if err != nil {
		return err
	}
	if err := ioutil.RemoveTree(tomb); err != nil {
		return err
	}
	return t.db.TableCache(t.name).Flush()
}

// Alter rewrites the table's schema in metadata and reports what
// changed. It never rewrites existing rows; a row written under the old
// schema is only revalidated the next time it is written again.
func (t *Table) Alter(newSchema *schema.Schema) (*schema.Diff, error) {
	diff := schema.Compare(t.schema, newSchema)

	var old tableMetadata
	created := nowStamp()
	if err := ioutil.ReadJSON(t.metadataPath(), &old); err == nil {
		created = old.Created
	}

	meta := tableMetadata{
		Created: created,
		Schema:  newSchema.ToMetadata(),
		DEK:     t.wrappedDEK,
	}
	if err := ioutil.WriteJSON(t.metadataPath(), meta); err != nil {
		return nil, err
	}

	t.schema = newSchema
	return diff, nil
}
