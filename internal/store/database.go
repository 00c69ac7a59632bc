// Package store implements the on-disk database/table hierarchy:
// directory and metadata lifecycle, row CRUD through the row codec, and
// the query.RowSource bridge the query builder evaluates against.
// Database and Table live in one package because Table needs its owning
// Database's KEK and cache namespace, and Database.CreateTable needs to
// build a Table; splitting them would be a circular import.
package store

import (
	"time"

	"fdb/internal/cache"
	"fdb/internal/crypto"
	"fdb/internal/ferrors"
	"fdb/internal/ioutil"
	"fdb/internal/query"
	"fdb/internal/schema"
)

const metadataVersion = "1.0.0"

type databaseMetadata struct {
	Created int64  `json:"created"`
	Version string `json:"version"`
}

// Database is a storage root holding zero or more tables. The KEK is
// held only for the handle's lifetime: never persisted, never logged,
// never included in a cache or backup payload.
type Database struct {
	name        string
	storageRoot string
	kek         []byte
	cacheTTL    time.Duration
}

// Open constructs (or reattaches to) a database named name rooted at
// storageRoot, creating its directory and metadata record if absent.
// kek may be nil if no table under this database has encrypted columns.
func Open(storageRoot, name string, kek []byte, cacheTTL time.Duration) (*Database, error) {
	if err := schema.ValidateName("database", name); err != nil {
		return nil, err
	}

	db := &Database{name: name, storageRoot: storageRoot, kek: kek, cacheTTL: cacheTTL}
	metaPath := db.metadataPath()
	if ioutil.Exists(metaPath) {
		return db, nil
	}

	if err := ioutil.WriteJSON(metaPath, databaseMetadata{Created: nowStamp(), Version: metadataVersion}); err != nil {
		return nil, err
	}
	return db, nil
}

func (db *Database) dir() string {
	return ioutil.Join(db.storageRoot, db.name)
}

func (db *Database) metadataPath() string {
	return ioutil.Join(db.dir(), ".metadata")
}

func (db *Database) tableDir(name string) string {
	return ioutil.Join(db.dir(), name)
}

// Name returns the database's identifier.
func (db *Database) Name() string { return db.name }

// StorageRoot returns the directory this database's files are rooted
// under, for callers (like internal/backup) that need to walk the
// on-disk layout directly.
func (db *Database) StorageRoot() string { return db.storageRoot }

// CreateTable creates a new table named name with the given schema. A
// fresh DEK is generated and wrapped under the database's KEK iff s has
// any encrypted column; a table with no encrypted columns never touches
// the KEK. Failure partway through table-directory creation rolls back
// by removing the partially created directory.
func (db *Database) CreateTable(name string, s *schema.Schema) (*Table, error) {
	if err := schema.ValidateName("table", name); err != nil {
		return nil, err
	}
	dir := db.tableDir(name)
	if ioutil.Exists(ioutil.Join(dir, ".metadata")) {
		return nil, ferrors.New(ferrors.AlreadyExists, "store.CreateTable", "table "+name+" already exists")
	}
	if s == nil {
		s = schema.New()
	}

	var wrappedDEK string
	if s.HasEncryptedColumns() {
		dek, err := crypto.NewDEK()
		if err != nil {
			return nil, err
		}
		wrappedDEK, err = crypto.WrapDEK(dek, db.kek)
		if err != nil {
			return nil, err
		}
	}

	meta := tableMetadata{
		Created: nowStamp(),
		Schema:  s.ToMetadata(),
		DEK:     wrappedDEK,
	}
	if err := ioutil.WriteJSON(ioutil.Join(dir, ".metadata"), meta); err != nil {
		_ = ioutil.RemoveTree(dir)
		return nil, err
	}

	return db.openTable(name, s, wrappedDEK), nil
}

// Table reattaches to an existing table, reading its schema and wrapped
// DEK back from metadata.
func (db *Database) Table(name string) (*Table, error) {
	dir := db.tableDir(name)
	metaPath := ioutil.Join(dir, ".metadata")
	if !ioutil.Exists(metaPath) {
		return nil, ferrors.New(ferrors.NotFound, "store.Table", "table "+name+" not found")
	}

	var meta tableMetadata
	if err := ioutil.ReadJSON(metaPath, &meta); err != nil {
		return nil, err
	}
	s, err := schema.FromMetadata(meta.Schema)
	if err != nil {
		return nil, err
	}
	return db.openTable(name, s, meta.DEK), nil
}

func (db *Database) openTable(name string, s *schema.Schema, wrappedDEK string) *Table {
	return &Table{
		name:       name,
		db:         db,
		schema:     s,
		wrappedDEK: wrappedDEK,
	}
}

// Tables lists every table name under the database, excluding any name
// in exclude and any transient ".deleted_*" tombstone.
func (db *Database) Tables(exclude []string) ([]string, error) {
	skip := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		skip[name] = true
	}

	entries, err := readDirNames(db.dir())
	if err != nil {
		return nil, err
	}

	var out []string
	for _, name := range entries {
		if skip[name] || isTombstone(name) || name == ".cache" {
			continue
		}
		if ioutil.Exists(ioutil.Join(db.dir(), name, ".metadata")) {
			out = append(out, name)
		}
	}
	return out, nil
}

// Rename renames the database's storage directory in place.
func (db *Database) Rename(newName string) error {
	if err := schema.ValidateName("database", newName); err != nil {
		return err
	}
	oldDir := db.dir()
	db.name = newName
	newDir := db.dir()
	return renameDir(oldDir, newDir)
}

// Delete tombstones and removes the database's entire storage directory.
func (db *Database) Delete() error {
	tomb, err := ioutil.Tombstone(db.dir())
	if err != nil {
		return err
	}
	return ioutil.RemoveTree(tomb)
}

// Query returns a query.Builder reading from table against this
// database's rows.
func (db *Database) Query(table string) *query.Builder {
	return query.New(db).From(table)
}

func isTombstone(name string) bool {
	return len(name) >= len(".deleted_") && name[:len(".deleted_")] == ".deleted_"
}

func nowStamp() int64 {
	return time.Now().Unix()
}

// TableRows implements query.RowSource: every non-tombstoned row of
// table, fully decoded.
func (db *Database) TableRows(name string) ([]map[string]any, error) {
	t, err := db.Table(name)
	if err != nil {
		return nil, err
	}
	return t.allColumns()
}

// TableIdentity implements query.RowSource: a string that changes
// whenever a column is added or removed or its type, required or
// encrypted flag changes, so cache entries computed under such a stale
// schema are never reused.
func (db *Database) TableIdentity(name string) (string, error) {
	t, err := db.Table(name)
	if err != nil {
		return "", err
	}
	return t.identity(), nil
}

// TableCache implements query.RowSource: the cache namespace for table,
// scoped to this database's storage root and configured TTL.
func (db *Database) TableCache(name string) *cache.Cache {
	return cache.New(db.storageRoot, db.name, name, db.cacheTTL)
}
