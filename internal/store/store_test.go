package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fdb/internal/ferrors"
	"fdb/internal/ioutil"
	"fdb/internal/schema"
)

func openDB(t *testing.T, kek []byte) *Database {
	t.Helper()
	db, err := Open(t.TempDir(), "d", kek, 0)
	require.NoError(t, err)
	return db
}

func TestBasicRoundTrip(t *testing.T) {
	db := openDB(t, nil)
	table, err := db.CreateTable("users", schema.New())
	require.NoError(t, err)

	row, err := table.Insert(map[string]any{"user_id": 101.0, "username": "johndoe", "is_active": true})
	require.NoError(t, err)
	assert.NotEmpty(t, row.ID())

	found, err := table.FindOne(map[string]any{"username": "johndoe"})
	require.NoError(t, err)
	assert.Equal(t, 101.0, found["user_id"])
}

func TestInsertExplicitIDUpdatesExistingRow(t *testing.T) {
	db := openDB(t, nil)
	table, err := db.CreateTable("users", schema.New())
	require.NoError(t, err)

	row, err := table.Insert(map[string]any{"name": "a"})
	require.NoError(t, err)

	_, err = table.Insert(map[string]any{"_id": row.ID(), "name": "b"})
	require.NoError(t, err)

	cols, err := row.Columns()
	require.NoError(t, err)
	assert.Equal(t, "b", cols["name"])
}

func TestInsertExplicitMissingIDFailsNotFound(t *testing.T) {
	db := openDB(t, nil)
	table, err := db.CreateTable("users", schema.New())
	require.NoError(t, err)

	_, err = table.Insert(map[string]any{"_id": "deadbeef", "name": "a"})
	assert.True(t, ferrors.Is(err, ferrors.NotFound))
}

func TestInsertRejectsSchemaViolation(t *testing.T) {
	db := openDB(t, nil)
	s := schema.New()
	require.NoError(t, s.Add("age", schema.Column{Type: schema.TypeInt, Required: true}))
	table, err := db.CreateTable("people", s)
	require.NoError(t, err)

	_, err = table.Insert(map[string]any{})
	assert.True(t, ferrors.Is(err, ferrors.SchemaViolation))
}

func TestEncryptedColumnStoresBlobNotPlaintext(t *testing.T) {
	db := openDB(t, []byte("s3cret"))
	s := schema.New()
	require.NoError(t, s.Add("credit_card", schema.Column{Type: schema.TypeText, Encrypted: true}))
	table, err := db.CreateTable("customers", s)
	require.NoError(t, err)

	row, err := table.Insert(map[string]any{"credit_card": "4111111111111111"})
	require.NoError(t, err)

	raw, err := ioutil.ReadAll(table.rowPath(row.ID()))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "4111111111111111")

	cols, err := row.Columns()
	require.NoError(t, err)
	assert.Equal(t, "4111111111111111", cols["credit_card"])

	reopened, err := db.Table("customers")
	require.NoError(t, err)
	reopened.db = &Database{name: db.name, storageRoot: db.storageRoot, kek: []byte("wrong")}
	wrongRow, err := reopened.Row(row.ID())
	require.NoError(t, err)
	_, err = wrongRow.Columns()
	assert.True(t, ferrors.Is(err, ferrors.CryptoFailed))
}

func TestDeleteTombstonesTableAndFlushesCache(t *testing.T) {
	db := openDB(t, nil)
	table, err := db.CreateTable("users", schema.New())
	require.NoError(t, err)
	_, err = table.Insert(map[string]any{"name": "a"})
	require.NoError(t, err)
	_, err = db.Query("users").Evaluate()
	require.NoError(t, err)
	cacheDir := ioutil.Join(db.storageRoot, db.name, ".cache", "users")
	require.True(t, ioutil.Exists(cacheDir))

	require.NoError(t, table.Delete())
	_, err = db.Table("users")
	assert.True(t, ferrors.Is(err, ferrors.NotFound))
	assert.False(t, ioutil.Exists(cacheDir))
}

func TestAlterReportsDiffWithoutRewritingRows(t *testing.T) {
	db := openDB(t, nil)
	table, err := db.CreateTable("users", schema.New())
	require.NoError(t, err)
	row, err := table.Insert(map[string]any{"name": "a"})
	require.NoError(t, err)

	next := schema.New()
	require.NoError(t, next.Add("name", schema.Column{Type: schema.TypeText}))
	require.NoError(t, next.Add("age", schema.Column{Type: schema.TypeInt}))
	diff, err := table.Alter(next)
	require.NoError(t, err)
	assert.Contains(t, diff.AddedColumns, "age")

	cols, err := row.Columns()
	require.NoError(t, err)
	assert.Equal(t, "a", cols["name"])
}

func TestQueryWhereSortLimit(t *testing.T) {
	db := openDB(t, nil)
	table, err := db.CreateTable("orders", schema.New())
	require.NoError(t, err)

	statuses := []string{"processing", "processing", "processing", "shipped", "shipped", "processing"}
	amounts := []float64{10, 50, 30, 20, 90, 70}
	for i := range statuses {
		_, err := table.Insert(map[string]any{"status": statuses[i], "total_amount": amounts[i]})
		require.NoError(t, err)
	}

	col, err := table.query().Where("status", "=", "processing").Sort("total_amount", "DESC").Limit(2, 0).Evaluate()
	require.NoError(t, err)
	rows := col.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, 70.0, rows[0]["total_amount"])
	assert.Equal(t, 50.0, rows[1]["total_amount"])
}

func TestQueryJoinProjectsMatchedColumns(t *testing.T) {
	db := openDB(t, nil)
	customers, err := db.CreateTable("customers", schema.New())
	require.NoError(t, err)
	cust, err := customers.Insert(map[string]any{"name": "bob"})
	require.NoError(t, err)

	orders, err := db.CreateTable("orders", schema.New())
	require.NoError(t, err)
	_, err = orders.Insert(map[string]any{"customer_id": cust.ID()})
	require.NoError(t, err)
	_, err = orders.Insert(map[string]any{"customer_id": "nobody"})
	require.NoError(t, err)

	col, err := orders.query().
		Join("customers", "customer_id", "=", "_id", "cust.").
		Select("cust.name", "buyer").
		Evaluate()
	require.NoError(t, err)

	var matched, unmatched int
	for _, row := range col.Rows() {
		if row["buyer"] == "bob" {
			matched++
		} else {
			unmatched++
		}
	}
	assert.Equal(t, 1, matched)
	assert.Equal(t, 1, unmatched)
}

func TestCacheInvalidatesOnWrite(t *testing.T) {
	db := openDB(t, nil)
	table, err := db.CreateTable("orders", schema.New())
	require.NoError(t, err)
	_, err = table.Insert(map[string]any{"status": "processing"})
	require.NoError(t, err)

	col, err := table.query().Where("status", "=", "processing").Evaluate()
	require.NoError(t, err)
	assert.Equal(t, 1, col.TotalCount())

	_, err = table.Insert(map[string]any{"status": "processing"})
	require.NoError(t, err)

	col2, err := table.query().Where("status", "=", "processing").Evaluate()
	require.NoError(t, err)
	assert.Equal(t, 2, col2.TotalCount())
}

func TestCreateTableRejectsExistingTable(t *testing.T) {
	db := openDB(t, nil)
	_, err := db.CreateTable("users", schema.New())
	require.NoError(t, err)

	_, err = db.CreateTable("users", schema.New())
	assert.True(t, ferrors.Is(err, ferrors.AlreadyExists))
}

func TestTablesListsExcludingTombstones(t *testing.T) {
	db := openDB(t, nil)
	_, err := db.CreateTable("users", schema.New())
	require.NoError(t, err)
	_, err = db.CreateTable("orders", schema.New())
	require.NoError(t, err)
	temp, err := db.CreateTable("temp", schema.New())
	require.NoError(t, err)
	_, err = ioutil.Tombstone(temp.dir())
	require.NoError(t, err)

	names, err := db.Tables(nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"users", "orders"}, names)
}

func TestCacheTTLExpiresAndRecomputes(t *testing.T) {
	db, err := Open(t.TempDir(), "d", nil, time.Millisecond)
	require.NoError(t, err)
	table, err := db.CreateTable("users", schema.New())
	require.NoError(t, err)
	_, err = table.Insert(map[string]any{"name": "a"})
	require.NoError(t, err)

	col, err := table.query().Evaluate()
	require.NoError(t, err)
	assert.Equal(t, 1, col.TotalCount())

	time.Sleep(5 * time.Millisecond)

	col2, err := table.query().Evaluate()
	require.NoError(t, err)
	assert.Equal(t, 1, col2.TotalCount())
}
