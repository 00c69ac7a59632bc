package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fdb/internal/cache"
)

type fakeSource struct {
	tables map[string][]map[string]any
	caches map[string]*cache.Cache
}

func newFakeSource() *fakeSource {
	return &fakeSource{tables: map[string][]map[string]any{}, caches: map[string]*cache.Cache{}}
}

func (f *fakeSource) TableRows(table string) ([]map[string]any, error) {
	rows := f.tables[table]
	out := make([]map[string]any, len(rows))
	copy(out, rows)
	return out, nil
}

func (f *fakeSource) TableIdentity(table string) (string, error) {
	return "identity:" + table, nil
}

func (f *fakeSource) TableCache(table string) *cache.Cache {
	c, ok := f.caches[table]
	if !ok {
		c = cache.New(testDir, "db", table, 0)
		f.caches[table] = c
	}
	return c
}

var testDir string

func TestMain(m *testing.M) {
	testDir = ""
	m.Run()
}

func newSourceWithDir(t *testing.T) *fakeSource {
	testDir = t.TempDir()
	return newFakeSource()
}

func TestEvaluateRequiresFrom(t *testing.T) {
	src := newSourceWithDir(t)
	_, err := New(src).Evaluate()
	assert.Error(t, err)
}

func TestEvaluateRejectsInvalidOrder(t *testing.T) {
	src := newSourceWithDir(t)
	src.tables["users"] = []map[string]any{{"_id": "1"}}
	_, err := New(src).From("users").Sort("name", SortOrder("sideways")).Evaluate()
	assert.Error(t, err)
}

func TestEvaluateRejectsInvalidLimit(t *testing.T) {
	src := newSourceWithDir(t)
	src.tables["users"] = []map[string]any{{"_id": "1"}}
	_, err := New(src).From("users").Limit(0, 0).Evaluate()
	assert.Error(t, err)
}

func TestEvaluateWhereFiltersRows(t *testing.T) {
	src := newSourceWithDir(t)
	src.tables["users"] = []map[string]any{
		{"_id": "1", "age": 20.0},
		{"_id": "2", "age": 30.0},
	}
	col, err := New(src).From("users").Where("age", ">=", 25.0).Evaluate()
	require.NoError(t, err)
	assert.Equal(t, 1, col.TotalCount())
	assert.Equal(t, "2", col.Rows()[0]["_id"])
}

func TestEvaluateDistinctThenSort(t *testing.T) {
	src := newSourceWithDir(t)
	src.tables["users"] = []map[string]any{
		{"_id": "1", "age": 20.0, "tier": "a"},
		{"_id": "2", "age": 10.0, "tier": "a"},
		{"_id": "3", "age": 30.0, "tier": "b"},
	}
	col, err := New(src).From("users").Distinct("tier").Sort("age", Asc).Evaluate()
	require.NoError(t, err)
	rows := col.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "1", rows[0]["_id"])
}

func TestEvaluateJoinMergesMatchedRows(t *testing.T) {
	src := newSourceWithDir(t)
	src.tables["orders"] = []map[string]any{{"_id": "o1", "user_id": "1"}}
	src.tables["users"] = []map[string]any{{"_id": "1", "name": "bob"}}
	col, err := New(src).From("orders").Join("users", "user_id", "=", "_id", "user.").Evaluate()
	require.NoError(t, err)
	rows := col.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "bob", rows[0]["user.name"])
}

func TestEvaluateLimitAppliesAfterCacheWrite(t *testing.T) {
	src := newSourceWithDir(t)
	src.tables["users"] = []map[string]any{
		{"_id": "1"}, {"_id": "2"}, {"_id": "3"},
	}
	col, err := New(src).From("users").Limit(1, 0).Evaluate()
	require.NoError(t, err)
	assert.Equal(t, 1, col.Count())

	key := Key(t, src, "users")
	var cached []map[string]any
	require.NoError(t, src.TableCache("users").Get(key, &cached))
	assert.Equal(t, 3, len(cached))
}

func Key(t *testing.T, src *fakeSource, table string) string {
	t.Helper()
	b := New(src).From(table)
	payload, err := b.canonicalPayload()
	require.NoError(t, err)
	return cache.Key(payload)
}

func TestEvaluateUnstableCallableForcesNoCache(t *testing.T) {
	src := newSourceWithDir(t)
	src.tables["users"] = []map[string]any{{"_id": "1"}}
	unstable := func(row map[string]any) map[string]any { return row }
	b := New(src).From("users").Map(unstable)
	_, err := b.Evaluate()
	require.NoError(t, err)
	payload, err := b.canonicalPayload()
	require.NoError(t, err)
	assert.False(t, src.TableCache("users").Valid(cache.Key(payload)))
}

func TestEvaluateNoCacheSkipsWrite(t *testing.T) {
	src := newSourceWithDir(t)
	src.tables["users"] = []map[string]any{{"_id": "1"}}
	_, err := New(src).From("users").NoCache().Evaluate()
	require.NoError(t, err)
	assert.False(t, src.TableCache("users").Valid(Key(t, src, "users")))
}
