// Package cache implements the store's query-result cache: a
// deterministic, content-addressed cache keyed by the pair of table
// identity and a canonical query payload, with whole-table invalidation
// on writes. Entries are gzip-compressed JSON files under
// "<storageRoot>/<db>/.cache/<table>/<hash>".
package cache

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"fdb/internal/ferrors"
	"fdb/internal/ioutil"
)

// Cache is a handle scoped to one table's cache namespace.
type Cache struct {
	dir        string        // "<storageRoot>/<db>/.cache/<table>"
	expiration time.Duration // zero means entries never expire by age
}

// New returns a cache handle rooted at "<storageRoot>/<db>/.cache/<table>".
// expiration of zero disables time-based invalidation; entries still
// disappear on Flush.
func New(storageRoot, dbName, tableName string, expiration time.Duration) *Cache {
	return &Cache{
		dir:        ioutil.Join(storageRoot, dbName, ".cache", tableName),
		expiration: expiration,
	}
}

// Key computes the content-addressed cache key for a canonical query
// payload (already normalized by the query package).
func Key(canonicalPayload []byte) string {
	sum := sha256.Sum256(canonicalPayload)
	return hex.EncodeToString(sum[:])
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, key)
}

// Valid reports whether a cache entry for key exists and, if an
// expiration window is configured, has not aged out. An expired entry
// is unlinked as a side effect and reported invalid.
func (c *Cache) Valid(key string) bool {
	path := c.path(key)
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if c.expiration <= 0 {
		return true
	}
	if time.Since(info.ModTime()) > c.expiration {
		_ = os.Remove(path)
		return false
	}
	return true
}

// Put stores data (already the evaluated, pre-limit result vector) under
// key, gzip-compressed. A failed cache write is the caller's to ignore,
// never fatal to the query that produced it.
func (c *Cache) Put(key string, data any) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return ferrors.Wrap(ferrors.IOFailure, "cache.Put", c.dir, err)
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return ferrors.Wrap(ferrors.Internal, "cache.Put", "marshal payload", err)
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(payload); err != nil {
		return ferrors.Wrap(ferrors.Internal, "cache.Put", "gzip payload", err)
	}
	if err := gz.Close(); err != nil {
		return ferrors.Wrap(ferrors.Internal, "cache.Put", "close gzip writer", err)
	}

	return ioutil.AtomicWrite(c.path(key), buf.Bytes())
}

// Get decompresses and deserializes the entry at key into out. A failed
// cache read is the caller's to treat as a miss and fall through to
// recomputation.
func (c *Cache) Get(key string, out any) error {
	raw, err := ioutil.ReadAll(c.path(key))
	if err != nil {
		return err
	}

	gz, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return ferrors.Wrap(ferrors.Internal, "cache.Get", "open gzip reader", err)
	}
	defer gz.Close()

	payload, err := io.ReadAll(gz)
	if err != nil {
		return ferrors.Wrap(ferrors.Internal, "cache.Get", "decompress payload", err)
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return ferrors.Wrap(ferrors.Internal, "cache.Get", "unmarshal payload", err)
	}
	return nil
}

// Flush recursively removes the table's entire cache namespace. Any
// successful write to the table MUST call Flush before returning
// success to the caller.
func (c *Cache) Flush() error {
	return ioutil.RemoveTree(c.dir)
}
