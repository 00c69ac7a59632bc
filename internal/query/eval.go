package query

import (
	"encoding/json"
	"sort"

	"fdb/internal/cache"
	"fdb/internal/collection"
	"fdb/internal/ferrors"
)

// Evaluate runs the query and returns a Collection over the result.
// Evaluation order is fixed: rows, join, map, where, select, distinct,
// sort, filter, (cache write), limit. Read-through and write-through
// caching wrap the pre-limit result so that two Builders differing only
// in Limit share one cache entry.
func (b *Builder) Evaluate() (*collection.Collection, error) {
	if b.from == "" {
		return nil, ferrors.New(ferrors.QueryMalformed, "query.Evaluate", "table must be specified")
	}
	for _, s := range b.sorts {
		if s.Order != Asc && s.Order != Desc {
			return nil, ferrors.New(ferrors.QueryMalformed, "query.Evaluate", "invalid order "+string(s.Order))
		}
	}
	if b.hasLimit && b.limitMax < 1 {
		return nil, ferrors.New(ferrors.QueryMalformed, "query.Evaluate", "invalid limit")
	}

	useCache := !b.noCache && !b.hasUnstableCallable()
	var entryCache *cache.Cache
	var key string
	if useCache {
		entryCache = b.source.TableCache(b.from)
		payload, err := b.canonicalPayload()
		if err == nil {
			key = cache.Key(payload)
			if entryCache != nil && entryCache.Valid(key) {
				var cached []map[string]any
				if getErr := entryCache.Get(key, &cached); getErr == nil {
					return b.paginate(cached), nil
				}
				// Cache read failed: fall through to recomputation.
			}
		}
	}

	rows, err := b.source.TableRows(b.from)
	if err != nil {
		return nil, err
	}

	rows, err = b.applyJoins(rows)
	if err != nil {
		return nil, err
	}

	rows = b.applyMaps(rows)
	rows = b.applyWhere(rows)
	rows = b.applySelect(rows)
	rows = b.applyDistinct(rows)
	b.applySort(rows)
	rows = b.applyFilter(rows)

	if useCache && entryCache != nil && key != "" {
		_ = entryCache.Put(key, rows) // a failed cache write never fails the query
	}

	return b.paginate(rows), nil
}

func (b *Builder) hasUnstableCallable() bool {
	for _, m := range b.maps {
		if isClosure(m.name) {
			return true
		}
	}
	for _, f := range b.filters {
		if isClosure(f.name) {
			return true
		}
	}
	return false
}

func (b *Builder) paginate(rows []map[string]any) *collection.Collection {
	offset, limit := 0, len(rows)
	if b.hasLimit {
		offset, limit = b.limitOffset, b.limitMax
	}
	return collection.New(rows, offset, limit)
}

func (b *Builder) applyJoins(rows []map[string]any) ([]map[string]any, error) {
	for _, j := range b.joins {
		rightRows, err := b.source.TableRows(j.Table)
		if err != nil {
			return nil, err
		}
		for i, left := range rows {
			for _, right := range rightRows {
				if compare(left[j.OnCol], j.OnOp, right[j.OnRCol]) {
					merged := cloneRow(left)
					for k, v := range right {
						merged[j.Prefix+k] = v
					}
					rows[i] = merged
					break
				}
			}
		}
	}
	return rows, nil
}

func (b *Builder) applyMaps(rows []map[string]any) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		for _, m := range b.maps {
			row = m.fn(row)
		}
		out[i] = row
	}
	return out
}

func (b *Builder) applyWhere(rows []map[string]any) []map[string]any {
	if len(b.wheres) == 0 {
		return rows
	}
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		match := true
		for _, w := range b.wheres {
			if !compare(row[w.Col], w.Op, w.Value) {
				match = false
				break
			}
		}
		if match {
			out = append(out, row)
		}
	}
	return out
}

func (b *Builder) applySelect(rows []map[string]any) []map[string]any {
	if len(b.selects) == 0 {
		return rows
	}
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		projected := cloneRow(row)
		for _, s := range b.selects {
			if v, ok := projected[s.Col]; ok {
				delete(projected, s.Col)
				projected[s.NewName] = v
			}
		}
		out[i] = projected
	}
	return out
}

func (b *Builder) applyDistinct(rows []map[string]any) []map[string]any {
	if !b.hasDistinct {
		return rows
	}
	seen := make(map[any]bool)
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		v := row[b.distinctCol]
		key := distinctKey(v)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, row)
	}
	return out
}

func distinctKey(v any) any {
	switch v.(type) {
	case map[string]any, []any:
		raw, err := json.Marshal(v)
		if err != nil {
			return v
		}
		return string(raw)
	default:
		return v
	}
}

func (b *Builder) applySort(rows []map[string]any) {
	if len(b.sorts) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, s := range b.sorts {
			a, bv := rows[i][s.Col], rows[j][s.Col]
			if equal(a, bv) {
				continue
			}
			less := numericLess(a, bv)
			if s.Order == Desc {
				return !less
			}
			return less
		}
		return false
	})
}

func (b *Builder) applyFilter(rows []map[string]any) []map[string]any {
	if len(b.filters) == 0 {
		return rows
	}
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		keep := true
		for _, f := range b.filters {
			if !f.fn(row) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, row)
		}
	}
	return out
}

func cloneRow(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}
