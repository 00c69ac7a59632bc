// Package query implements the store's declarative query builder and
// evaluator: join, map, where, select, distinct, sort, filter, and
// pagination, plus the canonical-identity hashing the cache package
// keys on. Evaluation order is a hard contract: rows, join, map, where,
// select, distinct, sort, filter, cache write, limit.
package query

import (
	"fdb/internal/cache"
	"fdb/internal/ferrors"
)

// Op is a comparison operator usable in Where and Join.On clauses.
type Op string

const (
	OpEq         Op = "="
	OpNeq        Op = "!="
	OpLt         Op = "<"
	OpLte        Op = "<="
	OpGt         Op = ">"
	OpGte        Op = ">="
	OpIn         Op = "in"
	OpNotIn      Op = "not in"
	OpBetween    Op = "between"
	OpNotBetween Op = "not between"
	OpLike       Op = "like"
	OpNotLike    Op = "not like"
)

// normalizeOp maps the accepted operator aliases onto the canonical Op set.
func normalizeOp(raw string) (Op, error) {
	switch raw {
	case "=", "eq", "is":
		return OpEq, nil
	case "!=", "neq", "is not":
		return OpNeq, nil
	case "<":
		return OpLt, nil
	case "<=":
		return OpLte, nil
	case ">":
		return OpGt, nil
	case ">=":
		return OpGte, nil
	case "in", "is in":
		return OpIn, nil
	case "not in":
		return OpNotIn, nil
	case "between":
		return OpBetween, nil
	case "not between":
		return OpNotBetween, nil
	case "like":
		return OpLike, nil
	case "not like":
		return OpNotLike, nil
	default:
		return "", ferrors.New(ferrors.QueryMalformed, "query.normalizeOp", "unknown operator "+raw)
	}
}

// SortOrder is ASC or DESC.
type SortOrder string

const (
	Asc  SortOrder = "ASC"
	Desc SortOrder = "DESC"
)

// MapFunc mutates a row before filtering.
type MapFunc func(row map[string]any) map[string]any

// FilterFunc is a post-sort row predicate.
type FilterFunc func(row map[string]any) bool

// CompareFunc is a join-on predicate comparing a left and right row.
// No Builder method accepts a CompareFunc: Join takes only the
// (leftCol, op, rightCol) form.
type CompareFunc func(left, right map[string]any) bool

type whereClause struct {
	Col   string
	Op    Op
	Value any
}

type joinClause struct {
	Table  string
	OnCol  string
	OnOp   Op
	OnRCol string
	Prefix string
}

type mapClause struct {
	fn   MapFunc
	name string
}

type filterClause struct {
	fn   FilterFunc
	name string
}

type sortClause struct {
	Col   string
	Order SortOrder
}

type selectClause struct {
	Col     string
	NewName string
}

// RowSource resolves a table name to its materialized row set and a
// stable identity string used for cache-key scoping. Implemented by
// internal/store's Database.
type RowSource interface {
	TableRows(table string) ([]map[string]any, error)
	TableIdentity(table string) (string, error)
	TableCache(table string) *cache.Cache
}

// Builder accumulates query clauses. Clause application order is fixed
// by Evaluate, not by the order Builder methods are called.
type Builder struct {
	source RowSource

	from        string
	joins       []joinClause
	maps        []mapClause
	wheres      []whereClause
	selects     []selectClause
	distinctCol string
	hasDistinct bool
	sorts       []sortClause
	filters     []filterClause

	limitMax    int
	limitOffset int
	hasLimit    bool

	noCache bool
}

// New returns a builder reading from source, not yet bound to a table.
func New(source RowSource) *Builder {
	return &Builder{source: source}
}

// From selects the table the query reads from. Mandatory.
func (b *Builder) From(table string) *Builder {
	b.from = table
	return b
}

// Join performs a left-outer join against right, matching on(leftCol op
// rightCol). Non-matching left rows pass through unchanged; matched
// rows import right's columns under prefix+name (default
// "<right>.").
func (b *Builder) Join(right, leftCol, op, rightCol string, prefix string) *Builder {
	if prefix == "" {
		prefix = right + "."
	}
	normOp, err := normalizeOp(op)
	if err != nil {
		normOp = OpEq
	}
	b.joins = append(b.joins, joinClause{Table: right, OnCol: leftCol, OnOp: normOp, OnRCol: rightCol, Prefix: prefix})
	return b
}

// Map applies fn to every row, in input order, before filtering.
func (b *Builder) Map(fn MapFunc) *Builder {
	b.maps = append(b.maps, mapClause{fn: fn, name: callableIdentity(fn)})
	return b
}

// Where adds an AND-ed predicate.
func (b *Builder) Where(col, op string, value any) *Builder {
	normOp, err := normalizeOp(op)
	if err != nil {
		normOp = OpEq
	}
	b.wheres = append(b.wheres, whereClause{Col: col, Op: normOp, Value: value})
	return b
}

// Select renames col to newName in the projected result.
func (b *Builder) Select(col, newName string) *Builder {
	b.selects = append(b.selects, selectClause{Col: col, NewName: newName})
	return b
}

// Distinct keeps the first occurrence per distinct value of col.
func (b *Builder) Distinct(col string) *Builder {
	b.distinctCol = col
	b.hasDistinct = true
	return b
}

// Sort adds a stable multi-key sort clause in insertion order.
func (b *Builder) Sort(col string, order SortOrder) *Builder {
	b.sorts = append(b.sorts, sortClause{Col: col, Order: order})
	return b
}

// Filter adds a post-sort predicate.
func (b *Builder) Filter(fn FilterFunc) *Builder {
	b.filters = append(b.filters, filterClause{fn: fn, name: callableIdentity(fn)})
	return b
}

// Limit restricts the result to max rows starting at offset.
func (b *Builder) Limit(max, offset int) *Builder {
	b.limitMax = max
	b.limitOffset = offset
	b.hasLimit = true
	return b
}

// NoCache disables read-through and write-through caching for this query.
func (b *Builder) NoCache() *Builder {
	b.noCache = true
	return b
}
