package query

import (
	"encoding/json"
	"reflect"
	"runtime"
	"sort"
)

// canonicalForm is the cache-key payload: a normalized view of a
// Builder's clauses. AND-ed/commutative buckets (where, filter) are
// sorted into a stable order so that two builders assembled by calling
// methods in a different sequence still hash to the same key; clauses
// whose relative order changes the result (join, map, select, sort)
// keep insertion order. Limit/offset are deliberately excluded: the
// cache is written before Limit is applied, so queries differing only
// in pagination share one cache entry.
type canonicalForm struct {
	Table    string
	Identity string
	Joins    []joinClause
	Maps     []string
	Wheres   []whereClause
	Selects  []selectClause
	Distinct string
	Sorts    []sortClause
	Filters  []string
}

func (b *Builder) canonicalPayload() ([]byte, error) {
	identity, err := b.source.TableIdentity(b.from)
	if err != nil {
		return nil, err
	}

	wheres := append([]whereClause(nil), b.wheres...)
	sort.SliceStable(wheres, func(i, j int) bool {
		if wheres[i].Col != wheres[j].Col {
			return wheres[i].Col < wheres[j].Col
		}
		if wheres[i].Op != wheres[j].Op {
			return wheres[i].Op < wheres[j].Op
		}
		return fmtValue(wheres[i].Value) < fmtValue(wheres[j].Value)
	})

	mapNames := make([]string, len(b.maps))
	for i, m := range b.maps {
		mapNames[i] = m.name
	}
	filterNames := make([]string, len(b.filters))
	for i, f := range b.filters {
		filterNames[i] = f.name
	}
	sort.Strings(filterNames)

	form := canonicalForm{
		Table:    b.from,
		Identity: identity,
		Joins:    b.joins,
		Maps:     mapNames,
		Wheres:   wheres,
		Selects:  b.selects,
		Distinct: b.distinctCol,
		Sorts:    b.sorts,
		Filters:  filterNames,
	}
	return json.Marshal(form)
}

func fmtValue(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(raw)
}

// callableIdentity returns a stable textual identity for fn — its fully
// qualified function name plus arity — used to represent map and filter
// callables in the cache-key payload (filter identities are sorted, map
// identities keep insertion order).
// Closures and anonymous functions get the compiler-assigned "funcN"
// name, which is stable across calls within a process but not across
// builds; such callables still work, they just defeat caching (the
// evaluator forces NoCache when it sees one, see hasUnstableCallable).
func callableIdentity(fn any) string {
	if fn == nil {
		return ""
	}
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return ""
	}
	name := runtime.FuncForPC(v.Pointer()).Name()
	arity := v.Type().NumIn()
	return name + "/" + itoa(arity)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// isClosure reports whether a callable's runtime name looks compiler-
// generated (contains ".func"), which signals it has no identity stable
// enough to trust for cache-key purposes across process restarts.
func isClosure(identity string) bool {
	for i := 0; i+5 <= len(identity); i++ {
		if identity[i:i+5] == ".func" {
			return true
		}
	}
	return false
}
