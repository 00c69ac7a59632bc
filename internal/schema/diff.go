package schema

import "sort"

// Diff is the set of column-level changes between two schemas, reported
// to the caller of Table.Alter so operators can see what changed.
// Existing rows are never rewritten to match; schema validation is only
// enforced again on the next write, per the store's alter contract.
type Diff struct {
	AddedColumns    []string
	RemovedColumns  []string
	ModifiedColumns []ColumnChange
}

// ColumnChange describes one column whose descriptor changed between
// two schema versions.
type ColumnChange struct {
	Name string
	Old  Column
	New  Column
}

// IsEmpty reports whether the diff carries no changes.
func (d *Diff) IsEmpty() bool {
	return d == nil || (len(d.AddedColumns) == 0 && len(d.RemovedColumns) == 0 && len(d.ModifiedColumns) == 0)
}

// Compare reports the column differences between old and next.
func Compare(old, next *Schema) *Diff {
	d := &Diff{}

	for _, name := range next.Sorted() {
		newCol := next.columns[name]
		oldCol, existed := old.columns[name]
		if !existed {
			d.AddedColumns = append(d.AddedColumns, name)
			continue
		}
		if !equalColumn(oldCol, newCol) {
			d.ModifiedColumns = append(d.ModifiedColumns, ColumnChange{Name: name, Old: oldCol, New: newCol})
		}
	}

	for _, name := range old.Sorted() {
		if _, stillThere := next.columns[name]; !stillThere {
			d.RemovedColumns = append(d.RemovedColumns, name)
		}
	}

	sort.Strings(d.AddedColumns)
	sort.Strings(d.RemovedColumns)
	sort.Slice(d.ModifiedColumns, func(i, j int) bool { return d.ModifiedColumns[i].Name < d.ModifiedColumns[j].Name })

	return d
}

func equalColumn(a, b Column) bool {
	if a.Type != b.Type || a.Required != b.Required || a.Encrypted != b.Encrypted {
		return false
	}
	if len(a.EnumValues) != len(b.EnumValues) {
		return false
	}
	for i := range a.EnumValues {
		if a.EnumValues[i] != b.EnumValues[i] {
			return false
		}
	}
	return true
}
