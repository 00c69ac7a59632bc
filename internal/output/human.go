package output

import (
	"fmt"
	"sort"
	"strings"

	"fdb/internal/collection"
)

type humanFormatter struct{}

// FormatCollection renders col as a simple column-aligned table, plus a
// trailing count/total_count line.
func (humanFormatter) FormatCollection(col *collection.Collection) (string, error) {
	if col == nil {
		return "(no rows)\n", nil
	}
	rows := col.Rows()
	if len(rows) == 0 {
		return fmt.Sprintf("(no rows)\ncount=0 total_count=%d\n", col.TotalCount()), nil
	}

	columns := unionColumns(rows)
	widths := make([]int, len(columns))
	for i, c := range columns {
		widths[i] = len(c)
	}
	cells := make([][]string, len(rows))
	for r, row := range rows {
		cells[r] = make([]string, len(columns))
		for i, c := range columns {
			s := formatCell(row[c])
			cells[r][i] = s
			if len(s) > widths[i] {
				widths[i] = len(s)
			}
		}
	}

	var b strings.Builder
	writeRow(&b, columns, widths)
	for _, row := range cells {
		writeRow(&b, row, widths)
	}
	fmt.Fprintf(&b, "count=%d total_count=%d\n", col.Count(), col.TotalCount())
	return b.String(), nil
}

func unionColumns(rows []map[string]any) []string {
	seen := make(map[string]bool)
	var out []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	sort.Strings(out)
	return out
}

func formatCell(v any) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprint(v)
}

func writeRow(b *strings.Builder, cells []string, widths []int) {
	for i, cell := range cells {
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(cell)
		b.WriteString(strings.Repeat(" ", widths[i]-len(cell)))
	}
	b.WriteByte('\n')
}
