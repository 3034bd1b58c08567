package ledger

import (
	"sort"
	"strings"
)

// Ledger is the merged, delete-filtered sequence of rows from both sources.
// History rows always precede append rows.
type Ledger struct {
	Rows    []RawRow
	Columns []string
	Stats   MergeStats

	schema *Schema
}

// MergeStats describes how a ledger was assembled.
type MergeStats struct {
	History  int `json:"history_rows"`
	Appended int `json:"append_rows"`
	Deleted  int `json:"deleted_rows"`
}

// Merge concatenates history then append rows and drops soft-deleted rows.
// Relative order within each source is preserved. Empty input yields an empty
// Ledger, which is a legitimate "no data" state.
func Merge(history, appended []RawRow) Ledger {
	all := make([]RawRow, 0, len(history)+len(appended))
	all = append(all, history...)
	all = append(all, appended...)

	columns := unionColumns(all)
	schema := NewSchema(columns)

	kept := make([]RawRow, 0, len(all))
	deleted := 0
	for _, row := range all {
		if v, ok := schema.Value(row, FieldDeleted); ok && IsDeleted(v) {
			deleted++
			continue
		}
		kept = append(kept, row)
	}

	return Ledger{
		Rows:    kept,
		Columns: columns,
		Stats: MergeStats{
			History:  len(history),
			Appended: len(appended),
			Deleted:  deleted,
		},
		schema: schema,
	}
}

// Schema returns the lookup table built for this ledger's columns.
func (l Ledger) Schema() *Schema {
	if l.schema == nil {
		return NewSchema(l.Columns)
	}
	return l.schema
}

// Len returns the number of surviving rows.
func (l Ledger) Len() int {
	return len(l.Rows)
}

// Empty reports whether no rows survived.
func (l Ledger) Empty() bool {
	return len(l.Rows) == 0
}

// IsDeleted reports whether a soft-delete cell marks its row as deleted:
// its lower-cased text is one of true, t, 1 or yes.
func IsDeleted(v any) bool {
	switch strings.ToLower(strings.TrimSpace(cellText(v))) {
	case "true", "t", "1", "yes":
		return true
	}
	return false
}

func unionColumns(rows []RawRow) []string {
	var columns []string
	seen := make(map[string]bool)
	add := func(c string) {
		if !seen[c] {
			seen[c] = true
			columns = append(columns, c)
		}
	}
	for _, row := range rows {
		if len(row.Columns) == 0 {
			// hand-built rows carry no header
			keys := make([]string, 0, len(row.Cells))
			for k := range row.Cells {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				add(k)
			}
			continue
		}
		for _, c := range row.Columns {
			add(c)
		}
	}
	return columns
}
