package ledger

import (
	"context"
	"strings"
)

// RangeReader reads a rectangular range. The first row is the header.
type RangeReader interface {
	ReadRange(ctx context.Context, spreadsheetID, rng string) ([][]any, error)
}

// ReadSource reads one range and tags every data row with its source and position.
// A transport failure is returned as a *SourceError wrapping ErrSourceUnavailable.
func ReadSource(ctx context.Context, reader RangeReader, spreadsheetID, rng string, src Source) ([]RawRow, error) {
	values, err := reader.ReadRange(ctx, spreadsheetID, rng)
	if err != nil {
		return nil, &SourceError{Source: src, Range: rng, Err: err}
	}
	return RowsFromValues(values, src), nil
}

// RowsFromValues converts raw range values into rows.
// SourceIndex is the zero-based position among data rows (the header excluded).
// Fully blank rows are skipped but still consume their index, so indexes stay positional.
func RowsFromValues(values [][]any, src Source) []RawRow {
	if len(values) == 0 {
		return nil
	}

	header, columns := headerNames(values[0])
	rows := make([]RawRow, 0, len(values)-1)

	for i, vals := range values[1:] {
		cells := make(map[string]any, len(columns))
		for j, v := range vals {
			if j >= len(header) || header[j] == "" || isBlank(v) {
				continue
			}
			cells[header[j]] = v
		}
		if len(cells) == 0 {
			continue
		}
		rows = append(rows, RawRow{
			Source:      src,
			SourceIndex: i,
			Columns:     columns,
			Cells:       cells,
		})
	}

	return rows
}

// headerNames returns the per-position header (blank for unnamed or duplicate
// columns) and the ordered list of distinct column names.
func headerNames(raw []any) ([]string, []string) {
	header := make([]string, len(raw))
	columns := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))

	for i, v := range raw {
		name := strings.TrimSpace(cellText(v))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		header[i] = name
		columns = append(columns, name)
	}

	return header, columns
}
