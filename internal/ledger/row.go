package ledger

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Source identifies which spreadsheet range a row was read from.
type Source string

const (
	// SourceHistory is the immutable history range.
	SourceHistory Source = "history"
	// SourceAppend is the append-only range new entries are written to.
	SourceAppend Source = "append"
)

// RowKey identifies a row across both sources.
type RowKey struct {
	Source Source `json:"source"`
	Index  int    `json:"source_index"`
}

// RawRow is one row as read from a spreadsheet range.
// Cells holds only non-blank values, keyed by the header name as stored.
type RawRow struct {
	Source      Source
	SourceIndex int
	Columns     []string // header order of the source range
	Cells       map[string]any
}

// Key returns the (source, source_index) identity of the row.
func (r RawRow) Key() RowKey {
	return RowKey{Source: r.Source, Index: r.SourceIndex}
}

// cellText renders a cell value the way the sheet would display it unformatted.
func cellText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case decimal.Decimal:
		return val.String()
	case time.Time:
		return val.Format(TimestampLayout)
	default:
		return fmt.Sprint(val)
	}
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}
