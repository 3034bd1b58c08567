package ledger

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/shopspring/decimal"
)

// decimalEqual compares decimals by value, so 1000 and 1000.00 match.
var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool {
	return a.Equal(b)
})

var ignoreDiagnostics = cmpopts.IgnoreFields(Transaction{}, "Diagnostics")

// mockRangeReader serves fixed values per range.
type mockRangeReader struct {
	ReadRangeFunc func(ctx context.Context, spreadsheetID, rng string) ([][]any, error)
}

func (m *mockRangeReader) ReadRange(ctx context.Context, spreadsheetID, rng string) ([][]any, error) {
	if m.ReadRangeFunc != nil {
		return m.ReadRangeFunc(ctx, spreadsheetID, rng)
	}
	return nil, errors.New("not configured")
}

func mustDate(t *testing.T, s string) civil.Date {
	t.Helper()
	d, err := civil.ParseDate(s)
	if err != nil {
		t.Fatalf("civil.ParseDate(%q): %v", s, err)
	}
	return d
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// sheet builds range values from a header and rows.
func sheet(header []any, rows ...[]any) [][]any {
	return append([][]any{header}, rows...)
}
