package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRowsFromValues(t *testing.T) {
	values := sheet(
		[]any{"date", "Bank", "Type", "Amount", "", "Bank"},
		[]any{"2024-01-01", "HDFC", "credit", 1000.0, "ignored", "duplicate"},
		[]any{},
		[]any{"", "  "},
		[]any{"2024-01-02", "SBI"},
	)

	rows := RowsFromValues(values, SourceHistory)
	if len(rows) != 2 {
		t.Fatalf("RowsFromValues() returned %d rows, want 2", len(rows))
	}

	wantColumns := []string{"date", "Bank", "Type", "Amount"}
	if diff := cmp.Diff(wantColumns, rows[0].Columns); diff != "" {
		t.Errorf("Columns mismatch (-want +got):\n%s", diff)
	}

	wantFirst := map[string]any{"date": "2024-01-01", "Bank": "HDFC", "Type": "credit", "Amount": 1000.0}
	if diff := cmp.Diff(wantFirst, rows[0].Cells); diff != "" {
		t.Errorf("first row cells mismatch (-want +got):\n%s", diff)
	}

	if rows[0].SourceIndex != 0 {
		t.Errorf("first SourceIndex = %d, want 0", rows[0].SourceIndex)
	}
	// blank rows keep their positions
	if rows[1].SourceIndex != 3 {
		t.Errorf("second SourceIndex = %d, want 3", rows[1].SourceIndex)
	}
	if rows[1].Source != SourceHistory {
		t.Errorf("Source = %q, want %q", rows[1].Source, SourceHistory)
	}
	if _, ok := rows[1].Cells["Type"]; ok {
		t.Error("missing trailing cell should be absent")
	}
}

func TestRowsFromValues_Empty(t *testing.T) {
	if rows := RowsFromValues(nil, SourceAppend); len(rows) != 0 {
		t.Errorf("RowsFromValues(nil) = %v, want no rows", rows)
	}
	if rows := RowsFromValues(sheet([]any{"date"}), SourceAppend); len(rows) != 0 {
		t.Errorf("header-only range returned %d rows, want 0", len(rows))
	}
}

func TestReadSource(t *testing.T) {
	reader := &mockRangeReader{
		ReadRangeFunc: func(ctx context.Context, spreadsheetID, rng string) ([][]any, error) {
			if spreadsheetID != "sheet-1" || rng != "History!A:H" {
				t.Errorf("ReadRange(%q, %q) called with unexpected arguments", spreadsheetID, rng)
			}
			return sheet([]any{"date"}, []any{"2024-01-01"}, []any{"2024-01-02"}), nil
		},
	}

	rows, err := ReadSource(context.Background(), reader, "sheet-1", "History!A:H", SourceHistory)
	if err != nil {
		t.Fatalf("ReadSource() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("ReadSource() returned %d rows, want 2", len(rows))
	}
	for i, row := range rows {
		if row.Key() != (RowKey{Source: SourceHistory, Index: i}) {
			t.Errorf("row %d key = %+v", i, row.Key())
		}
	}
}

func TestReadSource_Unavailable(t *testing.T) {
	transportErr := errors.New("403 forbidden")
	reader := &mockRangeReader{
		ReadRangeFunc: func(ctx context.Context, spreadsheetID, rng string) ([][]any, error) {
			return nil, transportErr
		},
	}

	rows, err := ReadSource(context.Background(), reader, "sheet-1", "Append!A:H", SourceAppend)
	if rows != nil {
		t.Errorf("rows = %v, want nil", rows)
	}
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("error %v should wrap ErrSourceUnavailable", err)
	}
	if !errors.Is(err, transportErr) {
		t.Errorf("error %v should wrap the transport error", err)
	}

	var srcErr *SourceError
	if !errors.As(err, &srcErr) || srcErr.Source != SourceAppend {
		t.Errorf("error %v should be a *SourceError for the append source", err)
	}
}
