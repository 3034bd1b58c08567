package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dvloznov/spend-tracker/internal/ledger"
	"github.com/google/go-cmp/cmp"
	"google.golang.org/api/option"
)

// fakeSheets serves values per range and records append bodies.
type fakeSheets struct {
	mu       sync.Mutex
	values   map[string][][]any
	appended map[string][][]any
	query    map[string]string
	status   int
}

func newFakeSheets(t *testing.T, values map[string][][]any) (*fakeSheets, *Client) {
	t.Helper()
	f := &fakeSheets{values: values, appended: make(map[string][][]any), query: make(map[string]string)}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)

	client, err := NewClient(context.Background(), option.WithEndpoint(srv.URL+"/"), option.WithoutAuthentication())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return f, client
}

func (f *fakeSheets) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(`{"error":{"code":503,"message":"backend unavailable"}}`))
		return
	}

	_, rest, ok := strings.Cut(r.URL.Path, "/values/")
	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if rng, isAppend := strings.CutSuffix(rest, ":append"); isAppend {
		var body struct {
			Values [][]any `json:"values"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.appended[rng] = append(f.appended[rng], body.Values...)
		f.query[rng] = r.URL.RawQuery
		_ = json.NewEncoder(w).Encode(map[string]any{
			"updates": map[string]any{"updatedRange": "Append!A7:H7"},
		})
		return
	}

	f.query[rest] = r.URL.RawQuery
	_ = json.NewEncoder(w).Encode(map[string]any{
		"range":          rest,
		"majorDimension": "ROWS",
		"values":         f.values[rest],
	})
}

func testRecord() ledger.Record {
	e := ledger.Entry{
		Date:   civilDate(2024, 1, 5),
		Bank:   "HDFC",
		Type:   "debit",
		Amount: mustDecimal("500"),
	}
	return e.Record(time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC))
}

func TestReadRange(t *testing.T) {
	f, client := newFakeSheets(t, map[string][][]any{
		"History!A:Z": {
			{"date", "Amount"},
			{"2024-01-01", 12.5},
		},
	})

	got, err := client.ReadRange(context.Background(), "sheet-1", "History!A:Z")
	if err != nil {
		t.Fatalf("ReadRange() error = %v", err)
	}
	want := [][]any{{"date", "Amount"}, {"2024-01-01", 12.5}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ReadRange() mismatch (-want +got):\n%s", diff)
	}
	if q := f.query["History!A:Z"]; !strings.Contains(q, "valueRenderOption=UNFORMATTED_VALUE") {
		t.Errorf("query %q should request unformatted values", q)
	}
}

func TestReadRange_TransportError(t *testing.T) {
	f, client := newFakeSheets(t, nil)
	f.status = http.StatusServiceUnavailable

	r := ledger.RangeReader(client)
	if _, err := ledger.ReadSource(context.Background(), r, "sheet-1", "History!A:Z", ledger.SourceHistory); err == nil {
		t.Fatal("ReadSource() error = nil, want a source error")
	}
}

func TestAppendRecord_UsesAppendHeader(t *testing.T) {
	f, client := newFakeSheets(t, map[string][][]any{
		"Append!1:1": {{"Amount", "bank", "DateTime", "Notes", "type"}},
	})

	updated, err := client.Appender("History!A:Z").AppendRecord(context.Background(), "sheet-1", "Append!A:H", testRecord())
	if err != nil {
		t.Fatalf("AppendRecord() error = %v", err)
	}
	if updated != "Append!A7:H7" {
		t.Errorf("updated range = %q", updated)
	}

	want := [][]any{{500.0, "HDFC", "2024-01-05 09:30:00", "", "debit"}}
	if diff := cmp.Diff(want, f.appended["Append!A:H"]); diff != "" {
		t.Errorf("appended values mismatch (-want +got):\n%s", diff)
	}
	q := f.query["Append!A:H"]
	if !strings.Contains(q, "valueInputOption=USER_ENTERED") || !strings.Contains(q, "insertDataOption=INSERT_ROWS") {
		t.Errorf("append query %q missing input options", q)
	}
}

func TestAppendRecord_FallsBackToHistoryHeader(t *testing.T) {
	f, client := newFakeSheets(t, map[string][][]any{
		"History!1:1": {{"timestamp", "Bank", "Type", "Amount"}},
	})

	if _, err := client.Appender("History!A:Z").AppendRecord(context.Background(), "sheet-1", "Append!A:H", testRecord()); err != nil {
		t.Fatalf("AppendRecord() error = %v", err)
	}

	got := f.appended["Append!A:H"]
	want := [][]any{
		{"timestamp", "Bank", "Type", "Amount"},
		{"2024-01-05 09:30:00", "HDFC", "debit", 500.0},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("appended values mismatch (-want +got):\n%s", diff)
	}

	// the first appended row survives a read of the append range
	rows := ledger.RowsFromValues(got, ledger.SourceAppend)
	txs := ledger.NewNormalizer(nil).NormalizeLedger(ledger.Merge(nil, rows))
	if len(txs) != 1 || txs[0].Bank != "HDFC" || !txs[0].Amount.Equal(mustDecimal("500")) {
		t.Errorf("round trip = %+v", txs)
	}
}

func TestAppendRecord_WritesHeaderWhenSheetIsEmpty(t *testing.T) {
	f, client := newFakeSheets(t, nil)

	rec := testRecord()
	if _, err := client.Appender("History!A:Z").AppendRecord(context.Background(), "sheet-1", "Append!A:H", rec); err != nil {
		t.Fatalf("AppendRecord() error = %v", err)
	}

	got := f.appended["Append!A:H"]
	if len(got) != 2 {
		t.Fatalf("appended %d rows, want header and record", len(got))
	}
	if got[0][0] != ledger.ColumnDateTime || len(got[0]) != len(rec) {
		t.Errorf("header row = %v", got[0])
	}

	// reading the written rows back yields one normalizable row
	rows := ledger.RowsFromValues(got, ledger.SourceAppend)
	txs := ledger.NewNormalizer(nil).NormalizeLedger(ledger.Merge(nil, rows))
	if len(txs) != 1 || txs[0].Date != civilDate(2024, 1, 5) || !txs[0].Amount.Equal(mustDecimal("500")) {
		t.Errorf("round trip = %+v", txs)
	}
}

func TestAppendRecord_TransportError(t *testing.T) {
	f, client := newFakeSheets(t, nil)
	f.status = http.StatusServiceUnavailable

	if _, err := client.Appender("").AppendRecord(context.Background(), "sheet-1", "Append!A:H", testRecord()); err == nil {
		t.Fatal("AppendRecord() error = nil")
	}
}

func TestHeaderRange(t *testing.T) {
	tests := map[string]string{
		"Append!A:H":      "Append!1:1",
		"'My Sheet'!A2:Z": "'My Sheet'!1:1",
		"A:H":             "1:1",
	}
	for in, want := range tests {
		if got := HeaderRange(in); got != want {
			t.Errorf("HeaderRange(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestOrderRecord(t *testing.T) {
	rec := ledger.Record{{Name: "Bank", Value: "SBI"}, {Name: "Amount", Value: 1.0}, {Name: "extra", Value: "x"}}
	got := OrderRecord([]string{"AMOUNT", "", "bank", "missing"}, rec)
	want := []any{1.0, "", "SBI", ""}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("OrderRecord() mismatch (-want +got):\n%s", diff)
	}
}
