package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/spend-tracker/internal/cache"
	"github.com/dvloznov/spend-tracker/internal/ledger"
	"github.com/dvloznov/spend-tracker/internal/sheets"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	testSheet  = "sheet-1"
	historyRng = "History!A:Z"
	appendRng  = "Append!A:H"
)

// memorySheet is an in-memory spreadsheet serving both ranges.
type memorySheet struct {
	mu        sync.Mutex
	values    map[string][][]any
	readErr   map[string]error
	appendErr error
	reads     map[string]int
}

func newMemorySheet() *memorySheet {
	return &memorySheet{
		values:  make(map[string][][]any),
		readErr: make(map[string]error),
		reads:   make(map[string]int),
	}
}

func (m *memorySheet) ReadRange(ctx context.Context, spreadsheetID, rng string) ([][]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads[rng]++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.readErr[rng]; err != nil {
		return nil, err
	}
	out := make([][]any, len(m.values[rng]))
	copy(out, m.values[rng])
	return out, nil
}

func (m *memorySheet) AppendRecord(ctx context.Context, spreadsheetID, rng string, rec ledger.Record) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return "", m.appendErr
	}
	if len(m.values[rng]) == 0 {
		header := make([]any, 0, len(rec))
		for _, n := range rec.Names() {
			header = append(header, n)
		}
		m.values[rng] = [][]any{header}
	}
	header := make([]string, 0, len(m.values[rng][0]))
	for _, h := range m.values[rng][0] {
		header = append(header, h.(string))
	}
	m.values[rng] = append(m.values[rng], sheets.OrderRecord(header, rec))
	return rng, nil
}

func (m *memorySheet) readCount(rng string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads[rng]
}

var errBackend = errors.New("googleapi: Error 503: backend unavailable")

func testNow() time.Time {
	return time.Date(2024, 1, 2, 18, 0, 0, 0, time.UTC)
}

func newTestService(t *testing.T, sheet *memorySheet) *Service {
	t.Helper()
	return NewService(Options{
		SpreadsheetID: testSheet,
		HistoryRange:  historyRng,
		AppendRange:   appendRng,
		CacheTTL:      5 * time.Minute,
	}, sheet, sheet, cache.New(), zerolog.Nop()).WithClock(testNow)
}

// seededSheet holds a credit and a debit on 2024-01-01 plus one deleted row.
func seededSheet() *memorySheet {
	s := newMemorySheet()
	s.values[historyRng] = [][]any{
		{"timestamp", "Bank", "Type", "Amount", "Message", "is_deleted"},
		{"2024-01-01 09:00:00", "HDFC", "credit", 1000.0, "salary", "false"},
		{"2024-01-01 10:00:00", "SBI", "debit", 75.0, "gone", "TRUE"},
	}
	s.values[appendRng] = [][]any{
		{"DateTime", "timestamp", "date", "Bank", "Type", "Amount", "Message", "is_deleted"},
		{"2024-01-01 12:00:00", "2024-01-01 12:00:00", "2024-01-01", "HDFC", "debit", 200.0, "rent", "false"},
	}
	return s
}

func date(t *testing.T, s string) civil.Date {
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

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool {
	return a.Equal(b)
})
