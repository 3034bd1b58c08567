package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Column names written for an appended row. They match what the normalizer reads.
const (
	ColumnDateTime  = "DateTime"
	ColumnTimestamp = "timestamp"
	ColumnDate      = "date"
	ColumnBank      = "Bank"
	ColumnType      = "Type"
	ColumnAmount    = "Amount"
	ColumnMessage   = "Message"
	ColumnDeleted   = "is_deleted"
)

// Entry is a new transaction submitted for the append range.
// Bank non-emptiness is enforced by the caller.
type Entry struct {
	Date    civil.Date      `json:"date"`
	Bank    string          `json:"bank"`
	Type    string          `json:"type"`
	Amount  decimal.Decimal `json:"amount"`
	Message string          `json:"message"`
}

// Validate checks the fields this package is responsible for.
func (e Entry) Validate() error {
	if !e.Date.IsValid() {
		return fmt.Errorf("%w: date %q is not a calendar day", ErrInvalidEntry, e.Date.String())
	}
	if k := ParseKind(e.Type); k == KindOther {
		return fmt.Errorf("%w: type %q must be credit or debit", ErrInvalidEntry, e.Type)
	}
	if e.Amount.IsNegative() {
		return fmt.Errorf("%w: amount %s is negative", ErrInvalidEntry, e.Amount.String())
	}
	return nil
}

// RecordField is one named cell of a Record.
type RecordField struct {
	Name  string
	Value any
}

// Record is an ordered row destined for the append range.
type Record []RecordField

// Names returns the field names in order.
func (r Record) Names() []string {
	names := make([]string, len(r))
	for i, f := range r {
		names[i] = f.Name
	}
	return names
}

// Values returns the field values in order.
func (r Record) Values() []any {
	values := make([]any, len(r))
	for i, f := range r {
		values[i] = f.Value
	}
	return values
}

// Lookup returns the value of the field whose name matches case-insensitively.
func (r Record) Lookup(name string) (any, bool) {
	for _, f := range r {
		if strings.EqualFold(f.Name, name) {
			return f.Value, true
		}
	}
	return nil, false
}

// Record shapes the entry like a historical row. The timestamp combines the
// entry date with now's UTC time of day.
func (e Entry) Record(now time.Time) Record {
	now = now.UTC()
	ts := time.Date(e.Date.Year, e.Date.Month, e.Date.Day, now.Hour(), now.Minute(), now.Second(), 0, time.UTC)
	tsText := ts.Format(TimestampLayout)

	return Record{
		{Name: ColumnDateTime, Value: tsText},
		{Name: ColumnTimestamp, Value: tsText},
		{Name: ColumnDate, Value: e.Date.String()},
		{Name: ColumnBank, Value: strings.TrimSpace(e.Bank)},
		{Name: ColumnType, Value: string(ParseKind(e.Type))},
		{Name: ColumnAmount, Value: e.Amount.InexactFloat64()},
		{Name: ColumnMessage, Value: e.Message},
		{Name: ColumnDeleted, Value: "false"},
	}
}

// RecordAppender physically writes a record to a range and returns the updated range.
type RecordAppender interface {
	AppendRecord(ctx context.Context, spreadsheetID, rng string, rec Record) (string, error)
}

// Status is the outcome of an append.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Result reports an append outcome.
type Result struct {
	Status       Status `json:"status"`
	Detail       string `json:"detail,omitempty"`
	UpdatedRange string `json:"updated_range,omitempty"`
}

// Coordinator validates entries and submits them to the append range.
// It never touches an in-memory Ledger: a new row becomes visible only
// through the next read-merge cycle.
type Coordinator struct {
	appender      RecordAppender
	spreadsheetID string
	rng           string
	now           func() time.Time
}

// NewCoordinator creates a coordinator writing to rng of spreadsheetID.
func NewCoordinator(appender RecordAppender, spreadsheetID, rng string) *Coordinator {
	return &Coordinator{
		appender:      appender,
		spreadsheetID: spreadsheetID,
		rng:           rng,
		now:           time.Now,
	}
}

// WithClock replaces the time source used for the time of day.
func (c *Coordinator) WithClock(now func() time.Time) *Coordinator {
	c.now = now
	return c
}

// Append validates e and writes it. The returned error is ErrInvalidEntry for a
// rejected entry or *AppendFailure when the transport rejects the write; in
// both cases Result carries Status "error" and the reason. Nothing is retried.
func (c *Coordinator) Append(ctx context.Context, e Entry) (Result, error) {
	if err := e.Validate(); err != nil {
		return Result{Status: StatusError, Detail: err.Error()}, err
	}

	updated, err := c.appender.AppendRecord(ctx, c.spreadsheetID, c.rng, e.Record(c.now()))
	if err != nil {
		failure := &AppendFailure{Detail: err.Error(), Err: err}
		return Result{Status: StatusError, Detail: failure.Detail}, failure
	}

	return Result{Status: StatusOK, UpdatedRange: updated}, nil
}
