package ledger

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

const (
	// UnknownBank is assigned to every row without a bank.
	UnknownBank = "Unknown"

	// DefaultCategory is assigned to every row without a category.
	DefaultCategory = "Uncategorized"

	// TimestampLayout is the human-readable layout written by the appender.
	TimestampLayout = "2006-01-02 15:04:05"

	// DateLayout is the ISO calendar date layout.
	DateLayout = "2006-01-02"
)

// Kind is the canonical transaction type.
type Kind string

const (
	KindCredit Kind = "credit"
	KindDebit  Kind = "debit"
	KindOther  Kind = "other"
)

// ParseKind compares s case-insensitively against credit and debit.
func ParseKind(s string) Kind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(KindCredit):
		return KindCredit
	case string(KindDebit):
		return KindDebit
	}
	return KindOther
}

// Transaction is the canonical record derived from a surviving RawRow.
type Transaction struct {
	Timestamp time.Time  // zero when unparsable
	Date      civil.Date // invalid (zero) when Timestamp is zero
	Bank      string
	Type      string // verbatim type text
	Kind      Kind
	Amount    decimal.Decimal
	Message   string
	Category  string
	IsDeleted bool

	Source      Source
	SourceIndex int
	Diagnostics []Diagnostic
}

// HasDate reports whether the row has a derived calendar day.
func (t Transaction) HasDate() bool {
	return t.Date.IsValid()
}

// Key returns the (source, source_index) identity of the originating row.
func (t Transaction) Key() RowKey {
	return RowKey{Source: t.Source, Index: t.SourceIndex}
}

// timestampFields is the preference order for deriving a row's timestamp.
var timestampFields = []Field{FieldTimestamp, FieldDateTime, FieldDate}

var timestampLayouts = []string{
	TimestampLayout,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	DateLayout,
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
	"2006/01/02",
}

// Sheets serial dates count days from this epoch.
var sheetsEpoch = civil.Date{Year: 1899, Month: time.December, Day: 30}

// Normalizer maps raw rows to transactions. It never fails a row: unparsable
// fields are coerced to safe defaults and reported as diagnostics.
type Normalizer struct {
	loc *time.Location
}

// NewNormalizer returns a normalizer interpreting zone-less timestamps in loc.
// A nil loc means UTC.
func NewNormalizer(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	return &Normalizer{loc: loc}
}

// Location returns the zone calendar days are derived in.
func (n *Normalizer) Location() *time.Location {
	return n.loc
}

// NormalizeLedger normalizes every row of l with the schema built for l.
func (n *Normalizer) NormalizeLedger(l Ledger) []Transaction {
	schema := l.Schema()
	out := make([]Transaction, 0, len(l.Rows))
	for _, row := range l.Rows {
		out = append(out, n.Normalize(schema, row))
	}
	return out
}

// Normalize derives a Transaction from row using schema for column lookup.
func (n *Normalizer) Normalize(schema *Schema, row RawRow) Transaction {
	tx := Transaction{
		Bank:        schema.Text(row, FieldBank),
		Type:        schema.RawText(row, FieldType),
		Message:     schema.RawText(row, FieldMessage),
		Category:    schema.Text(row, FieldCategory),
		Source:      row.Source,
		SourceIndex: row.SourceIndex,
	}
	if tx.Bank == "" {
		tx.Bank = UnknownBank
	}
	if tx.Category == "" {
		tx.Category = DefaultCategory
	}
	tx.Kind = ParseKind(tx.Type)

	if v, ok := schema.Value(row, FieldDeleted); ok {
		tx.IsDeleted = IsDeleted(v)
	}

	ts, diag := n.timestamp(schema, row)
	if diag != nil {
		tx.Diagnostics = append(tx.Diagnostics, *diag)
	}
	if !ts.IsZero() {
		tx.Timestamp = ts
		tx.Date = civil.DateOf(ts)
	}

	tx.Amount = decimal.Zero
	if v, ok := schema.Value(row, FieldAmount); ok {
		amount, err := ParseAmount(v)
		if err != nil {
			tx.Diagnostics = append(tx.Diagnostics, Diagnostic{
				Field:  FieldAmount,
				Value:  cellText(v),
				Reason: err.Error(),
			})
		} else {
			tx.Amount = amount
		}
	}

	return tx
}

// timestamp walks the preference order. A blank cell falls through to the next
// column; a non-blank cell that does not parse yields a null timestamp.
func (n *Normalizer) timestamp(schema *Schema, row RawRow) (time.Time, *Diagnostic) {
	for _, f := range timestampFields {
		v, ok := schema.Value(row, f)
		if !ok {
			continue
		}
		ts, err := ParseTimestamp(v, n.loc)
		if err != nil {
			return time.Time{}, &Diagnostic{Field: f, Value: cellText(v), Reason: err.Error()}
		}
		return ts, nil
	}
	return time.Time{}, nil
}

var errUnparsable = errors.New("unparsable value")

// ParseTimestamp parses a timestamp cell. Zone-less values are read in loc;
// values carrying an offset are converted to loc.
func ParseTimestamp(v any, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}

	switch val := v.(type) {
	case time.Time:
		if val.IsZero() {
			return time.Time{}, errUnparsable
		}
		return val.In(loc), nil
	case float64:
		return fromSerial(val, loc)
	case int:
		return fromSerial(float64(val), loc)
	case int64:
		return fromSerial(float64(val), loc)
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return time.Time{}, errUnparsable
		}
		if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return ts.In(loc), nil
		}
		for _, layout := range timestampLayouts {
			if ts, err := time.ParseInLocation(layout, s, loc); err == nil {
				return ts, nil
			}
		}
		return time.Time{}, fmt.Errorf("%w: no known timestamp layout", errUnparsable)
	}

	return time.Time{}, fmt.Errorf("%w: %T", errUnparsable, v)
}

// fromSerial converts a Sheets serial number (days since 1899-12-30, fraction = time of day).
func fromSerial(serial float64, loc *time.Location) (time.Time, error) {
	if serial <= 0 || math.IsNaN(serial) || math.IsInf(serial, 0) {
		return time.Time{}, fmt.Errorf("%w: serial %v", errUnparsable, serial)
	}
	days := math.Floor(serial)
	secs := math.Round((serial - days) * 86400)
	d := sheetsEpoch.AddDays(int(days))
	return time.Date(d.Year, d.Month, d.Day, 0, 0, int(secs), 0, loc), nil
}

// currencySymbols are stripped from the front of amount strings.
const currencySymbols = "₹$€£"

// ParseAmount parses an amount cell. Thousands separators and a leading
// currency symbol are tolerated.
func ParseAmount(v any) (decimal.Decimal, error) {
	switch val := v.(type) {
	case decimal.Decimal:
		return val, nil
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return decimal.Zero, fmt.Errorf("%w: %v", errUnparsable, val)
		}
		return decimal.NewFromFloat(val), nil
	case int:
		return decimal.NewFromInt(int64(val)), nil
	case int64:
		return decimal.NewFromInt(val), nil
	case string:
		s := strings.TrimSpace(val)
		neg := strings.HasPrefix(s, "-")
		if neg {
			s = strings.TrimSpace(s[1:])
		}
		s = strings.TrimLeft(s, currencySymbols)
		s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
		if s == "" {
			return decimal.Zero, errUnparsable
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: %q", errUnparsable, val)
		}
		if neg {
			d = d.Neg()
		}
		return d, nil
	}
	return decimal.Zero, fmt.Errorf("%w: %T", errUnparsable, v)
}
