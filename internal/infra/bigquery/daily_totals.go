package bigquery

import (
	"math/big"
	"sort"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/spend-tracker/internal/ledger"
)

// DailyTotalRow is one calendar day of one snapshot.
type DailyTotalRow struct {
	SnapshotID    string    `bigquery:"snapshot_id"`    // REQUIRED
	SpreadsheetID string    `bigquery:"spreadsheet_id"` // REQUIRED
	SnapshotTS    time.Time `bigquery:"snapshot_ts"`    // REQUIRED

	Date civil.Date `bigquery:"date"` // REQUIRED DATE

	TotalSpent  *big.Rat `bigquery:"total_spent"`  // REQUIRED NUMERIC
	TotalCredit *big.Rat `bigquery:"total_credit"` // REQUIRED NUMERIC
	DebitCount  int64    `bigquery:"debit_count"`
	CreditCount int64    `bigquery:"credit_count"`

	Banks []BankTotalRow `bigquery:"banks"` // REPEATED RECORD
}

// BankTotalRow is the per-bank breakdown nested in DailyTotalRow.
type BankTotalRow struct {
	Bank   string   `bigquery:"bank"`
	Spent  *big.Rat `bigquery:"spent"`
	Credit *big.Rat `bigquery:"credit"`
}

// DailyTotalsSchema is the table schema inferred from DailyTotalRow.
func DailyTotalsSchema() (bigquery.Schema, error) {
	return bigquery.InferSchema(DailyTotalRow{})
}

// RowsFromDaily converts an ordered daily series into snapshot rows.
// Banks are sorted by name within each day.
func RowsFromDaily(snapshotID, spreadsheetID string, takenAt time.Time, series []ledger.DailyTotal) []*DailyTotalRow {
	rows := make([]*DailyTotalRow, 0, len(series))
	for _, d := range series {
		row := &DailyTotalRow{
			SnapshotID:    snapshotID,
			SpreadsheetID: spreadsheetID,
			SnapshotTS:    takenAt.UTC(),
			Date:          d.Date,
			TotalSpent:    d.TotalSpent.Rat(),
			TotalCredit:   d.TotalCredit.Rat(),
			DebitCount:    int64(d.DebitCount),
			CreditCount:   int64(d.CreditCount),
			Banks:         make([]BankTotalRow, 0, len(d.ByBank)),
		}
		for bank, bt := range d.ByBank {
			row.Banks = append(row.Banks, BankTotalRow{Bank: bank, Spent: bt.Spent.Rat(), Credit: bt.Credit.Rat()})
		}
		sort.Slice(row.Banks, func(i, j int) bool { return row.Banks[i].Bank < row.Banks[j].Bank })
		rows = append(rows, row)
	}
	return rows
}
