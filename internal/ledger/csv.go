package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
)

// CSVHeader is the column order of the CSV projection.
var CSVHeader = []string{"timestamp", "bank", "type", "amount", "message"}

// CSVRecord projects a transaction onto CSVHeader. A null timestamp is empty.
func CSVRecord(tx Transaction) []string {
	ts := ""
	if !tx.Timestamp.IsZero() {
		ts = tx.Timestamp.Format(TimestampLayout)
	}
	return []string{ts, tx.Bank, tx.Type, tx.Amount.String(), tx.Message}
}

// WriteCSV writes the header and one record per transaction.
func WriteCSV(w io.Writer, txs []Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("WriteCSV: header: %w", err)
	}
	for i, tx := range txs {
		if err := cw.Write(CSVRecord(tx)); err != nil {
			return fmt.Errorf("WriteCSV: row %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("WriteCSV: flush: %w", err)
	}
	return nil
}
