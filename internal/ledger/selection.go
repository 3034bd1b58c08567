package ledger

import (
	"sort"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Summary holds point-in-time metrics over a selection.
type Summary struct {
	CreditSum   decimal.Decimal `json:"credit_sum"`
	DebitSum    decimal.Decimal `json:"debit_sum"`
	CreditCount int             `json:"credit_count"`
	DebitCount  int             `json:"debit_count"`
	Net         decimal.Decimal `json:"net"`
}

// ZeroSummary returns a Summary with all sums set to zero.
func ZeroSummary() Summary {
	return Summary{CreditSum: decimal.Zero, DebitSum: decimal.Zero, Net: decimal.Zero}
}

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	Start civil.Date `json:"start"`
	End   civil.Date `json:"end"`
}

// SingleDay selects exactly one day.
func SingleDay(d civil.Date) DateRange {
	return DateRange{Start: d, End: d}
}

// Range selects every day from start to end inclusive.
func Range(start, end civil.Date) DateRange {
	return DateRange{Start: start, End: end}
}

// Empty reports whether the range can contain no day.
func (r DateRange) Empty() bool {
	return !r.Start.IsValid() || !r.End.IsValid() || r.Start.After(r.End)
}

// Contains reports whether d falls within the range.
func (r DateRange) Contains(d civil.Date) bool {
	if r.Empty() || !d.IsValid() {
		return false
	}
	return !d.Before(r.Start) && !d.After(r.End)
}

// Select filters by bank membership, then by calendar day in [start, end].
// An empty bank set or start after end yields an empty selection and a zero Summary.
func Select(txs []Transaction, banks map[string]bool, start, end civil.Date) ([]Transaction, Summary) {
	rng := Range(start, end)
	selected := make([]Transaction, 0)
	if len(banks) == 0 || rng.Empty() {
		return selected, ZeroSummary()
	}

	for _, tx := range FilterBanks(txs, banks) {
		if rng.Contains(tx.Date) {
			selected = append(selected, tx)
		}
	}
	return selected, Summarize(selected)
}

// FilterBanks keeps transactions whose bank is in banks, preserving order.
func FilterBanks(txs []Transaction, banks map[string]bool) []Transaction {
	out := make([]Transaction, 0, len(txs))
	for _, tx := range txs {
		if banks[tx.Bank] {
			out = append(out, tx)
		}
	}
	return out
}

// Summarize computes credit and debit sums and counts. Rows of any other type
// are ignored.
func Summarize(txs []Transaction) Summary {
	s := ZeroSummary()
	for _, tx := range txs {
		switch tx.Kind {
		case KindCredit:
			s.CreditSum = s.CreditSum.Add(tx.Amount)
			s.CreditCount++
		case KindDebit:
			s.DebitSum = s.DebitSum.Add(tx.Amount)
			s.DebitCount++
		}
	}
	s.Net = s.CreditSum.Sub(s.DebitSum)
	return s
}

// Banks returns the distinct banks in txs, sorted.
func Banks(txs []Transaction) []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, tx := range txs {
		if !seen[tx.Bank] {
			seen[tx.Bank] = true
			out = append(out, tx.Bank)
		}
	}
	sort.Strings(out)
	return out
}

// BankSet builds a membership set from names.
func BankSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

// DateBounds returns the earliest and latest dates in txs. ok is false when no
// row has a date.
func DateBounds(txs []Transaction) (DateRange, bool) {
	var bounds DateRange
	found := false
	for _, tx := range txs {
		if !tx.HasDate() {
			continue
		}
		if !found || tx.Date.Before(bounds.Start) {
			bounds.Start = tx.Date
		}
		if !found || tx.Date.After(bounds.End) {
			bounds.End = tx.Date
		}
		found = true
	}
	return bounds, found
}
