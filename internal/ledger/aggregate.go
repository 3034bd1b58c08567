package ledger

import (
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// BankTotal is the per-bank breakdown of a DailyTotal.
type BankTotal struct {
	Spent  decimal.Decimal `json:"total_spent"`
	Credit decimal.Decimal `json:"total_credit"`
}

// DailyTotal aggregates one calendar day.
type DailyTotal struct {
	Date        civil.Date           `json:"date"`
	TotalSpent  decimal.Decimal      `json:"total_spent"`
	TotalCredit decimal.Decimal      `json:"total_credit"`
	DebitCount  int                  `json:"debit_count"`
	CreditCount int                  `json:"credit_count"`
	ByBank      map[string]BankTotal `json:"by_bank"`
}

// Net returns credits minus debits for the day.
func (d DailyTotal) Net() decimal.Decimal {
	return d.TotalCredit.Sub(d.TotalSpent)
}

// Aggregate groups transactions by calendar day. Rows without a date are skipped.
// Decimal addition is exact, so the result does not depend on input order.
func Aggregate(txs []Transaction) map[civil.Date]DailyTotal {
	out := make(map[civil.Date]DailyTotal)

	for _, tx := range txs {
		if !tx.HasDate() {
			continue
		}

		day, ok := out[tx.Date]
		if !ok {
			day = DailyTotal{
				Date:        tx.Date,
				TotalSpent:  decimal.Zero,
				TotalCredit: decimal.Zero,
				ByBank:      make(map[string]BankTotal),
			}
		}

		bank, ok := day.ByBank[tx.Bank]
		if !ok {
			bank = BankTotal{Spent: decimal.Zero, Credit: decimal.Zero}
		}

		switch tx.Kind {
		case KindDebit:
			day.TotalSpent = day.TotalSpent.Add(tx.Amount)
			day.DebitCount++
			bank.Spent = bank.Spent.Add(tx.Amount)
		case KindCredit:
			day.TotalCredit = day.TotalCredit.Add(tx.Amount)
			day.CreditCount++
			bank.Credit = bank.Credit.Add(tx.Amount)
		}

		day.ByBank[tx.Bank] = bank
		out[tx.Date] = day
	}

	return out
}

// DailySeries returns the totals ordered by date.
func DailySeries(totals map[civil.Date]DailyTotal) []DailyTotal {
	series := make([]DailyTotal, 0, len(totals))
	for _, d := range totals {
		series = append(series, d)
	}
	sort.Slice(series, func(i, j int) bool {
		return series[i].Date.Before(series[j].Date)
	})
	return series
}

// MonthlyTotal rolls daily totals up to a calendar month.
type MonthlyTotal struct {
	Year        int             `json:"year"`
	Month       time.Month      `json:"month"`
	TotalSpent  decimal.Decimal `json:"total_spent"`
	TotalCredit decimal.Decimal `json:"total_credit"`
	Days        int             `json:"days"`
}

// MonthlyTotals rolls the daily totals up by month, oldest first.
func MonthlyTotals(totals map[civil.Date]DailyTotal) []MonthlyTotal {
	type monthKey struct {
		year  int
		month time.Month
	}
	byMonth := make(map[monthKey]MonthlyTotal)
	for _, d := range totals {
		k := monthKey{d.Date.Year, d.Date.Month}
		m, ok := byMonth[k]
		if !ok {
			m = MonthlyTotal{Year: k.year, Month: k.month, TotalSpent: decimal.Zero, TotalCredit: decimal.Zero}
		}
		m.TotalSpent = m.TotalSpent.Add(d.TotalSpent)
		m.TotalCredit = m.TotalCredit.Add(d.TotalCredit)
		m.Days++
		byMonth[k] = m
	}

	out := make([]MonthlyTotal, 0, len(byMonth))
	for _, m := range byMonth {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out
}

// CategoryTotal is the debit spend of one category.
type CategoryTotal struct {
	Category string          `json:"category"`
	Spent    decimal.Decimal `json:"total_spent"`
	Count    int             `json:"count"`
}

// TopCategories returns the n categories with the highest debit spend.
// Ties are broken by name; n <= 0 returns every category.
func TopCategories(txs []Transaction, n int) []CategoryTotal {
	byCat := make(map[string]CategoryTotal)
	for _, tx := range txs {
		if tx.Kind != KindDebit {
			continue
		}
		c, ok := byCat[tx.Category]
		if !ok {
			c = CategoryTotal{Category: tx.Category, Spent: decimal.Zero}
		}
		c.Spent = c.Spent.Add(tx.Amount)
		c.Count++
		byCat[tx.Category] = c
	}

	out := make([]CategoryTotal, 0, len(byCat))
	for _, c := range byCat {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if cmp := out[i].Spent.Cmp(out[j].Spent); cmp != 0 {
			return cmp > 0
		}
		return out[i].Category < out[j].Category
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
