package main

import (
	"fmt"
	"io"
	"math/big"
	"text/tabwriter"

	infraBQ "github.com/dvloznov/spend-tracker/internal/infra/bigquery"
	"github.com/dvloznov/spend-tracker/internal/ledger"
	"github.com/dvloznov/spend-tracker/internal/tracker"
)

func newTable(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
}

// warnDegraded reports unreadable ranges and empty ledgers. Partial data is
// still rendered after the warnings.
func warnDegraded(w io.Writer, v *tracker.View) {
	for _, src := range v.Sources {
		if !src.Available() {
			fmt.Fprintf(w, "warning: %s range %s unavailable: %s\n", src.Source, src.Range, src.Error)
		}
	}
	switch v.Status {
	case tracker.StatusEmpty:
		fmt.Fprintln(w, "warning: ledger is empty")
	case tracker.StatusNoVisibleRows:
		fmt.Fprintln(w, "warning: every row is marked deleted")
	}
}

func renderSummary(out io.Writer, v *tracker.View) error {
	tw := newTable(out)
	fmt.Fprintf(tw, "Period\t%s .. %s\n", v.Range.Start, v.Range.End)
	fmt.Fprintf(tw, "Banks\t%d of %d\n", len(v.SelectedBanks), len(v.Banks))
	fmt.Fprintf(tw, "Credit\t%s\t(%d)\n", v.Summary.CreditSum.StringFixed(2), v.Summary.CreditCount)
	fmt.Fprintf(tw, "Debit\t%s\t(%d)\n", v.Summary.DebitSum.StringFixed(2), v.Summary.DebitCount)
	fmt.Fprintf(tw, "Net\t%s\n", v.Summary.Net.StringFixed(2))
	if len(v.TopCategories) > 0 {
		fmt.Fprintln(tw, "\nTop categories\t\t")
		for _, c := range v.TopCategories {
			fmt.Fprintf(tw, "%s\t%s\t(%d)\n", c.Category, c.Spent.StringFixed(2), c.Count)
		}
	}
	return tw.Flush()
}

func renderDaily(out io.Writer, days []ledger.DailyTotal) error {
	tw := newTable(out)
	fmt.Fprintln(tw, "DATE\tSPENT\tCREDIT\tNET\tDEBITS\tCREDITS")
	for _, d := range days {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\n", d.Date, d.TotalSpent.StringFixed(2), d.TotalCredit.StringFixed(2), d.Net().StringFixed(2), d.DebitCount, d.CreditCount)
	}
	return tw.Flush()
}

func renderMonthly(out io.Writer, months []ledger.MonthlyTotal) error {
	tw := newTable(out)
	fmt.Fprintln(tw, "MONTH\tSPENT\tCREDIT\tDAYS")
	for _, m := range months {
		fmt.Fprintf(tw, "%04d-%02d\t%s\t%s\t%d\n", m.Year, int(m.Month), m.TotalSpent.StringFixed(2), m.TotalCredit.StringFixed(2), m.Days)
	}
	return tw.Flush()
}

func renderRows(out io.Writer, txs []ledger.Transaction) error {
	tw := newTable(out)
	fmt.Fprintln(tw, "TIMESTAMP\tBANK\tTYPE\tAMOUNT\tMESSAGE")
	for _, tx := range txs {
		rec := ledger.CSVRecord(tx)
		if rec[0] == "" {
			rec[0] = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", rec[0], rec[1], rec[2], tx.Amount.StringFixed(2), rec[4])
	}
	return tw.Flush()
}

func renderSnapshot(out io.Writer, rows []*infraBQ.DailyTotalRow) error {
	tw := newTable(out)
	fmt.Fprintln(tw, "DATE\tSPENT\tCREDIT\tBANKS")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", r.Date, ratString(r.TotalSpent), ratString(r.TotalCredit), len(r.Banks))
	}
	return tw.Flush()
}

func ratString(r *big.Rat) string {
	if r == nil {
		return "-"
	}
	return r.FloatString(2)
}
