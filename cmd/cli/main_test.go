package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/spend-tracker/internal/ledger"
	"github.com/dvloznov/spend-tracker/internal/tracker"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryFlags(t *testing.T) {
	f := queryFlags{banks: []string{"HDFC"}, mode: "range", start: "2024-01-01", top: 3}

	q, err := f.query()
	require.NoError(t, err)
	assert.Equal(t, tracker.ModeRange, q.Mode)
	assert.Equal(t, civil.Date{Year: 2024, Month: time.January, Day: 1}, q.Start)
	assert.False(t, q.End.IsValid())
	assert.Equal(t, []string{"HDFC"}, q.Banks)
	assert.Equal(t, 3, q.TopN)

	_, err = (&queryFlags{mode: "weekly"}).query()
	assert.Error(t, err)

	_, err = (&queryFlags{mode: "single", day: "2024/01/01"}).query()
	assert.ErrorContains(t, err, "--day")
}

func TestParseEntry(t *testing.T) {
	e, err := parseEntry("2024-01-05", "HDFC", "debit", "12.50", "lunch")
	require.NoError(t, err)
	assert.Equal(t, civil.Date{Year: 2024, Month: time.January, Day: 5}, e.Date)
	assert.True(t, e.Amount.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, "lunch", e.Message)

	e, err = parseEntry("", "HDFC", "credit", "1", "")
	require.NoError(t, err)
	assert.True(t, e.Date.IsValid(), "empty --date defaults to today")

	_, err = parseEntry("2024-01-05", "HDFC", "debit", "ten", "")
	assert.ErrorContains(t, err, "--amount")
}

func TestAddRequiresFlags(t *testing.T) {
	var out, errOut bytes.Buffer
	cmd := newRootCommand(&out, &errOut)
	cmd.SetArgs([]string{"add", "--amount", "5"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bank")
}

func TestRenderSummary(t *testing.T) {
	day := civil.Date{Year: 2024, Month: time.January, Day: 1}
	v := &tracker.View{
		Banks:         []string{"HDFC", "SBI"},
		SelectedBanks: []string{"HDFC"},
		Range:         ledger.SingleDay(day),
		Summary: ledger.Summary{
			CreditSum:   decimal.NewFromInt(1000),
			DebitSum:    decimal.NewFromInt(200),
			CreditCount: 1,
			DebitCount:  1,
			Net:         decimal.NewFromInt(800),
		},
		TopCategories: []ledger.CategoryTotal{{Category: "Rent", Spent: decimal.NewFromInt(200), Count: 1}},
	}

	var buf bytes.Buffer
	require.NoError(t, renderSummary(&buf, v))

	out := buf.String()
	assert.Contains(t, out, "2024-01-01 .. 2024-01-01")
	assert.Contains(t, out, "1 of 2")
	assert.Regexp(t, `Net\s+800\.00`, out)
	assert.Regexp(t, `Rent\s+200\.00\s+\(1\)`, out)
}

func TestRenderRowsAndDaily(t *testing.T) {
	day := civil.Date{Year: 2024, Month: time.January, Day: 2}
	rows := []ledger.Transaction{
		{Timestamp: time.Date(2024, 1, 2, 8, 30, 0, 0, time.UTC), Date: day, Bank: "SBI", Type: "debit", Amount: decimal.NewFromInt(40), Message: "coffee"},
		{Bank: "Unknown", Type: "debit", Amount: decimal.Zero},
	}

	var buf bytes.Buffer
	require.NoError(t, renderRows(&buf, rows))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Regexp(t, `^2024-01-02 08:30:00\s+SBI\s+debit\s+40\.00\s+coffee$`, lines[1])
	assert.Regexp(t, `^-\s+Unknown`, lines[2])

	buf.Reset()
	require.NoError(t, renderDaily(&buf, []ledger.DailyTotal{{Date: day, TotalSpent: decimal.NewFromInt(40), TotalCredit: decimal.Zero, DebitCount: 1}}))
	assert.Regexp(t, `2024-01-02\s+40\.00\s+0\.00\s+-40\.00\s+1\s+0`, buf.String())
}

func TestWarnDegraded(t *testing.T) {
	var buf bytes.Buffer
	warnDegraded(&buf, &tracker.View{
		Status: tracker.StatusEmpty,
		Sources: []tracker.SourceStatus{
			{Source: ledger.SourceHistory, Range: "History!A:Z"},
			{Source: ledger.SourceAppend, Range: "Append!A:H", Error: "googleapi: Error 404"},
		},
	})

	assert.Equal(t, "warning: append range Append!A:H unavailable: googleapi: Error 404\nwarning: ledger is empty\n", buf.String())
}
