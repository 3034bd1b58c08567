package handlers

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/spend-tracker/internal/ledger"
	"github.com/dvloznov/spend-tracker/internal/tracker"
	"github.com/shopspring/decimal"
)

// TransactionResponse is the JSON shape of a transaction. A row without a
// parsable timestamp has null timestamp and date.
type TransactionResponse struct {
	Timestamp   *time.Time          `json:"timestamp"`
	Date        *civil.Date         `json:"date"`
	Bank        string              `json:"bank"`
	Type        string              `json:"type"`
	Kind        ledger.Kind         `json:"kind"`
	Amount      decimal.Decimal     `json:"amount"`
	Message     string              `json:"message"`
	Category    string              `json:"category"`
	Source      ledger.Source       `json:"source"`
	SourceIndex int                 `json:"source_index"`
	Diagnostics []ledger.Diagnostic `json:"diagnostics,omitempty"`
}

// NewTransactionResponse projects tx.
func NewTransactionResponse(tx ledger.Transaction) TransactionResponse {
	resp := TransactionResponse{
		Bank:        tx.Bank,
		Type:        tx.Type,
		Kind:        tx.Kind,
		Amount:      tx.Amount,
		Message:     tx.Message,
		Category:    tx.Category,
		Source:      tx.Source,
		SourceIndex: tx.SourceIndex,
		Diagnostics: tx.Diagnostics,
	}
	if !tx.Timestamp.IsZero() {
		ts := tx.Timestamp
		resp.Timestamp = &ts
	}
	if tx.HasDate() {
		d := tx.Date
		resp.Date = &d
	}
	return resp
}

func transactionResponses(txs []ledger.Transaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, NewTransactionResponse(tx))
	}
	return out
}

// DailyTotalResponse adds the day's net to ledger.DailyTotal.
type DailyTotalResponse struct {
	ledger.DailyTotal
	Net decimal.Decimal `json:"net"`
}

func dailyResponses(days []ledger.DailyTotal) []DailyTotalResponse {
	out := make([]DailyTotalResponse, 0, len(days))
	for _, d := range days {
		out = append(out, DailyTotalResponse{DailyTotal: d, Net: d.Net()})
	}
	return out
}

// ViewResponse carries the session state shared by every read endpoint.
type ViewResponse struct {
	SessionID     string                 `json:"session_id"`
	ReloadCounter uint64                 `json:"reload_counter"`
	LastRefreshed *time.Time             `json:"last_refreshed"`
	Status        tracker.SnapshotStatus `json:"status"`
	Sources       []tracker.SourceStatus `json:"sources"`
	Stats         ledger.MergeStats      `json:"stats"`
}

func newViewResponse(v *tracker.View) ViewResponse {
	resp := ViewResponse{
		SessionID:     v.SessionID,
		ReloadCounter: v.ReloadCounter,
		Status:        v.Status,
		Sources:       v.Sources,
		Stats:         v.Stats,
	}
	if !v.LastRefreshed.IsZero() {
		t := v.LastRefreshed
		resp.LastRefreshed = &t
	}
	return resp
}

// DashboardResponse is everything GET /api/dashboard renders.
type DashboardResponse struct {
	ViewResponse
	Banks         []string               `json:"banks"`
	SelectedBanks []string               `json:"selected_banks"`
	Mode          tracker.Mode           `json:"mode"`
	Bounds        *ledger.DateRange      `json:"bounds"`
	Range         ledger.DateRange       `json:"range"`
	Summary       ledger.Summary         `json:"summary"`
	Transactions  []TransactionResponse  `json:"transactions"`
	Daily         []DailyTotalResponse   `json:"daily"`
	Monthly       []ledger.MonthlyTotal  `json:"monthly"`
	TopCategories []ledger.CategoryTotal `json:"top_categories"`
}

// NewDashboardResponse projects v.
func NewDashboardResponse(v *tracker.View) DashboardResponse {
	return DashboardResponse{
		ViewResponse:  newViewResponse(v),
		Banks:         nonNil(v.Banks),
		SelectedBanks: nonNil(v.SelectedBanks),
		Mode:          v.Mode,
		Bounds:        v.Bounds,
		Range:         v.Range,
		Summary:       v.Summary,
		Transactions:  transactionResponses(v.Rows),
		Daily:         dailyResponses(v.Daily),
		Monthly:       v.Monthly,
		TopCategories: v.TopCategories,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
