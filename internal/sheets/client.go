// Package sheets reads and appends spreadsheet ranges through the Google Sheets API.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/spend-tracker/internal/ledger"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

var (
	_ ledger.RangeReader    = (*Client)(nil)
	_ ledger.RecordAppender = (*Appender)(nil)
)

// Client wraps a Sheets service.
type Client struct {
	svc *gsheets.Service
}

// CredentialOptions builds client options from a service account or
// authorized user JSON. Empty JSON falls back to application default credentials.
func CredentialOptions(ctx context.Context, credsJSON []byte) ([]option.ClientOption, error) {
	if len(credsJSON) == 0 {
		return nil, nil
	}
	creds, err := google.CredentialsFromJSON(ctx, credsJSON, gsheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("CredentialOptions: parse credentials: %w", err)
	}
	return []option.ClientOption{option.WithCredentials(creds)}, nil
}

// NewClient creates a client with the given options.
func NewClient(ctx context.Context, opts ...option.ClientOption) (*Client, error) {
	svc, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewClient: create sheets service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// NewWithService wraps an existing service.
func NewWithService(svc *gsheets.Service) *Client {
	return &Client{svc: svc}
}

// ReadRange returns the values of rng. Numbers come back unformatted and
// dates as their displayed text.
func (c *Client) ReadRange(ctx context.Context, spreadsheetID, rng string) ([][]any, error) {
	if c.svc == nil {
		return nil, errors.New("ReadRange: sheets service not initialized")
	}
	resp, err := c.svc.Spreadsheets.Values.Get(spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("ReadRange: read %s: %w", rng, err)
	}
	return resp.Values, nil
}

// Appender writes records to an append range, ordering values by that
// range's header row. When the append range has no header, the history
// header is written to it first. When neither has a header, the record's
// own names are written first.
type Appender struct {
	client       *Client
	historyRange string
}

// Appender returns an appender that borrows its column order from historyRange
// when the target range is headerless.
func (c *Client) Appender(historyRange string) *Appender {
	return &Appender{client: c, historyRange: historyRange}
}

// AppendRecord inserts rec as a new row after the last row of rng and returns
// the updated range reported by the API.
func (a *Appender) AppendRecord(ctx context.Context, spreadsheetID, rng string, rec ledger.Record) (string, error) {
	if a.client.svc == nil {
		return "", errors.New("AppendRecord: sheets service not initialized")
	}

	header, borrowed, err := a.header(ctx, spreadsheetID, rng)
	if err != nil {
		return "", err
	}

	var values [][]any
	switch {
	case len(header) == 0:
		values = [][]any{headerRow(rec.Names()), rec.Values()}
	case borrowed:
		values = [][]any{headerRow(header), OrderRecord(header, rec)}
	default:
		values = [][]any{OrderRecord(header, rec)}
	}

	resp, err := a.client.svc.Spreadsheets.Values.Append(spreadsheetID, rng, &gsheets.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("AppendRecord: append to %s: %w", rng, err)
	}

	if resp.Updates != nil {
		return resp.Updates.UpdatedRange, nil
	}
	return "", nil
}

// header returns the column order for rng. borrowed is true when it came from
// the history range and rng itself has no header yet.
func (a *Appender) header(ctx context.Context, spreadsheetID, rng string) (header []string, borrowed bool, err error) {
	header, err = a.readHeader(ctx, spreadsheetID, rng)
	if err != nil {
		return nil, false, fmt.Errorf("AppendRecord: read header of %s: %w", rng, err)
	}
	if len(header) > 0 || a.historyRange == "" {
		return header, false, nil
	}
	header, err = a.readHeader(ctx, spreadsheetID, a.historyRange)
	if err != nil {
		return nil, false, fmt.Errorf("AppendRecord: read header of %s: %w", a.historyRange, err)
	}
	return header, len(header) > 0, nil
}

func headerRow(names []string) []any {
	row := make([]any, len(names))
	for i, n := range names {
		row[i] = n
	}
	return row
}

func (a *Appender) readHeader(ctx context.Context, spreadsheetID, rng string) ([]string, error) {
	values, err := a.client.ReadRange(ctx, spreadsheetID, HeaderRange(rng))
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}
	header := make([]string, len(values[0]))
	blank := true
	for i, v := range values[0] {
		header[i] = strings.TrimSpace(fmt.Sprint(v))
		if header[i] != "" {
			blank = false
		}
	}
	if blank {
		return nil, nil
	}
	return header, nil
}

// HeaderRange returns the A1 range of the first row of the sheet rng points at.
func HeaderRange(rng string) string {
	if i := strings.LastIndex(rng, "!"); i >= 0 {
		return rng[:i] + "!1:1"
	}
	return "1:1"
}

// OrderRecord lays rec out under header. Names match case-insensitively;
// header columns the record lacks are left empty and record fields the header
// lacks are dropped.
func OrderRecord(header []string, rec ledger.Record) []any {
	row := make([]any, len(header))
	for i, name := range header {
		row[i] = ""
		if name == "" {
			continue
		}
		if v, ok := rec.Lookup(name); ok {
			row[i] = v
		}
	}
	return row
}
