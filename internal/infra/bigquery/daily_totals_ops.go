package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// DailyTotalsRepository writes and reads daily totals snapshots.
type DailyTotalsRepository struct {
	client  *bigquery.Client
	dataset string
	table   string
}

// NewDailyTotalsRepository creates a repository with its own client.
func NewDailyTotalsRepository(ctx context.Context, projectID, dataset, table string, opts ...option.ClientOption) (*DailyTotalsRepository, error) {
	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewDailyTotalsRepository: creating client: %w", err)
	}
	return NewDailyTotalsRepositoryWithClient(client, dataset, table), nil
}

// NewDailyTotalsRepositoryWithClient wraps an existing client.
func NewDailyTotalsRepositoryWithClient(client *bigquery.Client, dataset, table string) *DailyTotalsRepository {
	return &DailyTotalsRepository{client: client, dataset: dataset, table: table}
}

// Close closes the BigQuery client connection.
func (r *DailyTotalsRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// TableID returns the fully qualified table name.
func (r *DailyTotalsRepository) TableID() string {
	return fmt.Sprintf("%s.%s.%s", r.client.Project(), r.dataset, r.table)
}

// EnsureTable creates the dataset and table when they do not exist.
// The table is partitioned by day on date.
func (r *DailyTotalsRepository) EnsureTable(ctx context.Context) error {
	ds := r.client.Dataset(r.dataset)
	if err := ds.Create(ctx, &bigquery.DatasetMetadata{}); err != nil && !isConflict(err) {
		return fmt.Errorf("EnsureTable: creating dataset %s: %w", r.dataset, err)
	}

	schema, err := DailyTotalsSchema()
	if err != nil {
		return fmt.Errorf("EnsureTable: inferring schema: %w", err)
	}

	meta := &bigquery.TableMetadata{
		Schema: schema,
		TimePartitioning: &bigquery.TimePartitioning{
			Type:  bigquery.DayPartitioningType,
			Field: "date",
		},
	}
	if err := ds.Table(r.table).Create(ctx, meta); err != nil && !isConflict(err) {
		return fmt.Errorf("EnsureTable: creating table %s: %w", r.table, err)
	}
	return nil
}

// InsertDailyTotals streams rows into the snapshot table.
func (r *DailyTotalsRepository) InsertDailyTotals(ctx context.Context, rows []*DailyTotalRow) error {
	if len(rows) == 0 {
		return nil
	}
	inserter := r.client.Dataset(r.dataset).Table(r.table).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertDailyTotals: inserting rows: %w", err)
	}
	return nil
}

// QuerySnapshot returns the rows of one snapshot ordered by date.
func (r *DailyTotalsRepository) QuerySnapshot(ctx context.Context, snapshotID string) ([]*DailyTotalRow, error) {
	q := r.client.Query(`
		SELECT
			snapshot_id,
			spreadsheet_id,
			snapshot_ts,
			date,
			total_spent,
			total_credit,
			debit_count,
			credit_count,
			banks
		FROM ` + "`" + r.TableID() + "`" + `
		WHERE snapshot_id = @snapshot_id
		ORDER BY date
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "snapshot_id", Value: snapshotID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QuerySnapshot: query read: %w", err)
	}

	var rows []*DailyTotalRow
	for {
		var row DailyTotalRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QuerySnapshot: iter next: %w", err)
		}
		rows = append(rows, &row)
	}
	return rows, nil
}

// DeleteSnapshot removes every row of one snapshot.
func (r *DailyTotalsRepository) DeleteSnapshot(ctx context.Context, snapshotID string) error {
	q := r.client.Query(`
		DELETE FROM ` + "`" + r.TableID() + "`" + `
		WHERE snapshot_id = @snapshot_id
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "snapshot_id", Value: snapshotID},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("DeleteSnapshot: run query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("DeleteSnapshot: wait for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("DeleteSnapshot: job failed: %w", err)
	}
	return nil
}

func isConflict(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusConflict
}
