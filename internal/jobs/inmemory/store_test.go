package inmemory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/spend-tracker/internal/jobs"
)

func TestStore_SaveAndGet(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	job := &jobs.ExportJob{JobID: "j1", Type: jobs.JobTypeExportCSV, Banks: []string{"HDFC"}, Status: jobs.JobStatusPending}
	if err := store.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob() error = %v", err)
	}

	// the store keeps its own copy
	job.Status = jobs.JobStatusFailed
	job.Banks[0] = "SBI"

	got, err := store.GetJob(ctx, "j1")
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if got.Status != jobs.JobStatusPending || got.Banks[0] != "HDFC" {
		t.Errorf("GetJob() = %+v, want the saved copy", got)
	}

	if _, err := store.GetJob(ctx, "missing"); !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("GetJob(missing) error = %v, want ErrJobNotFound", err)
	}
	if err := store.SaveJob(ctx, &jobs.ExportJob{}); err == nil {
		t.Error("SaveJob() without ID should fail")
	}
}

func TestStore_ListJobs(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, tc := range []struct {
		id     string
		typ    jobs.JobType
		status jobs.JobStatus
	}{
		{"a", jobs.JobTypeExportCSV, jobs.JobStatusCompleted},
		{"b", jobs.JobTypeSnapshotDailyTotals, jobs.JobStatusFailed},
		{"c", jobs.JobTypeExportCSV, jobs.JobStatusPending},
	} {
		_ = store.SaveJob(ctx, &jobs.ExportJob{JobID: tc.id, Type: tc.typ, Status: tc.status, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
	}

	tests := []struct {
		name   string
		filter jobs.JobFilter
		want   []string
	}{
		{"all newest first", jobs.JobFilter{}, []string{"c", "b", "a"}},
		{"by type", jobs.JobFilter{Type: jobs.JobTypeExportCSV}, []string{"c", "a"}},
		{"by status", jobs.JobFilter{Status: jobs.JobStatusFailed}, []string{"b"}},
		{"limit", jobs.JobFilter{Limit: 1}, []string{"c"}},
		{"offset", jobs.JobFilter{Offset: 2}, []string{"a"}},
		{"offset past end", jobs.JobFilter{Offset: 5}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListJobs(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListJobs() error = %v", err)
			}
			ids := make([]string, 0, len(got))
			for _, j := range got {
				ids = append(ids, j.JobID)
			}
			if len(ids) != len(tt.want) {
				t.Fatalf("ListJobs() = %v, want %v", ids, tt.want)
			}
			for i := range ids {
				if ids[i] != tt.want[i] {
					t.Errorf("ListJobs() = %v, want %v", ids, tt.want)
					break
				}
			}
		})
	}
}

func TestStore_UpdateJobStatus(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	_ = store.SaveJob(ctx, &jobs.ExportJob{JobID: "j1", Status: jobs.JobStatusRunning})

	if err := store.UpdateJobStatus(ctx, "j1", jobs.JobStatusFailed, "boom"); err != nil {
		t.Fatalf("UpdateJobStatus() error = %v", err)
	}
	got, _ := store.GetJob(ctx, "j1")
	if got.Status != jobs.JobStatusFailed || got.Error != "boom" {
		t.Errorf("job = %+v", got)
	}
	if err := store.UpdateJobStatus(ctx, "nope", jobs.JobStatusFailed, ""); !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("UpdateJobStatus(nope) error = %v", err)
	}
}
