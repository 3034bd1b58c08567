// Package export copies ledger selections to Cloud Storage and BigQuery.
package export

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// ObjectStore writes and reads whole objects.
type ObjectStore interface {
	// WriteObject stores r under bucket/object and returns the bytes written.
	WriteObject(ctx context.Context, bucket, object, contentType string, r io.Reader) (int64, error)

	// ReadObject returns the bytes of a gs:// URI.
	ReadObject(ctx context.Context, uri string) ([]byte, error)
}

// GCSStore is the Cloud Storage ObjectStore.
type GCSStore struct {
	client  *storage.Client
	timeout time.Duration
}

// NewGCSStore creates a store with its own client.
func NewGCSStore(ctx context.Context, opts ...option.ClientOption) (*GCSStore, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSStore{client: client, timeout: 2 * time.Minute}, nil
}

// Close releases the client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

// WriteObject uploads r, finalizing the object only when the copy succeeds.
func (s *GCSStore) WriteObject(ctx context.Context, bucket, object, contentType string, r io.Reader) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	w := s.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType

	written, err := io.Copy(w, r)
	if err != nil {
		cancel()
		_ = w.Close()
		return 0, fmt.Errorf("copy to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("finalize upload: %w", err)
	}
	return written, nil
}

// ReadObject downloads the object at uri.
func (s *GCSStore) ReadObject(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := ParseGCSURI(uri)
	if err != nil {
		return nil, err
	}

	rc, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("ReadObject: reading object %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("ReadObject: reading bytes: %w", err)
	}
	return data, nil
}

// ParseGCSURI splits gs://bucket/path/to/object.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// GCSURI joins a bucket and object into a gs:// URI.
func GCSURI(bucket, object string) string {
	return fmt.Sprintf("gs://%s/%s", bucket, object)
}

// ObjectName lays exports out by day: prefix/2006/01/02/transactions-<id>.csv.
func ObjectName(prefix string, at time.Time, jobID string) string {
	return path.Join(prefix, at.UTC().Format("2006/01/02"), "transactions-"+jobID+".csv")
}
