package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/dvloznov/securebank/internal/logger"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ObjectStore opens writers for objects in a bucket.
type ObjectStore interface {
	NewWriter(ctx context.Context, bucket, object, contentType string) io.WriteCloser
}

// GCSObjectStore is the ObjectStore backed by Google Cloud Storage.
// It assumes Application Default Credentials are configured.
type GCSObjectStore struct {
	client *storage.Client
}

// NewGCSObjectStore creates a storage client.
func NewGCSObjectStore(ctx context.Context) (*GCSObjectStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSObjectStore{client: client}, nil
}

// NewWriter implements ObjectStore.
func (s *GCSObjectStore) NewWriter(ctx context.Context, bucket, object, contentType string) io.WriteCloser {
	w := s.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType
	return w
}

// Close releases the storage client.
func (s *GCSObjectStore) Close() error {
	return s.client.Close()
}

// Exporter uploads statements as JSON objects.
type Exporter struct {
	store   ObjectStore
	bucket  string
	timeout time.Duration
	log     zerolog.Logger
}

// NewExporter creates an Exporter writing into bucket.
func NewExporter(store ObjectStore, bucket string, log zerolog.Logger) *Exporter {
	return &Exporter{
		store:   store,
		bucket:  bucket,
		timeout: 2 * time.Minute,
		log:     logger.Component(log, "export"),
	}
}

// ObjectName returns the object path for a statement generated at now.
func ObjectName(accountID string, now time.Time) string {
	return fmt.Sprintf("statements/%s/%s/%s.json", accountID, now.UTC().Format("2006/01/02"), uuid.New().String())
}

// Export uploads st and returns its gs:// URI.
func (e *Exporter) Export(ctx context.Context, st Statement) (string, error) {
	objectName := ObjectName(st.AccountID, st.GeneratedAt)

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	w := e.store.NewWriter(ctx, e.bucket, objectName, "application/json")

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(st); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("Export: encoding statement: %w", err)
	}

	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("Export: finalize upload: %w", err)
	}

	uri := fmt.Sprintf("gs://%s/%s", e.bucket, objectName)
	e.log.Info().
		Str("account_id", st.AccountID).
		Str("gcs_uri", uri).
		Int("transactions", len(st.Transactions)).
		Msg("Statement exported")
	return uri, nil
}

// ExtractFilenameFromGCSURI extracts the filename from a GCS URI.
// e.g., "gs://bucket/statements/a/2026/01/02/x.json" → "x.json"
func ExtractFilenameFromGCSURI(uri string) string {
	trimmed := strings.TrimPrefix(uri, "gs://")

	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}

	return path.Base(parts[1])
}
