package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/securebank/internal/domain"
	"github.com/dvloznov/securebank/internal/logger"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func entry(dir domain.Direction, amount string, status domain.Status) domain.Transaction {
	tx := domain.NewTransaction(dir, "someone", dec(amount), "")
	tx.Status = status
	return tx
}

func TestBuildStatement(t *testing.T) {
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	txs := []domain.Transaction{
		entry(domain.DirectionOutgoing, "100", domain.StatusCompleted),
		entry(domain.DirectionOutgoing, "900", domain.StatusFlagged),
		entry(domain.DirectionOutgoing, "300", domain.StatusFailed),
		entry(domain.DirectionIncoming, "2500", domain.StatusCompleted),
	}

	st := BuildStatement("acc-1", "INR", dec("10000"), dec("11500"), txs, now)

	if !st.TotalIn.Equal(dec("2500")) {
		t.Errorf("TotalIn = %s", st.TotalIn)
	}
	if !st.TotalOut.Equal(dec("1000")) {
		t.Errorf("TotalOut = %s", st.TotalOut)
	}
	if st.Flagged != 1 {
		t.Errorf("Flagged = %d", st.Flagged)
	}
	if len(st.Transactions) != 4 {
		t.Errorf("Transactions = %d", len(st.Transactions))
	}
	if len(st.Breakdown) != 1 || st.Breakdown[0].Category != domain.CategoryOther {
		t.Errorf("Breakdown = %+v", st.Breakdown)
	}

	empty := BuildStatement("acc-1", "INR", dec("10"), dec("10"), nil, now)
	if empty.Transactions == nil {
		t.Error("Transactions should be an empty slice, not nil")
	}
}

type bufferCloser struct {
	bytes.Buffer
	closeErr error
	closed   bool
}

func (b *bufferCloser) Close() error {
	b.closed = true
	return b.closeErr
}

type mockStore struct {
	bucket, object, contentType string
	w                           *bufferCloser
}

func (m *mockStore) NewWriter(ctx context.Context, bucket, object, contentType string) io.WriteCloser {
	m.bucket, m.object, m.contentType = bucket, object, contentType
	return m.w
}

func TestExport(t *testing.T) {
	store := &mockStore{w: &bufferCloser{}}
	exp := NewExporter(store, "bank-statements", logger.Nop())

	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	st := BuildStatement("acc-1", "INR", dec("100"), dec("55"), []domain.Transaction{
		entry(domain.DirectionOutgoing, "45", domain.StatusCompleted),
	}, now)

	uri, err := exp.Export(context.Background(), st)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if !strings.HasPrefix(uri, "gs://bank-statements/statements/acc-1/2026/05/04/") {
		t.Errorf("uri = %s", uri)
	}
	if store.contentType != "application/json" || !store.w.closed {
		t.Errorf("contentType = %s, closed = %v", store.contentType, store.w.closed)
	}

	var got Statement
	if err := json.Unmarshal(store.w.Bytes(), &got); err != nil {
		t.Fatalf("uploaded body is not JSON: %v", err)
	}
	if got.AccountID != "acc-1" || !got.ClosingBalance.Equal(dec("55")) {
		t.Errorf("uploaded statement = %+v", got)
	}
	if ExtractFilenameFromGCSURI(uri) != path.Base(store.object) {
		t.Errorf("filename = %s", ExtractFilenameFromGCSURI(uri))
	}
}

func TestExportFinalizeError(t *testing.T) {
	store := &mockStore{w: &bufferCloser{closeErr: errors.New("permission denied")}}
	exp := NewExporter(store, "bank-statements", logger.Nop())

	st := BuildStatement("acc-1", "INR", dec("1"), dec("1"), nil, time.Now())
	if _, err := exp.Export(context.Background(), st); err == nil {
		t.Error("expected finalize error")
	}
}

func TestExtractFilenameFromGCSURI(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"gs://bucket/statements/a/x.json", "x.json"},
		{"gs://bucket", "bucket"},
		{"bucket/file.json", "file.json"},
	}
	for _, tt := range tests {
		if got := ExtractFilenameFromGCSURI(tt.uri); got != tt.want {
			t.Errorf("ExtractFilenameFromGCSURI(%q) = %q, want %q", tt.uri, got, tt.want)
		}
	}
}
