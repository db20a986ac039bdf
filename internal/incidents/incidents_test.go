package incidents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/securebank/internal/domain"
	"github.com/dvloznov/securebank/internal/logger"
	"github.com/dvloznov/securebank/internal/screener"
	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"
	"google.golang.org/api/googleapi"
)

func flaggedIncident() Incident {
	tx := domain.NewTransaction(domain.DirectionOutgoing, "random-stranger-acct", decimal.RequireFromString("9000"), "crypto deal")
	tx.Status = domain.StatusFlagged
	v := domain.RiskVerdict{RiskScore: 85, IsFraudulent: true, Reason: "unknown recipient"}
	tx = tx.WithVerdict(v)
	return Incident{
		AccountID:   "acc-1",
		Transaction: tx,
		Screen:      screener.Result{Suspicious: true, Reasons: []string{"keyword: crypto"}},
		Verdict:     &v,
		Disposition: DispositionFlagged,
		RecordedAt:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestNeedsReview(t *testing.T) {
	tests := []struct {
		d    Disposition
		want bool
	}{
		{DispositionCompleted, false},
		{DispositionRejected, false},
		{DispositionFlagged, true},
		{DispositionCancelled, true},
		{DispositionAbandoned, true},
	}
	for _, tt := range tests {
		if got := tt.d.NeedsReview(); got != tt.want {
			t.Errorf("%s.NeedsReview() = %v, want %v", tt.d, got, tt.want)
		}
	}
}

func TestToDecisionRow(t *testing.T) {
	inc := flaggedIncident()
	row := ToDecisionRow(inc)

	if row.TransactionID != inc.Transaction.ID {
		t.Errorf("TransactionID = %q", row.TransactionID)
	}
	if row.Amount.FloatString(2) != "9000.00" {
		t.Errorf("Amount = %s", row.Amount.FloatString(2))
	}
	if !row.RiskScore.Valid || row.RiskScore.Int64 != 85 {
		t.Errorf("RiskScore = %+v", row.RiskScore)
	}
	if !row.Note.Valid || row.Note.StringVal != "crypto deal" {
		t.Errorf("Note = %+v", row.Note)
	}
	if row.RejectReason.Valid {
		t.Error("RejectReason should be null")
	}
	if row.Disposition != "flagged" || row.Status != "Flagged" {
		t.Errorf("Disposition/Status = %s/%s", row.Disposition, row.Status)
	}
}

func TestToDecisionRowWithoutVerdict(t *testing.T) {
	inc := flaggedIncident()
	inc.Verdict = nil
	inc.Disposition = DispositionRejected
	inc.Reason = "insufficient_funds"
	inc.RecordedAt = time.Time{}
	inc.Transaction.Note = "  "

	row := ToDecisionRow(inc)
	if row.RiskScore.Valid || row.RiskReason.Valid || row.IsFraudulent.Valid {
		t.Error("verdict columns should be null")
	}
	if row.RejectReason.StringVal != "insufficient_funds" {
		t.Errorf("RejectReason = %+v", row.RejectReason)
	}
	if row.Note.Valid {
		t.Error("blank note should be null")
	}
	if row.DecidedTS.IsZero() {
		t.Error("DecidedTS should default to now")
	}
}

type mockInserter struct {
	rows []interface{}
	err  error
}

func (m *mockInserter) Put(ctx context.Context, src interface{}) error {
	m.rows = append(m.rows, src)
	return m.err
}

func TestBigQuerySink(t *testing.T) {
	ins := &mockInserter{}
	sink := NewBigQuerySinkWithInserter(ins)

	if err := sink.Record(context.Background(), flaggedIncident()); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if len(ins.rows) != 1 {
		t.Fatalf("Put called %d times, want 1", len(ins.rows))
	}
	rows, ok := ins.rows[0].([]*DecisionRow)
	if !ok || len(rows) != 1 {
		t.Fatalf("unexpected payload %T", ins.rows[0])
	}

	ins.err = errors.New("quota exceeded")
	if err := sink.Record(context.Background(), flaggedIncident()); err == nil {
		t.Error("expected error from inserter")
	}
	if err := sink.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

type mockPages struct {
	created []notionapi.Properties
	err     error
}

func (m *mockPages) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.created = append(m.created, properties)
	return &notionapi.Page{}, nil
}

func TestNotionSinkOnlyReviewable(t *testing.T) {
	pages := &mockPages{}
	sink := NewNotionSink(pages, "db-1")
	ctx := context.Background()

	completed := flaggedIncident()
	completed.Disposition = DispositionCompleted
	if err := sink.Record(ctx, completed); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if len(pages.created) != 0 {
		t.Fatal("completed transfers should not open review pages")
	}

	if err := sink.Record(ctx, flaggedIncident()); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if len(pages.created) != 1 {
		t.Fatalf("created %d pages, want 1", len(pages.created))
	}

	pages.err = errors.New("rate limited")
	if err := sink.Record(ctx, flaggedIncident()); err == nil {
		t.Error("expected error from Notion")
	}
}

func TestIncidentToNotionProperties(t *testing.T) {
	props := IncidentToNotionProperties(flaggedIncident())

	title, ok := props["Transaction"].(notionapi.TitleProperty)
	if !ok || title.Title[0].Text.Content != "random-stranger-acct 9000.00" {
		t.Errorf("Transaction title = %+v", props["Transaction"])
	}
	if score, ok := props["Risk Score"].(notionapi.NumberProperty); !ok || score.Number != 85 {
		t.Errorf("Risk Score = %+v", props["Risk Score"])
	}
	if sel, ok := props["Disposition"].(notionapi.SelectProperty); !ok || sel.Select.Name != "flagged" {
		t.Errorf("Disposition = %+v", props["Disposition"])
	}
	if _, ok := props["Decided"]; !ok {
		t.Error("Decided date missing")
	}

	inc := flaggedIncident()
	inc.Verdict = nil
	inc.Screen = screener.Result{}
	props = IncidentToNotionProperties(inc)
	for _, key := range []string{"Risk Score", "Risk Reason", "Screen Reasons"} {
		if _, ok := props[key]; ok {
			t.Errorf("%s should be omitted", key)
		}
	}
}

type failingSink struct{}

func (failingSink) Record(ctx context.Context, inc Incident) error {
	return errors.New("sink down")
}

func TestMultiSink(t *testing.T) {
	var buf bytes.Buffer
	ins := &mockInserter{}
	sink := MultiSink{
		NewLogSink(logger.NewWithWriter(&buf)),
		failingSink{},
		NewBigQuerySinkWithInserter(ins),
	}

	err := sink.Record(context.Background(), flaggedIncident())
	if err == nil || !strings.Contains(err.Error(), "sink down") {
		t.Errorf("Record error = %v, want sink down", err)
	}
	if len(ins.rows) != 1 {
		t.Error("a failing sink must not stop the others")
	}
	if !strings.Contains(buf.String(), "Risk decision") {
		t.Errorf("log output missing: %s", buf.String())
	}
}

func TestDecisionsTableMetadata(t *testing.T) {
	md, err := DecisionsTableMetadata()
	if err != nil {
		t.Fatalf("DecisionsTableMetadata() error = %v", err)
	}

	fields := make(map[string]*bigquery.FieldSchema)
	for _, f := range md.Schema {
		fields[f.Name] = f
	}

	tests := []struct {
		name     string
		typ      bigquery.FieldType
		repeated bool
	}{
		{"decision_id", bigquery.StringFieldType, false},
		{"amount", bigquery.NumericFieldType, false},
		{"screen_reasons", bigquery.StringFieldType, true},
		{"risk_score", bigquery.IntegerFieldType, false},
		{"decided_ts", bigquery.TimestampFieldType, false},
	}
	for _, tt := range tests {
		f, ok := fields[tt.name]
		if !ok {
			t.Errorf("field %s missing", tt.name)
			continue
		}
		if f.Type != tt.typ || f.Repeated != tt.repeated {
			t.Errorf("field %s = %s repeated=%v, want %s repeated=%v", tt.name, f.Type, f.Repeated, tt.typ, tt.repeated)
		}
	}
	if md.TimePartitioning == nil || md.TimePartitioning.Field != "decided_ts" {
		t.Errorf("TimePartitioning = %+v", md.TimePartitioning)
	}
}

func TestIsNotFound(t *testing.T) {
	if !isNotFound(fmt.Errorf("wrapped: %w", &googleapi.Error{Code: 404})) {
		t.Error("404 should be not found")
	}
	if isNotFound(&googleapi.Error{Code: 403}) || isNotFound(errors.New("other")) {
		t.Error("only 404 is not found")
	}
}
