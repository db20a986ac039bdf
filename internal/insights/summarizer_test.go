package insights

import (
	"context"
	"sync"
	"testing"

	"github.com/dvloznov/securebank/internal/domain"
	"github.com/dvloznov/securebank/internal/jobs"
	"github.com/dvloznov/securebank/internal/ledger"
	"github.com/dvloznov/securebank/internal/logger"
	"github.com/shopspring/decimal"
)

type mockCategorizer struct {
	mu    sync.Mutex
	label string
	calls int
	// before runs ahead of returning the label.
	before func()
}

func (m *mockCategorizer) Categorize(ctx context.Context, tx domain.Transaction) string {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.before != nil {
		m.before()
	}
	return m.label
}

// recordingPublisher keeps published jobs instead of running them.
type recordingPublisher struct {
	jobs []*jobs.CategorizeJob
}

func (p *recordingPublisher) PublishCategorize(ctx context.Context, job *jobs.CategorizeJob) error {
	job.JobID = "job-" + job.TransactionID
	p.jobs = append(p.jobs, job)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type staticTips string

func (s staticTips) SummarizeTip(ctx context.Context, txs []domain.Transaction) string {
	return string(s)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func entry(dir domain.Direction, amount string, status domain.Status, category string) domain.Transaction {
	tx := domain.NewTransaction(dir, "someone", dec(amount), "")
	tx.Status = status
	tx.Category = category
	return tx
}

func setup(label string) (*ledger.Account, *mockCategorizer, *recordingPublisher, *Summarizer) {
	acc := ledger.NewAccount(dec("10000"))
	cat := &mockCategorizer{label: label}
	pub := &recordingPublisher{}
	return acc, cat, pub, NewSummarizer(acc, cat, staticTips("save more"), pub, logger.Nop())
}

func TestCategorizeAsyncOnlyCompletedOutgoing(t *testing.T) {
	_, _, pub, s := setup("Utilities")
	ctx := context.Background()

	tests := []struct {
		name string
		tx   domain.Transaction
		want bool
	}{
		{"completed outgoing", entry(domain.DirectionOutgoing, "45", domain.StatusCompleted, ""), true},
		{"flagged outgoing", entry(domain.DirectionOutgoing, "9000", domain.StatusFlagged, ""), false},
		{"failed outgoing", entry(domain.DirectionOutgoing, "9000", domain.StatusFailed, ""), false},
		{"completed incoming", entry(domain.DirectionIncoming, "100", domain.StatusCompleted, ""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.CategorizeAsync(ctx, tt.tx)
			if err != nil {
				t.Fatalf("CategorizeAsync failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("CategorizeAsync() = %v, want %v", got, tt.want)
			}
		})
	}
	if len(pub.jobs) != 1 {
		t.Errorf("published %d jobs, want 1", len(pub.jobs))
	}
}

func TestHandleJobIsIdempotent(t *testing.T) {
	acc, cat, pub, s := setup("Utilities")
	ctx := context.Background()

	tx := entry(domain.DirectionOutgoing, "45", domain.StatusCompleted, "")
	_ = acc.Append(tx)
	_, _ = s.CategorizeAsync(ctx, tx)

	for i := 0; i < 3; i++ {
		if err := s.HandleJob(ctx, pub.jobs[0]); err != nil {
			t.Fatalf("HandleJob failed: %v", err)
		}
		got, _ := acc.Get(tx.ID)
		if got.Category != "Utilities" {
			t.Fatalf("run %d: Category = %q, want Utilities", i, got.Category)
		}
	}
	if cat.calls != 3 {
		t.Errorf("categorizer calls = %d, want 3", cat.calls)
	}
	if pub.jobs[0].Result != "Utilities" {
		t.Errorf("job result = %q", pub.jobs[0].Result)
	}
}

func TestHandleJobAfterResetIsNoop(t *testing.T) {
	acc, _, pub, s := setup("Shopping")
	ctx := context.Background()

	tx := entry(domain.DirectionOutgoing, "45", domain.StatusCompleted, "")
	_ = acc.Append(tx)
	_, _ = s.CategorizeAsync(ctx, tx)

	acc.Reset()
	if err := s.HandleJob(ctx, pub.jobs[0]); err != nil {
		t.Fatalf("HandleJob failed: %v", err)
	}
	if acc.Len() != 0 {
		t.Error("HandleJob must not recreate entries")
	}
}

func TestHandleJobResetDuringClassification(t *testing.T) {
	acc, cat, pub, s := setup("Shopping")
	ctx := context.Background()

	tx := entry(domain.DirectionOutgoing, "45", domain.StatusCompleted, "")
	_ = acc.Append(tx)
	_, _ = s.CategorizeAsync(ctx, tx)

	// The ledger is reset and the same id re-appended while the classifier
	// is still thinking; the stale answer must not land.
	cat.before = func() {
		acc.Reset()
		_ = acc.Append(tx)
	}
	if err := s.HandleJob(ctx, pub.jobs[0]); err != nil {
		t.Fatalf("HandleJob failed: %v", err)
	}
	got, _ := acc.Get(tx.ID)
	if got.Category != "" {
		t.Errorf("Category = %q, want empty after reset", got.Category)
	}
}

func TestHandleJobRejectsUnknownType(t *testing.T) {
	_, _, _, s := setup("Other")
	if err := s.HandleJob(context.Background(), nil); err == nil {
		t.Error("expected error for unknown job type")
	}
}

func TestAggregate(t *testing.T) {
	txs := []domain.Transaction{
		entry(domain.DirectionOutgoing, "100", domain.StatusCompleted, "Shopping"),
		entry(domain.DirectionOutgoing, "50", domain.StatusCompleted, "Shopping"),
		entry(domain.DirectionOutgoing, "120", domain.StatusCompleted, "Housing"),
		entry(domain.DirectionOutgoing, "30", domain.StatusCompleted, ""),
		entry(domain.DirectionOutgoing, "20", domain.StatusFlagged, ""),
		entry(domain.DirectionOutgoing, "999", domain.StatusFailed, "Shopping"),
		entry(domain.DirectionIncoming, "5000", domain.StatusCompleted, "Income"),
		entry(domain.DirectionOutgoing, "50", domain.StatusCompleted, "Utilities"),
	}

	got := Aggregate(txs)
	want := []domain.CategoryTotal{
		{Category: "Shopping", Total: dec("150")},
		{Category: "Housing", Total: dec("120")},
		{Category: "Other", Total: dec("50")},
		{Category: "Utilities", Total: dec("50")},
	}

	if len(got) != len(want) {
		t.Fatalf("Aggregate() = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i].Category != want[i].Category || !got[i].Total.Equal(want[i].Total) {
			t.Errorf("row %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	if len(Aggregate(nil)) != 0 {
		t.Error("Aggregate(nil) must be empty")
	}
}

func TestBreakdownAndTip(t *testing.T) {
	acc, _, _, s := setup("Other")
	_ = acc.Append(entry(domain.DirectionOutgoing, "10", domain.StatusCompleted, "Health"))

	rows := s.Breakdown()
	if len(rows) != 1 || rows[0].Category != "Health" {
		t.Errorf("Breakdown() = %+v", rows)
	}
	if tip := s.Tip(context.Background()); tip != "save more" {
		t.Errorf("Tip() = %q", tip)
	}
}
