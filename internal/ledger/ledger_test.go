package ledger

import (
	"errors"
	"sync"
	"testing"

	"github.com/dvloznov/securebank/internal/domain"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTx(dir domain.Direction, amount string, status domain.Status) domain.Transaction {
	tx := domain.NewTransaction(dir, "someone", dec(amount), "")
	tx.Status = status
	return tx
}

func TestAppendAndList(t *testing.T) {
	acc := NewAccount(dec("1000"))

	first := newTx(domain.DirectionOutgoing, "10", domain.StatusCompleted)
	second := newTx(domain.DirectionIncoming, "20", domain.StatusCompleted)
	for _, tx := range []domain.Transaction{first, second} {
		if err := acc.Append(tx); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	list := acc.List()
	if len(list) != 2 {
		t.Fatalf("List len = %d, want 2", len(list))
	}
	if list[0].ID != second.ID || list[1].ID != first.ID {
		t.Error("List must be most-recent-first")
	}

	recent := acc.Recent(1)
	if len(recent) != 1 || recent[0].ID != second.ID {
		t.Errorf("Recent(1) = %+v", recent)
	}
}

func TestAppendRejectsDuplicatesAndBadInput(t *testing.T) {
	acc := NewAccount(dec("100"))
	tx := newTx(domain.DirectionOutgoing, "1", domain.StatusCompleted)

	if err := acc.Append(tx); err != nil {
		t.Fatalf("first Append failed: %v", err)
	}
	if err := acc.Append(tx); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID, got %v", err)
	}
	if err := acc.Append(domain.Transaction{Status: domain.StatusCompleted}); err == nil {
		t.Error("expected error for missing id")
	}
	bad := newTx(domain.DirectionOutgoing, "1", domain.Status("Lost"))
	if err := acc.Append(bad); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestBalanceFoldsSettledEntriesOnly(t *testing.T) {
	acc := NewAccount(dec("1000"))
	entries := []domain.Transaction{
		newTx(domain.DirectionOutgoing, "100", domain.StatusCompleted),
		newTx(domain.DirectionOutgoing, "200", domain.StatusFlagged),
		newTx(domain.DirectionOutgoing, "300", domain.StatusFailed),
		newTx(domain.DirectionIncoming, "50.25", domain.StatusCompleted),
		newTx(domain.DirectionIncoming, "75", domain.StatusFailed),
	}
	for _, tx := range entries {
		if err := acc.Append(tx); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	if got, want := acc.Balance(), dec("750.25"); !got.Equal(want) {
		t.Errorf("Balance() = %s, want %s", got, want)
	}
}

func TestResolveFlagged(t *testing.T) {
	acc := NewAccount(dec("1000"))
	flagged := newTx(domain.DirectionOutgoing, "400", domain.StatusFlagged)
	completed := newTx(domain.DirectionOutgoing, "100", domain.StatusCompleted)
	_ = acc.Append(flagged)
	_ = acc.Append(completed)

	got, err := acc.Resolve(flagged.ID, domain.StatusFailed)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got.Status != domain.StatusFailed {
		t.Errorf("status = %s, want Failed", got.Status)
	}
	if !acc.Balance().Equal(dec("900")) {
		t.Errorf("Balance after failing flagged entry = %s, want 900", acc.Balance())
	}

	if _, err := acc.Resolve(completed.ID, domain.StatusFailed); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for completed entry, got %v", err)
	}
	if _, err := acc.Resolve(flagged.ID, domain.StatusCompleted); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for failed entry, got %v", err)
	}
	if _, err := acc.Resolve("missing", domain.StatusCompleted); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSetCategory(t *testing.T) {
	acc := NewAccount(dec("100"))
	tx := newTx(domain.DirectionOutgoing, "10", domain.StatusCompleted)
	_ = acc.Append(tx)

	for i := 0; i < 2; i++ {
		if !acc.SetCategory(tx.ID, "Utilities") {
			t.Fatal("SetCategory returned false for existing entry")
		}
	}
	got, _ := acc.Get(tx.ID)
	if got.Category != "Utilities" {
		t.Errorf("Category = %q, want Utilities", got.Category)
	}
	if acc.SetCategory("missing", "Utilities") {
		t.Error("SetCategory must report false for a missing entry")
	}
}

func TestResetInvalidatesGeneration(t *testing.T) {
	acc := NewAccount(dec("100"))
	tx := newTx(domain.DirectionOutgoing, "10", domain.StatusCompleted)
	_ = acc.Append(tx)
	gen := acc.Generation()

	acc.Reset()
	if acc.Len() != 0 {
		t.Errorf("Len after Reset = %d", acc.Len())
	}
	if !acc.Balance().Equal(dec("100")) {
		t.Errorf("Balance after Reset = %s", acc.Balance())
	}

	// Re-appending the same id after a reset must not revive a stale write.
	_ = acc.Append(tx)
	if acc.SetCategoryIfGeneration(tx.ID, "Shopping", gen) {
		t.Error("stale generation write must be a no-op")
	}
	if !acc.SetCategoryIfGeneration(tx.ID, "Shopping", acc.Generation()) {
		t.Error("current generation write must succeed")
	}
}

func TestConcurrentReadersAndCategoryWriter(t *testing.T) {
	acc := NewAccount(dec("10000"))
	var ids []string
	for i := 0; i < 50; i++ {
		tx := newTx(domain.DirectionOutgoing, "1", domain.StatusCompleted)
		ids = append(ids, tx.ID)
		_ = acc.Append(tx)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for _, id := range ids {
			acc.SetCategory(id, "Other")
		}
	}()
	go func() {
		defer wg.Done()
		for range ids {
			_ = acc.Balance()
			_ = acc.List()
		}
	}()
	wg.Wait()

	if !acc.Balance().Equal(dec("9950")) {
		t.Errorf("Balance = %s, want 9950", acc.Balance())
	}
}
