// Package ledger holds the in-memory account and its append-only transaction
// ledger. It is the source of truth for balance and history.
package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dvloznov/securebank/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when no entry has the requested id.
	ErrNotFound = errors.New("transaction not found")
	// ErrDuplicateID is returned when appending an id that already exists.
	ErrDuplicateID = errors.New("duplicate transaction id")
	// ErrInvalidTransition is returned for a disallowed status change.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Account owns one ledger. Balance is never stored: it is folded from the
// initial balance and the settled entries on every read.
// Safe for concurrent use.
type Account struct {
	id      string
	initial decimal.Decimal

	mu      sync.RWMutex
	entries []domain.Transaction
	index   map[string]int
	gen     uint64
}

// NewAccount creates an empty account with the given opening balance.
func NewAccount(initialBalance decimal.Decimal) *Account {
	return &Account{
		id:      uuid.NewString(),
		initial: initialBalance,
		index:   make(map[string]int),
	}
}

// ID returns the account identifier.
func (a *Account) ID() string {
	return a.id
}

// InitialBalance returns the opening balance.
func (a *Account) InitialBalance() decimal.Decimal {
	return a.initial
}

// Append adds a transaction to the end of the ledger.
func (a *Account) Append(tx domain.Transaction) error {
	if tx.ID == "" {
		return fmt.Errorf("Append: transaction id is required")
	}
	if !tx.Status.Valid() {
		return fmt.Errorf("Append: unknown status %q", tx.Status)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.index[tx.ID]; exists {
		return fmt.Errorf("Append: %s: %w", tx.ID, ErrDuplicateID)
	}
	a.index[tx.ID] = len(a.entries)
	a.entries = append(a.entries, tx)
	return nil
}

// Get returns a copy of the entry with the given id.
func (a *Account) Get(id string) (domain.Transaction, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	i, ok := a.index[id]
	if !ok {
		return domain.Transaction{}, fmt.Errorf("Get: %s: %w", id, ErrNotFound)
	}
	return a.entries[i], nil
}

// List returns every entry, most recent first.
func (a *Account) List() []domain.Transaction {
	return a.Recent(0)
}

// Recent returns up to n entries, most recent first. n <= 0 means all.
func (a *Account) Recent(n int) []domain.Transaction {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if n <= 0 || n > len(a.entries) {
		n = len(a.entries)
	}
	out := make([]domain.Transaction, 0, n)
	for i := len(a.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, a.entries[i])
	}
	return out
}

// Len returns the number of entries.
func (a *Account) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.entries)
}

// SetCategory stores the category on the entry identified by id.
// It reports false when the entry does not exist. Writing the same value
// twice is harmless.
func (a *Account) SetCategory(id, category string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	i, ok := a.index[id]
	if !ok {
		return false
	}
	a.entries[i].Category = category
	return true
}

// SetCategoryIfGeneration is SetCategory guarded by the ledger generation
// observed when the work was scheduled. A Reset in between makes it a no-op.
func (a *Account) SetCategoryIfGeneration(id, category string, gen uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.gen != gen {
		return false
	}
	i, ok := a.index[id]
	if !ok {
		return false
	}
	a.entries[i].Category = category
	return true
}

// Resolve moves a Flagged entry to Completed or Failed after review.
func (a *Account) Resolve(id string, next domain.Status) (domain.Transaction, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	i, ok := a.index[id]
	if !ok {
		return domain.Transaction{}, fmt.Errorf("Resolve: %s: %w", id, ErrNotFound)
	}
	cur := a.entries[i]
	if cur.Status != domain.StatusFlagged || !cur.CanTransitionTo(next) {
		return cur, fmt.Errorf("Resolve: %s %s -> %s: %w", id, cur.Status, next, ErrInvalidTransition)
	}
	a.entries[i].Status = next
	return a.entries[i], nil
}

// Balance folds the initial balance with every settled entry.
func (a *Account) Balance() decimal.Decimal {
	a.mu.RLock()
	defer a.mu.RUnlock()

	bal := a.initial
	for _, tx := range a.entries {
		if tx.Status.Settled() {
			bal = bal.Add(tx.Signed())
		}
	}
	return bal
}

// Generation identifies the current ledger contents; it changes on Reset.
func (a *Account) Generation() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.gen
}

// Reset drops all entries. Only session teardown and tests call it.
func (a *Account) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.entries = nil
	a.index = make(map[string]int)
	a.gen++
}
