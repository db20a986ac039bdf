package session

import (
	"fmt"
	"time"

	"github.com/dvloznov/securebank/internal/domain"
	"github.com/dvloznov/securebank/internal/ledger"
	"github.com/shopspring/decimal"
)

type seedEntry struct {
	daysAgo      int
	direction    domain.Direction
	counterparty string
	amount       string
	category     string
}

// demoHistory is loaded into every new account, oldest first.
var demoHistory = []seedEntry{
	{4, domain.DirectionOutgoing, "Amazon Purchase", "6266.50", "Shopping"},
	{3, domain.DirectionIncoming, "Salary Deposit", "207500.00", "Income"},
	{2, domain.DirectionOutgoing, "Starbucks", "373.50", "Food & Drink"},
	{1, domain.DirectionOutgoing, "Spotify Subscription", "829.17", "Entertainment"},
}

// seedAccount appends the demo history as completed, categorized entries.
func seedAccount(acc *ledger.Account, now time.Time) error {
	for _, s := range demoHistory {
		tx := domain.NewTransaction(s.direction, s.counterparty, decimal.RequireFromString(s.amount), "")
		tx.Timestamp = now.AddDate(0, 0, -s.daysAgo)
		tx.Status = domain.StatusCompleted
		tx.Category = s.category
		if err := acc.Append(tx); err != nil {
			return fmt.Errorf("seedAccount: %w", err)
		}
	}
	return nil
}
