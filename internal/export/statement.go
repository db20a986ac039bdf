// Package export writes account statements to Google Cloud Storage.
package export

import (
	"time"

	"github.com/dvloznov/securebank/internal/domain"
	"github.com/dvloznov/securebank/internal/insights"
	"github.com/shopspring/decimal"
)

// Statement is a point-in-time snapshot of an account.
type Statement struct {
	AccountID      string                 `json:"accountId"`
	GeneratedAt    time.Time              `json:"generatedAt"`
	Currency       string                 `json:"currency"`
	OpeningBalance decimal.Decimal        `json:"openingBalance"`
	ClosingBalance decimal.Decimal        `json:"closingBalance"`
	TotalIn        decimal.Decimal        `json:"totalIn"`
	TotalOut       decimal.Decimal        `json:"totalOut"`
	Flagged        int                    `json:"flagged"`
	Breakdown      []domain.CategoryTotal `json:"breakdown"`
	Transactions   []domain.Transaction   `json:"transactions"`
}

// BuildStatement summarizes txs (most recent first). Only settled entries
// count toward the totals; failed ones are listed but move no money.
func BuildStatement(accountID, currency string, opening, closing decimal.Decimal, txs []domain.Transaction, now time.Time) Statement {
	st := Statement{
		AccountID:      accountID,
		GeneratedAt:    now.UTC(),
		Currency:       currency,
		OpeningBalance: opening,
		ClosingBalance: closing,
		TotalIn:        decimal.Zero,
		TotalOut:       decimal.Zero,
		Breakdown:      insights.Aggregate(txs),
		Transactions:   txs,
	}
	if st.Transactions == nil {
		st.Transactions = []domain.Transaction{}
	}

	for _, t := range txs {
		if t.Status == domain.StatusFlagged {
			st.Flagged++
		}
		if !t.Status.Settled() {
			continue
		}
		if t.Direction == domain.DirectionIncoming {
			st.TotalIn = st.TotalIn.Add(t.Amount)
		} else {
			st.TotalOut = st.TotalOut.Add(t.Amount)
		}
	}
	return st
}
