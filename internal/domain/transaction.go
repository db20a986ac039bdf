package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Direction says which way money moved relative to the account owner.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
)

// Status is the lifecycle state of a ledger entry.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusCompleted Status = "Completed"
	StatusFlagged   Status = "Flagged"
	StatusFailed    Status = "Failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Settled reports whether an entry in this status moves money.
// Flagged entries were committed despite a high risk score, so they count.
func (s Status) Settled() bool {
	return s == StatusCompleted || s == StatusFlagged
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFlagged, StatusFailed:
		return true
	}
	return false
}

// Transaction is one ledger entry. ID, Direction, Counterparty, Amount,
// Timestamp and Note never change after creation; Status and Category are
// updated in place by the ledger.
type Transaction struct {
	ID           string          `json:"id"`
	Direction    Direction       `json:"direction"`
	Counterparty string          `json:"counterparty"`
	Amount       decimal.Decimal `json:"amount"`
	Timestamp    time.Time       `json:"timestamp"`
	Note         string          `json:"note,omitempty"`
	Status       Status          `json:"status"`

	// Category is empty until the background categorizer has run.
	// "Other" is an explicit answer, not the absence of one.
	Category string `json:"category,omitempty"`

	// RiskScore and RiskReason are set only when the classifier was consulted.
	RiskScore  *int   `json:"riskScore,omitempty"`
	RiskReason string `json:"riskReason,omitempty"`
}

// NewTransaction builds a Pending transaction with a fresh id and timestamp.
func NewTransaction(dir Direction, counterparty string, amount decimal.Decimal, note string) Transaction {
	return Transaction{
		ID:           uuid.NewString(),
		Direction:    dir,
		Counterparty: counterparty,
		Amount:       amount,
		Timestamp:    time.Now().UTC(),
		Note:         note,
		Status:       StatusPending,
	}
}

// Signed returns the amount with outgoing entries negated.
func (t Transaction) Signed() decimal.Decimal {
	if t.Direction == DirectionOutgoing {
		return t.Amount.Neg()
	}
	return t.Amount
}

// CanTransitionTo reports whether the status change from t.Status to next is
// allowed. Pending resolves to anything; Flagged may only become Completed or
// Failed; Completed and Failed are final.
func (t Transaction) CanTransitionTo(next Status) bool {
	if !next.Valid() || next == StatusPending {
		return false
	}
	switch t.Status {
	case StatusPending:
		return true
	case StatusFlagged:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// WithVerdict copies the classifier's score and reason onto the transaction.
func (t Transaction) WithVerdict(v RiskVerdict) Transaction {
	score := v.RiskScore
	t.RiskScore = &score
	t.RiskReason = v.Reason
	return t
}

// CounterpartyLabel renders "to X" or "from X" for prompts and statements.
func (t Transaction) CounterpartyLabel() string {
	if t.Direction == DirectionIncoming {
		return "from " + t.Counterparty
	}
	return "to " + t.Counterparty
}
