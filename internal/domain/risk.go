package domain

import "github.com/shopspring/decimal"

// ReasonClassifierUnavailable marks a verdict produced without the external
// classifier.
const ReasonClassifierUnavailable = "classifier unavailable"

// RiskVerdict is the result of one risk evaluation. It is never cached.
type RiskVerdict struct {
	RiskScore    int    `json:"riskScore"`
	IsFraudulent bool   `json:"isFraudulent"`
	Reason       string `json:"reason"`

	// Degraded is true when the verdict is the conservative default.
	Degraded bool `json:"degraded"`
}

// DefaultVerdict is returned whenever the classifier cannot answer.
// Its score sits below the block threshold so the transfer proceeds,
// while the reason records that no real assessment happened.
func DefaultVerdict() RiskVerdict {
	return RiskVerdict{
		RiskScore:    50,
		IsFraudulent: false,
		Reason:       ReasonClassifierUnavailable,
		Degraded:     true,
	}
}

// TransferRequest is what the user submits from the transfer form.
type TransferRequest struct {
	Counterparty string          `json:"counterparty"`
	Amount       decimal.Decimal `json:"amount"`
	Note         string          `json:"note,omitempty"`
}

// CategoryTotal is one row of the spending breakdown.
type CategoryTotal struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
}
