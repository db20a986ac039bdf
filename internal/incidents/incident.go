// Package incidents records the disposition of every transfer that reached a
// terminal state, for audit and manual review.
package incidents

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/securebank/internal/domain"
	"github.com/dvloznov/securebank/internal/logger"
	"github.com/dvloznov/securebank/internal/screener"
	"github.com/rs/zerolog"
)

// Disposition is how a transfer ended.
type Disposition string

const (
	DispositionCompleted Disposition = "completed"
	DispositionFlagged   Disposition = "flagged"
	DispositionCancelled Disposition = "cancelled"
	DispositionRejected  Disposition = "rejected"
	// DispositionAbandoned is a blocked transfer released without a decision.
	DispositionAbandoned Disposition = "abandoned"
)

// NeedsReview reports whether a human should look at the incident: money
// moved despite a high score, or a high score stopped a transfer.
func (d Disposition) NeedsReview() bool {
	switch d {
	case DispositionFlagged, DispositionCancelled, DispositionAbandoned:
		return true
	}
	return false
}

// Incident is one risk decision.
type Incident struct {
	AccountID   string             `json:"accountId"`
	Transaction domain.Transaction `json:"transaction"`
	Screen      screener.Result    `json:"screen"`

	// Verdict is nil when the transfer was rejected before risk evaluation.
	Verdict     *domain.RiskVerdict `json:"verdict,omitempty"`
	Disposition Disposition         `json:"disposition"`

	// Reason carries the validation failure for rejected transfers.
	Reason     string    `json:"reason,omitempty"`
	RecordedAt time.Time `json:"recordedAt"`
}

// Sink persists incidents. Implementations must be safe for concurrent use.
type Sink interface {
	Record(ctx context.Context, inc Incident) error
}

// MultiSink fans an incident out to every sink and joins their errors.
type MultiSink []Sink

// Record implements Sink.
func (m MultiSink) Record(ctx context.Context, inc Incident) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, inc); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes incidents to a zerolog logger.
type LogSink struct {
	log zerolog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: logger.Component(log, "incidents")}
}

// Record implements Sink.
func (s *LogSink) Record(ctx context.Context, inc Incident) error {
	ev := s.log.Info()
	if inc.Disposition.NeedsReview() {
		ev = s.log.Warn()
	}
	ev = ev.
		Str("transaction_id", inc.Transaction.ID).
		Str("counterparty", inc.Transaction.Counterparty).
		Str("amount", inc.Transaction.Amount.String()).
		Str("disposition", string(inc.Disposition)).
		Bool("screen_suspicious", inc.Screen.Suspicious).
		Strs("screen_reasons", inc.Screen.Reasons)
	if inc.Verdict != nil {
		ev = ev.
			Int("risk_score", inc.Verdict.RiskScore).
			Bool("is_fraudulent", inc.Verdict.IsFraudulent).
			Str("risk_reason", inc.Verdict.Reason).
			Bool("degraded", inc.Verdict.Degraded)
	}
	if inc.Reason != "" {
		ev = ev.Str("reject_reason", inc.Reason)
	}
	ev.Msg("Risk decision")
	return nil
}
