package incidents

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
)

// DefaultDecisionsTable is the audit table inside the configured dataset.
const DefaultDecisionsTable = "risk_decisions"

// DecisionRow is one row in the risk_decisions table.
type DecisionRow struct {
	DecisionID    string `bigquery:"decision_id"`    // REQUIRED
	AccountID     string `bigquery:"account_id"`     // REQUIRED
	TransactionID string `bigquery:"transaction_id"` // REQUIRED

	Counterparty string              `bigquery:"counterparty"` // REQUIRED
	Amount       *big.Rat            `bigquery:"amount"`       // REQUIRED NUMERIC
	Direction    string              `bigquery:"direction"`    // REQUIRED
	Note         bigquery.NullString `bigquery:"note"`         // NULLABLE

	Status      string `bigquery:"status"`      // REQUIRED
	Disposition string `bigquery:"disposition"` // REQUIRED

	ScreenSuspicious bool                `bigquery:"screen_suspicious"`
	ScreenReasons    []string            `bigquery:"screen_reasons"` // REPEATED
	RiskScore        bigquery.NullInt64  `bigquery:"risk_score"`
	IsFraudulent     bigquery.NullBool   `bigquery:"is_fraudulent"`
	RiskReason       bigquery.NullString `bigquery:"risk_reason"`
	Degraded         bool                `bigquery:"degraded"`
	RejectReason     bigquery.NullString `bigquery:"reject_reason"`

	DecidedTS time.Time `bigquery:"decided_ts"` // REQUIRED
}

// ToDecisionRow maps an incident to its audit row.
func ToDecisionRow(inc Incident) *DecisionRow {
	tx := inc.Transaction
	row := &DecisionRow{
		DecisionID:       tx.ID + ":" + string(inc.Disposition),
		AccountID:        inc.AccountID,
		TransactionID:    tx.ID,
		Counterparty:     tx.Counterparty,
		Amount:           tx.Amount.Rat(),
		Direction:        string(tx.Direction),
		Status:           string(tx.Status),
		Disposition:      string(inc.Disposition),
		ScreenSuspicious: inc.Screen.Suspicious,
		ScreenReasons:    inc.Screen.Reasons,
		DecidedTS:        inc.RecordedAt,
	}
	if note := strings.TrimSpace(tx.Note); note != "" {
		row.Note = bigquery.NullString{StringVal: note, Valid: true}
	}
	if v := inc.Verdict; v != nil {
		row.RiskScore = bigquery.NullInt64{Int64: int64(v.RiskScore), Valid: true}
		row.IsFraudulent = bigquery.NullBool{Bool: v.IsFraudulent, Valid: true}
		row.RiskReason = bigquery.NullString{StringVal: v.Reason, Valid: true}
		row.Degraded = v.Degraded
	}
	if inc.Reason != "" {
		row.RejectReason = bigquery.NullString{StringVal: inc.Reason, Valid: true}
	}
	if row.DecidedTS.IsZero() {
		row.DecidedTS = time.Now().UTC()
	}
	return row
}

// RowInserter streams rows into a table; *bigquery.Inserter satisfies it.
type RowInserter interface {
	Put(ctx context.Context, src interface{}) error
}

// BigQuerySink streams one audit row per risk decision.
type BigQuerySink struct {
	client   *bigquery.Client
	inserter RowInserter
}

// NewBigQuerySink connects to projectID and targets dataset.risk_decisions.
func NewBigQuerySink(ctx context.Context, projectID, dataset string) (*BigQuerySink, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQuerySink: bigquery client: %w", err)
	}
	table := client.DatasetInProject(projectID, dataset).Table(DefaultDecisionsTable)
	return &BigQuerySink{client: client, inserter: table.Inserter()}, nil
}

// NewBigQuerySinkWithInserter builds a sink over an existing inserter.
func NewBigQuerySinkWithInserter(inserter RowInserter) *BigQuerySink {
	return &BigQuerySink{inserter: inserter}
}

// Record implements Sink.
func (s *BigQuerySink) Record(ctx context.Context, inc Incident) error {
	if err := s.inserter.Put(ctx, []*DecisionRow{ToDecisionRow(inc)}); err != nil {
		return fmt.Errorf("BigQuerySink.Record: inserting row: %w", err)
	}
	return nil
}

// Close releases the BigQuery client.
func (s *BigQuerySink) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
