// Package transfer runs the outgoing transfer state machine: validation,
// local screening, risk assessment, optional user confirmation and commit.
package transfer

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dvloznov/securebank/internal/domain"
	"github.com/dvloznov/securebank/internal/incidents"
	"github.com/dvloznov/securebank/internal/ledger"
	"github.com/dvloznov/securebank/internal/logger"
	"github.com/dvloznov/securebank/internal/metrics"
	"github.com/dvloznov/securebank/internal/screener"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// State is the orchestrator's position in the transfer lifecycle.
type State string

const (
	StateDraft       State = "draft"
	StateValidating  State = "validating"
	StateRiskPending State = "risk_pending"
	StateBlocked     State = "blocked"
	StateCommitted   State = "committed"
	StateRejected    State = "rejected"
)

// busy reports whether a new submission must wait.
func (s State) busy() bool {
	return s == StateValidating || s == StateRiskPending || s == StateBlocked
}

const (
	// DefaultBlockThreshold holds transfers scoring strictly above it.
	DefaultBlockThreshold = 60
	// DefaultHistoryWindow is how many recent entries go with a risk request.
	DefaultHistoryWindow = 5
)

// RiskAssessor scores a pending transfer. It must not fail: an unavailable
// classifier answers with domain.DefaultVerdict().
type RiskAssessor interface {
	AssessRisk(ctx context.Context, candidate domain.Transaction, history []domain.Transaction) domain.RiskVerdict
}

// Categorizer schedules background categorization of a committed entry.
type Categorizer interface {
	CategorizeAsync(ctx context.Context, tx domain.Transaction) (bool, error)
}

// Options configures an Orchestrator. Zero values fall back to defaults,
// so a usable BlockThreshold is 1..100.
type Options struct {
	BlockThreshold int
	HistoryWindow  int
}

// Outcome is what the caller sees after Submit or Confirm.
type Outcome struct {
	State       State              `json:"state"`
	Transaction domain.Transaction `json:"transaction"`
	// Verdict is nil when the transfer never reached risk evaluation.
	Verdict              *domain.RiskVerdict `json:"verdict,omitempty"`
	Screen               screener.Result     `json:"screen"`
	RequiresConfirmation bool                `json:"requiresConfirmation"`
	Balance              decimal.Decimal     `json:"balance"`
}

type pendingTransfer struct {
	tx      domain.Transaction
	verdict domain.RiskVerdict
	screen  screener.Result
}

// Orchestrator serializes transfers for one account. At most one transfer is
// in flight; its lock is released while the classifier is consulted.
type Orchestrator struct {
	account     *ledger.Account
	screener    *screener.Screener
	assessor    RiskAssessor
	categorizer Categorizer
	sink        incidents.Sink
	threshold   int
	window      int
	log         zerolog.Logger

	mu      sync.Mutex
	state   State
	pending *pendingTransfer
}

// New wires an Orchestrator. categorizer and sink may be nil.
func New(account *ledger.Account, scr *screener.Screener, assessor RiskAssessor, categorizer Categorizer, sink incidents.Sink, opts Options, log zerolog.Logger) *Orchestrator {
	if opts.BlockThreshold <= 0 {
		opts.BlockThreshold = DefaultBlockThreshold
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = DefaultHistoryWindow
	}
	if scr == nil {
		scr = screener.New(screener.Config{})
	}
	return &Orchestrator{
		account:     account,
		screener:    scr,
		assessor:    assessor,
		categorizer: categorizer,
		sink:        sink,
		threshold:   opts.BlockThreshold,
		window:      opts.HistoryWindow,
		log:         logger.Component(log, "transfer"),
		state:       StateDraft,
	}
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Pending returns the blocked transfer awaiting confirmation, if any.
func (o *Orchestrator) Pending() (Outcome, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateBlocked || o.pending == nil {
		return Outcome{}, false
	}
	v := o.pending.verdict
	return Outcome{
		State:                StateBlocked,
		Transaction:          o.pending.tx,
		Verdict:              &v,
		Screen:               o.pending.screen,
		RequiresConfirmation: true,
		Balance:              o.account.Balance(),
	}, true
}

// validate checks the request against the current balance.
func (o *Orchestrator) validate(req domain.TransferRequest) error {
	if strings.TrimSpace(req.Counterparty) == "" {
		return NewValidationError(ReasonEmptyRecipient)
	}
	if req.Amount.Sign() <= 0 {
		return NewValidationError(ReasonInvalidAmount)
	}
	if req.Amount.GreaterThan(o.account.Balance()) {
		return NewValidationError(ReasonInsufficientFunds)
	}
	return nil
}

// Submit starts a transfer. A *ValidationError means it was rejected before
// risk evaluation; a blocked transfer returns an Outcome with
// RequiresConfirmation set and no error.
func (o *Orchestrator) Submit(ctx context.Context, req domain.TransferRequest) (Outcome, error) {
	o.mu.Lock()
	if o.state.busy() {
		o.mu.Unlock()
		return Outcome{}, ErrTransferInProgress
	}
	o.state = StateValidating

	if err := o.validate(req); err != nil {
		o.state = StateRejected
		balance := o.account.Balance()
		o.mu.Unlock()
		return o.reject(ctx, req, err, balance)
	}

	tx := domain.NewTransaction(domain.DirectionOutgoing, strings.TrimSpace(req.Counterparty), req.Amount, strings.TrimSpace(req.Note))
	screen := o.screener.Screen(tx)
	if screen.Suspicious {
		metrics.ScreenerHitsTotal.Inc()
		o.log.Info().Str("transaction_id", tx.ID).Strs("reasons", screen.Reasons).Msg("Screener marked transfer suspicious")
	}
	history := o.account.Recent(o.window)
	o.state = StateRiskPending
	o.mu.Unlock()

	// Detached from the caller: a dropped request must not degrade the
	// verdict. The adapter's own timeout still bounds the call.
	verdict := o.assessor.AssessRisk(context.WithoutCancel(ctx), tx, history)
	metrics.RiskScore.Observe(float64(verdict.RiskScore))
	tx = tx.WithVerdict(verdict)

	o.mu.Lock()
	if verdict.RiskScore > o.threshold {
		o.state = StateBlocked
		o.pending = &pendingTransfer{tx: tx, verdict: verdict, screen: screen}
		balance := o.account.Balance()
		o.mu.Unlock()

		metrics.TransfersTotal.WithLabelValues("blocked").Inc()
		o.log.Warn().
			Str("transaction_id", tx.ID).
			Int("risk_score", verdict.RiskScore).
			Str("reason", verdict.Reason).
			Msg("Transfer blocked pending confirmation")
		return Outcome{
			State:                StateBlocked,
			Transaction:          tx,
			Verdict:              &verdict,
			Screen:               screen,
			RequiresConfirmation: true,
			Balance:              balance,
		}, nil
	}

	return o.commitLocked(ctx, pendingTransfer{tx: tx, verdict: verdict, screen: screen}, domain.StatusCompleted)
}

// Confirm settles the blocked transfer. proceed commits it as Flagged;
// otherwise it is recorded as Failed and the balance is untouched.
func (o *Orchestrator) Confirm(ctx context.Context, proceed bool) (Outcome, error) {
	o.mu.Lock()
	if o.state != StateBlocked || o.pending == nil {
		o.mu.Unlock()
		return Outcome{}, ErrNoBlockedTransfer
	}
	p := *o.pending
	o.pending = nil

	if proceed {
		return o.commitLocked(ctx, p, domain.StatusFlagged)
	}

	tx := p.tx
	tx.Status = domain.StatusFailed
	if err := o.account.Append(tx); err != nil {
		o.state = StateRejected
		o.mu.Unlock()
		return Outcome{}, err
	}
	o.state = StateRejected
	balance := o.account.Balance()
	o.mu.Unlock()

	metrics.TransfersTotal.WithLabelValues("cancelled").Inc()
	o.log.Info().Str("transaction_id", tx.ID).Msg("Blocked transfer cancelled by user")
	o.record(ctx, incidents.Incident{
		Transaction: tx,
		Screen:      p.screen,
		Verdict:     &p.verdict,
		Disposition: incidents.DispositionCancelled,
	})

	return Outcome{
		State:       StateRejected,
		Transaction: tx,
		Verdict:     &p.verdict,
		Screen:      p.screen,
		Balance:     balance,
	}, nil
}

// Abandon releases a blocked transfer without a ledger entry. It reports
// whether anything was released.
func (o *Orchestrator) Abandon() bool {
	o.mu.Lock()
	if o.state != StateBlocked || o.pending == nil {
		o.mu.Unlock()
		return false
	}
	p := *o.pending
	o.pending = nil
	o.state = StateDraft
	o.mu.Unlock()

	metrics.TransfersTotal.WithLabelValues("abandoned").Inc()
	o.log.Info().Str("transaction_id", p.tx.ID).Msg("Blocked transfer abandoned")
	o.record(context.Background(), incidents.Incident{
		Transaction: p.tx,
		Screen:      p.screen,
		Verdict:     &p.verdict,
		Disposition: incidents.DispositionAbandoned,
	})
	return true
}

// commitLocked appends p with status and unlocks o.mu. The balance is
// checked again because it may have moved since validation.
func (o *Orchestrator) commitLocked(ctx context.Context, p pendingTransfer, status domain.Status) (Outcome, error) {
	tx := p.tx
	if tx.Amount.GreaterThan(o.account.Balance()) {
		o.state = StateRejected
		balance := o.account.Balance()
		o.mu.Unlock()
		return o.reject(ctx, domain.TransferRequest{Counterparty: tx.Counterparty, Amount: tx.Amount, Note: tx.Note},
			NewValidationError(ReasonInsufficientFunds), balance)
	}

	tx.Status = status
	if err := o.account.Append(tx); err != nil {
		o.state = StateRejected
		o.mu.Unlock()
		return Outcome{}, err
	}
	o.state = StateCommitted
	balance := o.account.Balance()
	o.mu.Unlock()

	disposition := incidents.DispositionCompleted
	outcome := "committed"
	if status == domain.StatusFlagged {
		disposition = incidents.DispositionFlagged
		outcome = "flagged"
	}
	metrics.TransfersTotal.WithLabelValues(outcome).Inc()
	o.log.Info().
		Str("transaction_id", tx.ID).
		Str("status", string(tx.Status)).
		Str("amount", tx.Amount.String()).
		Int("risk_score", p.verdict.RiskScore).
		Bool("degraded", p.verdict.Degraded).
		Msg("Transfer committed")

	if status == domain.StatusCompleted && o.categorizer != nil {
		if _, err := o.categorizer.CategorizeAsync(context.WithoutCancel(ctx), tx); err != nil {
			o.log.Warn().Err(err).Str("transaction_id", tx.ID).Msg("Failed to schedule categorization")
		}
	}

	o.record(ctx, incidents.Incident{
		Transaction: tx,
		Screen:      p.screen,
		Verdict:     &p.verdict,
		Disposition: disposition,
	})

	return Outcome{
		State:       StateCommitted,
		Transaction: tx,
		Verdict:     &p.verdict,
		Screen:      p.screen,
		Balance:     balance,
	}, nil
}

func (o *Orchestrator) reject(ctx context.Context, req domain.TransferRequest, err error, balance decimal.Decimal) (Outcome, error) {
	metrics.TransfersTotal.WithLabelValues("rejected").Inc()
	o.log.Info().Err(err).Str("counterparty", req.Counterparty).Msg("Transfer rejected")

	reason := err.Error()
	if ve, ok := IsValidation(err); ok {
		reason = string(ve.Reason)
	}
	tx := domain.NewTransaction(domain.DirectionOutgoing, strings.TrimSpace(req.Counterparty), req.Amount, strings.TrimSpace(req.Note))
	tx.Status = domain.StatusFailed
	o.record(ctx, incidents.Incident{
		Transaction: tx,
		Disposition: incidents.DispositionRejected,
		Reason:      reason,
	})

	return Outcome{State: StateRejected, Balance: balance}, err
}

// record hands inc to the sink. Failures are logged, never returned.
func (o *Orchestrator) record(ctx context.Context, inc incidents.Incident) {
	if o.sink == nil {
		return
	}
	inc.AccountID = o.account.ID()
	inc.RecordedAt = time.Now().UTC()
	if err := o.sink.Record(context.WithoutCancel(ctx), inc); err != nil {
		o.log.Warn().Err(err).Str("transaction_id", inc.Transaction.ID).Msg("Failed to record incident")
	}
}
