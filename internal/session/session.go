package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/securebank/internal/assistant"
	"github.com/dvloznov/securebank/internal/classifier"
	"github.com/dvloznov/securebank/internal/domain"
	"github.com/dvloznov/securebank/internal/export"
	"github.com/dvloznov/securebank/internal/insights"
	"github.com/dvloznov/securebank/internal/jobs"
	"github.com/dvloznov/securebank/internal/jobs/inmemory"
	"github.com/dvloznov/securebank/internal/ledger"
	"github.com/dvloznov/securebank/internal/transfer"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const jobBufferSize = 100

// Session is one logged-in user's view of the bank.
type Session struct {
	username string
	currency string

	account    *ledger.Account
	classifier *classifier.Adapter
	summarizer *insights.Summarizer
	transfers  *transfer.Orchestrator
	assistant  *assistant.Assistant
	exporter   *export.Exporter
	jobStore   *inmemory.Store
	queue      *inmemory.Queue
	cancel     context.CancelFunc
	log        zerolog.Logger

	mu   sync.Mutex
	view View
}

func newSession(opts Options, deps Deps, log zerolog.Logger, now time.Time) (*Session, error) {
	account := ledger.NewAccount(opts.InitialBalance)
	if opts.SeedDemoData {
		if err := seedAccount(account, now); err != nil {
			return nil, err
		}
	}
	log = log.With().Str("account_id", account.ID()).Logger()

	store := inmemory.NewStore()
	queue := inmemory.NewQueue(jobBufferSize, store,
		inmemory.WithWorkers(opts.Workers),
		inmemory.WithLogger(log),
	)
	summarizer := insights.NewSummarizer(account, deps.Classifier, deps.Classifier, queue, log)

	// Workers outlive the login request; Logout cancels them.
	workerCtx, cancel := context.WithCancel(context.Background())
	if err := queue.Start(workerCtx, summarizer.HandleJob); err != nil {
		cancel()
		return nil, fmt.Errorf("newSession: start workers: %w", err)
	}

	return &Session{
		username:   opts.Username,
		currency:   opts.Currency,
		account:    account,
		classifier: deps.Classifier,
		summarizer: summarizer,
		transfers: transfer.New(account, deps.Screener, deps.Classifier, summarizer, deps.Sink,
			transfer.Options{BlockThreshold: opts.BlockThreshold, HistoryWindow: opts.HistoryWindow}, log),
		assistant: assistant.New(account, deps.Classifier, opts.Currency, log),
		exporter:  deps.Exporter,
		jobStore:  store,
		queue:     queue,
		cancel:    cancel,
		log:       log,
		view:      ViewDashboard,
	}, nil
}

// close stops background work and discards the ledger.
func (s *Session) close(ctx context.Context) error {
	s.transfers.Abandon()
	s.cancel()
	err := s.queue.Stop(ctx)
	s.account.Reset()
	s.assistant.Reset()
	return err
}

// AccountID identifies the session's account.
func (s *Session) AccountID() string { return s.account.ID() }

// Username is the logged-in user.
func (s *Session) Username() string { return s.username }

// Currency is the display currency code.
func (s *Session) Currency() string { return s.currency }

// SubmitTransfer starts an outgoing transfer.
func (s *Session) SubmitTransfer(ctx context.Context, req domain.TransferRequest) (transfer.Outcome, error) {
	return s.transfers.Submit(ctx, req)
}

// ConfirmBlockedTransfer settles the transfer awaiting confirmation.
func (s *Session) ConfirmBlockedTransfer(ctx context.Context, proceed bool) (transfer.Outcome, error) {
	return s.transfers.Confirm(ctx, proceed)
}

// PendingTransfer returns the blocked transfer, if any.
func (s *Session) PendingTransfer() (transfer.Outcome, bool) {
	return s.transfers.Pending()
}

// AbandonPendingTransfer releases a blocked transfer without touching the ledger.
func (s *Session) AbandonPendingTransfer() bool {
	return s.transfers.Abandon()
}

// TransferState is the orchestrator's current state.
func (s *Session) TransferState() transfer.State {
	return s.transfers.State()
}

// ListTransactions returns the ledger, most recent first.
func (s *Session) ListTransactions() []domain.Transaction {
	return s.account.List()
}

// GetBalance returns the derived balance.
func (s *Session) GetBalance() decimal.Decimal {
	return s.account.Balance()
}

// GetSpendingBreakdown aggregates spending by category.
func (s *Session) GetSpendingBreakdown() []domain.CategoryTotal {
	return s.summarizer.Breakdown()
}

// FinancialTip returns a personalized tip.
func (s *Session) FinancialTip(ctx context.Context) string {
	return s.summarizer.Tip(ctx)
}

// ScanForFraud reviews the whole ledger as one batch.
func (s *Session) ScanForFraud(ctx context.Context) classifier.ScanResult {
	return s.classifier.DetectSuspicious(ctx, s.account.List())
}

// Ask forwards a question to the banking assistant.
func (s *Session) Ask(ctx context.Context, question string) (string, error) {
	return s.assistant.Ask(ctx, question)
}

// ChatTranscript returns the assistant conversation so far.
func (s *Session) ChatTranscript() []classifier.Message {
	return s.assistant.History()
}

// ExportStatement uploads a statement of the current ledger.
func (s *Session) ExportStatement(ctx context.Context) (string, error) {
	if s.exporter == nil {
		return "", ErrExportDisabled
	}
	st := export.BuildStatement(s.account.ID(), s.currency, s.account.InitialBalance(), s.account.Balance(), s.account.List(), time.Now())
	return s.exporter.Export(ctx, st)
}

// ResolveFlagged records a review decision on a Flagged entry: Completed
// keeps the debit, Failed reverses it.
func (s *Session) ResolveFlagged(ctx context.Context, id string, status domain.Status) (domain.Transaction, error) {
	tx, err := s.account.Resolve(id, status)
	if err != nil {
		return tx, err
	}
	s.log.Info().Str("transaction_id", id).Str("status", string(status)).Msg("Flagged transaction resolved")
	return tx, nil
}

// CategorizationJobs lists background jobs scheduled against the current
// ledger, optionally for one transaction.
func (s *Session) CategorizationJobs(ctx context.Context, transactionID string) ([]*jobs.CategorizeJob, error) {
	gen := s.account.Generation()
	return s.jobStore.ListJobs(ctx, jobs.JobFilter{TransactionID: transactionID, Generation: &gen})
}

// Navigate switches the current view.
func (s *Session) Navigate(v View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = v
}

// CurrentView returns the view the user is on.
func (s *Session) CurrentView() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}
