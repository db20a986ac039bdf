// Package insights enriches committed transactions with a spending category
// and aggregates category totals for reporting.
package insights

import (
	"context"
	"fmt"
	"sort"

	"github.com/dvloznov/securebank/internal/domain"
	"github.com/dvloznov/securebank/internal/jobs"
	"github.com/dvloznov/securebank/internal/ledger"
	"github.com/dvloznov/securebank/internal/logger"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Categorizer assigns a category label to a transaction. It must not fail;
// the classifier adapter satisfies it.
type Categorizer interface {
	Categorize(ctx context.Context, tx domain.Transaction) string
}

// TipSource produces a spending tip from recent transactions.
type TipSource interface {
	SummarizeTip(ctx context.Context, txs []domain.Transaction) string
}

// Summarizer schedules background categorization and answers reporting
// queries for one account.
type Summarizer struct {
	account     *ledger.Account
	categorizer Categorizer
	tips        TipSource
	publisher   jobs.Publisher
	log         zerolog.Logger
}

// NewSummarizer wires a Summarizer. tips may be nil.
func NewSummarizer(account *ledger.Account, categorizer Categorizer, tips TipSource, publisher jobs.Publisher, log zerolog.Logger) *Summarizer {
	return &Summarizer{
		account:     account,
		categorizer: categorizer,
		tips:        tips,
		publisher:   publisher,
		log:         logger.Component(log, "insights"),
	}
}

// CategorizeAsync enqueues categorization for tx. Only Completed outgoing
// transactions qualify; anything else is ignored and reports false.
func (s *Summarizer) CategorizeAsync(ctx context.Context, tx domain.Transaction) (bool, error) {
	if tx.Status != domain.StatusCompleted || tx.Direction != domain.DirectionOutgoing {
		return false, nil
	}

	job := &jobs.CategorizeJob{
		TransactionID: tx.ID,
		Generation:    s.account.Generation(),
	}
	if err := s.publisher.PublishCategorize(ctx, job); err != nil {
		return false, fmt.Errorf("CategorizeAsync: %w", err)
	}

	s.log.Debug().Str("job_id", job.JobID).Str("transaction_id", tx.ID).Msg("Categorization scheduled")
	return true, nil
}

// HandleJob is the jobs.JobHandler for categorization. It writes only the
// category field of the target entry and is a no-op when the entry no
// longer exists or the ledger was reset after scheduling. Records go to the
// job logger carried by ctx.
func (s *Summarizer) HandleJob(ctx context.Context, job jobs.Job) error {
	cj, ok := job.(*jobs.CategorizeJob)
	if !ok {
		return fmt.Errorf("HandleJob: unexpected job type: %T", job)
	}

	log := logger.FromContext(ctx)

	tx, err := s.account.Get(cj.TransactionID)
	if err != nil {
		log.Debug().Msg("Categorization skipped, entry gone")
		return nil
	}

	category := s.categorizer.Categorize(ctx, tx)
	if !s.account.SetCategoryIfGeneration(tx.ID, category, cj.Generation) {
		log.Debug().Uint64("generation", cj.Generation).Msg("Categorization skipped, ledger reset")
		return nil
	}
	cj.Result = category

	log.Info().Str("category", category).Msg("Transaction categorized")
	return nil
}

// Breakdown aggregates the account's current ledger.
func (s *Summarizer) Breakdown() []domain.CategoryTotal {
	return Aggregate(s.account.List())
}

// Tip returns a personalized tip for the account's recent activity.
func (s *Summarizer) Tip(ctx context.Context) string {
	if s.tips == nil {
		return ""
	}
	return s.tips.SummarizeTip(ctx, s.account.List())
}

// Aggregate sums settled outgoing amounts per category, ordered by total
// descending then category name. Uncategorized entries count as "Other".
func Aggregate(txs []domain.Transaction) []domain.CategoryTotal {
	totals := make(map[string]decimal.Decimal)
	for _, t := range txs {
		if t.Direction != domain.DirectionOutgoing || !t.Status.Settled() {
			continue
		}
		category := t.Category
		if category == "" {
			category = domain.CategoryOther
		}
		totals[category] = totals[category].Add(t.Amount)
	}

	out := make([]domain.CategoryTotal, 0, len(totals))
	for c, total := range totals {
		out = append(out, domain.CategoryTotal{Category: c, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if cmp := out[i].Total.Cmp(out[j].Total); cmp != 0 {
			return cmp > 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}
