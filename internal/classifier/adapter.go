// Package classifier translates domain data to and from the external
// natural-language classifier. Every call degrades to a fixed fallback
// answer on error, timeout or malformed output; none of its methods fail.
package classifier

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/securebank/internal/domain"
	"github.com/dvloznov/securebank/internal/logger"
	"github.com/dvloznov/securebank/internal/metrics"
	"github.com/dvloznov/securebank/internal/screener"
	"github.com/rs/zerolog"
)

// Defaults for Options.
const (
	DefaultTimeout       = 8 * time.Second
	DefaultHistoryWindow = 5
	// tipMinOutgoing is the number of outgoing transactions needed before a
	// personalized tip is requested.
	tipMinOutgoing = 3
	tipMaxOutgoing = 10
)

// Fallback tips.
const (
	TipNotEnoughData = "Start making transactions to get personalized financial tips!"
	TipUnavailable   = "Review your spending regularly to find opportunities to save."
)

// ErrUnavailable is reported in logs when no Generator is configured.
var ErrUnavailable = errors.New("classifier not configured")

// Options tunes the Adapter.
type Options struct {
	// Timeout bounds each classifier call. Expiry is treated as a parse failure.
	Timeout time.Duration
	// HistoryWindow is how many recent ledger entries accompany a risk request.
	HistoryWindow int
	// Screener backs DetectSuspicious when the classifier cannot answer.
	Screener *screener.Screener
}

// ScanResult is the outcome of a batch fraud review.
type ScanResult struct {
	SuspiciousIDs []string `json:"suspiciousTransactionIds"`
	// Source is "classifier" or "rules".
	Source string `json:"source"`
}

// Adapter is the boundary between the bank core and the Generator.
type Adapter struct {
	gen           Generator
	timeout       time.Duration
	historyWindow int
	screener      *screener.Screener
	log           zerolog.Logger
}

// NewAdapter wraps gen. A nil gen is allowed: every call then falls back.
func NewAdapter(gen Generator, opts Options, log zerolog.Logger) *Adapter {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = DefaultHistoryWindow
	}
	if opts.Screener == nil {
		opts.Screener = screener.New(screener.Config{})
	}
	return &Adapter{
		gen:           gen,
		timeout:       opts.Timeout,
		historyWindow: opts.HistoryWindow,
		screener:      opts.Screener,
		log:           logger.Component(log, "classifier"),
	}
}

// Available reports whether a Generator is configured.
func (a *Adapter) Available() bool {
	return a.gen != nil
}

// call runs one bounded request against the Generator.
func (a *Adapter) call(ctx context.Context, req Request) (string, error) {
	if a.gen == nil {
		return "", ErrUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.gen.Generate(ctx, req)
}

// AssessRisk scores a pending transfer against recent history (most recent
// first). On any failure it returns domain.DefaultVerdict().
func (a *Adapter) AssessRisk(ctx context.Context, candidate domain.Transaction, history []domain.Transaction) domain.RiskVerdict {
	start := time.Now()
	prompt := buildRiskPrompt(candidate, formatHistory(history, a.historyWindow))

	raw, err := a.call(ctx, Prompt(prompt))
	if err == nil {
		var v domain.RiskVerdict
		if v, err = parseRiskVerdict(raw); err == nil {
			metrics.ObserveClassifier("assess_risk", start, false)
			return v
		}
	}

	metrics.ObserveClassifier("assess_risk", start, true)
	a.log.Warn().Err(err).Str("transaction_id", candidate.ID).Msg("Risk assessment fell back to default verdict")
	return domain.DefaultVerdict()
}

// Categorize returns one of domain.Categories for tx, or "Other" on failure.
func (a *Adapter) Categorize(ctx context.Context, tx domain.Transaction) string {
	start := time.Now()

	raw, err := a.call(ctx, Prompt(buildCategoryPrompt(tx)))
	if err == nil {
		var label string
		if label, err = parseCategory(raw); err == nil {
			metrics.ObserveClassifier("categorize", start, false)
			return domain.NormalizeCategory(label)
		}
	}

	metrics.ObserveClassifier("categorize", start, true)
	a.log.Warn().Err(err).Str("transaction_id", tx.ID).Msg("Categorization fell back to Other")
	return domain.CategoryOther
}

// SummarizeTip returns a spending tip for txs (most recent first). With fewer
// than three outgoing transactions it returns TipNotEnoughData without
// calling out; on failure it returns TipUnavailable.
func (a *Adapter) SummarizeTip(ctx context.Context, txs []domain.Transaction) string {
	spending := make([]domain.Transaction, 0, tipMaxOutgoing)
	for _, t := range txs {
		if t.Direction == domain.DirectionOutgoing {
			spending = append(spending, t)
			if len(spending) == tipMaxOutgoing {
				break
			}
		}
	}
	if len(spending) < tipMinOutgoing {
		return TipNotEnoughData
	}

	start := time.Now()
	raw, err := a.call(ctx, Prompt(buildTipPrompt(spending)))
	if err == nil {
		var tip string
		if tip, err = parseTip(raw); err == nil {
			metrics.ObserveClassifier("summarize_tip", start, false)
			return tip
		}
	}

	metrics.ObserveClassifier("summarize_tip", start, true)
	a.log.Warn().Err(err).Msg("Tip generation fell back to static tip")
	return TipUnavailable
}

// DetectSuspicious asks the classifier to review txs as a batch. Ids the
// model invents are dropped. On failure the local screener decides.
func (a *Adapter) DetectSuspicious(ctx context.Context, txs []domain.Transaction) ScanResult {
	if len(txs) == 0 {
		return ScanResult{SuspiciousIDs: []string{}, Source: "rules"}
	}

	start := time.Now()
	prompt, err := buildScanPrompt(txs)
	if err == nil {
		var raw string
		if raw, err = a.call(ctx, Prompt(prompt)); err == nil {
			var ids []string
			if ids, err = parseSuspiciousIDs(raw); err == nil {
				metrics.ObserveClassifier("detect_suspicious", start, false)
				return ScanResult{SuspiciousIDs: knownIDs(ids, txs), Source: "classifier"}
			}
		}
	}

	metrics.ObserveClassifier("detect_suspicious", start, true)
	a.log.Warn().Err(err).Int("transactions", len(txs)).Msg("Batch fraud review fell back to local rules")
	return ScanResult{SuspiciousIDs: a.screener.Scan(txs), Source: "rules"}
}

// Chat sends a conversation with a system instruction and returns the reply
// text. Unlike the other calls it reports failures to the caller.
func (a *Adapter) Chat(ctx context.Context, system string, history []Message) (string, error) {
	start := time.Now()
	reply, err := a.call(ctx, Request{System: system, Messages: history})
	metrics.ObserveClassifier("chat", start, err != nil)
	if err != nil {
		return "", err
	}
	return reply, nil
}

func knownIDs(ids []string, txs []domain.Transaction) []string {
	known := make(map[string]bool, len(txs))
	for _, t := range txs {
		known[t.ID] = true
	}
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if known[id] && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
