// Package screener is the local, rule-based fraud pre-filter. It never calls
// out of process and never rejects a transfer on its own.
package screener

import (
	"strings"

	"github.com/dvloznov/securebank/internal/domain"
	"github.com/shopspring/decimal"
)

// DefaultAmountThreshold flags any amount strictly above it.
var DefaultAmountThreshold = decimal.NewFromInt(50000)

// DefaultKeywords is the denylist matched against counterparty and note.
var DefaultKeywords = []string{
	"lottery",
	"betting",
	"casino",
	"crypto",
	"foreign",
	"gucci",
	"prada",
	"rolex",
	"louis vuitton",
}

// Config tunes the screener. Zero values fall back to the defaults.
type Config struct {
	AmountThreshold decimal.Decimal
	Keywords        []string
}

// Result is the screener's coarse signal plus the rules that fired.
type Result struct {
	Suspicious bool     `json:"suspicious"`
	Reasons    []string `json:"reasons,omitempty"`
}

// Screener applies the amount and keyword rules.
type Screener struct {
	threshold decimal.Decimal
	keywords  []string
}

// New builds a Screener. Keywords are lower-cased once here.
func New(cfg Config) *Screener {
	threshold := cfg.AmountThreshold
	if threshold.IsZero() {
		threshold = DefaultAmountThreshold
	}
	src := cfg.Keywords
	if len(src) == 0 {
		src = DefaultKeywords
	}
	keywords := make([]string, 0, len(src))
	for _, k := range src {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			keywords = append(keywords, k)
		}
	}
	return &Screener{threshold: threshold, keywords: keywords}
}

// Threshold returns the configured amount threshold.
func (s *Screener) Threshold() decimal.Decimal {
	return s.threshold
}

// Screen flags tx when its absolute amount exceeds the threshold or its
// counterparty or note contains a denylisted keyword.
func (s *Screener) Screen(tx domain.Transaction) Result {
	var res Result

	if tx.Amount.Abs().GreaterThan(s.threshold) {
		res.Suspicious = true
		res.Reasons = append(res.Reasons, "amount above "+s.threshold.String())
	}

	text := strings.ToLower(tx.Counterparty + "\n" + tx.Note)
	for _, k := range s.keywords {
		if strings.Contains(text, k) {
			res.Suspicious = true
			res.Reasons = append(res.Reasons, "keyword "+k)
		}
	}
	return res
}

// Scan returns the ids of every suspicious transaction in txs, in order.
func (s *Screener) Scan(txs []domain.Transaction) []string {
	ids := []string{}
	for _, tx := range txs {
		if s.Screen(tx).Suspicious {
			ids = append(ids, tx.ID)
		}
	}
	return ids
}
