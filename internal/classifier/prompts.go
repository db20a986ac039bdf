package classifier

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dvloznov/securebank/internal/domain"
)

// formatHistory renders up to limit transactions, most recent first, as one
// compact line each.
func formatHistory(txs []domain.Transaction, limit int) string {
	if len(txs) == 0 {
		return "No recent transactions."
	}
	if limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}

	var b strings.Builder
	for i, t := range txs {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "- Type: %s, Amount: %s, %s, Note: %s, Category: %s",
			t.Direction, t.Amount.StringFixed(2), titleCounterparty(t), orNA(t.Note), orNA(t.Category))
	}
	return b.String()
}

func titleCounterparty(t domain.Transaction) string {
	if t.Direction == domain.DirectionIncoming {
		return "From: " + t.Counterparty
	}
	return "To: " + t.Counterparty
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func buildRiskPrompt(candidate domain.Transaction, history string) string {
	var b strings.Builder
	b.WriteString("You are a fraud detection engine for a digital bank. Analyze the pending transfer below and return a risk assessment.\n\n")
	b.WriteString("User's recent transaction history:\n")
	b.WriteString(history)
	b.WriteString("\n\nPending transfer:\n")
	fmt.Fprintf(&b, "- Recipient Account: %q\n", candidate.Counterparty)
	fmt.Fprintf(&b, "- Amount: %s\n", candidate.Amount.StringFixed(2))
	fmt.Fprintf(&b, "- Note: %q\n\n", orNA(candidate.Note))
	b.WriteString("Consider unusual amounts, unknown recipients, urgent or crypto-related notes, and deviations from past behavior. ")
	b.WriteString("A large transfer to a recipient not in the history is high risk. A small payment to a known utility is low risk.\n\n")
	b.WriteString("Return ONLY a single JSON object, no Markdown, no commentary:\n")
	b.WriteString(`{"riskScore": <integer 0-100>, "isFraudulent": <boolean>, "reason": "<short user-facing explanation>"}`)
	return b.String()
}

func buildCategoryPrompt(tx domain.Transaction) string {
	var b strings.Builder
	b.WriteString("Categorize this bank transaction.\n")
	b.WriteString("Use EXACTLY one of: ")
	for i, c := range domain.Categories {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%q", c)
	}
	b.WriteString(".\n\nTransaction:\n")
	fmt.Fprintf(&b, "- Recipient: %s\n", tx.Counterparty)
	fmt.Fprintf(&b, "- Note: %s\n", orNA(tx.Note))
	fmt.Fprintf(&b, "- Amount: %s\n\n", tx.Amount.StringFixed(2))
	b.WriteString("Return ONLY a single JSON object: {\"category\": \"<category>\"}")
	return b.String()
}

func buildTipPrompt(spending []domain.Transaction) string {
	var b strings.Builder
	b.WriteString("You are a friendly financial advisor. Based on the recent spending below, give one short, actionable, encouraging tip.\n\n")
	b.WriteString("Recent spending:\n")
	for _, t := range spending {
		category := t.Category
		if category == "" {
			category = domain.CategoryOther
		}
		fmt.Fprintf(&b, "- Category: %s, Amount: %s\n", category, t.Amount.StringFixed(2))
	}
	b.WriteString("\nReturn ONLY a single JSON object: {\"tip\": \"<tip>\"}")
	return b.String()
}

// scanItem is the status-free view of a transaction sent for batch review.
type scanItem struct {
	ID           string `json:"id"`
	Date         string `json:"date"`
	Direction    string `json:"direction"`
	Counterparty string `json:"counterparty"`
	Amount       string `json:"amount"`
	Note         string `json:"note,omitempty"`
	Category     string `json:"category,omitempty"`
}

func buildScanPrompt(txs []domain.Transaction) (string, error) {
	items := make([]scanItem, 0, len(txs))
	for _, t := range txs {
		items = append(items, scanItem{
			ID:           t.ID,
			Date:         t.Timestamp.Format("2006-01-02T15:04"),
			Direction:    string(t.Direction),
			Counterparty: t.Counterparty,
			Amount:       t.Amount.StringFixed(2),
			Note:         t.Note,
			Category:     t.Category,
		})
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", fmt.Errorf("buildScanPrompt: marshal transactions: %w", err)
	}

	var b strings.Builder
	b.WriteString("You are a fraud detection engine for a bank. Review the transactions below and identify any that look suspicious ")
	b.WriteString("(unusual merchants, large international transfers, rapid small purchases at odd hours, deviations from normal spending).\n\n")
	b.WriteString("Transactions:\n")
	b.Write(data)
	b.WriteString("\n\nReturn ONLY a single JSON object: {\"suspiciousTransactionIds\": [<id strings>]}. ")
	b.WriteString("Use an empty array when nothing looks suspicious.")
	return b.String(), nil
}
