// Package assistant answers free-form banking questions about the session's
// own account.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dvloznov/securebank/internal/classifier"
	"github.com/dvloznov/securebank/internal/ledger"
	"github.com/dvloznov/securebank/internal/logger"
	"github.com/rs/zerolog"
)

const (
	// Greeting is the first message shown in a fresh conversation.
	Greeting = "Hello! I'm your banking assistant. Ask me about your balance, recent transactions or spending."
	// FallbackReply is returned when the model cannot be reached.
	FallbackReply = "I'm having trouble connecting right now. Please try again in a moment."

	contextTransactions = 10
	maxHistory          = 20
)

// ErrEmptyQuestion is returned for blank input.
var ErrEmptyQuestion = errors.New("question is required")

// Chatter sends a conversation to the model.
type Chatter interface {
	Chat(ctx context.Context, system string, history []classifier.Message) (string, error)
}

// Assistant keeps one conversation per session.
type Assistant struct {
	account  *ledger.Account
	chat     Chatter
	currency string
	log      zerolog.Logger

	mu      sync.Mutex
	history []classifier.Message
}

// New creates an Assistant over account.
func New(account *ledger.Account, chat Chatter, currency string, log zerolog.Logger) *Assistant {
	return &Assistant{
		account:  account,
		chat:     chat,
		currency: currency,
		log:      logger.Component(log, "assistant"),
	}
}

// SystemInstruction describes the account to the model.
func (a *Assistant) SystemInstruction() string {
	var b strings.Builder
	b.WriteString("You are a helpful, concise banking assistant for SecureBank. ")
	b.WriteString("Answer only questions about the user's account and personal finance. ")
	b.WriteString("Never ask for passwords, codes or card numbers.\n\n")
	fmt.Fprintf(&b, "Current balance: %s %s\n", a.account.Balance().StringFixed(2), a.currency)

	recent := a.account.Recent(contextTransactions)
	if len(recent) == 0 {
		b.WriteString("The account has no transactions yet.\n")
		return b.String()
	}
	b.WriteString("Most recent transactions:\n")
	for _, t := range recent {
		fmt.Fprintf(&b, "- %s: %s %s %s [%s]",
			t.Timestamp.Format("2006-01-02"), t.Direction, t.Amount.StringFixed(2), t.CounterpartyLabel(), t.Status)
		if t.Category != "" {
			fmt.Fprintf(&b, " category=%s", t.Category)
		}
		if t.Note != "" {
			fmt.Fprintf(&b, " note=%q", t.Note)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Ask appends question to the conversation and returns the reply. Model
// failures are answered with FallbackReply and leave the history untouched.
func (a *Assistant) Ask(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	turns := append(append([]classifier.Message(nil), a.history...), classifier.Message{Role: "user", Text: question})

	reply, err := a.chat.Chat(ctx, a.SystemInstruction(), turns)
	if err != nil {
		a.log.Warn().Err(err).Msg("Assistant fell back to static reply")
		return FallbackReply, nil
	}
	reply = strings.TrimSpace(reply)

	a.history = append(turns, classifier.Message{Role: "model", Text: reply})
	if len(a.history) > maxHistory {
		a.history = a.history[len(a.history)-maxHistory:]
	}
	return reply, nil
}

// History returns a copy of the conversation so far.
func (a *Assistant) History() []classifier.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]classifier.Message(nil), a.history...)
}

// Reset forgets the conversation.
func (a *Assistant) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = nil
}
