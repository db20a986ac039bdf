package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dvloznov/securebank/internal/classifier"
	"github.com/dvloznov/securebank/internal/config"
	"github.com/dvloznov/securebank/internal/domain"
	"github.com/dvloznov/securebank/internal/logger"
	"github.com/dvloznov/securebank/internal/screener"
	"github.com/dvloznov/securebank/internal/session"
	"github.com/dvloznov/securebank/internal/transfer"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "screen":
		runScreen(log)
	case "assess":
		runAssess(log)
	case "demo":
		runDemo(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("SecureBank CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  screen    Apply the local amount and keyword rules to a transfer")
	fmt.Println("  assess    Ask the classifier for a risk verdict on a transfer")
	fmt.Println("  demo      Run the transfer scenarios against a scripted classifier")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// transferFlags registers the flags shared by screen and assess.
func transferFlags(fs *flag.FlagSet) (to, amount, note *string) {
	to = fs.String("to", "", "Recipient account")
	amount = fs.String("amount", "", "Transfer amount")
	note = fs.String("note", "", "Optional note")
	return
}

func candidate(log zerolog.Logger, to, amount, note string) domain.Transaction {
	if strings.TrimSpace(to) == "" || amount == "" {
		log.Fatal().Msg("Usage: cli <command> -to ACCOUNT -amount N [-note TEXT]")
	}
	amt, err := decimal.NewFromString(amount)
	if err != nil || !amt.IsPositive() {
		log.Fatal().Str("amount", amount).Msg("Amount must be a positive number")
	}
	return domain.NewTransaction(domain.DirectionOutgoing, to, amt, note)
}

func runScreen(log zerolog.Logger) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	fs := flag.NewFlagSet("screen", flag.ExitOnError)
	to, amount, note := transferFlags(fs)
	fs.Parse(os.Args[2:])

	tx := candidate(log, *to, *amount, *note)
	scr := screener.New(screener.Config{
		AmountThreshold: cfg.ScreenAmountThreshold,
		Keywords:        cfg.ScreenKeywords,
	})

	res := scr.Screen(tx)
	fmt.Printf("Suspicious: %v\n", res.Suspicious)
	for _, r := range res.Reasons {
		fmt.Printf("  - %s\n", r)
	}
}

func runAssess(log zerolog.Logger) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	fs := flag.NewFlagSet("assess", flag.ExitOnError)
	to, amount, note := transferFlags(fs)
	threshold := fs.Int("threshold", cfg.RiskBlockThreshold, "Scores above this block the transfer")
	fs.Parse(os.Args[2:])

	tx := candidate(log, *to, *amount, *note)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	var gen classifier.Generator
	if cfg.ClassifierEnabled() {
		g, err := classifier.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create classifier client")
		}
		gen = g
	} else {
		log.Warn().Msg("No GEMINI_API_KEY configured - expect the default verdict")
	}

	adapter := classifier.NewAdapter(gen, classifier.Options{Timeout: cfg.ClassifierTimeout}, log)
	v := adapter.AssessRisk(ctx, tx, nil)

	fmt.Printf("Risk score: %d\n", v.RiskScore)
	fmt.Printf("Fraudulent: %v\n", v.IsFraudulent)
	fmt.Printf("Reason:     %s\n", v.Reason)
	if v.Degraded {
		fmt.Println("(degraded: classifier did not answer)")
	}
	if v.RiskScore > *threshold {
		fmt.Println("Decision:   BLOCK, confirmation required")
	} else {
		fmt.Println("Decision:   allow")
	}
}

// demoEnv is one fresh logged-in session backed by a scripted classifier.
type demoEnv struct {
	gen      *classifier.ScriptedGenerator
	sessions *session.Manager
	s        *session.Session
}

func newDemoEnv(ctx context.Context, log zerolog.Logger, balance decimal.Decimal, down bool) (*demoEnv, error) {
	gen := &classifier.ScriptedGenerator{
		RiskScores:  map[string]int{"stranger": 85},
		DefaultRisk: 10,
		Category:    "Utilities",
		Down:        down,
	}
	sessions := session.NewManager(session.Options{
		Username:       "demo",
		Password:       "password",
		InitialBalance: balance,
		Workers:        1,
	}, session.Deps{
		Classifier: classifier.NewAdapter(gen, classifier.Options{}, log),
	}, log)

	token, _, err := sessions.Login(ctx, "demo", "password")
	if err != nil {
		return nil, fmt.Errorf("newDemoEnv: login: %w", err)
	}
	s, err := sessions.Lookup(token)
	if err != nil {
		return nil, fmt.Errorf("newDemoEnv: lookup: %w", err)
	}
	return &demoEnv{gen: gen, sessions: sessions, s: s}, nil
}

type scenario struct {
	name string
	down bool
	run  func(ctx context.Context, env *demoEnv) error
}

func runDemo(log zerolog.Logger) {
	fs := flag.NewFlagSet("demo", flag.ExitOnError)
	balance := fs.String("balance", "10000", "Opening balance for each scenario")
	verbose := fs.Bool("v", false, "Show classifier and decision logs")
	fs.Parse(os.Args[2:])

	opening, err := decimal.NewFromString(*balance)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid opening balance")
	}
	if !*verbose {
		log = logger.Nop()
	}

	failed := 0
	for _, sc := range demoScenarios(opening) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		env, err := newDemoEnv(ctx, log, opening, sc.down)
		if err == nil {
			err = sc.run(ctx, env)
			env.sessions.Shutdown(ctx)
		}
		cancel()

		if err != nil {
			failed++
			fmt.Printf("FAIL  %s: %v\n", sc.name, err)
			continue
		}
		fmt.Printf("ok    %s\n", sc.name)
	}

	if failed > 0 {
		os.Exit(1)
	}
}

func demoScenarios(opening decimal.Decimal) []scenario {
	expectBalance := func(env *demoEnv, want decimal.Decimal) error {
		if got := env.s.GetBalance(); !got.Equal(want) {
			return fmt.Errorf("balance = %s, want %s", got, want)
		}
		return nil
	}

	return []scenario{
		{
			name: "low risk transfer completes",
			run: func(ctx context.Context, env *demoEnv) error {
				out, err := env.s.SubmitTransfer(ctx, domain.TransferRequest{
					Counterparty: "555-Electric", Amount: decimal.RequireFromString("45.00"), Note: "utility bill",
				})
				if err != nil {
					return err
				}
				if out.RequiresConfirmation || out.Transaction.Status != domain.StatusCompleted {
					return fmt.Errorf("status = %s, confirmation = %v", out.Transaction.Status, out.RequiresConfirmation)
				}
				return expectBalance(env, opening.Sub(decimal.RequireFromString("45.00")))
			},
		},
		{
			name: "high risk transfer proceeds as Flagged",
			run: func(ctx context.Context, env *demoEnv) error {
				amount := decimal.RequireFromString("9000.00")
				out, err := env.s.SubmitTransfer(ctx, domain.TransferRequest{Counterparty: "random-stranger-acct", Amount: amount})
				if err != nil {
					return err
				}
				if out.State != transfer.StateBlocked {
					return fmt.Errorf("state = %s, want %s", out.State, transfer.StateBlocked)
				}
				out, err = env.s.ConfirmBlockedTransfer(ctx, true)
				if err != nil {
					return err
				}
				if out.Transaction.Status != domain.StatusFlagged {
					return fmt.Errorf("status = %s, want Flagged", out.Transaction.Status)
				}
				return expectBalance(env, opening.Sub(amount))
			},
		},
		{
			name: "high risk transfer cancelled as Failed",
			run: func(ctx context.Context, env *demoEnv) error {
				if _, err := env.s.SubmitTransfer(ctx, domain.TransferRequest{
					Counterparty: "random-stranger-acct", Amount: decimal.RequireFromString("9000.00"),
				}); err != nil {
					return err
				}
				out, err := env.s.ConfirmBlockedTransfer(ctx, false)
				if err != nil {
					return err
				}
				if out.Transaction.Status != domain.StatusFailed {
					return fmt.Errorf("status = %s, want Failed", out.Transaction.Status)
				}
				return expectBalance(env, opening)
			},
		},
		{
			name: "insufficient funds rejected before risk evaluation",
			run: func(ctx context.Context, env *demoEnv) error {
				_, err := env.s.SubmitTransfer(ctx, domain.TransferRequest{
					Counterparty: "555-Electric", Amount: opening.Add(decimal.NewFromInt(1)),
				})
				ve, ok := transfer.IsValidation(err)
				if !ok || ve.Reason != transfer.ReasonInsufficientFunds {
					return fmt.Errorf("err = %v, want insufficient funds", err)
				}
				if n := env.gen.Calls(classifier.KindRisk); n != 0 {
					return fmt.Errorf("classifier called %d times", n)
				}
				return nil
			},
		},
		{
			name: "classifier outage falls back to default verdict",
			down: true,
			run: func(ctx context.Context, env *demoEnv) error {
				out, err := env.s.SubmitTransfer(ctx, domain.TransferRequest{
					Counterparty: "555-Electric", Amount: decimal.RequireFromString("45.00"), Note: "utility bill",
				})
				if err != nil {
					return err
				}
				if out.Verdict == nil || *out.Verdict != domain.DefaultVerdict() {
					return errors.New("expected the default verdict")
				}
				if out.Transaction.Status != domain.StatusCompleted {
					return fmt.Errorf("status = %s, want Completed", out.Transaction.Status)
				}
				return nil
			},
		},
	}
}
