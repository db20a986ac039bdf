// Package session owns the per-login state of the bank: one account, its
// background workers and the components that operate on it. An account is
// created at login and discarded at logout.
package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/securebank/internal/classifier"
	"github.com/dvloznov/securebank/internal/export"
	"github.com/dvloznov/securebank/internal/incidents"
	"github.com/dvloznov/securebank/internal/logger"
	"github.com/dvloznov/securebank/internal/metrics"
	"github.com/dvloznov/securebank/internal/screener"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Phase is the authentication state of the manager.
type Phase string

const (
	PhaseLoggedOut         Phase = "logged_out"
	PhaseAwaitingTwoFactor Phase = "awaiting_2fa"
	PhaseActive            Phase = "active"
)

// demoTwoFactorCode is the fixed demo code. It is not a security control.
const demoTwoFactorCode = "123456"

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidCode        = errors.New("invalid verification code")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrExportDisabled     = errors.New("statement export is not configured")
)

// Options configures new sessions.
type Options struct {
	Username         string
	Password         string
	TwoFactorEnabled bool
	InitialBalance   decimal.Decimal
	Currency         string
	BlockThreshold   int
	HistoryWindow    int
	Workers          int
	// SeedDemoData loads the demo history into each new account.
	SeedDemoData bool
}

// Deps are the process-wide collaborators shared by every session.
type Deps struct {
	Classifier *classifier.Adapter
	Screener   *screener.Screener
	Sink       incidents.Sink
	// Exporter is nil when no bucket is configured.
	Exporter *export.Exporter
}

// Manager runs the login flow for the single demo user.
type Manager struct {
	opts Options
	deps Deps
	log  zerolog.Logger

	mu        sync.Mutex
	phase     Phase
	token     string
	twoFactor bool
	session   *Session
}

// NewManager creates a Manager in the logged-out phase.
func NewManager(opts Options, deps Deps, log zerolog.Logger) *Manager {
	if deps.Screener == nil {
		deps.Screener = screener.New(screener.Config{})
	}
	if deps.Classifier == nil {
		deps.Classifier = classifier.NewAdapter(nil, classifier.Options{Screener: deps.Screener}, log)
	}
	if deps.Sink == nil {
		deps.Sink = incidents.NewLogSink(log)
	}
	if opts.Currency == "" {
		opts.Currency = "INR"
	}
	return &Manager{
		opts:      opts,
		deps:      deps,
		log:       logger.Component(log, "session"),
		phase:     PhaseLoggedOut,
		twoFactor: opts.TwoFactorEnabled,
	}
}

// Phase returns the current authentication phase.
func (m *Manager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// TwoFactorEnabled reports whether the next login asks for a code.
func (m *Manager) TwoFactorEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.twoFactor
}

// SetTwoFactor toggles the code step for subsequent logins.
func (m *Manager) SetTwoFactor(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.twoFactor = enabled
}

// Login checks the demo credentials and returns a session token. Any
// previous session is torn down first. With two-factor enabled the token
// must be confirmed with Verify2FA before the account is usable.
func (m *Manager) Login(ctx context.Context, username, password string) (string, Phase, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(m.opts.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(m.opts.Password)) == 1
	if !userOK || !passOK {
		m.log.Warn().Str("username", username).Msg("Login rejected")
		return "", PhaseLoggedOut, ErrInvalidCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.teardownLocked(ctx)
	m.token = uuid.NewString()

	if m.twoFactor {
		m.phase = PhaseAwaitingTwoFactor
		m.log.Info().Str("username", username).Msg("Awaiting two-factor verification")
		return m.token, m.phase, nil
	}
	if err := m.activateLocked(ctx); err != nil {
		return "", PhaseLoggedOut, err
	}
	return m.token, m.phase, nil
}

// Verify2FA completes a pending login.
func (m *Manager) Verify2FA(ctx context.Context, token, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseAwaitingTwoFactor || !m.tokenMatches(token) {
		return ErrNotAuthenticated
	}
	if code != demoTwoFactorCode {
		m.log.Warn().Msg("Two-factor code rejected")
		return ErrInvalidCode
	}
	return m.activateLocked(ctx)
}

// Lookup returns the active session for token.
func (m *Manager) Lookup(token string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseActive || m.session == nil || !m.tokenMatches(token) {
		return nil, ErrNotAuthenticated
	}
	return m.session, nil
}

// Logout discards the account and cancels its background work.
func (m *Manager) Logout(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase == PhaseLoggedOut || !m.tokenMatches(token) {
		return ErrNotAuthenticated
	}
	m.teardownLocked(ctx)
	m.log.Info().Msg("Logged out")
	return nil
}

// Shutdown tears down any session regardless of token.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardownLocked(ctx)
}

func (m *Manager) tokenMatches(token string) bool {
	return m.token != "" && subtle.ConstantTimeCompare([]byte(token), []byte(m.token)) == 1
}

func (m *Manager) activateLocked(ctx context.Context) error {
	s, err := newSession(m.opts, m.deps, m.log, time.Now().UTC())
	if err != nil {
		m.phase = PhaseLoggedOut
		m.token = ""
		return fmt.Errorf("Login: %w", err)
	}
	m.session = s
	m.phase = PhaseActive
	metrics.ActiveSessions.Set(1)
	m.log.Info().Str("account_id", s.AccountID()).Msg("Session started")
	return nil
}

func (m *Manager) teardownLocked(ctx context.Context) {
	if m.session != nil {
		if err := m.session.close(ctx); err != nil {
			m.log.Warn().Err(err).Msg("Session teardown incomplete")
		}
		m.session = nil
	}
	m.phase = PhaseLoggedOut
	m.token = ""
	metrics.ActiveSessions.Set(0)
}
