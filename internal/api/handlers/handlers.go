package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dvloznov/securebank/internal/api/middleware"
	"github.com/dvloznov/securebank/internal/assistant"
	"github.com/dvloznov/securebank/internal/domain"
	"github.com/dvloznov/securebank/internal/ledger"
	"github.com/dvloznov/securebank/internal/session"
	"github.com/dvloznov/securebank/internal/transfer"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// AuthHandler handles login, two-factor and logout endpoints.
type AuthHandler struct {
	sessions *session.Manager
	log      zerolog.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(sessions *session.Manager, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		sessions: sessions,
		log:      log,
	}
}

// Login handles POST /api/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, phase, err := h.sessions.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			middleware.WriteError(w, http.StatusUnauthorized, "Invalid username or password")
			return
		}
		h.log.Error().Err(err).Msg("Failed to start session")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to start session")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"token": token,
		"phase": string(phase),
	})
}

// VerifyTwoFactor handles POST /api/2fa
func (h *AuthHandler) VerifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := h.sessions.Verify2FA(r.Context(), middleware.BearerToken(r), strings.TrimSpace(req.Code))
	switch {
	case errors.Is(err, session.ErrInvalidCode):
		middleware.WriteError(w, http.StatusUnauthorized, "Invalid verification code")
		return
	case errors.Is(err, session.ErrNotAuthenticated):
		middleware.WriteError(w, http.StatusUnauthorized, "No login awaiting verification")
		return
	case err != nil:
		h.log.Error().Err(err).Msg("Failed to start session")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to start session")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"phase": string(session.PhaseActive)})
}

// Logout handles POST /api/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(r.Context(), middleware.BearerToken(r)); err != nil {
		middleware.WriteError(w, http.StatusUnauthorized, "Not logged in")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"phase": string(session.PhaseLoggedOut)})
}

// AccountHandler handles endpoints that operate on the active session.
type AccountHandler struct {
	sessions *session.Manager
	log      zerolog.Logger
}

// NewAccountHandler creates a new account handler.
func NewAccountHandler(sessions *session.Manager, log zerolog.Logger) *AccountHandler {
	return &AccountHandler{
		sessions: sessions,
		log:      log,
	}
}

// current returns the session stored by the Auth middleware.
func current(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Authentication required")
	}
	return s, ok
}

// writeDomainError maps core errors to HTTP responses.
func (h *AccountHandler) writeDomainError(w http.ResponseWriter, err error, fallback string) {
	if ve, ok := transfer.IsValidation(err); ok {
		middleware.WriteJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error":  ve.Error(),
			"reason": string(ve.Reason),
		})
		return
	}

	switch {
	case errors.Is(err, transfer.ErrTransferInProgress):
		middleware.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, transfer.ErrNoBlockedTransfer):
		middleware.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
	case errors.Is(err, ledger.ErrInvalidTransition):
		middleware.WriteError(w, http.StatusConflict, "Transaction cannot be resolved")
	case errors.Is(err, session.ErrExportDisabled):
		middleware.WriteError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, assistant.ErrEmptyQuestion):
		middleware.WriteError(w, http.StatusBadRequest, "Message is required")
	default:
		h.log.Error().Err(err).Msg(fallback)
		middleware.WriteError(w, http.StatusInternalServerError, fallback)
	}
}

// Profile handles GET /api/account/profile
func (h *AccountHandler) Profile(w http.ResponseWriter, r *http.Request) {
	s, ok := current(w, r)
	if !ok {
		return
	}

	view := s.CurrentView()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"username":         s.Username(),
		"accountId":        s.AccountID(),
		"currency":         s.Currency(),
		"view":             view,
		"title":            view.Title(),
		"twoFactorEnabled": h.sessions.TwoFactorEnabled(),
	})
}

// Navigate handles PUT /api/account/view
func (h *AccountHandler) Navigate(w http.ResponseWriter, r *http.Request) {
	s, ok := current(w, r)
	if !ok {
		return
	}

	var req struct {
		View string `json:"view"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	view, err := session.ParseView(req.View)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.Navigate(view)

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"view":  string(view),
		"title": view.Title(),
	})
}

// UpdateSettings handles PUT /api/account/settings
func (h *AccountHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TwoFactorEnabled *bool `json:"twoFactorEnabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TwoFactorEnabled == nil {
		middleware.WriteError(w, http.StatusBadRequest, "twoFactorEnabled is required")
		return
	}

	h.sessions.SetTwoFactor(*req.TwoFactorEnabled)
	middleware.WriteJSON(w, http.StatusOK, map[string]bool{"twoFactorEnabled": *req.TwoFactorEnabled})
}

// parseAmount accepts a JSON number or a numeric string.
func parseAmount(raw json.RawMessage) (decimal.Decimal, error) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" {
		return decimal.Zero, transfer.NewValidationError(transfer.ReasonInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, transfer.NewValidationError(transfer.ReasonInvalidAmount)
	}
	return d, nil
}

// SubmitTransfer handles POST /api/account/transfers
func (h *AccountHandler) SubmitTransfer(w http.ResponseWriter, r *http.Request) {
	s, ok := current(w, r)
	if !ok {
		return
	}

	var req struct {
		Counterparty string          `json:"counterparty"`
		Amount       json.RawMessage `json:"amount"`
		Note         string          `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		h.writeDomainError(w, err, "Failed to submit transfer")
		return
	}

	outcome, err := s.SubmitTransfer(r.Context(), domain.TransferRequest{
		Counterparty: req.Counterparty,
		Amount:       amount,
		Note:         req.Note,
	})
	if err != nil {
		h.writeDomainError(w, err, "Failed to submit transfer")
		return
	}

	status := http.StatusCreated
	if outcome.RequiresConfirmation {
		status = http.StatusAccepted
	}
	middleware.WriteJSON(w, status, outcome)
}

// ConfirmTransfer handles POST /api/account/transfers/confirm
func (h *AccountHandler) ConfirmTransfer(w http.ResponseWriter, r *http.Request) {
	s, ok := current(w, r)
	if !ok {
		return
	}

	var req struct {
		Proceed *bool `json:"proceed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Proceed == nil {
		middleware.WriteError(w, http.StatusBadRequest, "proceed is required")
		return
	}

	outcome, err := s.ConfirmBlockedTransfer(r.Context(), *req.Proceed)
	if err != nil {
		h.writeDomainError(w, err, "Failed to confirm transfer")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, outcome)
}

// PendingTransfer handles GET /api/account/transfers/pending
func (h *AccountHandler) PendingTransfer(w http.ResponseWriter, r *http.Request) {
	s, ok := current(w, r)
	if !ok {
		return
	}

	outcome, found := s.PendingTransfer()
	if !found {
		middleware.WriteError(w, http.StatusNotFound, "No transfer awaiting confirmation")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, outcome)
}

// AbandonTransfer handles DELETE /api/account/transfers/pending
func (h *AccountHandler) AbandonTransfer(w http.ResponseWriter, r *http.Request) {
	s, ok := current(w, r)
	if !ok {
		return
	}

	if !s.AbandonPendingTransfer() {
		h.writeDomainError(w, transfer.ErrNoBlockedTransfer, "Failed to abandon transfer")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"state": string(s.TransferState())})
}

// ListTransactions handles GET /api/account/transactions
func (h *AccountHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	s, ok := current(w, r)
	if !ok {
		return
	}

	// Return array directly for frontend compatibility
	middleware.WriteJSON(w, http.StatusOK, s.ListTransactions())
}

// ResolveTransaction handles POST /api/account/transactions/{id}/resolve
func (h *AccountHandler) ResolveTransaction(w http.ResponseWriter, r *http.Request, transactionID string) {
	s, ok := current(w, r)
	if !ok {
		return
	}

	var req struct {
		Status domain.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Status != domain.StatusCompleted && req.Status != domain.StatusFailed {
		middleware.WriteError(w, http.StatusBadRequest, "status must be Completed or Failed")
		return
	}

	tx, err := s.ResolveFlagged(r.Context(), transactionID, req.Status)
	if err != nil {
		h.writeDomainError(w, err, "Failed to resolve transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, tx)
}

// Balance handles GET /api/account/balance
func (h *AccountHandler) Balance(w http.ResponseWriter, r *http.Request) {
	s, ok := current(w, r)
	if !ok {
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"balance":  s.GetBalance(),
		"currency": s.Currency(),
	})
}

// SpendingBreakdown handles GET /api/account/insights/spending
func (h *AccountHandler) SpendingBreakdown(w http.ResponseWriter, r *http.Request) {
	s, ok := current(w, r)
	if !ok {
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": s.GetSpendingBreakdown(),
		"currency":   s.Currency(),
	})
}

// Tip handles GET /api/account/insights/tip
func (h *AccountHandler) Tip(w http.ResponseWriter, r *http.Request) {
	s, ok := current(w, r)
	if !ok {
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"tip": s.FinancialTip(r.Context())})
}

// ScanForFraud handles POST /api/account/fraud/scan
func (h *AccountHandler) ScanForFraud(w http.ResponseWriter, r *http.Request) {
	s, ok := current(w, r)
	if !ok {
		return
	}

	middleware.WriteJSON(w, http.StatusOK, s.ScanForFraud(r.Context()))
}

// Chat handles POST /api/account/chat
func (h *AccountHandler) Chat(w http.ResponseWriter, r *http.Request) {
	s, ok := current(w, r)
	if !ok {
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	reply, err := s.Ask(r.Context(), req.Message)
	if err != nil {
		h.writeDomainError(w, err, "Failed to answer")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

// ChatTranscript handles GET /api/account/chat
func (h *AccountHandler) ChatTranscript(w http.ResponseWriter, r *http.Request) {
	s, ok := current(w, r)
	if !ok {
		return
	}

	history := s.ChatTranscript()
	messages := make([]map[string]string, 0, len(history))
	for _, m := range history {
		messages = append(messages, map[string]string{"role": m.Role, "text": m.Text})
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"greeting": assistant.Greeting,
		"messages": messages,
	})
}

// ExportStatement handles POST /api/account/export
func (h *AccountHandler) ExportStatement(w http.ResponseWriter, r *http.Request) {
	s, ok := current(w, r)
	if !ok {
		return
	}

	uri, err := s.ExportStatement(r.Context())
	if err != nil {
		h.writeDomainError(w, err, "Failed to export statement")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, map[string]string{"gcs_uri": uri})
}

// ListJobs handles GET /api/account/jobs
func (h *AccountHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	s, ok := current(w, r)
	if !ok {
		return
	}

	jobsList, err := s.CategorizationJobs(r.Context(), r.URL.Query().Get("transaction_id"))
	if err != nil {
		h.writeDomainError(w, err, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
