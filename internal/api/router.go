// Package api assembles the HTTP surface of the bank.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/securebank/internal/api/handlers"
	"github.com/dvloznov/securebank/internal/api/middleware"
	"github.com/dvloznov/securebank/internal/metrics"
	"github.com/dvloznov/securebank/internal/session"
	"github.com/rs/zerolog"
)

// AccountPrefix is the path prefix that requires an active session.
const AccountPrefix = "/api/account/"

// resolveRoute is the metric label for POST /api/account/transactions/{id}/resolve.
const resolveRoute = "/api/account/transactions/{id}/resolve"

// router registers handlers and remembers their paths as metric labels.
type router struct {
	mux    *http.ServeMux
	routes []string
}

func (rt *router) handle(path string, h http.HandlerFunc) {
	rt.routes = append(rt.routes, path)
	rt.mux.HandleFunc(path, h)
}

// route registers h for exactly one method.
func (rt *router) route(path, method string, h http.HandlerFunc) {
	rt.handle(path, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == method {
			h(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})
}

// NewRouter wires every endpoint and the middleware chain.
func NewRouter(sessions *session.Manager, log zerolog.Logger) http.Handler {
	authHandler := handlers.NewAuthHandler(sessions, log)
	accountHandler := handlers.NewAccountHandler(sessions, log)

	// Create router
	rt := &router{mux: http.NewServeMux()}

	// Auth endpoints
	rt.route("/api/login", http.MethodPost, authHandler.Login)
	rt.route("/api/2fa", http.MethodPost, authHandler.VerifyTwoFactor)
	rt.route("/api/logout", http.MethodPost, authHandler.Logout)

	// Account endpoints
	rt.route("/api/account/profile", http.MethodGet, accountHandler.Profile)
	rt.route("/api/account/view", http.MethodPut, accountHandler.Navigate)
	rt.route("/api/account/settings", http.MethodPut, accountHandler.UpdateSettings)
	rt.route("/api/account/balance", http.MethodGet, accountHandler.Balance)

	// Transfer endpoints
	rt.route("/api/account/transfers", http.MethodPost, accountHandler.SubmitTransfer)
	rt.route("/api/account/transfers/confirm", http.MethodPost, accountHandler.ConfirmTransfer)
	rt.handle("/api/account/transfers/pending", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			accountHandler.PendingTransfer(w, r)
		case http.MethodDelete:
			accountHandler.AbandonTransfer(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Transactions endpoints
	rt.route("/api/account/transactions", http.MethodGet, accountHandler.ListTransactions)
	rt.mux.HandleFunc("/api/account/transactions/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		// Extract transaction ID from /api/account/transactions/{id}/resolve
		rest := strings.TrimPrefix(r.URL.Path, "/api/account/transactions/")
		transactionID, action, found := strings.Cut(rest, "/")
		if !found || action != "resolve" || transactionID == "" {
			middleware.WriteError(w, http.StatusNotFound, "Not found")
			return
		}
		accountHandler.ResolveTransaction(w, r, transactionID)
	})
	rt.routes = append(rt.routes, resolveRoute)

	// Insights endpoints
	rt.route("/api/account/insights/spending", http.MethodGet, accountHandler.SpendingBreakdown)
	rt.route("/api/account/insights/tip", http.MethodGet, accountHandler.Tip)
	rt.route("/api/account/fraud/scan", http.MethodPost, accountHandler.ScanForFraud)
	rt.handle("/api/account/chat", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			accountHandler.ChatTranscript(w, r)
		case http.MethodPost:
			accountHandler.Chat(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})
	rt.route("/api/account/export", http.MethodPost, accountHandler.ExportStatement)
	rt.route("/api/account/jobs", http.MethodGet, accountHandler.ListJobs)

	// Health check endpoint
	rt.handle("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"phase":  string(sessions.Phase()),
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	rt.handle("/metrics", metrics.Handler().ServeHTTP)

	// Apply middleware
	return middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(
					middleware.Metrics(rt.routes...)(
						middleware.Auth(sessions.Lookup, AccountPrefix)(rt.mux),
					),
				),
			),
		),
	)
}
