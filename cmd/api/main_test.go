package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dvloznov/securebank/internal/config"
	"github.com/dvloznov/securebank/internal/logger"
	"github.com/shopspring/decimal"
)

func TestNewAppWithoutOptionalBackends(t *testing.T) {
	cfg := &config.Config{
		Port:               "0",
		RiskBlockThreshold: config.DefaultRiskBlockThreshold,
		HistoryWindow:      config.DefaultHistoryWindow,
		CategorizeWorkers:  1,
		InitialBalance:     decimal.NewFromInt(1000),
		Currency:           "INR",
		DemoUsername:       "demo",
		DemoPassword:       "password",
	}

	a, err := newApp(context.Background(), cfg, false, logger.Nop())
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer a.close()
	defer a.sessions.Shutdown(context.Background())

	if a.classifier.Available() {
		t.Error("classifier must be unavailable without an API key")
	}
	if a.server.Addr != ":0" {
		t.Errorf("Addr = %q", a.server.Addr)
	}

	rec := httptest.NewRecorder()
	a.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("/health = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	body := strings.NewReader(`{"username":"demo","password":"password"}`)
	a.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/login", body))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"phase":"active"`) {
		t.Errorf("login = %d %s", rec.Code, rec.Body.String())
	}
}
