package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dvloznov/securebank/internal/metrics"
	"github.com/dvloznov/securebank/internal/session"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
)

func TestRoutePattern(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/account/balance", "/api/account/balance"},
		{"/api/account/transactions/6f1c2a7e-3b4d-4e5f-8a9b-0c1d2e3f4a5b/resolve", "/api/account/transactions/{id}/resolve"},
		{"/", "/"},
	}
	for _, tt := range tests {
		if got := RoutePattern(tt.path); got != tt.want {
			t.Errorf("RoutePattern(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestRouteAndMethodLabels(t *testing.T) {
	known := map[string]struct{}{
		"/api/account/balance":                   {},
		"/api/account/transactions/{id}/resolve": {},
	}
	routes := []struct {
		path string
		want string
	}{
		{"/api/account/balance", "/api/account/balance"},
		{"/api/account/transactions/6f1c2a7e-3b4d-4e5f-8a9b-0c1d2e3f4a5b/resolve", "/api/account/transactions/{id}/resolve"},
		{"/wp-admin/setup.php", OtherRoute},
		{"/api/account/balance/6f1c2a7e-3b4d-4e5f-8a9b-0c1d2e3f4a5b", OtherRoute},
	}
	for _, tt := range routes {
		if got := routeLabel(tt.path, known); got != tt.want {
			t.Errorf("routeLabel(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}

	methods := map[string]string{
		http.MethodGet:    http.MethodGet,
		http.MethodDelete: http.MethodDelete,
		"FOO":             "OTHER",
		"PROPFIND":        "OTHER",
	}
	for in, want := range methods {
		if got := methodLabel(in); got != want {
			t.Errorf("methodLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMetricsFoldsUnknownRoutes(t *testing.T) {
	counter := func(method, route string) float64 {
		var m dto.Metric
		if err := metrics.HTTPRequestsTotal.WithLabelValues(method, route, "4xx").Write(&m); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		return m.GetCounter().GetValue()
	}

	h := Metrics("/health")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	before := counter("OTHER", OtherRoute)
	for _, path := range []string{"/random-1", "/random-2", "/random-3"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("FOO", path, nil))
	}
	if got := counter("OTHER", OtherRoute) - before; got != 3 {
		t.Errorf("other route count delta = %v, want 3", got)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer  xyz ", "xyz"},
		{"Basic abc", ""},
		{"", ""},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		if got := BearerToken(r); got != tt.want {
			t.Errorf("BearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestAuth(t *testing.T) {
	var lookups int
	lookup := func(token string) (*session.Session, error) {
		lookups++
		return nil, errors.New("no session")
	}
	var reached bool
	h := Auth(lookup, "/api/account/")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if !reached || rec.Code != http.StatusNoContent || lookups != 0 {
		t.Errorf("public path: reached=%v code=%d lookups=%d", reached, rec.Code, lookups)
	}

	reached = false
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/account/balance", nil))
	if reached || rec.Code != http.StatusUnauthorized {
		t.Errorf("protected path: reached=%v code=%d", reached, rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/account/balance", nil))
	if !reached {
		t.Error("preflight should pass through")
	}
}

func TestRecoveryAndRequestID(t *testing.T) {
	h := Recovery(zerolog.Nop())(RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if RequestIDFromContext(r.Context()) == "" {
			t.Error("request id missing from context")
		}
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
