package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
)

func TestStatusBucket(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "2xx"},
		{201, "2xx"},
		{302, "3xx"},
		{409, "4xx"},
		{422, "4xx"},
		{503, "5xx"},
		{42, "unknown"},
	}

	for _, tt := range tests {
		if got := statusBucket(tt.code); got != tt.want {
			t.Errorf("statusBucket(%d) = %s, want %s", tt.code, got, tt.want)
		}
	}
}

func TestObserveClassifier(t *testing.T) {
	before := counterValue(t, "assess_risk", "fallback")
	ObserveClassifier("assess_risk", time.Now(), true)
	after := counterValue(t, "assess_risk", "fallback")

	if after-before != 1 {
		t.Errorf("fallback counter delta = %v, want 1", after-before)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ActiveSessions.Set(1)
	defer ActiveSessions.Set(0)

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "securebank_active_sessions 1") {
		t.Error("Expected metrics output to contain securebank_active_sessions")
	}
}

func counterValue(t *testing.T, operation, result string) float64 {
	t.Helper()
	var m dto.Metric
	if err := ClassifierCallsTotal.WithLabelValues(operation, result).Write(&m); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	return m.GetCounter().GetValue()
}
