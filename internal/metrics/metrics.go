// Package metrics provides Prometheus instrumentation for the bank service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "securebank"

var (
	// TransfersTotal counts transfer attempts by final outcome
	// (committed, flagged, rejected, cancelled, blocked).
	TransfersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_total",
			Help:      "Transfer attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// ScreenerHitsTotal counts transactions the rule screener marked suspicious.
	ScreenerHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "screener_hits_total",
		Help:      "Transactions flagged by the local rule screener.",
	})

	// ClassifierCallsTotal counts classifier calls by operation and result
	// (ok, fallback).
	ClassifierCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "calls_total",
			Help:      "Classifier calls by operation and result.",
		},
		[]string{"operation", "result"},
	)

	// ClassifierDuration observes classifier latency by operation.
	ClassifierDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "duration_seconds",
			Help:      "Classifier call duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
		},
		[]string{"operation"},
	)

	// RiskScore observes the distribution of returned risk scores.
	RiskScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "risk_score",
		Help:      "Risk scores returned for transfers.",
		Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
	})

	// JobsTotal counts background jobs by final status.
	JobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Background jobs by final status.",
		},
		[]string{"type", "status"},
	)

	// HTTPRequestsTotal counts HTTP requests by method, path and status class.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path and status class.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// ActiveSessions is 1 while a user is logged in.
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_sessions",
		Help:      "Number of active banking sessions.",
	})
)

func init() {
	prometheus.MustRegister(
		TransfersTotal,
		ScreenerHitsTotal,
		ClassifierCallsTotal,
		ClassifierDuration,
		RiskScore,
		JobsTotal,
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ActiveSessions,
	)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveClassifier records one classifier call.
func ObserveClassifier(operation string, start time.Time, fallback bool) {
	result := "ok"
	if fallback {
		result = "fallback"
	}
	ClassifierCallsTotal.WithLabelValues(operation, result).Inc()
	ClassifierDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// ObserveHTTP records one served request.
func ObserveHTTP(method, path string, status int, elapsed time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, path, statusBucket(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// statusBucket folds a status code into its class ("2xx", "4xx", ...).
func statusBucket(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}
