package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Signups counts signup attempts by outcome (created, invalid, error).
var Signups = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "spamguard_signups_total",
		Help: "Signup attempts by outcome",
	},
	[]string{"outcome"},
)

// Logins counts login attempts by outcome (ok, not_found, bad_password, error).
var Logins = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "spamguard_logins_total",
		Help: "Login attempts by outcome",
	},
	[]string{"outcome"},
)

// Classifications counts served classifications by label.
var Classifications = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "spamguard_classifications_total",
		Help: "Classifications served by label",
	},
	[]string{"label"},
)

// ClassificationErrors counts inference failures.
var ClassificationErrors = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "spamguard_classification_errors_total",
		Help: "Tokenization or inference failures",
	},
)

// InferenceLatency records the duration of tokenization plus forward pass.
var InferenceLatency = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "spamguard_inference_latency_seconds",
		Help:    "Latency in seconds of a single classification forward pass",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	},
)

// Registry holds the collectors above and is served on /metrics.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(Signups, Logins, Classifications, ClassificationErrors, InferenceLatency)
}
