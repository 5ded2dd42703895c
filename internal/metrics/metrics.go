// Package metrics holds the prometheus collectors of the admin service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Login outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeInvalid  = "invalid_request"
	OutcomeError    = "error"
)

// Gate decisions.
const (
	DecisionAllow         = "allow"
	DecisionRedirectLogin = "redirect_login"
	DecisionRedirectHome  = "redirect_home"
	DecisionPass          = "pass"
)

var (
	// LoginAttempts counts login attempts.
	// Labels:
	//   - outcome: success, rejected, invalid_request, error
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_login_attempts_total",
			Help: "Total number of admin login attempts",
		},
		[]string{"outcome"},
	)

	// LoginDuration measures login handling including key derivation.
	LoginDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "admin_login_duration_seconds",
			Help:    "Duration of admin login operations in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	// GateDecisions counts request gate outcomes.
	GateDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_gate_decisions_total",
			Help: "Total number of request gate decisions",
		},
		[]string{"decision"},
	)

	// PasswordChanges counts password change attempts.
	PasswordChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_password_changes_total",
			Help: "Total number of admin password change attempts",
		},
		[]string{"outcome"},
	)
)

// RecordLogin increments LoginAttempts for outcome.
func RecordLogin(outcome string) {
	LoginAttempts.WithLabelValues(outcome).Inc()
}

// RecordGateDecision increments GateDecisions for decision.
func RecordGateDecision(decision string) {
	GateDecisions.WithLabelValues(decision).Inc()
}

// RecordPasswordChange increments PasswordChanges for outcome.
func RecordPasswordChange(outcome string) {
	PasswordChanges.WithLabelValues(outcome).Inc()
}
