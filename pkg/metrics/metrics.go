// Copyright (c) 2025 ysam020
//
// This file is part of hrms-sub000.
//
// hrms-sub000 is licensed under the GNU Affero General Public License v3.0
// (AGPL-3.0). See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

// Package metrics provides Prometheus instrumentation for WebAuthn ceremonies
// and the HTTP surface that drives them. It exposes ceremony counters, failure
// counters broken down by reason, and request histograms so that registration
// and login health can be monitored in production.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all hrms metrics
	Namespace = "hrms"

	// Label names
	LabelCeremony   = "ceremony"
	LabelStatus     = "status"
	LabelReason     = "reason"
	LabelMethod     = "method"
	LabelStatusCode = "status_code"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// Ceremony names
	CeremonyRegistration = "registration"
	CeremonyLogin        = "login"
)

var (
	// CeremoniesTotal tracks the total number of WebAuthn ceremonies by
	// ceremony type and status.
	CeremoniesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "webauthn",
			Name:      "ceremonies_total",
			Help:      "Total number of WebAuthn ceremonies by type and status",
		},
		[]string{LabelCeremony, LabelStatus},
	)

	// CeremonyDuration tracks the server-side duration of WebAuthn ceremony
	// verification in seconds.
	CeremonyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "webauthn",
			Name:      "ceremony_duration_seconds",
			Help:      "Duration of WebAuthn ceremony verification in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{LabelCeremony},
	)

	// FailuresTotal tracks WebAuthn verification failures by ceremony type and
	// failure reason (e.g. "counter_replay", "invalid_signature").
	FailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "webauthn",
			Name:      "failures_total",
			Help:      "Total number of WebAuthn verification failures by reason",
		},
		[]string{LabelCeremony, LabelReason},
	)

	// ChallengesIssued tracks the total number of challenges issued by
	// ceremony type.
	ChallengesIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "webauthn",
			Name:      "challenges_issued_total",
			Help:      "Total number of WebAuthn challenges issued",
		},
		[]string{LabelCeremony},
	)

	// HTTPRequestsTotal tracks the total number of HTTP requests by method and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method and status code",
		},
		[]string{LabelMethod, LabelStatusCode},
	)

	// HTTPRequestDuration tracks the duration of HTTP requests in seconds.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelMethod},
	)

	// ActiveSessions tracks the number of users with an unconsumed
	// verification result waiting for login completion.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "pending_logins",
			Help:      "Number of verified users awaiting login completion",
		},
	)

	// enabled tracks whether metrics collection is enabled
	enabled atomic.Bool
)

func init() {
	// Metrics are enabled by default
	enabled.Store(true)
}

// RecordCeremony records a completed WebAuthn ceremony with its duration and status.
//
// Example:
//
//	start := time.Now()
//	err := svc.FinishLogin(ctx, username, resp)
//	duration := time.Since(start).Seconds()
//	if err != nil {
//	    metrics.RecordCeremony(metrics.CeremonyLogin, metrics.StatusError, duration)
//	} else {
//	    metrics.RecordCeremony(metrics.CeremonyLogin, metrics.StatusSuccess, duration)
//	}
func RecordCeremony(ceremony, status string, duration float64) {
	if !enabled.Load() {
		return
	}
	CeremoniesTotal.WithLabelValues(ceremony, status).Inc()
	CeremonyDuration.WithLabelValues(ceremony).Observe(duration)
}

// RecordFailure records a verification failure with the reason it failed.
// Reasons are stable identifiers such as "counter_replay" or "origin_mismatch",
// never raw error strings.
func RecordFailure(ceremony, reason string) {
	if !enabled.Load() {
		return
	}
	FailuresTotal.WithLabelValues(ceremony, reason).Inc()
}

// RecordChallengeIssued records that a challenge was issued for a ceremony.
func RecordChallengeIssued(ceremony string) {
	if !enabled.Load() {
		return
	}
	ChallengesIssued.WithLabelValues(ceremony).Inc()
}

// RecordHTTPRequest records an HTTP request with its duration and status.
func RecordHTTPRequest(method, statusCode string, duration float64) {
	if !enabled.Load() {
		return
	}
	HTTPRequestsTotal.WithLabelValues(method, statusCode).Inc()
	HTTPRequestDuration.WithLabelValues(method).Observe(duration)
}

// Enable turns on metrics collection. Metrics are enabled by default.
func Enable() {
	enabled.Store(true)
}

// Disable turns off metrics collection. Record functions become no-ops.
func Disable() {
	enabled.Store(false)
}

// IsEnabled returns whether metrics collection is currently enabled.
func IsEnabled() bool {
	return enabled.Load()
}
