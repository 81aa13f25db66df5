// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthEvents counts auth flows by event (login, register, ...) and result.
	AuthEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aura_auth_events_total",
			Help: "Total number of authentication events",
		},
		[]string{"event", "result"},
	)

	// VerificationTokens counts token lifecycle actions per purpose.
	VerificationTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aura_verification_tokens_total",
			Help: "Verification tokens issued, consumed and purged",
		},
		[]string{"purpose", "action"},
	)

	// EmailDeliveries counts notification mails by kind and result.
	EmailDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aura_email_deliveries_total",
			Help: "Total number of notification mails",
		},
		[]string{"kind", "result"},
	)

	// HousekeepingRuns counts scheduled maintenance runs.
	HousekeepingRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aura_housekeeping_runs_total",
			Help: "Total number of housekeeping runs",
		},
		[]string{"job", "result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aura_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Result turns an error into the "success"/"failure" label.
func Result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// RecordAuthEvent increments the auth event counter.
func RecordAuthEvent(event string, err error) {
	AuthEvents.WithLabelValues(event, Result(err)).Inc()
}

// RecordToken increments the verification token counter.
func RecordToken(purpose, action string, n int64) {
	if n <= 0 {
		return
	}
	VerificationTokens.WithLabelValues(purpose, action).Add(float64(n))
}

// RecordEmail increments the mail delivery counter.
func RecordEmail(kind string, err error) {
	EmailDeliveries.WithLabelValues(kind, Result(err)).Inc()
}

// RecordHousekeeping increments the housekeeping counter.
func RecordHousekeeping(job string, err error) {
	HousekeepingRuns.WithLabelValues(job, Result(err)).Inc()
}

// ObserveRequest records the latency of one HTTP request.
func ObserveRequest(method, path string, status int, d time.Duration) {
	APILatency.WithLabelValues(method, path, strconv.Itoa(status)).Observe(d.Seconds())
}
