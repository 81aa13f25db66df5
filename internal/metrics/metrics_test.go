// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package metrics_test

import (
	"errors"
	"testing"
	"time"

	"codeberg.org/oliverandrich/aura/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestResult(t *testing.T) {
	assert.Equal(t, "success", metrics.Result(nil))
	assert.Equal(t, "failure", metrics.Result(errors.New("boom")))
}

func TestRecordAuthEvent(t *testing.T) {
	before := testutil.ToFloat64(metrics.AuthEvents.WithLabelValues("login", "failure"))

	metrics.RecordAuthEvent("login", errors.New("bad password"))

	after := testutil.ToFloat64(metrics.AuthEvents.WithLabelValues("login", "failure"))
	assert.Equal(t, before+1, after)
}

func TestRecordToken_IgnoresZero(t *testing.T) {
	before := testutil.ToFloat64(metrics.VerificationTokens.WithLabelValues("password_reset", "purged"))

	metrics.RecordToken("password_reset", "purged", 0)
	metrics.RecordToken("password_reset", "purged", 3)

	after := testutil.ToFloat64(metrics.VerificationTokens.WithLabelValues("password_reset", "purged"))
	assert.Equal(t, before+3, after)
}

func TestObserveRequest(t *testing.T) {
	metrics.ObserveRequest("GET", "/health", 200, 5*time.Millisecond)

	assert.Positive(t, testutil.CollectAndCount(metrics.APILatency))
}
