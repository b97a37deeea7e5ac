// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsEnabled(t *testing.T) {
	// Metrics should be enabled by default
	if !IsEnabled() {
		t.Error("Expected metrics to be enabled by default")
	}

	Disable()
	if IsEnabled() {
		t.Error("Expected metrics to be disabled after Disable()")
	}

	Enable()
	if !IsEnabled() {
		t.Error("Expected metrics to be enabled after Enable()")
	}
}

func TestRecordCeremony(t *testing.T) {
	Enable()
	CeremoniesTotal.Reset()
	CeremonyDuration.Reset()

	RecordCeremony(CeremonyRegistration, StatusSuccess, 0.02)

	if count := testutil.CollectAndCount(CeremoniesTotal); count != 1 {
		t.Errorf("Expected 1 ceremony recorded, got %d", count)
	}
	if count := testutil.CollectAndCount(CeremonyDuration); count != 1 {
		t.Errorf("Expected 1 histogram sample, got %d", count)
	}

	RecordCeremony(CeremonyAuthentication, StatusError, 0.01)

	if count := testutil.CollectAndCount(CeremoniesTotal); count != 2 {
		t.Errorf("Expected 2 ceremonies recorded, got %d", count)
	}
}

func TestRecordCeremonyWhenDisabled(t *testing.T) {
	Disable()
	defer Enable()
	CeremoniesTotal.Reset()

	RecordCeremony(CeremonyRegistration, StatusSuccess, 0.02)

	if count := testutil.CollectAndCount(CeremoniesTotal); count != 0 {
		t.Errorf("Expected 0 ceremonies recorded while disabled, got %d", count)
	}
}

func TestRecordVerifyFailure(t *testing.T) {
	Enable()
	VerifyFailuresTotal.Reset()

	RecordVerifyFailure(CeremonyAuthentication, "counter_replay")
	RecordVerifyFailure(CeremonyAuthentication, "counter_replay")
	RecordVerifyFailure(CeremonyRegistration, "origin_mismatch")

	got := testutil.ToFloat64(VerifyFailuresTotal.WithLabelValues(CeremonyAuthentication, "counter_replay"))
	if got != 2 {
		t.Errorf("Expected 2 counter_replay failures, got %v", got)
	}
}

func TestRecordSecurityEvent(t *testing.T) {
	Enable()
	SecurityEventsTotal.Reset()

	RecordSecurityEvent("counter_replay")

	got := testutil.ToFloat64(SecurityEventsTotal.WithLabelValues("counter_replay"))
	if got != 1 {
		t.Errorf("Expected 1 security event, got %v", got)
	}
}

func TestRecordChallengesSwept(t *testing.T) {
	Enable()

	before := testutil.ToFloat64(ChallengesSweptTotal)
	RecordChallengesSwept(3)
	RecordChallengesSwept(0)
	RecordChallengesSwept(-1)
	after := testutil.ToFloat64(ChallengesSweptTotal)

	if after-before != 3 {
		t.Errorf("Expected sweep counter to advance by 3, got %v", after-before)
	}
}

func TestHTTPMiddleware(t *testing.T) {
	Enable()
	HTTPRequestsTotal.Reset()
	HTTPRequestDuration.Reset()

	handler := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("Expected status passthrough, got %d", rec.Code)
	}
	got := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, "418"))
	if got != 1 {
		t.Errorf("Expected 1 request recorded, got %v", got)
	}
}
