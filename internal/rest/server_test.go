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

package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-passkey/internal/config"
	"github.com/jeremyhahn/go-passkey/pkg/webauthn"
)

func testServerConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:         8443,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		RelyingParty: webauthn.Config{
			RPID:          "example.com",
			RPDisplayName: "Example",
			RPOrigins:     []string{"https://example.com"},
		},
		Storage: config.StorageConfig{
			Driver:        "memory",
			SweepInterval: time.Minute,
		},
		RateLimit: config.RateLimitConfig{Enabled: false},
		Metrics:   config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func TestNewServer(t *testing.T) {
	srv, err := New(testServerConfig())
	require.NoError(t, err)
	assert.Equal(t, 8443, srv.Port())
	assert.NotNil(t, srv.Service())
}

func TestNewServerInvalid(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	cfg := testServerConfig()
	cfg.Storage.Driver = "redis"
	_, err = New(cfg)
	assert.Error(t, err)

	cfg = testServerConfig()
	cfg.RelyingParty.RPID = ""
	_, err = New(cfg)
	assert.Error(t, err)
}

func TestHealthz(t *testing.T) {
	srv, err := New(testServerConfig())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadinessAndStartup(t *testing.T) {
	srv, err := New(testServerConfig())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "storage")

	// Startup reports unavailable until Start marks initialization done.
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz/startup", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	srv.checker.MarkStarted()
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz/startup", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCorrelationHeader(t *testing.T) {
	srv, err := New(testServerConfig())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Correlation-ID", "ceremony-42")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, "ceremony-42", rec.Header().Get("X-Correlation-ID"))

	// A missing ID is generated server-side.
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	srv, err := New(testServerConfig())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "passkey_")
}

func TestPasskeyRoutesMounted(t *testing.T) {
	srv, err := New(testServerConfig())
	require.NoError(t, err)

	body, err := json.Marshal(map[string]string{"username": "alice@example.com"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "https://example.com/passkey/register/options", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var opts webauthn.CreationOptions
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &opts))
	assert.Equal(t, "example.com", opts.RelyingParty.ID)
	assert.NotEmpty(t, opts.Challenge)
}

func TestRateLimitOnCeremonyRoutes(t *testing.T) {
	cfg := testServerConfig()
	cfg.RateLimit = config.RateLimitConfig{
		Enabled:        true,
		RequestsPerMin: 60,
		Burst:          2,
	}
	srv, err := New(cfg)
	require.NoError(t, err)

	do := func(path string) int {
		req := httptest.NewRequest(http.MethodPost, "https://example.com"+path, bytes.NewReader([]byte(`{}`)))
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)
		return rec.Code
	}

	require.NotEqual(t, http.StatusTooManyRequests, do("/passkey/authenticate/options"))
	require.NotEqual(t, http.StatusTooManyRequests, do("/passkey/authenticate/options"))
	assert.Equal(t, http.StatusTooManyRequests, do("/passkey/authenticate/options"))

	// Health stays outside the limiter.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	srv, err := New(testServerConfig())
	require.NoError(t, err)
	srv.Router().Get("/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal_error")
}

func TestTLSRequiresEnabledFlag(t *testing.T) {
	// Cert and key paths alone must not switch the listener to TLS.
	cfg := testServerConfig()
	cfg.Server.TLSCertFile = "/etc/passkey/tls.crt"
	cfg.Server.TLSKeyFile = "/etc/passkey/tls.key"
	srv, err := New(cfg)
	require.NoError(t, err)
	assert.False(t, srv.serveTLS())

	cfg.Server.TLSEnabled = true
	srv, err = New(cfg)
	require.NoError(t, err)
	assert.True(t, srv.serveTLS())
}

func TestSweepLoopStops(t *testing.T) {
	cfg := testServerConfig()
	cfg.Storage.SweepInterval = 10 * time.Millisecond
	srv, err := New(cfg)
	require.NoError(t, err)

	go srv.sweepLoop()
	time.Sleep(30 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))
}
