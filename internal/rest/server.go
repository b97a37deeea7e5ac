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
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jeremyhahn/go-passkey/internal/config"
	"github.com/jeremyhahn/go-passkey/pkg/health"
	"github.com/jeremyhahn/go-passkey/pkg/logging"
	"github.com/jeremyhahn/go-passkey/pkg/metrics"
	"github.com/jeremyhahn/go-passkey/pkg/ratelimit"
	"github.com/jeremyhahn/go-passkey/pkg/storage/gormstore"
	"github.com/jeremyhahn/go-passkey/pkg/webauthn"
	passkeyhttp "github.com/jeremyhahn/go-passkey/pkg/webauthn/http"
)

// Server is the passkey REST API server. It assembles the storage layer,
// the passkey service, and the chi router, and owns the background
// challenge sweeper.
type Server struct {
	server        *http.Server
	router        *chi.Mux
	service       *webauthn.Service
	logger        *logging.Logger
	limiter       *ratelimit.Limiter
	checker       *health.Checker
	port          int
	tlsEnabled    bool
	tlsCertFile   string
	tlsKeyFile    string
	sweepInterval time.Duration
	stopSweep     chan struct{}
	sweepDone     chan struct{}
}

// New creates a REST server from the loaded configuration.
func New(cfg *config.Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	logger := logging.NewLogger(cfg.Logging.Debug)

	challenges, creds, users, storagePing, err := buildStores(cfg)
	if err != nil {
		return nil, err
	}

	checker := health.NewChecker()
	checker.RegisterCheck("storage", health.PingCheck("storage", storagePing))

	var minter webauthn.SessionMinter
	if cfg.Session.Enabled {
		key, err := config.LoadSigningKey(cfg.Session.SigningKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load session signing key: %w", err)
		}
		jwtMinter, err := webauthn.NewJWTMinter(&webauthn.JWTMinterConfig{
			PrivateKey: key,
			Issuer:     cfg.Session.Issuer,
			Audience:   cfg.Session.Audience,
			AccessTTL:  cfg.Session.AccessTTL,
			RefreshTTL: cfg.Session.RefreshTTL,
			KeyID:      cfg.Session.KeyID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create session minter: %w", err)
		}
		minter = jwtMinter
	}

	service, err := webauthn.NewService(webauthn.ServiceParams{
		Config:          &cfg.RelyingParty,
		ChallengeStore:  challenges,
		CredentialStore: creds,
		UserStore:       users,
		SessionMinter:   minter,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create passkey service: %w", err)
	}

	limiter := ratelimit.New(&ratelimit.Config{
		Enabled:           cfg.RateLimit.Enabled,
		RequestsPerMinute: cfg.RateLimit.RequestsPerMin,
		Burst:             cfg.RateLimit.Burst,
	})

	if cfg.Metrics.Enabled {
		metrics.Enable()
	} else {
		metrics.Disable()
	}

	s := &Server{
		service:       service,
		logger:        logger,
		limiter:       limiter,
		checker:       checker,
		port:          cfg.Server.Port,
		tlsEnabled:    cfg.Server.TLSEnabled,
		tlsCertFile:   cfg.Server.TLSCertFile,
		tlsKeyFile:    cfg.Server.TLSKeyFile,
		sweepInterval: cfg.Storage.SweepInterval,
		stopSweep:     make(chan struct{}),
		sweepDone:     make(chan struct{}),
	}
	s.router = s.setupRouter(cfg)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s, nil
}

// buildStores creates the challenge, credential, and user stores for the
// configured driver, plus a ping function for the readiness probe.
func buildStores(cfg *config.Config) (webauthn.ChallengeStore, webauthn.CredentialStore, webauthn.UserStore, func(context.Context) error, error) {
	switch cfg.Storage.Driver {
	case "memory":
		ping := func(context.Context) error { return nil }
		return webauthn.NewMemoryChallengeStore(),
			webauthn.NewMemoryCredentialStore(),
			webauthn.NewMemoryUserStore(),
			ping,
			nil
	case "postgres":
		store, err := gormstore.Open(cfg.Storage.DSN)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("failed to open storage: %w", err)
		}
		ping := func(ctx context.Context) error {
			sqlDB, err := store.DB().DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
		return store.Challenges, store.Credentials, store.Users, ping, nil
	default:
		return nil, nil, nil, nil, fmt.Errorf("unknown storage driver: %s", cfg.Storage.Driver)
	}
}

// setupRouter configures the chi router with all routes and middleware.
func (s *Server) setupRouter(cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	r.Use(s.RecoveryMiddleware())
	r.Use(s.CorrelationMiddleware())
	r.Use(s.LoggingMiddleware())
	r.Use(metrics.HTTPMiddleware)

	r.Get("/healthz", s.HealthHandler)
	r.Head("/healthz", s.HealthHandler)
	r.Get("/healthz/ready", s.ReadinessHandler)
	r.Get("/healthz/startup", s.StartupHandler)

	if cfg.Metrics.Enabled {
		r.Method(http.MethodGet, cfg.Metrics.Path, promhttp.Handler())
	}

	handler := passkeyhttp.NewHandler(s.service).WithLogger(s.logger.Slog())
	r.Route("/passkey", func(r chi.Router) {
		if cfg.RateLimit.Enabled {
			r.Use(ratelimit.Middleware(s.limiter))
		}
		passkeyhttp.MountChi(r, handler)
	})

	return r
}

// Router returns the assembled router, for tests and embedding.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Service returns the passkey service.
func (s *Server) Service() *webauthn.Service {
	return s.service
}

// Port returns the port the server is configured to listen on.
func (s *Server) Port() int {
	return s.port
}

// HealthHandler reports liveness.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		fmt.Fprint(w, `{"status":"ok"}`)
	}
}

// ReadinessHandler runs the registered readiness checks. An unhealthy
// dependency returns 503 so the load balancer stops routing ceremonies
// here.
func (s *Server) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	results := s.checker.Ready(r.Context())
	status := health.AggregateStatus(results)

	code := http.StatusOK
	if status != health.StatusHealthy {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status": status,
		"checks": results,
	})
}

// StartupHandler reports whether initialization has completed.
func (s *Server) StartupHandler(w http.ResponseWriter, r *http.Request) {
	result := s.checker.Startup(r.Context())

	code := http.StatusOK
	if result.Status != health.StatusHealthy {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(result)
}

// serveTLS reports whether the listener should speak TLS. Cert and key
// paths alone do not opt in; the tls_enabled flag decides.
func (s *Server) serveTLS() bool {
	return s.tlsEnabled && s.tlsCertFile != "" && s.tlsKeyFile != ""
}

// Start starts the REST server and the challenge sweeper. It blocks until
// the server stops.
func (s *Server) Start() error {
	go s.sweepLoop()
	s.checker.MarkStarted()

	if s.serveTLS() {
		s.logger.Info("Starting HTTPS server", "port", s.port)
		if err := s.server.ListenAndServeTLS(s.tlsCertFile, s.tlsKeyFile); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTPS server: %w", err)
		}
		return nil
	}

	s.logger.Info("Starting HTTP server", "port", s.port)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the REST server and the challenge sweeper.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server")

	close(s.stopSweep)
	select {
	case <-s.sweepDone:
	case <-ctx.Done():
	}

	s.limiter.Stop()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("Server stopped")
	return nil
}

// sweepLoop periodically removes expired challenges.
func (s *Server) sweepLoop() {
	defer close(s.sweepDone)

	if s.sweepInterval <= 0 {
		return
	}

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			n, err := s.service.SweepChallenges(ctx)
			cancel()
			if err != nil {
				s.logger.Errorf("challenge sweep failed: %v", err)
				continue
			}
			if n > 0 {
				metrics.RecordChallengesSwept(n)
				s.logger.Debug("swept expired challenges", "count", n)
			}
		case <-s.stopSweep:
			return
		}
	}
}
