// Copyright (c) 2025 ysam020
//
// This file is part of hrms-sub000.
//
// hrms-sub000 is licensed under the GNU Affero General Public License v3.0
// (AGPL-3.0). See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

// Package server wires the WebAuthn service, storage, and HTTP surface into
// a runnable server.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ysam020/hrms-sub000/internal/config"
	"github.com/ysam020/hrms-sub000/pkg/audit"
	"github.com/ysam020/hrms-sub000/pkg/health"
	"github.com/ysam020/hrms-sub000/pkg/logging"
	"github.com/ysam020/hrms-sub000/pkg/metrics"
	"github.com/ysam020/hrms-sub000/pkg/ratelimit"
	"github.com/ysam020/hrms-sub000/pkg/storage"
	"github.com/ysam020/hrms-sub000/pkg/storage/file"
	"github.com/ysam020/hrms-sub000/pkg/user"
	"github.com/ysam020/hrms-sub000/pkg/webauthn"
	webauthnhttp "github.com/ysam020/hrms-sub000/pkg/webauthn/http"
)

// Server is the HRMS authentication server.
type Server struct {
	config     *config.Config
	logger     *logging.Logger
	backend    storage.Backend
	users      user.Store
	challenges *webauthn.MemoryChallengeStore
	service    *webauthn.Service
	bridge     *webauthn.Bridge
	tokens     *webauthn.DefaultJWTGenerator
	auditor    audit.Recorder
	limiter    *ratelimit.Limiter
	checker    *health.Checker
	httpServer *http.Server
}

// New creates a server from the loaded configuration.
func New(cfg *config.Config) (*Server, error) {
	logger := logging.NewLogger(cfg.Logging.Level == "debug", cfg.Logging.Format)

	backend, err := newBackend(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage backend: %w", err)
	}

	users, err := user.NewFileStore(backend)
	if err != nil {
		return nil, fmt.Errorf("failed to create user store: %w", err)
	}

	challenges := webauthn.NewMemoryChallengeStore()

	webauthnCfg := cfg.WebAuthn
	service, err := webauthn.NewService(webauthn.ServiceParams{
		Config:     &webauthnCfg,
		Users:      users,
		Challenges: challenges,
		Logger:     logger.Slog(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create webauthn service: %w", err)
	}

	tokens, err := webauthn.NewDefaultJWTGenerator(&webauthn.JWTGeneratorConfig{
		Secret:    []byte(cfg.Auth.Secret),
		Issuer:    cfg.Auth.Issuer,
		Audience:  cfg.Auth.Audience,
		ExpiresIn: cfg.Auth.ExpiresIn,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create token generator: %w", err)
	}

	auditor := audit.NewSlogRecorder(logger.Slog())

	bridge, err := webauthn.NewBridge(webauthn.BridgeParams{
		Handoff:   challenges,
		Users:     users,
		Tokens:    tokens,
		ResultTTL: webauthnCfg.HandoffTTL,
		Auditor:   auditor,
		Logger:    logger.Slog(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bridge: %w", err)
	}

	limiter := ratelimit.New(&ratelimit.Config{
		Enabled:           cfg.RateLimit.Enabled,
		AttemptsPerMinute: cfg.RateLimit.AttemptsPerMinute,
		Burst:             cfg.RateLimit.Burst,
	})

	s := &Server{
		config:     cfg,
		logger:     logger,
		backend:    backend,
		users:      users,
		challenges: challenges,
		service:    service,
		bridge:     bridge,
		tokens:     tokens,
		auditor:    auditor,
		limiter:    limiter,
		checker:    newChecker(backend),
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      s.buildRouter(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s, nil
}

func newBackend(cfg *config.Config) (storage.Backend, error) {
	switch cfg.Storage.Backend {
	case "file":
		return file.New(cfg.Storage.Path)
	default:
		return storage.NewMemory(), nil
	}
}

func newChecker(backend storage.Backend) *health.Checker {
	checker := health.NewChecker()
	checker.RegisterCheck("storage", func(ctx context.Context) error {
		_, err := backend.List("")
		return err
	})
	return checker
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	if s.config.Metrics.Enabled {
		r.Use(metrics.HTTPMiddleware)
	}
	if s.limiter.IsEnabled() {
		r.Use(ratelimit.Middleware(s.limiter))
	}

	handler := webauthnhttp.NewHandler(s.service, s.bridge).
		WithLogger(s.logger.Slog()).
		WithAuditor(s.auditor)
	webauthnhttp.MountChi(r, handler, s.tokens)

	r.Get("/health", s.handleHealth)
	r.Get("/health/ready", s.handleReady)
	if s.config.Metrics.Enabled {
		r.Handle(s.config.Metrics.Path, promhttp.Handler())
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	results := s.checker.Ready(r.Context())
	status := health.AggregateStatus(results)

	code := http.StatusOK
	if status != health.StatusHealthy {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": status,
		"checks": results,
	})
}

// Handler returns the HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins serving. It returns once the listener goroutine is running.
func (s *Server) Start() error {
	if err := s.challenges.Connect(context.Background()); err != nil {
		return fmt.Errorf("failed to start challenge store: %w", err)
	}

	s.logger.Info("HTTP server listening",
		"addr", s.httpServer.Addr,
		"rp_id", s.config.WebAuthn.RPID)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error(fmt.Errorf("http server: %w", err))
		}
	}()

	return nil
}

// Shutdown gracefully stops the server and releases its resources.
func (s *Server) Shutdown() error {
	s.logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	var firstErr error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		firstErr = fmt.Errorf("http shutdown: %w", err)
	}
	s.limiter.Stop()
	if err := s.challenges.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("challenge store close: %w", err)
	}
	if err := s.users.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("user store close: %w", err)
	}
	return firstErr
}

// SetupSignalHandler returns a context cancelled on SIGINT or SIGTERM.
func SetupSignalHandler() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-signalCh
		slog.Info("Received shutdown signal")
		cancel()
	}()

	return ctx
}
