package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/xiaohuanlin/algoassistant-sync/internal/core/ports/driven"
	"github.com/xiaohuanlin/algoassistant-sync/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	logger     *slog.Logger

	// Services
	authService   driving.AuthService // nil disables authentication
	syncTasks     driving.SyncTaskService
	records       driving.RecordService
	configService driving.ConfigService

	// Infrastructure
	taskQueue      driven.TaskQueue
	db             Pinger // PostgreSQL health check
	redisClient    Pinger // Redis health check (optional)
	metricsHandler http.Handler
}

// Config holds server configuration
type Config struct {
	Host        string
	Port        int
	Version     string
	CORSOrigins []string
	Logger      *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:    "0.0.0.0",
		Port:    8080,
		Version: "dev",
	}
}

// Services bundles what the routes are served from
type Services struct {
	Auth      driving.AuthService // Optional: nil serves every route unauthenticated
	SyncTasks driving.SyncTaskService
	Records   driving.RecordService
	Configs   driving.ConfigService

	TaskQueue driven.TaskQueue
	DB        Pinger
	Redis     Pinger       // Optional
	Metrics   http.Handler // Optional: served on /metrics
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, svc Services) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router:         http.NewServeMux(),
		version:        cfg.Version,
		logger:         logger,
		authService:    svc.Auth,
		syncTasks:      svc.SyncTasks,
		records:        svc.Records,
		configService:  svc.Configs,
		taskQueue:      svc.TaskQueue,
		db:             svc.DB,
		redisClient:    svc.Redis,
		metricsHandler: svc.Metrics,
	}

	s.setupRoutes()

	var handler http.Handler = s.router
	handler = NewCORSMiddleware(cfg.CORSOrigins).Handler(handler)
	handler = NewLoggingMiddleware(logger).Handler(handler)
	handler = RequestID(handler)
	handler = NewRecoveryMiddleware(logger).Handler(handler)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	auth := NewAuthMiddleware(s.authService)
	member := func(h http.HandlerFunc) http.Handler {
		return auth.Authenticate(h)
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return auth.Authenticate(auth.RequireAdmin(h))
	}

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)
	if s.metricsHandler != nil {
		s.router.Handle("GET /metrics", s.metricsHandler)
	}

	// Sync task endpoints
	s.router.Handle("GET /api/v1/sync-tasks", member(s.handleListSyncTasks))
	s.router.Handle("GET /api/v1/sync-tasks/stats", member(s.handleSyncTaskStats))
	s.router.Handle("POST /api/v1/sync-tasks", member(s.handleCreateSyncTask))
	s.router.Handle("GET /api/v1/sync-tasks/{id}", member(s.handleGetSyncTask))
	s.router.Handle("GET /api/v1/sync-tasks/{id}/items", member(s.handleListSyncTaskItems))
	s.router.Handle("PUT /api/v1/sync-tasks/{id}", member(s.handleUpdateSyncTask))
	s.router.Handle("DELETE /api/v1/sync-tasks/{id}", member(s.handleDeleteSyncTask))

	// Record endpoints
	s.router.Handle("GET /api/v1/records", member(s.handleListRecords))
	s.router.Handle("POST /api/v1/records", member(s.handleCreateRecord))
	s.router.Handle("GET /api/v1/records/{id}", member(s.handleGetRecord))
	s.router.Handle("DELETE /api/v1/records/{id}", member(s.handleDeleteRecord))
	s.router.Handle("POST /api/v1/records/{id}/sync", member(s.handleSyncRecord))

	// Provider configuration endpoints (admin-only for mutations)
	s.router.Handle("GET /api/v1/configs", member(s.handleListConfigs))
	s.router.Handle("GET /api/v1/configs/{provider}", member(s.handleGetConfig))
	s.router.Handle("PUT /api/v1/configs/{provider}", admin(s.handleSaveConfig))
	s.router.Handle("DELETE /api/v1/configs/{provider}", admin(s.handleDeleteConfig))
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
