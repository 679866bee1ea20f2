// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the composition root: New builds the store, token
// service, event bus, services and handlers, and setupRoutes decides which
// URL maps to which handler and which middleware guards it.
//
// DEPENDENCY INJECTION FLOW:
//
//	config.ServerConfig → Server.New():
//	    store  (sqlite.DB | postgres.DB)
//	    tokens (auth.TokenService | auth.PasetoService)
//	    bus    (events.MemoryBus | events.RedisBus)
//	        → AccountService, DirectoryService, ChatService
//	        → AccountHandler, DirectoryHandler, ChatHandler, HealthHandler
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sakif/chat-directory/internal/auth"
	"github.com/sakif/chat-directory/internal/chat"
	"github.com/sakif/chat-directory/internal/config"
	"github.com/sakif/chat-directory/internal/events"
	"github.com/sakif/chat-directory/internal/handler"
	"github.com/sakif/chat-directory/internal/middleware"
	"github.com/sakif/chat-directory/internal/repository"
	"github.com/sakif/chat-directory/internal/repository/postgres"
	sqliteRepo "github.com/sakif/chat-directory/internal/repository/sqlite"
	"github.com/sakif/chat-directory/internal/service"
)

// ServiceName identifies the server in traces and the Redis channel prefix.
const ServiceName = "chat-directory"

// Store is what the server needs from a user database.
type Store interface {
	repository.UserRepository
	Ping(ctx context.Context) error
	Close() error
}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the store and the event bus. Both are closed in Close,
// which Start calls once the HTTP server has drained.
type Server struct {
	router *chi.Mux
	config config.ServerConfig
	logger *slog.Logger
	store  Store
	bus    events.Bus
}

// New creates a Server from cfg, opening the database and the event bus.
func New(ctx context.Context, cfg config.ServerConfig, logger *slog.Logger) (*Server, error) {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	bus, err := openBus(ctx, cfg, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	s, err := NewWithDeps(cfg, logger, store, bus)
	if err != nil {
		bus.Close()
		store.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDeps builds a Server around an already-open store and bus. Tests
// use it with an in-memory SQLite store.
func NewWithDeps(cfg config.ServerConfig, logger *slog.Logger, store Store, bus events.Bus) (*Server, error) {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  store,
		bus:    bus,
	}

	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

func openStore(ctx context.Context, cfg config.ServerConfig, logger *slog.Logger) (Store, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		db, err := postgres.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, fmt.Errorf("opening postgres: %w", err)
		}
		return db, nil
	default:
		if cfg.DBPath != sqliteRepo.MemoryPath {
			// os.MkdirAll creates all parent directories if needed (like `mkdir -p`).
			if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		db, err := sqliteRepo.New(ctx, cfg.DBPath, logger)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		return db, nil
	}
}

func openBus(ctx context.Context, cfg config.ServerConfig, logger *slog.Logger) (events.Bus, error) {
	if cfg.RedisURL == "" {
		return events.NewMemoryBus(), nil
	}
	bus, err := events.NewRedisBus(ctx, cfg.RedisURL, ServiceName+":", logger)
	if err != nil {
		return nil, fmt.Errorf("connecting event bus: %w", err)
	}
	return bus, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// POST   /api/users/register   → Register (public)
// POST   /api/users/login      → Login (public)
// GET    /api/users?search=    → Directory search (auth)
// GET    /api/users/me         → Own profile (auth)
// PUT    /api/users/me         → Update own account (auth)
// POST   /api/chats            → Start or reuse a chat (auth)
// GET    /healthz              → Liveness (public)
//
// MIDDLEWARE ORDER MATTERS:
// 1. CORS: must run first so preflight requests are answered
// 2. SecurityHeaders
// 3. RequestID, RealIP
// 4. Logger: logs each request with its request ID
// 5. Recoverer: catches panics and returns 500 instead of crashing
func (s *Server) setupRoutes() error {
	if len(s.config.TrustedOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.config.TrustedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	s.router.Use(middleware.SecurityHeaders)
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	tokens, err := auth.NewTokens(s.config.TokenSettings())
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordServiceWithCost(s.config.BcryptCost)

	accountService, err := service.NewAccountService(s.store, passwords, tokens, s.logger)
	if err != nil {
		return fmt.Errorf("creating account service: %w", err)
	}
	directoryService := service.NewDirectoryService(s.store, s.logger)
	chatService := service.NewChatService(s.store, chat.NewMemoryStore(), s.bus, s.logger)

	accountHandler := handler.NewAccountHandler(accountService, s.logger)
	directoryHandler := handler.NewDirectoryHandler(directoryService, s.logger)
	chatHandler := handler.NewChatHandler(chatService, s.logger)
	healthHandler := handler.NewHealthHandler(s.store, s.logger)

	s.router.Get("/healthz", healthHandler.HandleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/users/register", accountHandler.HandleRegister)
		r.Post("/users/login", accountHandler.HandleLogin)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.Get("/users", directoryHandler.HandleSearch)
			r.Get("/users/me", accountHandler.HandleMe)
			r.Put("/users/me", accountHandler.HandleUpdateMe)
			r.Post("/chats", chatHandler.HandleStart)
		})
	})

	return nil
}

// Handler returns the root handler, instrumented with OpenTelemetry.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, ServiceName)
}

// Close releases the event bus and the database.
func (s *Server) Close() error {
	return errors.Join(s.bus.Close(), s.store.Close())
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (SHUTDOWN_TIMEOUT)
// 3. Close the event bus and the database
func (s *Server) Start() error {
	defer func() {
		if err := s.Close(); err != nil {
			s.logger.Error("closing resources", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("driver", s.config.DBDriver),
			slog.String("tokens", s.config.TokenFormat),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
