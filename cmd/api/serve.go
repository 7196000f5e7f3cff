package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	httpAdapter "github.com/swaraj/complaints-backend/internal/adapters/primary/http"
	mw "github.com/swaraj/complaints-backend/internal/adapters/primary/http/middleware"
	"github.com/swaraj/complaints-backend/internal/adapters/primary/websocket"
	"github.com/swaraj/complaints-backend/internal/adapters/secondary/postgres"
	"github.com/swaraj/complaints-backend/internal/auth"
	"github.com/swaraj/complaints-backend/internal/config"
	"github.com/swaraj/complaints-backend/internal/core/services"
	"github.com/swaraj/complaints-backend/internal/infrastructure/logging"
	"github.com/swaraj/complaints-backend/internal/infrastructure/metrics"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the engagement API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// 2. Initialize Structured Logger
	logger := logging.NewLogger(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      os.Stdout,
		ServiceName: cfg.App.Name,
		Environment: cfg.App.Environment,
	})

	logger.Info("starting service",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	// 3. Initialize Database Pool
	ctx := context.Background()
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		logger.Error("failed to parse database URL", "error", err)
		return err
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.Database.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return err
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Error("database ping failed", "error", err)
		return err
	}
	logger.Info("database connection established")

	// 4. Initialize Security, Metrics & Real-time Components
	tokenManager := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.AccessTokenTTL)
	appMetrics := metrics.New(prometheus.DefaultRegisterer)

	registry := websocket.NewRegistry(websocket.RegistryOptions{
		SendBufferSize: cfg.WebSocket.SendBufferSize,
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
	}, appMetrics, logger)

	monitor := websocket.NewMonitor(registry,
		cfg.WebSocket.ProbeInterval, cfg.WebSocket.StaleTimeout,
		appMetrics, logger)

	monitorCtx, stopMonitor := context.WithCancel(ctx)
	defer stopMonitor()
	go monitor.Run(monitorCtx)

	dispatcher := websocket.NewDispatcher(registry, appMetrics, logger)

	// 5. Initialize Rate Limiter
	var rateLimiter *mw.RateLimiter
	if cfg.RateLimit.Enabled {
		rateLimiter = mw.NewRateLimiter(mw.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			BurstSize:         cfg.RateLimit.BurstSize,
			CleanupInterval:   time.Minute,
			TTL:               3 * time.Minute,
		})
	}

	// 6. Dependency Injection (Wiring the Hexagon)
	errorHandler := httpAdapter.NewErrorHandler(logger)

	// Repositories (Secondary Adapters)
	complaintRepo := postgres.NewComplaintRepository(pool)
	upvoteRepo := postgres.NewUpvoteRepository(pool)
	txManager := postgres.NewTransactionManager(pool)

	// Services (Core)
	engagementService := services.NewEngagementService(
		complaintRepo, upvoteRepo, txManager, dispatcher, logger)

	// Handlers (Primary Adapters)
	engagementHandler := httpAdapter.NewEngagementHandler(
		engagementService, errorHandler, appMetrics, logger)
	wsHandler := httpAdapter.NewWebSocketHandler(registry, tokenManager, cfg, logger)
	healthHandler := httpAdapter.NewHealthHandler(pool, registry, cfg.App.Version)

	// 7. Setup Router
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.RequestLogger(logger))
	r.Use(mw.RecoveryLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins(cfg),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if rateLimiter != nil {
		r.Use(rateLimiter.Middleware)
	}

	// Health and metrics endpoints (outside /api/v1 for standard probe paths)
	r.Get("/health", healthHandler.HandleReadiness)
	r.Get("/health/live", healthHandler.HandleLiveness)
	r.Get("/health/ready", healthHandler.HandleReadiness)
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket route (Authentication is handled inside the handler)
		r.Get("/ws", wsHandler.ServeHTTP)

		// Protected REST routes
		r.Group(func(r chi.Router) {
			r.Use(mw.JWTMiddleware(tokenManager))
			r.Route("/complaints", engagementHandler.RegisterRoutes)
		})
	})

	// 8. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		logger.Error("server error", "error", err)
		return err
	case sig := <-quit:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Stop probing and drain the realtime connections before closing the
	// listener.
	stopMonitor()
	registry.CloseAll()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		return err
	}

	logger.Info("server shutdown complete")
	return nil
}

// corsOrigins derives the browser origin allowlist from configuration.
func corsOrigins(cfg *config.Config) []string {
	if cfg.IsDevelopment() || len(cfg.WebSocket.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.WebSocket.AllowedOrigins
}
