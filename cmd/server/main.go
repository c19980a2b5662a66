package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/segyhp/repayment-engine/internal/cache"
	"github.com/segyhp/repayment-engine/internal/config"
	"github.com/segyhp/repayment-engine/internal/database"
	"github.com/segyhp/repayment-engine/internal/handler"
	"github.com/segyhp/repayment-engine/internal/logger"
	"github.com/segyhp/repayment-engine/internal/metrics"
	"github.com/segyhp/repayment-engine/internal/middleware"
	"github.com/segyhp/repayment-engine/internal/repository"
	"github.com/segyhp/repayment-engine/internal/service"
	"github.com/segyhp/repayment-engine/pkg/response"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging)

	// Initialize database
	db, err := initDB(cfg)
	if err != nil {
		log.Error("failed to initialize database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize cache; without a redis host loans are cached in process
	var redisClient *redis.Client
	var loanCache cache.LoanCache = cache.NewMemoryCache(cfg.Redis.CacheTTL)
	if cfg.RedisEnabled() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		loanCache = cache.NewRedisCache(redisClient, cfg.Redis.CacheTTL)
	}

	// Initialize repositories
	loanRepo := repository.NewLoanRepository(db)
	repaymentRepo := repository.NewRepaymentRepository(db)

	// Initialize service
	loanService := service.NewLoanService(loanRepo, repaymentRepo, repository.NewUnitOfWorkFactory(db), loanCache, cfg, log)
	loanHandler := handler.NewLoanHandler(loanService)
	healthHandler := handler.NewHealthHandler(db, redisClient, cfg.Health.Timeout)

	router := setupRoutes(cfg, log, loanHandler, healthHandler)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("server starting", slog.String("addr", server.Addr), slog.String("env", cfg.Server.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", slog.Any("error", err))
	}

	log.Info("server exited")
}

func initDB(cfg *config.Config) (*sqlx.DB, error) {
	if err := database.RunMigrations(cfg.Database.MigrationsDir, cfg.Database.MigrationURL()); err != nil {
		return nil, err
	}
	return database.Open(cfg.Database)
}

func setupRoutes(cfg *config.Config, log *slog.Logger, loanHandler *handler.LoanHandler, healthHandler *handler.HealthHandler) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.LoggingMiddleware(log), response.CORSMiddleware)

	// Health check
	router.HandleFunc("/health", healthHandler.Health).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", healthHandler.Ready).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	// API routes
	api := router.PathPrefix("/api/v1").Subrouter()
	if cfg.Auth.JWTSecret != "" || !cfg.IsDevelopment() {
		api.Use(middleware.AuthMiddleware([]byte(cfg.Auth.JWTSecret), nil))
	} else {
		log.Warn("JWT_SECRET not set, trusting " + middleware.UserHeader + " header for caller identity")
		api.Use(middleware.HeaderIdentityMiddleware)
	}
	loanHandler.RegisterRoutes(api)

	return router
}
