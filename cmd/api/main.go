package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ledgerkit/account-service/internal/bus"
	"github.com/ledgerkit/account-service/internal/config"
	"github.com/ledgerkit/account-service/internal/handler"
	"github.com/ledgerkit/account-service/internal/logging"
	"github.com/ledgerkit/account-service/internal/middleware"
	"github.com/ledgerkit/account-service/internal/repository"
	"github.com/ledgerkit/account-service/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Init("account-service", cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := connectDB(ctx, cfg)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := repository.Migrate(db, cfg.MigrationsDir); err != nil {
		slog.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid redis url", "error", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	accounts := service.NewAccountService(repository.NewAccountRepository(db))
	events := bus.NewPublisher(redisClient, cfg.EventStream)

	commandServer := bus.NewServer(redisClient, accounts, events, bus.ServerConfig{
		Stream:   cfg.CommandStream,
		Group:    cfg.ConsumerGroup,
		Consumer: cfg.ConsumerName,
	})
	go func() {
		if err := commandServer.Start(ctx); err != nil && ctx.Err() == nil {
			slog.Error("command server stopped", "error", err)
			stop()
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           buildRoutes(cfg, db, accounts),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server started", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func buildRoutes(cfg *config.Config, db *sql.DB, accounts *service.AccountService) http.Handler {
	accountHandler := handler.NewAccountHandler(accounts)
	healthHandler := handler.NewHealthHandler(db)

	api := http.NewServeMux()
	api.HandleFunc("POST /api/v1/accounts", accountHandler.Create)
	api.HandleFunc("GET /api/v1/accounts", accountHandler.List)
	api.HandleFunc("DELETE /api/v1/accounts", accountHandler.CloseAll)
	api.HandleFunc("GET /api/v1/accounts/{id}", accountHandler.Get)
	api.HandleFunc("DELETE /api/v1/accounts/{id}", accountHandler.Close)
	api.HandleFunc("POST /api/v1/accounts/{id}/deposit", accountHandler.Deposit)
	api.HandleFunc("POST /api/v1/accounts/{id}/debit", accountHandler.Debit)
	api.HandleFunc("PUT /api/v1/accounts/{id}/negative", accountHandler.SetNegative)

	protected := middleware.Auth(cfg.JWTSecret)(middleware.Logging(middleware.Recovery(api)))

	root := http.NewServeMux()
	root.HandleFunc("GET /health", healthHandler.Check)
	root.Handle("/api/v1/", protected)

	return middleware.Tracing(root)
}

func connectDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	pool := repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	}

	var lastErr error
	for i := range 30 {
		db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, pool)
		if err == nil {
			return db, nil
		}
		lastErr = err
		slog.Info("waiting for database", "attempt", i+1)
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("connectDB: gave up after 30 attempts: %w", lastErr)
}
