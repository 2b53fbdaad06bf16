// Command ct-devapi serves the civictrack REST API from memory for local development.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/and161185/civictrack/internal/config"
	"github.com/and161185/civictrack/internal/devapi"
	"github.com/and161185/civictrack/internal/limiter"
	"github.com/and161185/civictrack/internal/migrate"
	"github.com/and161185/civictrack/internal/telemetry"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main parses configuration, prepares the login limiter and serves HTTP until signalled.
func main() {
	cfg, ok := loadConfig(config.Load, os.Stderr)
	if !ok {
		os.Exit(2)
	}

	// Flags override CT_DEVAPI_* variables
	addr := flag.String("addr", cfg.DevAPI.Addr, "listen address")
	jwtKey := flag.String("jwt-key", cfg.DevAPI.JWTKey, "HS256 signing key (required)")
	tokenTTL := flag.Duration("token-ttl", cfg.DevAPI.TokenTTL, "token lifetime")
	dsn := flag.String("dsn", cfg.DatabaseURL, "PostgreSQL DSN for the login limiter (empty keeps it in memory)")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", *addr),
	)

	if *jwtKey == "" {
		logger.Fatal("missing jwt signing key (--jwt-key or CT_DEVAPI_JWT_KEY)")
	}

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := telemetry.Setup(ctx, telemetry.Options{
		ServiceName: "ct-devapi",
		Version:     version,
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
	}, logger)

	policy := limiter.Policy{
		Window:   cfg.DevAPI.FailureWindow,
		MaxFails: cfg.DevAPI.MaxFailures,
		BlockFor: cfg.DevAPI.Lockout,
	}
	var lim limiter.Limiter = limiter.NewMemory(policy)
	if *dsn != "" {
		if _, err := migrate.EnsureSchema(ctx, *dsn, logger); err != nil {
			logger.Fatal("migrate up", zap.Error(err))
		}
		pool, err := pgxpool.New(ctx, *dsn)
		if err != nil {
			logger.Fatal("pgxpool.New", zap.Error(err))
		}
		defer pool.Close()
		lim = limiter.NewPG(pool, policy)
		logger.Info("login limiter backed by postgres")
	}

	gin.SetMode(gin.ReleaseMode)
	api, err := devapi.New(devapi.Options{
		JWTKey:   []byte(*jwtKey),
		TokenTTL: *tokenTTL,
		Limiter:  lim,
	}, logger)
	if err != nil {
		logger.Fatal("devapi", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", *addr))
		errCh <- srv.ListenAndServe()
	}()

	// Wait for stop
	select {
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(sctx); err != nil {
			logger.Warn("graceful shutdown", zap.Error(err))
			_ = srv.Close()
		}
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracing shutdown", zap.Error(err))
		}
		cancel()
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}

// loadConfig reports a configuration error on stderr instead of failing with a trace.
func loadConfig(load func() (*config.Config, error), stderr io.Writer) (*config.Config, bool) {
	cfg, err := load()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return nil, false
	}
	return cfg, true
}
