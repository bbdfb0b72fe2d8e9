// Command cellar-server starts the cellar HTTP API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/and161185/winecellar/internal/auth"
	"github.com/and161185/winecellar/internal/config"
	"github.com/and161185/winecellar/internal/limiter"
	"github.com/and161185/winecellar/internal/migrate"
	"github.com/and161185/winecellar/internal/repository/postgres"
	httpserver "github.com/and161185/winecellar/internal/server/http"
	"github.com/and161185/winecellar/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, runs migrations, bootstraps the admin owner and serves HTTP.
func main() {
	cfg, err := config.Load(os.Args[1:], os.LookupEnv)
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}

	logger := newLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.String("limiter", cfg.LoginLimiter),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ver, err := migrate.Up(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}
	logger.Info("schema ready", zap.Int64("version", ver))

	db, err := postgres.New(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres.New", zap.Error(err))
	}
	defer db.Close()

	// Repositories
	userRepo := postgres.NewUserRepo(db)
	storageRepo := postgres.NewStorageRepo(db)
	cellarRepo := postgres.NewCellarRepo(db)
	ratingRepo := postgres.NewRatingRepo(db)

	codec, err := auth.NewCodec([]byte(cfg.JWTKey), cfg.JWTAlgorithm, cfg.AccessTokenTTL)
	if err != nil {
		logger.Fatal("token codec", zap.Error(err))
	}

	policy := limiter.Policy{MaxFailures: cfg.LoginMaxFailures, Window: cfg.LoginWindow, BlockFor: cfg.LoginBlockFor}
	var lim limiter.Limiter
	switch cfg.LoginLimiter {
	case config.LimiterRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("redis ping", zap.Error(err))
		}
		lim = limiter.NewRedis(rdb, policy)
	case config.LimiterPostgres:
		lim = limiter.NewPG(db.Pool, policy)
	default:
		lim = limiter.Nop{}
	}

	// Services
	authSvc := service.NewAuthService(userRepo, codec, lim)
	cellarSvc := service.NewCellarService(storageRepo, cellarRepo, ratingRepo)

	created, err := authSvc.Bootstrap(ctx, service.BootstrapAdmin{
		Name:     cfg.AdminName,
		Username: cfg.AdminUsername,
		Password: cfg.AdminPassword,
	})
	if err != nil {
		logger.Fatal("bootstrap admin", zap.Error(err))
	}
	if created {
		logger.Info("admin owner created", zap.String("username", cfg.AdminUsername))
	}

	opts := []httpserver.Option{httpserver.WithPinger(db), httpserver.WithVersion(version)}
	if cfg.Metrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts = append(opts, httpserver.WithMetrics(httpserver.NewMetrics(reg)))
	}
	app := httpserver.New(authSvc, cellarSvc, logger, opts...)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for stop
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown timed out", zap.Error(err))
			_ = srv.Close()
		}
	case err, ok := <-errCh:
		if ok {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}

func newLogger(level string) *zap.Logger {
	zcfg := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := zcfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
