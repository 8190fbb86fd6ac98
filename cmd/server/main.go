// Command sd-server starts the SimpliDoc authentication HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/and161185/simplidoc/internal/config"
	"github.com/and161185/simplidoc/internal/crypto"
	"github.com/and161185/simplidoc/internal/limiter"
	"github.com/and161185/simplidoc/internal/metrics"
	"github.com/and161185/simplidoc/internal/migrate"
	"github.com/and161185/simplidoc/internal/repository"
	"github.com/and161185/simplidoc/internal/repository/memory"
	"github.com/and161185/simplidoc/internal/repository/postgres"
	httpserver "github.com/and161185/simplidoc/internal/server/http"
	"github.com/and161185/simplidoc/internal/service"
	"github.com/and161185/simplidoc/internal/token"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main parses configuration, runs migrations, and serves the auth API until SIGINT/SIGTERM.
func main() {
	cfg, err := config.LoadServer(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	logger := newLogger(cfg.Dev)
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.String("limiter", cfg.Limiter),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func newLogger(dev bool) *zap.Logger {
	var (
		l   *zap.Logger
		err error
	)
	if dev {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return l
}

type stores struct {
	users   repository.IdentityStore
	history repository.HistoryRepository
	db      *postgres.DB
}

// openStores connects to PostgreSQL, or falls back to in-memory stores when no DSN is set.
func openStores(ctx context.Context, cfg config.Server, hasher *crypto.Hasher, log *zap.Logger) (stores, error) {
	if cfg.DSN == "" {
		log.Warn("no dsn: using in-memory stores, data is lost on exit")
		return stores{users: memory.NewUsers(hasher), history: memory.NewHistory()}, nil
	}
	ver, err := migrate.Up(ctx, cfg.DSN)
	if err != nil {
		return stores{}, fmt.Errorf("migrate up: %w", err)
	}
	log.Info("schema migrated", zap.Int64("version", ver))
	db, err := postgres.New(ctx, cfg.DSN, int32(cfg.MaxConns))
	if err != nil {
		return stores{}, fmt.Errorf("open pool: %w", err)
	}
	return stores{users: postgres.NewUserRepo(db, hasher), history: postgres.NewHistoryRepo(db), db: db}, nil
}

// newLimiter builds the configured login limiter. The returned func releases its resources.
func newLimiter(cfg config.Server, db *postgres.DB) (limiter.Limiter, func(), error) {
	set := limiter.Settings{Window: cfg.LimitWindow, MaxFails: cfg.LimitMaxFails, BlockFor: cfg.LimitBlockFor}
	switch cfg.Limiter {
	case config.LimiterPostgres:
		if db == nil {
			return nil, nil, errors.New("postgres limiter needs a database")
		}
		return limiter.NewPG(db.Pool, set), func() {}, nil
	case config.LimiterRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return limiter.NewRedis(rdb, set), func() { _ = rdb.Close() }, nil
	default:
		return limiter.Noop{}, func() {}, nil
	}
}

func run(ctx context.Context, cfg config.Server, logger *zap.Logger) error {
	hasher, err := crypto.NewHasher(cfg.BcryptCost)
	if err != nil {
		return err
	}
	st, err := openStores(ctx, cfg, hasher, logger)
	if err != nil {
		return err
	}
	if st.db != nil {
		defer st.db.Close()
	}

	lim, closeLim, err := newLimiter(cfg, st.db)
	if err != nil {
		return err
	}
	defer closeLim()

	tokens, err := token.NewService(token.Config{
		AccessSecret:  []byte(cfg.AccessSecret),
		RefreshSecret: []byte(cfg.RefreshSecret),
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
	})
	if err != nil {
		return err
	}

	// Services
	authSvc := service.NewAuthService(st.users, tokens, logger,
		service.WithLimiter(lim),
		service.WithHistory(st.history, cfg.HistoryLimit),
	)

	opts := []httpserver.Option{httpserver.WithMetrics(metrics.NewAuth())}
	if st.db != nil {
		opts = append(opts, httpserver.WithHealthCheck(st.db.Ping))
	}
	app := httpserver.New(authSvc, logger, opts...)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	// Wait for stop
	select {
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			_ = srv.Close()
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
