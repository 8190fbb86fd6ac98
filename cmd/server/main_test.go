package main

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/simplidoc/internal/config"
	"github.com/and161185/simplidoc/internal/crypto"
	"github.com/and161185/simplidoc/internal/limiter"
	"github.com/and161185/simplidoc/internal/repository/memory"
)

func TestNewLimiter(t *testing.T) {
	cfg := config.Server{LimitWindow: time.Minute, LimitMaxFails: 2, LimitBlockFor: time.Minute}

	cfg.Limiter = config.LimiterNone
	l, closeFn, err := newLimiter(cfg, nil)
	require.NoError(t, err)
	require.IsType(t, limiter.Noop{}, l)
	closeFn()

	cfg.Limiter = config.LimiterPostgres
	_, _, err = newLimiter(cfg, nil)
	require.Error(t, err)

	mr := miniredis.RunT(t)
	cfg.Limiter = config.LimiterRedis
	cfg.RedisAddr = mr.Addr()
	l, closeFn, err = newLimiter(cfg, nil)
	require.NoError(t, err)
	defer closeFn()
	require.IsType(t, &limiter.Redis{}, l)

	ok, _, err := l.Allow(context.Background(), "a@b.com", limiter.HashIP("1.2.3.4"))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestOpenStores_InMemoryWithoutDSN(t *testing.T) {
	h, err := crypto.NewHasher(4)
	require.NoError(t, err)

	st, err := openStores(context.Background(), config.Server{Dev: true}, h, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Nil(t, st.db)
	require.IsType(t, &memory.Users{}, st.users)
	require.IsType(t, &memory.History{}, st.history)
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := config.Server{
		Addr: "127.0.0.1:0", AccessSecret: "a", RefreshSecret: "r",
		AccessTTL: time.Hour, RefreshTTL: 2 * time.Hour, BcryptCost: 4, HistoryLimit: 5,
		Limiter: config.LimiterNone, ShutdownTimeout: time.Second, Dev: true,
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, zaptest.NewLogger(t)) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}
