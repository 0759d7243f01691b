package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Zhima-Mochi/minishop-store/internal/config"
	"github.com/Zhima-Mochi/minishop-store/internal/infrastructure/broker"
	"github.com/Zhima-Mochi/minishop-store/internal/infrastructure/observability/zaplogger"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load(func(string) (string, bool) { return "", false })
	require.NoError(t, err)
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.ShutdownTimeout = time.Second
	return cfg
}

func TestRunReturnsSeedFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.SeedFile = filepath.Join(t.TempDir(), "missing.json")

	err := run(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.json")
}

func TestRunReturnsUnknownSink(t *testing.T) {
	cfg := testConfig(t)
	cfg.EventSink = "carrier-pigeon"

	err := run(context.Background(), cfg, zap.NewNop())
	require.ErrorIs(t, err, broker.ErrUnknownSink)
}

func TestRunStopsWhenContextEnds(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, run(ctx, cfg, zap.NewNop()))
}

func TestStoresCloseInReverseOrder(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	var order []string
	st := &stores{closers: []func(context.Context) error{
		func(context.Context) error { order = append(order, "mongo"); return nil },
		func(context.Context) error { order = append(order, "redis"); return errors.New("already closed") },
	}}

	st.close(zaplogger.Wrap(zap.New(core)))

	assert.Equal(t, []string{"redis", "mongo"}, order)
	require.Equal(t, 1, logs.FilterMessage("store_close_error").Len())
}
