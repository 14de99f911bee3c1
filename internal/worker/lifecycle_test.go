package worker_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/dispatchhq/notifyd/internal/domain"
	"github.com/dispatchhq/notifyd/internal/queue"
	"github.com/dispatchhq/notifyd/internal/worker"
	"github.com/dispatchhq/notifyd/pkg/logger"
)

func freePort(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestLifecycle_RunStartsAndStopsCleanlyOnCancel(t *testing.T) {
	mr := miniredis.RunT(t)
	defer mr.Close()

	registry := domain.NewRegistry()
	registry.Register("dummy", func(kwargs map[string]any) (domain.Provider, error) {
		return nil, nil
	})

	cfg := worker.Config{
		RedisDSN:    "redis://" + mr.Addr() + "/0",
		Channel:     "NotifyChannel",
		StreamName:  "NotifyStream",
		StreamGroup: "NotifyGroup",
		TCPAddr:     freePort(t),
		Queue:       queue.Config{Capacity: 10, WorkerCount: 1},
	}
	lc := worker.New(cfg, registry, logger.NewMockLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- lc.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("lifecycle did not shut down in time")
	}
}

func TestLifecycle_RunFailsFastOnBadRedisDSN(t *testing.T) {
	registry := domain.NewRegistry()
	cfg := worker.Config{
		RedisDSN: "not-a-valid-dsn",
		TCPAddr:  freePort(t),
	}
	lc := worker.New(cfg, registry, logger.NewMockLogger())

	err := lc.Run(context.Background())
	require.Error(t, err)
}

