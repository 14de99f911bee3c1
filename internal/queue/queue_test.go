package queue_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dispatchhq/notifyd/internal/domain"
	"github.com/dispatchhq/notifyd/internal/providers/dummy"
	"github.com/dispatchhq/notifyd/internal/queue"
	"github.com/dispatchhq/notifyd/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *domain.Registry {
	registry := domain.NewRegistry()
	registry.Register("dummy", func(kwargs map[string]any) (domain.Provider, error) {
		return dummy.New(nil, nil), nil
	})
	return registry
}

func TestNewConfig_CouplesWorkerCountToCapacity(t *testing.T) {
	assert.Equal(t, queue.Config{Capacity: 8, WorkerCount: 7}, queue.NewConfig(8))
	assert.Equal(t, queue.Config{Capacity: 1, WorkerCount: 1}, queue.NewConfig(1))
	assert.Equal(t, queue.DefaultConfig(), queue.NewConfig(8))
}

func TestQueue_ProcessesWrapperAndInvokesDoneCallback(t *testing.T) {
	registry := newTestRegistry()

	var mu sync.Mutex
	var processed *domain.Wrapper
	done := func(w *domain.Wrapper, results []domain.SendResult, err error) {
		mu.Lock()
		defer mu.Unlock()
		processed = w
	}

	q := queue.New(queue.Config{Capacity: 4, WorkerCount: 2}, registry, done, logger.NewLogger())
	require.NoError(t, q.Start(context.Background()))
	defer q.Stop()

	w := &domain.Wrapper{
		ID:         uuid.New(),
		Provider:   "dummy",
		Recipients: []domain.Recipient{domain.Actor{Name: "Ada"}},
		Message:    domain.NewMessage("hi"),
	}
	require.NoError(t, q.Put(context.Background(), w))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return processed != nil
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, w.ID, processed.ID)
	mu.Unlock()
}

func TestQueue_PutReturnsErrQueueFullWhenSaturated(t *testing.T) {
	registry := newTestRegistry()
	q := queue.New(queue.Config{Capacity: 1, WorkerCount: 0}, registry, func(*domain.Wrapper, []domain.SendResult, error) {}, logger.NewLogger())

	w := &domain.Wrapper{ID: uuid.New(), Provider: "dummy", Message: domain.NewMessage("hi")}
	require.NoError(t, q.Put(context.Background(), w))

	err := q.Put(context.Background(), w)
	require.Error(t, err)
	var full *domain.ErrQueueFull
	assert.ErrorAs(t, err, &full)
}

func TestQueue_DrainStopsWorkersAndEmptiesChannel(t *testing.T) {
	registry := newTestRegistry()
	q := queue.New(queue.Config{Capacity: 4, WorkerCount: 0}, registry, func(*domain.Wrapper, []domain.SendResult, error) {}, logger.NewLogger())
	require.NoError(t, q.Start(context.Background()))

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Put(context.Background(), &domain.Wrapper{ID: uuid.New(), Provider: "dummy"}))
	}

	drained := q.Drain(context.Background())
	assert.Equal(t, 3, drained)
	assert.False(t, q.IsRunning())
}
