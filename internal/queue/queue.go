// Package queue implements the bounded, in-memory work queue that sits
// between ingress and the provider fan-out: a fixed-capacity channel plus a
// pool of worker goroutines that invoke each wrapper's provider exactly
// once and never re-enqueue on failure.
package queue

import (
	"context"
	"sync"

	"github.com/dispatchhq/notifyd/internal/domain"
	"github.com/dispatchhq/notifyd/pkg/logger"
)

// Config tunes the queue's capacity and worker pool size.
type Config struct {
	Capacity    int
	WorkerCount int
}

// DefaultConfig matches spec §4.7: capacity 8, capacity−1 worker coroutines.
// Capacity bounds only the wrappers waiting in the channel; wrappers a
// worker has already taken do not count, so up to Capacity+WorkerCount can
// be queued or executing at once.
func DefaultConfig() Config {
	return NewConfig(8)
}

// NewConfig derives WorkerCount from capacity (capacity−1, floored at 1) so
// callers only ever need to tune one knob, matching spec §4.7's coupling.
func NewConfig(capacity int) Config {
	workers := capacity - 1
	if workers < 1 {
		workers = 1
	}
	return Config{Capacity: capacity, WorkerCount: workers}
}

// DoneCallback is invoked once per processed wrapper, successful or not.
type DoneCallback func(w *domain.Wrapper, results []domain.SendResult, err error)

// Callbacks is the compile-time registry of named DoneCallback factories
// selectable at startup via NOTIFY_QUEUE_CALLBACK. cmd/notifyd registers
// any additional named callbacks before constructing the Queue.
var Callbacks = map[string]func(logger.Logger) DoneCallback{
	"log": newLogCallback,
}

// RegisterCallback adds a named DoneCallback factory to Callbacks.
func RegisterCallback(name string, factory func(logger.Logger) DoneCallback) {
	Callbacks[name] = factory
}

func newLogCallback(log logger.Logger) DoneCallback {
	return func(w *domain.Wrapper, results []domain.SendResult, err error) {
		fields := map[string]interface{}{
			"wrapper_id": w.ID.String(),
			"provider":   w.Provider,
			"recipients": len(w.Recipients),
		}
		if err != nil {
			log.WithFields(fields).WithField("error", err.Error()).Error("wrapper processing failed")
			return
		}
		failed := 0
		for _, r := range results {
			if r.Err != nil {
				failed++
			}
		}
		log.WithFields(fields).WithField("failed", failed).Info("wrapper processed")
	}
}

// Queue fans queued wrappers out to Config.WorkerCount goroutines, each
// resolving the wrapper's provider from registry and invoking it.
type Queue struct {
	cfg      Config
	registry domain.ProviderRegistry
	log      logger.Logger
	done     DoneCallback

	ch chan *domain.Wrapper

	mu      sync.RWMutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(cfg Config, registry domain.ProviderRegistry, done DoneCallback, log logger.Logger) *Queue {
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = 1
	}
	if done == nil {
		done = newLogCallback(log)
	}
	return &Queue{
		cfg:      cfg,
		registry: registry,
		log:      log,
		done:     done,
		ch:       make(chan *domain.Wrapper, cfg.Capacity),
	}
}

// Start spawns the worker pool. Calling Start on an already-running queue
// is a no-op.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return nil
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	q.running = true
	q.mu.Unlock()

	q.log.WithFields(map[string]interface{}{
		"capacity": q.cfg.Capacity,
		"workers":  q.cfg.WorkerCount,
	}).Info("starting queue workers")

	for i := 0; i < q.cfg.WorkerCount; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return nil
}

func (q *Queue) IsRunning() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.running
}

// Stop cancels all worker goroutines and waits for them to exit. Any
// wrapper left in the channel is abandoned unprocessed; Drain calls Stop and
// then discards and counts those wrappers.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	q.cancel()
	q.mu.Unlock()

	q.log.Info("stopping queue workers...")
	q.wg.Wait()
	q.log.Info("queue workers stopped")
}

// Put enqueues w without blocking. If the channel is full it returns
// ErrQueueFull immediately rather than waiting for room.
func (q *Queue) Put(ctx context.Context, w *domain.Wrapper) error {
	select {
	case q.ch <- w:
		return nil
	default:
		return &domain.ErrQueueFull{Capacity: q.cfg.Capacity}
	}
}

// Drain stops the worker pool, then empties any wrappers still sitting in
// the channel without processing them, returning the count discarded.
func (q *Queue) Drain(ctx context.Context) int {
	q.Stop()
	n := 0
	for {
		select {
		case <-q.ch:
			n++
		default:
			return n
		}
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case w, ok := <-q.ch:
			if !ok {
				return
			}
			q.process(w)
		}
	}
}

func (q *Queue) process(w *domain.Wrapper) {
	results, err := w.Invoke(q.ctx, q.registry)
	q.done(w, results, err)
}
