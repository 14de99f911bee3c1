// Package worker orchestrates notifyd's process lifecycle: connect the
// broker, start the queue and every ingress, block until signalled, then
// shut each down in the order the original's NotifyWorker.start/stop do
// (original_source/notify/server/server.py).
package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dispatchhq/notifyd/internal/broker"
	"github.com/dispatchhq/notifyd/internal/domain"
	"github.com/dispatchhq/notifyd/internal/ingress/pubsub"
	"github.com/dispatchhq/notifyd/internal/ingress/stream"
	"github.com/dispatchhq/notifyd/internal/ingress/tcp"
	"github.com/dispatchhq/notifyd/internal/queue"
	"github.com/dispatchhq/notifyd/pkg/logger"
)

const shutdownTimeout = 5 * time.Second

// Config carries everything Lifecycle needs to wire the pipeline together.
type Config struct {
	RedisDSN      string
	Channel       string
	StreamName    string
	StreamGroup   string
	ConsumerName  string
	TCPAddr       string
	Queue         queue.Config
	QueueCallback string // name looked up in queue.Callbacks; "" defaults to "log"
}

// Lifecycle owns the full notifyd process: broker, queue, stream consumer,
// pub/sub subscriber, and TCP listener.
type Lifecycle struct {
	cfg      Config
	registry domain.ProviderRegistry
	log      logger.Logger

	redis    *redis.Client
	q        *queue.Queue
	consumer *stream.Consumer
	sub      *pubsub.Subscriber
	srv      *tcp.Server
}

func New(cfg Config, registry domain.ProviderRegistry, log logger.Logger) *Lifecycle {
	if cfg.ConsumerName == "" {
		cfg.ConsumerName = fmt.Sprintf("notifyd-%d", os.Getpid())
	}
	if cfg.QueueCallback == "" {
		cfg.QueueCallback = "log"
	}
	return &Lifecycle{cfg: cfg, registry: registry, log: log}
}

// Run blocks until ctx is cancelled or a SIGHUP/SIGTERM arrives, then shuts
// the pipeline down in order and returns. A non-nil error means startup
// failed before anything could be torn down.
func (l *Lifecycle) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGHUP, syscall.SIGTERM)
	defer stop()

	rdb, err := broker.Connect(ctx, l.cfg.RedisDSN)
	if err != nil {
		return fmt.Errorf("worker: connect broker: %w", err)
	}
	l.redis = rdb

	factory, ok := queue.Callbacks[l.cfg.QueueCallback]
	if !ok {
		return fmt.Errorf("worker: no queue callback registered under name %q", l.cfg.QueueCallback)
	}
	l.q = queue.New(l.cfg.Queue, l.registry, factory(l.log), l.log)
	if err := l.q.Start(ctx); err != nil {
		return fmt.Errorf("worker: start queue: %w", err)
	}

	l.consumer = stream.New(rdb, l.cfg.StreamName, l.cfg.StreamGroup, l.cfg.ConsumerName, l.registry, l.log)
	go func() {
		if err := l.consumer.Start(ctx); err != nil {
			l.log.WithField("error", err.Error()).Error("worker: stream consumer exited")
		}
	}()

	l.sub = pubsub.New(rdb, l.cfg.Channel, l.registry, l.log)
	go l.sub.Run(ctx)

	l.srv = tcp.NewServer(l.cfg.TCPAddr, l.q, l.log)
	if err := l.srv.Start(ctx); err != nil {
		return fmt.Errorf("worker: start tcp listener: %w", err)
	}

	l.log.WithFields(map[string]interface{}{
		"tcp_addr": l.srv.Addr(), "stream": l.cfg.StreamName, "channel": l.cfg.Channel,
	}).Info("notifyd started")

	<-ctx.Done()
	l.log.Info("notifyd shutting down")
	return l.shutdown()
}

// shutdown tears the pipeline down in the original's order: drain the
// queue first (stopping its workers and discarding, with a logged count,
// any wrapper still waiting), then remove the stream consumer, then close
// the TCP listener, then the broker connection last. The pub/sub subscriber
// has already unsubscribed when ctx was cancelled.
func (l *Lifecycle) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	drained := l.q.Drain(shutdownCtx)
	l.log.WithField("discarded", drained).Info("worker: queue drained")

	if err := l.consumer.Stop(shutdownCtx); err != nil {
		l.log.WithField("error", err.Error()).Warn("worker: stream consumer stop failed")
	}

	if err := l.srv.Shutdown(shutdownCtx); err != nil {
		l.log.WithField("error", err.Error()).Warn("worker: tcp shutdown failed")
	}

	if err := l.redis.Close(); err != nil {
		l.log.WithField("error", err.Error()).Warn("worker: broker close failed")
	}

	return nil
}
