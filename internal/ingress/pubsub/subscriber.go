// Package pubsub subscribes to a Redis pub/sub channel and executes every
// message inline in the subscriber goroutine, deliberately bypassing the
// bounded queue (spec.md §4.9, §9 Open Question (a)).
package pubsub

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dispatchhq/notifyd/internal/domain"
	"github.com/dispatchhq/notifyd/pkg/logger"
)

const (
	minBackoff = 200 * time.Millisecond
	maxBackoff = 10 * time.Second
)

// Subscriber runs the inline pub/sub execution loop.
type Subscriber struct {
	client   *redis.Client
	channel  string
	registry domain.ProviderRegistry
	log      logger.Logger
}

func New(client *redis.Client, channel string, registry domain.ProviderRegistry, log logger.Logger) *Subscriber {
	return &Subscriber{client: client, channel: channel, registry: registry, log: log}
}

// Run subscribes to the configured channel and processes messages until ctx
// is cancelled, resubscribing with capped jittered backoff on connection
// errors.
func (s *Subscriber) Run(ctx context.Context) {
	backoff := minBackoff
	for {
		if ctx.Err() != nil {
			return
		}
		if err := s.runOnce(ctx); err != nil && ctx.Err() == nil {
			s.log.WithField("error", err.Error()).Warn("pubsub: subscription dropped, retrying")
			select {
			case <-time.After(jitter(backoff)):
			case <-ctx.Done():
				return
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = minBackoff
	}
}

func (s *Subscriber) runOnce(ctx context.Context) error {
	ps := s.client.Subscribe(ctx, s.channel)
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return err
	}
	s.log.WithField("channel", s.channel).Info("pubsub: subscribed")

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("pubsub: channel closed")
			}
			s.process(ctx, msg.Payload)
		}
	}
}

// process parses and executes one message inline, on the subscriber's own
// goroutine: there is no worker hand-off here by design.
func (s *Subscriber) process(ctx context.Context, payload string) {
	w, err := domain.NewWrapperFromJSON([]byte(payload), func(reason string) {
		s.log.WithField("reason", reason).Warn("pubsub: dropped malformed recipient")
	})
	if err != nil {
		s.log.WithField("error", err.Error()).Warn("pubsub: dropped malformed message")
		return
	}

	if _, err := w.Invoke(ctx, s.registry); err != nil {
		s.log.WithFields(map[string]interface{}{
			"wrapper_id": w.ID.String(),
			"provider":   w.Provider,
			"error":      err.Error(),
		}).Error("pubsub: wrapper invocation failed")
	}
}

func jitter(d time.Duration) time.Duration {
	return d/2 + time.Duration(rand.Int63n(int64(d/2)+1))
}
