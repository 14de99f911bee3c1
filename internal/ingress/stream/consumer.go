// Package stream implements the consumer-group Redis stream ingress: the
// operationally important delivery path (spec.md §4.10), acking a message
// only once its wrapper has been fully and successfully invoked.
package stream

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/gob"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dispatchhq/notifyd/internal/domain"
	"github.com/dispatchhq/notifyd/pkg/logger"
)

func init() {
	gob.Register(domain.Actor{})
	gob.Register(domain.Chat{})
	gob.Register(domain.Channel{})
	gob.Register(domain.TeamsChannel{})
	gob.Register(domain.TeamsChat{})
	gob.Register(domain.TeamsWebhook{})
	gob.Register(domain.MailMessage{})
	gob.Register(domain.TeamsCard{})
}

const retentionWindow = 7 * 24 * time.Hour

// Consumer reads a Redis stream as part of a consumer group, acking a
// message iff the wrapper it carried both returned no error and produced no
// per-recipient send error.
type Consumer struct {
	client       *redis.Client
	stream       string
	group        string
	consumerName string
	registry     domain.ProviderRegistry
	log          logger.Logger
}

func New(client *redis.Client, streamName, group, consumerName string, registry domain.ProviderRegistry, log logger.Logger) *Consumer {
	return &Consumer{
		client:       client,
		stream:       streamName,
		group:        group,
		consumerName: consumerName,
		registry:     registry,
		log:          log,
	}
}

// Start ensures the consumer group exists, trims the stream to its
// retention window, then reads until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	if err := c.ensureGroup(ctx); err != nil {
		return err
	}
	if err := c.trimRetention(ctx); err != nil {
		c.log.WithField("error", err.Error()).Warn("stream: retention trim failed")
	}

	c.log.WithFields(map[string]interface{}{
		"stream": c.stream, "group": c.group, "consumer": c.consumerName,
	}).Info("stream consumer started")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if err := c.readOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.WithField("error", err.Error()).Warn("stream: read failed, retrying")
			time.Sleep(time.Second)
		}
		runtime.Gosched()
	}
}

// Stop removes this process's consumer from the group. Pending (unacked)
// messages are left for redelivery to surviving consumers.
func (c *Consumer) Stop(ctx context.Context) error {
	if err := c.client.XGroupDelConsumer(ctx, c.stream, c.group, c.consumerName).Err(); err != nil {
		return fmt.Errorf("stream: delete consumer: %w", err)
	}
	return nil
}

func (c *Consumer) ensureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "$").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("stream: create group: %w", err)
	}
	if err := c.client.XGroupCreateConsumer(ctx, c.stream, c.group, c.consumerName).Err(); err != nil {
		return fmt.Errorf("stream: create consumer: %w", err)
	}
	return nil
}

func (c *Consumer) trimRetention(ctx context.Context) error {
	minID := fmt.Sprintf("%d-0", time.Now().Add(-retentionWindow).UnixMilli())
	return c.client.XTrimMinID(ctx, c.stream, minID).Err()
}

func (c *Consumer) readOnce(ctx context.Context) error {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumerName,
		Streams:  []string{c.stream, ">"},
		Block:    100 * time.Millisecond,
		Count:    1,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	}

	for _, s := range streams {
		for _, entry := range s.Messages {
			c.handle(ctx, entry)
		}
	}
	return nil
}

func (c *Consumer) handle(ctx context.Context, entry redis.XMessage) {
	w, err := decodeEntry(entry)
	if err != nil {
		c.log.WithFields(map[string]interface{}{
			"entry_id": entry.ID, "error": err.Error(),
		}).Error("stream: failed to decode entry")
		return
	}

	results, invokeErr := w.Invoke(ctx, c.registry)
	if invokeErr == nil && !anyResultErred(results) {
		if ackErr := c.client.XAck(ctx, c.stream, c.group, entry.ID).Err(); ackErr != nil {
			c.log.WithFields(map[string]interface{}{
				"entry_id": entry.ID, "error": ackErr.Error(),
			}).Error("stream: ack failed")
		}
		return
	}

	c.log.WithFields(map[string]interface{}{
		"entry_id": entry.ID, "wrapper_id": w.ID.String(), "provider": w.Provider,
	}).Warn("stream: wrapper failed, leaving unacked for redelivery")
}

func anyResultErred(results []domain.SendResult) bool {
	for _, r := range results {
		if r.Err != nil {
			return true
		}
	}
	return false
}

func decodeEntry(entry redis.XMessage) (*domain.Wrapper, error) {
	if raw, ok := entry.Values["message"]; ok {
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("stream: message field is not a string")
		}
		return domain.NewWrapperFromJSON([]byte(s), nil)
	}

	taskRaw, ok := entry.Values["task"]
	if !ok {
		return nil, fmt.Errorf("stream: entry has neither message nor task field")
	}
	taskStr, ok := taskRaw.(string)
	if !ok {
		return nil, fmt.Errorf("stream: task field is not a string")
	}
	decoded, err := base64.StdEncoding.DecodeString(taskStr)
	if err != nil {
		return nil, fmt.Errorf("stream: base64 decode task: %w", err)
	}
	var w domain.Wrapper
	if err := gob.NewDecoder(bytes.NewReader(decoded)).Decode(&w); err != nil {
		return nil, fmt.Errorf("stream: gob decode task: %w", err)
	}
	return &w, nil
}

// MonitorEmptyStream polls the stream's last entry every interval and fires
// onEmptyStream with the gap since that entry once it exceeds threshold.
// It runs only when a caller invokes it; Lifecycle.Run does not, and no
// configuration variable turns it on.
func (c *Consumer) MonitorEmptyStream(ctx context.Context, interval, threshold time.Duration, onEmptyStream func(gap time.Duration)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			gap, err := c.streamGap(ctx)
			if err != nil {
				c.log.WithField("error", err.Error()).Warn("stream: empty-stream check failed")
				continue
			}
			if gap > threshold {
				onEmptyStream(gap)
			}
		}
	}
}

func (c *Consumer) streamGap(ctx context.Context) (time.Duration, error) {
	entries, err := c.client.XRevRangeN(ctx, c.stream, "+", "-", 1).Result()
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return time.Duration(1<<62 - 1), nil
	}

	msPart := strings.SplitN(entries[0].ID, "-", 2)[0]
	lastMs, err := strconv.ParseInt(msPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("stream: parse entry id %q: %w", entries[0].ID, err)
	}
	return time.Since(time.UnixMilli(lastMs)), nil
}
