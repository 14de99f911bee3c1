// Package client is the producer-side SDK (spec.md §4.12): publish to the
// pub/sub channel, push onto the stream (plain JSON or a pre-built,
// gob-encoded Wrapper), or send directly over TCP, grounded on the
// original's NotifyClient (original_source/notify/server/client.py).
package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dispatchhq/notifyd/internal/domain"
)

// Client mirrors the original's three delivery paths from a single entry
// point: Redis pub/sub, Redis streams, and raw TCP.
type Client struct {
	redisDSN string
	tcpAddr  string

	redis *redis.Client
}

// New builds a Client against the given Redis DSN and TCP worker address.
// The Redis connection isn't opened until Open is called.
func New(redisDSN, tcpAddr string) *Client {
	return &Client{redisDSN: redisDSN, tcpAddr: tcpAddr}
}

// Open connects to Redis, mirroring the original's __aenter__.
func (c *Client) Open(ctx context.Context) error {
	opts, err := redis.ParseURL(c.redisDSN)
	if err != nil {
		return fmt.Errorf("client: parse redis dsn: %w", err)
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("client: ping redis: %w", err)
	}
	c.redis = rdb
	return nil
}

// Close closes the Redis connection, mirroring the original's __aexit__.
func (c *Client) Close() error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Close()
}

// Publish publishes msg, JSON-encoded, to channel.
func (c *Client) Publish(ctx context.Context, msg map[string]any, channel string) error {
	if c.redis == nil {
		return fmt.Errorf("client: not open, call Open first")
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("client: marshal message: %w", err)
	}
	return c.redis.Publish(ctx, channel, data).Err()
}

// Stream appends msg to stream. When useWrapper is true, msg is parsed into
// a domain.Wrapper client-side and gob-encoded into an opaque {uid, task}
// entry, skipping the worker's JSON parsing path entirely; otherwise the
// entry carries a plain {message: <json>} field.
func (c *Client) Stream(ctx context.Context, msg map[string]any, stream string, useWrapper bool) error {
	if c.redis == nil {
		return fmt.Errorf("client: not open, call Open first")
	}

	var values map[string]any
	if useWrapper {
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("client: marshal message: %w", err)
		}
		w, err := domain.NewWrapperFromJSON(data, nil)
		if err != nil {
			return fmt.Errorf("client: build wrapper: %w", err)
		}

		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(w); err != nil {
			return fmt.Errorf("client: gob encode wrapper: %w", err)
		}
		values = map[string]any{
			"uid":  w.ID.String(),
			"task": base64.StdEncoding.EncodeToString(buf.Bytes()),
		}
	} else {
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("client: marshal message: %w", err)
		}
		values = map[string]any{"message": string(data)}
	}

	return c.redis.XAdd(ctx, &redis.XAddArgs{Stream: stream, Values: values}).Err()
}

// Send delivers msg directly to the TCP worker: dial, write the JSON
// payload, half-close, read the reply.
func (c *Client) Send(ctx context.Context, msg map[string]any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("client: marshal message: %w", err)
	}

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", c.tcpAddr)
	if err != nil {
		return fmt.Errorf("client: dial %s: %w", c.tcpAddr, err)
	}
	defer conn.Close()

	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("client: write: %w", err)
	}
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}

	if _, err := io.ReadAll(conn); err != nil {
		return fmt.Errorf("client: read reply: %w", err)
	}
	return nil
}
