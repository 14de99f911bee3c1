package client_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/gob"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchhq/notifyd/internal/client"
	"github.com/dispatchhq/notifyd/internal/domain"
)

func init() {
	gob.Register(domain.Chat{})
}

func TestClient_PublishSendsJSONToChannel(t *testing.T) {
	mr := miniredis.RunT(t)
	defer mr.Close()

	sub := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer sub.Close()
	ps := sub.Subscribe(context.Background(), "NotifyChannel")
	defer ps.Close()
	_, err := ps.Receive(context.Background())
	require.NoError(t, err)

	c := client.New("redis://"+mr.Addr()+"/0", "")
	require.NoError(t, c.Open(context.Background()))
	defer c.Close()

	require.NoError(t, c.Publish(context.Background(), map[string]any{"provider": "dummy", "message": "hi"}, "NotifyChannel"))

	select {
	case msg := <-ps.Channel():
		var payload map[string]any
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &payload))
		assert.Equal(t, "dummy", payload["provider"])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestClient_StreamWithoutWrapperUsesMessageField(t *testing.T) {
	mr := miniredis.RunT(t)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	c := client.New("redis://"+mr.Addr()+"/0", "")
	require.NoError(t, c.Open(context.Background()))
	defer c.Close()

	require.NoError(t, c.Stream(context.Background(), map[string]any{"provider": "dummy", "message": "hi", "recipient": []any{map[string]any{"chat_id": "c1"}}}, "NotifyStream", false))

	entries, err := rdb.XRange(context.Background(), "NotifyStream", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	_, hasMessage := entries[0].Values["message"]
	assert.True(t, hasMessage)
}

func TestClient_StreamWithWrapperEncodesGobTask(t *testing.T) {
	mr := miniredis.RunT(t)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	c := client.New("redis://"+mr.Addr()+"/0", "")
	require.NoError(t, c.Open(context.Background()))
	defer c.Close()

	require.NoError(t, c.Stream(context.Background(), map[string]any{"provider": "dummy", "message": "hi", "recipient": []any{map[string]any{"chat_id": "c1"}}}, "NotifyStream", true))

	entries, err := rdb.XRange(context.Background(), "NotifyStream", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	taskStr, ok := entries[0].Values["task"].(string)
	require.True(t, ok)
	decoded, err := base64.StdEncoding.DecodeString(taskStr)
	require.NoError(t, err)

	var w domain.Wrapper
	require.NoError(t, gob.NewDecoder(bytes.NewReader(decoded)).Decode(&w))
	assert.Equal(t, "dummy", w.Provider)
}

func TestClient_SendWritesAndReadsReply(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 1024)
		n, _ := conn.Read(buf)
		_ = n
		_, _ = conn.Write([]byte(`{"status":"queued"}`))
	}()

	c := client.New("", ln.Addr().String())
	err = c.Send(context.Background(), map[string]any{"provider": "dummy", "message": "hi"})
	assert.NoError(t, err)
}
