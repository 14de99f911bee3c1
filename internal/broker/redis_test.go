package broker_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/dispatchhq/notifyd/internal/broker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect_PingsSuccessfully(t *testing.T) {
	mr := miniredis.RunT(t)
	defer mr.Close()

	client, err := broker.Connect(context.Background(), fmt.Sprintf("redis://%s/0", mr.Addr()))
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.Ping(context.Background()).Err())
}

func TestConnect_BadDSNFails(t *testing.T) {
	_, err := broker.Connect(context.Background(), "not-a-redis-url")
	require.Error(t, err)
}

func TestConnect_UnreachableHostFails(t *testing.T) {
	_, err := broker.Connect(context.Background(), "redis://127.0.0.1:1/0")
	require.Error(t, err)
}
