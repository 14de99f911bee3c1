package dummy_test

import (
	"context"
	"testing"

	"github.com/dispatchhq/notifyd/internal/domain"
	"github.com/dispatchhq/notifyd/internal/providers/dummy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_SendInvokesCallbackPerRecipient(t *testing.T) {
	var calls int
	cb := func(ctx context.Context, to domain.Recipient, msg domain.Message, result domain.SendResult) {
		calls++
	}

	p := dummy.New(nil, cb)
	require.NoError(t, p.Connect(context.Background()))
	defer p.Close(context.Background())

	recipients := []domain.Recipient{
		domain.Actor{Name: "Ada"},
		domain.Actor{Name: "Grace"},
	}

	results, err := p.Send(context.Background(), recipients, domain.NewMessage("hello"), domain.SendOptions{Level: "INFO"})
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, 2, calls)
}

func TestProvider_ConnectCloseIdempotent(t *testing.T) {
	p := dummy.New(nil, nil)
	ctx := context.Background()
	require.NoError(t, p.Connect(ctx))
	require.NoError(t, p.Connect(ctx))
	require.NoError(t, p.Close(ctx))
	require.NoError(t, p.Close(ctx))
}
