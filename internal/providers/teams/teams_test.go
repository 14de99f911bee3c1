package teams_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dispatchhq/notifyd/internal/domain"
	"github.com/dispatchhq/notifyd/internal/providers/teams"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_SendOneWebhookPostsMessageCard(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := teams.New(teams.Settings{}, nil, nil)
	require.NoError(t, p.Connect(context.Background()))
	defer p.Close(context.Background())

	to := domain.TeamsWebhook{URI: srv.URL}
	result, err := p.SendOne(context.Background(), to, domain.NewMessage("hello team"), domain.SendOptions{Subject: "Alert"})
	require.NoError(t, err)
	assert.Nil(t, result.Err)
	assert.Equal(t, "MessageCard", received["@type"])
	assert.Equal(t, "hello team", received["text"])
}

func TestProvider_SendOneWebhookErrorStatusIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := teams.New(teams.Settings{}, nil, nil)
	require.NoError(t, p.Connect(context.Background()))

	to := domain.TeamsWebhook{URI: srv.URL}
	result, err := p.SendOne(context.Background(), to, domain.NewMessage("hello"), domain.SendOptions{})
	require.Error(t, err)
	var provErr *domain.ErrProviderError
	require.ErrorAs(t, result.Err, &provErr)
	assert.True(t, provErr.Retryable)
}

func TestProvider_SendOneChannelWithoutCredentialsFails(t *testing.T) {
	p := teams.New(teams.Settings{}, nil, nil)
	require.NoError(t, p.Connect(context.Background()))

	to := domain.TeamsChannel{TeamID: "t1", ChannelID: "c1"}
	_, err := p.SendOne(context.Background(), to, domain.NewMessage("hi"), domain.SendOptions{})
	require.Error(t, err)
	var authErr *domain.ErrAuth
	assert.ErrorAs(t, err, &authErr)
}
