package o365_test

import (
	"context"
	"testing"

	"github.com/dispatchhq/notifyd/internal/domain"
	"github.com/dispatchhq/notifyd/internal/providers/o365"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_ConnectRequiresCredentials(t *testing.T) {
	p := o365.New(o365.Settings{}, nil, nil)
	err := p.Connect(context.Background())
	require.Error(t, err)
	var authErr *domain.ErrAuth
	assert.ErrorAs(t, err, &authErr)
}

func TestProvider_SendOneRequiresActorRecipient(t *testing.T) {
	p := o365.New(o365.Settings{ClientID: "c", ClientSecret: "s", TenantID: "t", Username: "notify@example.com"}, nil, nil)
	require.NoError(t, p.Connect(context.Background()))

	_, err := p.SendOne(context.Background(), domain.Channel{ChannelID: "C1"}, domain.NewMessage("hi"), domain.SendOptions{})
	require.Error(t, err)
	var validationErr *domain.ErrValidation
	assert.ErrorAs(t, err, &validationErr)
}

func TestProvider_SendOneRejectsMalformedAddress(t *testing.T) {
	p := o365.New(o365.Settings{ClientID: "c", ClientSecret: "s", TenantID: "t", Username: "notify@example.com"}, nil, nil)
	require.NoError(t, p.Connect(context.Background()))

	to := domain.Actor{Name: "Ada", Account: []domain.Account{{Provider: "email", Address: domain.StringOrList{"not-an-email"}}}}
	_, err := p.SendOne(context.Background(), to, domain.NewMessage("hi"), domain.SendOptions{})
	require.Error(t, err)
	var validationErr *domain.ErrValidation
	assert.ErrorAs(t, err, &validationErr)
}
