package twilio_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/dispatchhq/notifyd/internal/domain"
	"github.com/dispatchhq/notifyd/internal/providers/twilio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_SendOneRequiresPhoneNumber(t *testing.T) {
	p := twilio.New(twilio.Settings{AccountSID: "AC1", AuthToken: "tok", From: "+10000000000"}, nil, nil)
	require.NoError(t, p.Connect(context.Background()))

	to := domain.Actor{Name: "Ada", Account: []domain.Account{{Provider: "email", Address: domain.StringOrList{"a@example.com"}}}}
	_, err := p.SendOne(context.Background(), to, domain.NewMessage("hi"), domain.SendOptions{})
	require.Error(t, err)
	var validationErr *domain.ErrValidation
	assert.ErrorAs(t, err, &validationErr)
}

func TestProvider_ConnectRequiresCredentials(t *testing.T) {
	p := twilio.New(twilio.Settings{}, nil, nil)
	err := p.Connect(context.Background())
	require.Error(t, err)
	var authErr *domain.ErrAuth
	assert.ErrorAs(t, err, &authErr)
}

func TestProvider_SendOnePostsFormEncodedMessage(t *testing.T) {
	var gotForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = r.Form
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM1"}`))
	}))
	defer srv.Close()

	p := twilio.New(twilio.Settings{AccountSID: "AC1", AuthToken: "tok", From: "+10000000000", BaseURL: srv.URL}, nil, nil)
	require.NoError(t, p.Connect(context.Background()))

	to := domain.Actor{Name: "Ada", Account: []domain.Account{{Provider: "sms", Number: domain.StringOrList{"+15551234567"}}}}
	result, err := p.SendOne(context.Background(), to, domain.NewMessage("hi there"), domain.SendOptions{})
	require.NoError(t, err)
	assert.Nil(t, result.Err)
	assert.Equal(t, "+15551234567", gotForm.Get("To"))
	assert.Equal(t, "hi there", gotForm.Get("Body"))
}
