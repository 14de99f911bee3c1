package email_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"github.com/dispatchhq/notifyd/internal/domain"
	"github.com/dispatchhq/notifyd/internal/providers/email"
	"github.com/dispatchhq/notifyd/internal/template"
)

type recordingSender struct {
	sent *mail.Msg
}

func (s *recordingSender) SendMsg(ctx context.Context, msg *mail.Msg) error {
	s.sent = msg
	return nil
}

func newBase(t *testing.T, sender *recordingSender) *email.Base {
	t.Helper()
	return &email.Base{
		Name:     "smtp",
		Sender:   sender,
		From:     "noreply@example.com",
		FromName: "Notifyd",
		Engine:   template.NewEngine(t.TempDir()),
	}
}

func TestBase_SendOneRejectsMalformedAddress(t *testing.T) {
	sender := &recordingSender{}
	b := newBase(t, sender)

	to := domain.Actor{Name: "Ada", Account: []domain.Account{{Provider: "email", Address: domain.StringOrList{"not-an-email"}}}}
	_, err := b.SendOne(context.Background(), to, domain.MailMessage{Message: domain.NewMessage("hi")}, domain.SendOptions{Subject: "hi"})
	require.Error(t, err)
	var validationErr *domain.ErrValidation
	assert.ErrorAs(t, err, &validationErr)
	assert.Nil(t, sender.sent)
}

func TestBase_SendOneAcceptsValidAddress(t *testing.T) {
	sender := &recordingSender{}
	b := newBase(t, sender)

	to := domain.Actor{Name: "Ada", Account: []domain.Account{{Provider: "email", Address: domain.StringOrList{"ada@example.com"}}}}
	result, err := b.SendOne(context.Background(), to, domain.MailMessage{Message: domain.NewMessage("hi")}, domain.SendOptions{Subject: "hi"})
	require.NoError(t, err)
	assert.Nil(t, result.Err)
	assert.NotNil(t, sender.sent)
}

func TestBase_SendOneAddsHTMLAlternativeForBlockTreeBody(t *testing.T) {
	sender := &recordingSender{}
	b := newBase(t, sender)

	blockMsg := domain.NewMessage("")
	blockMsg.Body = map[string]any{
		"type": "mjml",
		"children": []any{
			map[string]any{
				"type": "mj-body",
				"children": []any{
					map[string]any{
						"type": "mj-section",
						"children": []any{
							map[string]any{
								"type": "mj-column",
								"children": []any{
									map[string]any{"type": "mj-text", "content": "Hello Ada"},
								},
							},
						},
					},
				},
			},
		},
	}

	to := domain.Actor{Name: "Ada", Account: []domain.Account{{Provider: "email", Address: domain.StringOrList{"ada@example.com"}}}}
	result, err := b.SendOne(context.Background(), to, domain.MailMessage{Message: blockMsg}, domain.SendOptions{Subject: "hi"})
	require.NoError(t, err)
	assert.Nil(t, result.Err)
	require.NotNil(t, sender.sent)
}

func TestBase_SendInvokesCallbackOnBatchTimeout(t *testing.T) {
	sender := &recordingSender{}
	b := newBase(t, sender)

	var callbackResults []domain.SendResult
	b.Callback = func(ctx context.Context, to domain.Recipient, msg domain.Message, result domain.SendResult) {
		callbackResults = append(callbackResults, result)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	to := domain.Actor{Name: "Ada", Account: []domain.Account{{Provider: "email", Address: domain.StringOrList{"ada@example.com"}}}}
	results, err := b.Send(ctx, []domain.Recipient{to}, domain.MailMessage{Message: domain.NewMessage("hi")}, domain.SendOptions{Subject: "hi"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	var timeoutErr *domain.ErrTimeout
	assert.ErrorAs(t, results[0].Err, &timeoutErr)
	require.Len(t, callbackResults, 1)
	assert.ErrorAs(t, callbackResults[0].Err, &timeoutErr)
}
