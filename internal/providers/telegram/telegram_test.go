package telegram

import (
	"context"
	"testing"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchhq/notifyd/internal/domain"
)

type fakeBotClient struct {
	messages []string
	photos   int
}

func (f *fakeBotClient) SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*models.Message, error) {
	f.messages = append(f.messages, params.Text)
	return &models.Message{}, nil
}

func (f *fakeBotClient) SendPhoto(ctx context.Context, params *tgbot.SendPhotoParams) (*models.Message, error) {
	f.photos++
	return &models.Message{}, nil
}

func TestProvider_SendOneTextMessage(t *testing.T) {
	fake := &fakeBotClient{}
	p := New(Settings{Token: "t"}, nil, nil)
	p.newBot = func(token string) (BotClient, error) { return fake, nil }
	require.NoError(t, p.Connect(context.Background()))

	to := domain.Chat{ChatID: "12345"}
	result, err := p.SendOne(context.Background(), to, domain.NewMessage("hello"), domain.SendOptions{})
	require.NoError(t, err)
	assert.Nil(t, result.Err)
	assert.Equal(t, []string{"hello"}, fake.messages)
}

func TestProvider_SendOneRejectsNonNumericChatID(t *testing.T) {
	fake := &fakeBotClient{}
	p := New(Settings{Token: "t"}, nil, nil)
	p.newBot = func(token string) (BotClient, error) { return fake, nil }
	require.NoError(t, p.Connect(context.Background()))

	to := domain.Chat{ChatID: "not-a-number"}
	_, err := p.SendOne(context.Background(), to, domain.NewMessage("hello"), domain.SendOptions{})
	require.Error(t, err)
	var validationErr *domain.ErrValidation
	assert.ErrorAs(t, err, &validationErr)
}

func TestProvider_SendOneQRCodeAttachmentSendsPhoto(t *testing.T) {
	fake := &fakeBotClient{}
	p := New(Settings{Token: "t"}, nil, nil)
	p.newBot = func(token string) (BotClient, error) { return fake, nil }
	require.NoError(t, p.Connect(context.Background()))

	msg := domain.NewMessage("https://example.com/verify")
	msg.Body = domain.MailMessage{
		Attachments: []domain.MailAttachment{{Attachment: domain.Attachment{Filename: "qr.png", Kind: domain.AttachmentKindQRCode}}},
	}

	to := domain.Chat{ChatID: "999"}
	result, err := p.SendOne(context.Background(), to, msg, domain.SendOptions{})
	require.NoError(t, err)
	assert.Nil(t, result.Err)
	assert.Equal(t, 1, fake.photos)
	assert.Empty(t, fake.messages)
}
