// Package telegram implements chat delivery through a Telegram bot token,
// using the Bot API's sendMessage/sendPhoto endpoints.
package telegram

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"sync"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/dispatchhq/notifyd/internal/domain"
	"github.com/dispatchhq/notifyd/internal/providers"
	"github.com/dispatchhq/notifyd/internal/template"
	"github.com/dispatchhq/notifyd/pkg/qrcode"
)

var errNotConnected = errors.New("telegram: not connected")

// BotClient is the subset of *bot.Bot the provider depends on, narrowed for
// testability.
type BotClient interface {
	SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*models.Message, error)
	SendPhoto(ctx context.Context, params *tgbot.SendPhotoParams) (*models.Message, error)
}

// Settings configures the bot token used to call the Telegram Bot API.
type Settings struct {
	Token string
}

// Provider sends text (and, for qrcode-tagged attachments, photo) messages
// to a Telegram chat or channel, addressed by Chat.ChatID/Channel.ChannelID
// (both parsed as the int64 chat ID the Bot API expects).
type Provider struct {
	settings Settings
	engine   template.Engine
	callback domain.SentCallback

	mu     sync.Mutex
	client BotClient
	newBot func(token string) (BotClient, error)
}

func New(settings Settings, engine template.Engine, callback domain.SentCallback) *Provider {
	return &Provider{
		settings: settings,
		engine:   engine,
		callback: callback,
		newBot:   newRealBot,
	}
}

func newRealBot(token string) (BotClient, error) {
	b, err := tgbot.New(token)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (p *Provider) Name() string                     { return "telegram" }
func (p *Provider) Type() domain.ProviderType         { return domain.ProviderTypeIM }
func (p *Provider) Blocking() domain.BlockingStrategy { return domain.BlockingAsyncio }

func (p *Provider) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return nil
	}
	client, err := p.newBot(p.settings.Token)
	if err != nil {
		return &domain.ErrAuth{Provider: p.Name(), Err: err}
	}
	p.client = client
	return nil
}

func (p *Provider) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.client = nil
	return nil
}

func chatID(to domain.Recipient) (int64, error) {
	var raw string
	switch r := to.(type) {
	case domain.Chat:
		raw = r.ChatID
	case domain.Channel:
		raw = r.ChannelID
	default:
		return 0, &domain.ErrValidation{Reason: "telegram provider requires a Chat or Channel recipient"}
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &domain.ErrValidation{Reason: "telegram chat id must be numeric", Err: err}
	}
	return id, nil
}

func (p *Provider) SendOne(ctx context.Context, to domain.Recipient, msg domain.Message, opts domain.SendOptions) (domain.SendResult, error) {
	p.mu.Lock()
	client := p.client
	p.mu.Unlock()

	result, err := p.sendOne(ctx, client, to, msg, opts)
	domain.InvokeCallback(ctx, p.callback, to, msg, result)
	return result, err
}

func (p *Provider) sendOne(ctx context.Context, client BotClient, to domain.Recipient, msg domain.Message, opts domain.SendOptions) (domain.SendResult, error) {
	if client == nil {
		err := &domain.ErrTransport{Provider: p.Name(), Err: errNotConnected}
		return domain.SendResult{Recipient: to, Err: err}, err
	}

	id, err := chatID(to)
	if err != nil {
		return domain.SendResult{Recipient: to, Err: err}, err
	}

	body, err := providers.Render(ctx, p.engine, to, msg, opts.Subject, opts.Extra)
	if err != nil {
		wrapped := &domain.ErrMessage{Reason: "template render failed", Err: err}
		return domain.SendResult{Recipient: to, Err: wrapped}, wrapped
	}

	if mm, ok := msg.Body.(domain.MailMessage); ok {
		for _, att := range mm.Attachments {
			if !att.IsQRCode() {
				continue
			}
			if err := p.sendQRPhoto(ctx, client, id, att, body); err != nil {
				return domain.SendResult{Recipient: to, Err: err}, err
			}
			return domain.SendResult{Recipient: to}, nil
		}
	}

	_, err = client.SendMessage(ctx, &tgbot.SendMessageParams{ChatID: id, Text: body})
	if err != nil {
		wrapped := &domain.ErrProviderError{Provider: p.Name(), Err: err, Retryable: true}
		return domain.SendResult{Recipient: to, Err: wrapped}, wrapped
	}
	return domain.SendResult{Recipient: to}, nil
}

func (p *Provider) sendQRPhoto(ctx context.Context, client BotClient, id int64, att domain.MailAttachment, caption string) error {
	png, err := qrcode.Encode(caption, 256)
	if err != nil {
		return &domain.ErrMessage{Reason: "failed to render qr code", Err: err}
	}
	_, err = client.SendPhoto(ctx, &tgbot.SendPhotoParams{
		ChatID:  id,
		Photo:   &models.InputFileUpload{Filename: att.Filename, Data: bytes.NewReader(png)},
		Caption: att.Subject,
	})
	if err != nil {
		return &domain.ErrProviderError{Provider: p.Name(), Err: err, Retryable: true}
	}
	return nil
}

func (p *Provider) Send(ctx context.Context, recipients []domain.Recipient, msg domain.Message, opts domain.SendOptions) ([]domain.SendResult, error) {
	results := providers.FanOut(ctx, p.Blocking(), recipients, func(ctx context.Context, to domain.Recipient) (domain.SendResult, error) {
		return p.SendOne(ctx, to, msg, opts)
	})
	return results, nil
}
