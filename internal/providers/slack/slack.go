// Package slack implements chat delivery to a Slack channel or chat via a
// bot token.
package slack

import (
	"context"
	"errors"
	"sync"

	"github.com/dispatchhq/notifyd/internal/domain"
	"github.com/dispatchhq/notifyd/internal/providers"
	"github.com/dispatchhq/notifyd/internal/template"
	"github.com/slack-go/slack"
)

var errNotConnected = errors.New("slack: not connected")

// Settings configures the bot token used to call the Slack Web API. APIURL
// overrides the Slack API base URL and exists only for tests.
type Settings struct {
	BotToken string
	APIURL   string
}

// Provider posts messages through the Slack Web API, addressing recipients
// by Channel.ChannelID or Chat.ChatID (Slack treats both as a conversation
// ID for chat.postMessage).
type Provider struct {
	settings Settings
	engine   template.Engine
	callback domain.SentCallback

	mu     sync.Mutex
	client *slack.Client
}

func New(settings Settings, engine template.Engine, callback domain.SentCallback) *Provider {
	return &Provider{settings: settings, engine: engine, callback: callback}
}

func (p *Provider) Name() string                     { return "slack" }
func (p *Provider) Type() domain.ProviderType         { return domain.ProviderTypeIM }
func (p *Provider) Blocking() domain.BlockingStrategy { return domain.BlockingAsyncio }

func (p *Provider) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return nil
	}
	opts := []slack.Option{}
	if p.settings.APIURL != "" {
		opts = append(opts, slack.OptionAPIURL(p.settings.APIURL))
	}
	client := slack.New(p.settings.BotToken, opts...)
	if _, err := client.AuthTestContext(ctx); err != nil {
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

func conversationID(to domain.Recipient) (string, error) {
	switch r := to.(type) {
	case domain.Channel:
		return r.ChannelID, nil
	case domain.Chat:
		return r.ChatID, nil
	default:
		return "", &domain.ErrValidation{Reason: "slack provider requires a Channel or Chat recipient"}
	}
}

func (p *Provider) SendOne(ctx context.Context, to domain.Recipient, msg domain.Message, opts domain.SendOptions) (domain.SendResult, error) {
	p.mu.Lock()
	client := p.client
	p.mu.Unlock()
	if client == nil {
		err := &domain.ErrTransport{Provider: p.Name(), Err: errNotConnected}
		result := domain.SendResult{Recipient: to, Err: err}
		domain.InvokeCallback(ctx, p.callback, to, msg, result)
		return result, err
	}

	channel, err := conversationID(to)
	if err != nil {
		result := domain.SendResult{Recipient: to, Err: err}
		domain.InvokeCallback(ctx, p.callback, to, msg, result)
		return result, err
	}

	body, err := providers.Render(ctx, p.engine, to, msg, opts.Subject, opts.Extra)
	if err != nil {
		wrapped := &domain.ErrMessage{Reason: "template render failed", Err: err}
		result := domain.SendResult{Recipient: to, Err: wrapped}
		domain.InvokeCallback(ctx, p.callback, to, msg, result)
		return result, wrapped
	}

	text := slack.NewTextBlockObject(slack.MarkdownType, body, false, false)
	section := slack.NewSectionBlock(text, nil, nil)

	_, _, err = client.PostMessageContext(ctx, channel,
		slack.MsgOptionText(body, false),
		slack.MsgOptionBlocks(section),
	)
	if err != nil {
		wrapped := &domain.ErrProviderError{Provider: p.Name(), Err: err, Retryable: true}
		result := domain.SendResult{Recipient: to, Err: wrapped}
		domain.InvokeCallback(ctx, p.callback, to, msg, result)
		return result, wrapped
	}

	result := domain.SendResult{Recipient: to}
	domain.InvokeCallback(ctx, p.callback, to, msg, result)
	return result, nil
}

func (p *Provider) Send(ctx context.Context, recipients []domain.Recipient, msg domain.Message, opts domain.SendOptions) ([]domain.SendResult, error) {
	results := providers.FanOut(ctx, p.Blocking(), recipients, func(ctx context.Context, to domain.Recipient) (domain.SendResult, error) {
		return p.SendOne(ctx, to, msg, opts)
	})
	return results, nil
}
