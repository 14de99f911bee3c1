// Package dummy is a stdout sink provider, used for local testing of the
// ingress/queue pipeline without a real downstream channel.
package dummy

import (
	"context"
	"fmt"
	"sync"

	"github.com/dispatchhq/notifyd/internal/domain"
	"github.com/dispatchhq/notifyd/internal/providers"
	"github.com/dispatchhq/notifyd/internal/template"
)

const ansiReset = "\033[0m"

var levelColor = map[string]string{
	"INFO":     "\033[32m",
	"DEBUG":    "\033[36m",
	"WARN":     "\033[33m",
	"ERROR":    "\033[31m",
	"CRITICAL": "\033[41m",
}

// Provider prints every message to stdout, color-coded by SendOptions.Level.
type Provider struct {
	mu        sync.Mutex
	connected bool
	engine    template.Engine
	callback  domain.SentCallback
}

func New(engine template.Engine, callback domain.SentCallback) *Provider {
	return &Provider{engine: engine, callback: callback}
}

func (p *Provider) Name() string                       { return "dummy" }
func (p *Provider) Type() domain.ProviderType           { return domain.ProviderTypeNotify }
func (p *Provider) Blocking() domain.BlockingStrategy   { return domain.BlockingAsyncio }

func (p *Provider) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.connected {
		return nil
	}
	fmt.Println("dummy: connected")
	p.connected = true
	return nil
}

func (p *Provider) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return nil
	}
	fmt.Println("dummy: closed")
	p.connected = false
	return nil
}

func (p *Provider) SendOne(ctx context.Context, to domain.Recipient, msg domain.Message, opts domain.SendOptions) (domain.SendResult, error) {
	body, err := providers.Render(ctx, p.engine, to, msg, opts.Subject, opts.Extra)
	if err != nil {
		body = msg.Content
	}

	color := levelColor[opts.Level]
	if color == "" {
		color = levelColor["INFO"]
	}
	fmt.Printf("%s[%v] %s%s\n", color, to, body, ansiReset)

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
