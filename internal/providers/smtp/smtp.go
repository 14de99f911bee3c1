// Package smtp implements the STARTTLS SMTP email provider.
package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"

	"github.com/dispatchhq/notifyd/internal/domain"
	"github.com/dispatchhq/notifyd/internal/providers/email"
	"github.com/dispatchhq/notifyd/internal/template"
	"github.com/wneessen/go-mail"
)

// Settings configures the SMTP connection.
type Settings struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// Provider sends mail over SMTP with mandatory STARTTLS, TLS 1.2 minimum,
// and LOGIN auth negotiated by go-mail (which handles EHLO/STARTTLS
// internally the way aiosmtplib does in the original).
type Provider struct {
	settings Settings
	engine   template.Engine
	callback domain.SentCallback

	mu     sync.Mutex
	client *mail.Client
	base   *email.Base
}

func New(settings Settings, engine template.Engine, callback domain.SentCallback) *Provider {
	return &Provider{settings: settings, engine: engine, callback: callback}
}

func (p *Provider) Name() string                     { return "smtp" }
func (p *Provider) Type() domain.ProviderType         { return domain.ProviderTypeEmail }
func (p *Provider) Blocking() domain.BlockingStrategy { return domain.BlockingAsyncio }

func (p *Provider) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return nil
	}

	client, err := mail.NewClient(p.settings.Host,
		mail.WithPort(p.settings.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12}),
		mail.WithSMTPAuth(mail.SMTPAuthLogin),
		mail.WithUsername(p.settings.Username),
		mail.WithPassword(p.settings.Password),
	)
	if err != nil {
		return &domain.ErrTransport{Provider: p.Name(), Err: err}
	}

	p.client = client
	p.base = &email.Base{
		Name:     p.Name(),
		Sender:   p,
		From:     p.settings.From,
		FromName: p.settings.FromName,
		Engine:   p.engine,
		Callback: p.callback,
	}
	return nil
}

func (p *Provider) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == nil {
		return nil
	}
	// Close errors (e.g. "not connected") are swallowed to stay idempotent,
	// matching the original's swallowed *server-disconnected* on repeat close.
	_ = p.client.Close()
	p.client = nil
	p.base = nil
	return nil
}

// SendMsg implements email.Sender.
func (p *Provider) SendMsg(ctx context.Context, msg *mail.Msg) error {
	p.mu.Lock()
	client := p.client
	p.mu.Unlock()
	if client == nil {
		return fmt.Errorf("smtp: not connected")
	}
	return client.DialAndSend(msg)
}

func (p *Provider) SendOne(ctx context.Context, to domain.Recipient, msg domain.Message, opts domain.SendOptions) (domain.SendResult, error) {
	return p.base.SendOne(ctx, to, domain.MailMessage{Message: msg, ContentType: "text/plain"}, opts)
}

func (p *Provider) Send(ctx context.Context, recipients []domain.Recipient, msg domain.Message, opts domain.SendOptions) ([]domain.SendResult, error) {
	return p.base.Send(ctx, recipients, domain.MailMessage{Message: msg, ContentType: "text/plain"}, opts)
}
