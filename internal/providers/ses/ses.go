// Package ses implements the Amazon SES email provider.
package ses

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	awssession "github.com/aws/aws-sdk-go/aws/session"
	sesv1 "github.com/aws/aws-sdk-go/service/ses"
	"github.com/dispatchhq/notifyd/internal/domain"
	"github.com/dispatchhq/notifyd/internal/providers/email"
	"github.com/dispatchhq/notifyd/internal/template"
	"github.com/wneessen/go-mail"
)

// Provider sends mail through the AWS SES SendRawEmail API.
type Provider struct {
	settings domain.AmazonSESSettings
	from     string
	fromName string
	engine   template.Engine
	callback domain.SentCallback

	mu     sync.Mutex
	client domain.SESClient
	base   *email.Base
}

func New(settings domain.AmazonSESSettings, from, fromName string, engine template.Engine, callback domain.SentCallback) *Provider {
	return &Provider{settings: settings, from: from, fromName: fromName, engine: engine, callback: callback}
}

func (p *Provider) Name() string                      { return "ses" }
func (p *Provider) Type() domain.ProviderType         { return domain.ProviderTypeEmail }
func (p *Provider) Blocking() domain.BlockingStrategy { return domain.BlockingAsyncio }

func (p *Provider) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return nil
	}

	awsCfg := &aws.Config{Region: aws.String(p.settings.Region)}
	if p.settings.AccessKey != "" && p.settings.SecretKey != "" {
		// Static credentials take priority over the ambient AWS credential
		// chain, so the decrypted SecretKey configured for this provider is
		// what actually signs requests.
		awsCfg.Credentials = credentials.NewStaticCredentials(p.settings.AccessKey, p.settings.SecretKey, "")
	}
	sess, err := awssession.NewSession(awsCfg)
	if err != nil {
		return &domain.ErrTransport{Provider: p.Name(), Err: err}
	}
	p.client = sesv1.New(sess)
	p.base = &email.Base{
		Name:     p.Name(),
		Sender:   p,
		From:     p.from,
		FromName: p.fromName,
		Engine:   p.engine,
		Callback: p.callback,
	}
	return nil
}

func (p *Provider) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.client = nil
	p.base = nil
	return nil
}

// SendMsg implements email.Sender by serializing msg to RFC 822 and calling
// SES's SendRawEmail, so attachments and HTML alternatives survive exactly
// as go-mail built them.
func (p *Provider) SendMsg(ctx context.Context, msg *mail.Msg) error {
	p.mu.Lock()
	client := p.client
	p.mu.Unlock()
	if client == nil {
		return fmt.Errorf("ses: not connected")
	}

	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		return &domain.ErrMessage{Reason: "failed to serialize MIME message", Err: err}
	}

	_, err := client.SendRawEmailWithContext(ctx, &sesv1.SendRawEmailInput{
		RawMessage: &sesv1.RawMessage{Data: buf.Bytes()},
	})
	if err != nil {
		return &domain.ErrProviderError{Provider: p.Name(), Err: err, Retryable: true}
	}
	return nil
}

func (p *Provider) SendOne(ctx context.Context, to domain.Recipient, msg domain.Message, opts domain.SendOptions) (domain.SendResult, error) {
	return p.base.SendOne(ctx, to, domain.MailMessage{Message: msg, ContentType: "text/plain"}, opts)
}

func (p *Provider) Send(ctx context.Context, recipients []domain.Recipient, msg domain.Message, opts domain.SendOptions) ([]domain.SendResult, error) {
	return p.base.Send(ctx, recipients, domain.MailMessage{Message: msg, ContentType: "text/plain"}, opts)
}
