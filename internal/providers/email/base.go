// Package email holds the MIME-building and fan-out logic shared by the
// smtp and ses providers.
package email

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/dispatchhq/notifyd/internal/domain"
	"github.com/dispatchhq/notifyd/internal/providers"
	"github.com/dispatchhq/notifyd/internal/template"
	"github.com/wneessen/go-mail"
)

// Sender is implemented by the transport-specific half of an email provider
// (smtp dials and sends over SMTP, ses calls the SES API). Base handles
// everything transport-agnostic: rendering, MIME assembly, fan-out.
type Sender interface {
	SendMsg(ctx context.Context, msg *mail.Msg) error
}

// batchTimeout bounds an entire Send fan-out call, not each individual
// recipient — recipients whose send has not started when it elapses are
// recorded with ErrTimeout. A send already in progress gets the expired
// context, and Send waits for it to return before returning itself.
const batchTimeout = 60 * time.Second

// Base implements the common parts of domain.Provider for email-style
// providers. Concrete providers embed it and supply a Sender plus their own
// Connect/Close.
type Base struct {
	Name     string
	Sender   Sender
	From     string
	FromName string
	Engine   template.Engine
	Callback domain.SentCallback
}

func (b *Base) BuildMessage(ctx context.Context, to domain.Recipient, msg domain.MailMessage, opts domain.SendOptions) (*mail.Msg, error) {
	body, err := providers.Render(ctx, b.Engine, to, msg.Message, opts.Subject, opts.Extra)
	if err != nil {
		return nil, &domain.ErrMessage{Reason: "template render failed", Err: err}
	}

	addr, err := recipientAddress(to)
	if err != nil {
		return nil, &domain.ErrValidation{Reason: "email provider requires an addressable recipient", Err: err}
	}

	m := mail.NewMsg()
	if err := m.FromFormat(b.FromName, b.From); err != nil {
		return nil, &domain.ErrMessage{Reason: "invalid from address", Err: err}
	}
	if err := m.To(addr); err != nil {
		return nil, &domain.ErrMessage{Reason: "invalid recipient address", Err: err}
	}
	m.Subject(opts.Subject)

	contentType := msg.ContentType
	if contentType == "" {
		contentType = "text/plain"
	}

	htmlBody, hasHTML, err := renderHTMLAlternative(ctx, msg)
	if err != nil {
		return nil, err
	}

	switch {
	case hasHTML:
		// Plaintext primary body plus the MJML-rendered block tree as a
		// multipart/alternative HTML part, matching the original's
		// dual-body MIME assembly.
		m.SetBodyString(mail.TypeTextPlain, body)
		if err := m.AddAlternativeString(mail.TypeTextHTML, htmlBody); err != nil {
			return nil, &domain.ErrMessage{Reason: "failed to add html alternative", Err: err}
		}
	case contentType == "text/html":
		m.SetBodyString(mail.TypeTextHTML, body)
	default:
		m.SetBodyString(mail.TypeTextPlain, body)
	}

	for _, att := range msg.Attachments {
		if err := attachOne(m, att); err != nil {
			return nil, &domain.ErrMessage{Reason: fmt.Sprintf("attachment %q", att.Filename), Err: err}
		}
	}

	return m, nil
}

// renderHTMLAlternative compiles msg.Message.Body into an HTML body through
// the MJML block-tree pipeline when the message carries one (an object-form
// "message" field decodes into a map[string]any on Wrapper ingestion). A
// plain string message has no HTML alternative.
func renderHTMLAlternative(ctx context.Context, msg domain.MailMessage) (string, bool, error) {
	raw, ok := msg.Message.Body.(map[string]any)
	if !ok {
		return "", false, nil
	}
	block, err := template.ParseBlock(raw)
	if err != nil {
		return "", false, &domain.ErrMessage{Reason: "invalid block-tree message body", Err: err}
	}
	html, err := template.RenderBlockTree(ctx, block)
	if err != nil {
		return "", false, err
	}
	return html, true, nil
}

func attachOne(m *mail.Msg, att domain.MailAttachment) error {
	content, err := att.DecodeContent()
	if err != nil {
		return err
	}
	m.AttachReader(att.Filename, bytes.NewReader(content))
	return nil
}

func recipientAddress(to domain.Recipient) (string, error) {
	actor, ok := to.(domain.Actor)
	if !ok {
		return "", fmt.Errorf("recipient is not an actor")
	}
	for _, acct := range actor.Account {
		if len(acct.Address) == 0 {
			continue
		}
		addr := acct.Address[0]
		if !govalidator.IsEmail(addr) {
			return "", fmt.Errorf("account address %q is not a valid email address", addr)
		}
		return addr, nil
	}
	return "", fmt.Errorf("actor %q has no email address account", actor.Name)
}

// SendOne renders and dials a single recipient's message.
func (b *Base) SendOne(ctx context.Context, to domain.Recipient, msg domain.MailMessage, opts domain.SendOptions) (domain.SendResult, error) {
	m, err := b.BuildMessage(ctx, to, msg, opts)
	if err != nil {
		result := domain.SendResult{Recipient: to, Err: err}
		domain.InvokeCallback(ctx, b.Callback, to, msg.Message, result)
		return result, err
	}

	if err := b.Sender.SendMsg(ctx, m); err != nil {
		result := domain.SendResult{Recipient: to, Err: &domain.ErrProviderError{Provider: b.Name, Err: err, Retryable: true}}
		domain.InvokeCallback(ctx, b.Callback, to, msg.Message, result)
		return result, result.Err
	}

	result := domain.SendResult{Recipient: to}
	domain.InvokeCallback(ctx, b.Callback, to, msg.Message, result)
	return result, nil
}

// Send fans out to every recipient using BlockingAsyncio under a single
// batch-wide timeout (spec Open Question (b): one timeout per batch, not
// reset per recipient).
func (b *Base) Send(ctx context.Context, recipients []domain.Recipient, msg domain.MailMessage, opts domain.SendOptions) ([]domain.SendResult, error) {
	ctx, cancel := context.WithTimeout(ctx, batchTimeout)
	defer cancel()

	results := providers.FanOut(ctx, domain.BlockingAsyncio, recipients, func(ctx context.Context, to domain.Recipient) (domain.SendResult, error) {
		select {
		case <-ctx.Done():
			result := domain.SendResult{Recipient: to, Err: &domain.ErrTimeout{Provider: b.Name}}
			domain.InvokeCallback(ctx, b.Callback, to, msg.Message, result)
			return result, ctx.Err()
		default:
		}
		return b.SendOne(ctx, to, msg, opts)
	})
	return results, nil
}
