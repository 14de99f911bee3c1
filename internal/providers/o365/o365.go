// Package o365 implements email delivery through Microsoft Graph's
// /users/{upn}/sendMail endpoint, authenticated with an application-only
// (client credentials) OAuth2 token.
package o365

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/asaskevich/govalidator"
	"github.com/dispatchhq/notifyd/internal/domain"
	"github.com/dispatchhq/notifyd/internal/providers"
	"github.com/dispatchhq/notifyd/internal/template"
)

const graphBaseURL = "https://graph.microsoft.com/v1.0"

// Settings configures the Azure AD application used to call Graph on behalf
// of the mailbox identified by Username.
type Settings struct {
	ClientID     string
	ClientSecret string
	TenantID     string
	Username     string // UPN of the mailbox Graph sends as
}

// Provider sends mail via Graph's sendMail action, addressing recipients by
// an Actor's email Account.Address.
type Provider struct {
	settings Settings
	engine   template.Engine
	callback domain.SentCallback
	client   *http.Client

	mu       sync.Mutex
	tokenSrc oauth2.TokenSource
}

func New(settings Settings, engine template.Engine, callback domain.SentCallback) *Provider {
	return &Provider{settings: settings, engine: engine, callback: callback, client: &http.Client{Timeout: 30 * time.Second}}
}

func (p *Provider) Name() string                      { return "o365" }
func (p *Provider) Type() domain.ProviderType         { return domain.ProviderTypeEmail }
func (p *Provider) Blocking() domain.BlockingStrategy { return domain.BlockingAsyncio }

func (p *Provider) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tokenSrc != nil {
		return nil
	}
	if p.settings.ClientID == "" || p.settings.ClientSecret == "" || p.settings.TenantID == "" {
		return &domain.ErrAuth{Provider: p.Name(), Err: fmt.Errorf("client id, client secret and tenant id are required")}
	}
	cfg := &clientcredentials.Config{
		ClientID:     p.settings.ClientID,
		ClientSecret: p.settings.ClientSecret,
		TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", p.settings.TenantID),
		Scopes:       []string{"https://graph.microsoft.com/.default"},
	}
	p.tokenSrc = oauth2.ReuseTokenSource(nil, cfg.TokenSource(ctx))
	return nil
}

func (p *Provider) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenSrc = nil
	return nil
}

func recipientAddresses(to domain.Recipient) ([]string, error) {
	actor, ok := to.(domain.Actor)
	if !ok {
		return nil, &domain.ErrValidation{Reason: "o365 provider requires an actor recipient"}
	}
	var addrs []string
	for _, acct := range actor.Account {
		for _, addr := range acct.Address {
			if !govalidator.IsEmail(addr) {
				return nil, &domain.ErrValidation{Reason: fmt.Sprintf("account address %q is not a valid email address", addr)}
			}
			addrs = append(addrs, addr)
		}
	}
	if len(addrs) == 0 {
		return nil, &domain.ErrValidation{Reason: fmt.Sprintf("actor %q has no email address account", actor.Name)}
	}
	return addrs, nil
}

func (p *Provider) SendOne(ctx context.Context, to domain.Recipient, msg domain.Message, opts domain.SendOptions) (domain.SendResult, error) {
	result, err := p.sendOne(ctx, to, msg, opts)
	domain.InvokeCallback(ctx, p.callback, to, msg, result)
	return result, err
}

func (p *Provider) sendOne(ctx context.Context, to domain.Recipient, msg domain.Message, opts domain.SendOptions) (domain.SendResult, error) {
	p.mu.Lock()
	src := p.tokenSrc
	p.mu.Unlock()
	if src == nil {
		err := &domain.ErrTransport{Provider: p.Name(), Err: fmt.Errorf("not connected")}
		return domain.SendResult{Recipient: to, Err: err}, err
	}

	addrs, err := recipientAddresses(to)
	if err != nil {
		return domain.SendResult{Recipient: to, Err: err}, err
	}

	body, err := providers.Render(ctx, p.engine, to, msg, opts.Subject, opts.Extra)
	if err != nil {
		wrapped := &domain.ErrMessage{Reason: "template render failed", Err: err}
		return domain.SendResult{Recipient: to, Err: wrapped}, wrapped
	}

	mm, _ := msg.Body.(domain.MailMessage)

	token, err := src.Token()
	if err != nil {
		wrapped := &domain.ErrAuth{Provider: p.Name(), Err: err}
		return domain.SendResult{Recipient: to, Err: wrapped}, wrapped
	}

	if err := p.sendMail(ctx, token.AccessToken, addrs, opts.Subject, body, mm.Attachments); err != nil {
		return domain.SendResult{Recipient: to, Err: err}, err
	}
	return domain.SendResult{Recipient: to}, nil
}

func (p *Provider) sendMail(ctx context.Context, token string, addrs []string, subject, body string, attachments []domain.MailAttachment) error {
	toRecipients := make([]map[string]any, 0, len(addrs))
	for _, addr := range addrs {
		toRecipients = append(toRecipients, map[string]any{"emailAddress": map[string]string{"address": addr}})
	}

	message := map[string]any{
		"subject": subject,
		"body": map[string]string{
			"contentType": "Text",
			"content":     body,
		},
		"toRecipients": toRecipients,
	}

	if len(attachments) > 0 {
		graphAttachments := make([]map[string]any, 0, len(attachments))
		for _, att := range attachments {
			graphAttachments = append(graphAttachments, map[string]any{
				"@odata.type":  "#microsoft.graph.fileAttachment",
				"name":         att.Filename,
				"contentType":  att.ContentType,
				"contentBytes": att.Content,
			})
		}
		message["attachments"] = graphAttachments
	}

	payload, err := json.Marshal(map[string]any{"message": message, "saveToSentItems": false})
	if err != nil {
		return &domain.ErrMessage{Reason: "failed to encode graph message", Err: err}
	}

	endpoint := fmt.Sprintf("%s/users/%s/sendMail", graphBaseURL, p.settings.Username)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return &domain.ErrTransport{Provider: p.Name(), Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return &domain.ErrProviderError{Provider: p.Name(), Err: err, Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return &domain.ErrProviderError{
			Provider:  p.Name(),
			Err:       fmt.Errorf("graph sendMail returned %d: %s", resp.StatusCode, respBody),
			Retryable: resp.StatusCode >= 500,
		}
	}
	return nil
}

func (p *Provider) Send(ctx context.Context, recipients []domain.Recipient, msg domain.Message, opts domain.SendOptions) ([]domain.SendResult, error) {
	results := providers.FanOut(ctx, p.Blocking(), recipients, func(ctx context.Context, to domain.Recipient) (domain.SendResult, error) {
		return p.SendOne(ctx, to, msg, opts)
	})
	return results, nil
}
