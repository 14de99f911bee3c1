// Package twilio implements SMS delivery through Twilio's REST API.
package twilio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/dispatchhq/notifyd/internal/domain"
	"github.com/dispatchhq/notifyd/internal/providers"
	"github.com/dispatchhq/notifyd/internal/template"
)

// Settings configures the Twilio account used to send SMS. BaseURL
// overrides the Twilio API root and exists only for tests.
type Settings struct {
	AccountSID string
	AuthToken  string
	From       string
	BaseURL    string
}

// Provider sends SMS messages via the Twilio Messages REST resource,
// addressing recipients by their Actor's phone Account.Number.
type Provider struct {
	settings Settings
	engine   template.Engine
	callback domain.SentCallback
	client   *http.Client

	mu        sync.Mutex
	connected bool
}

func New(settings Settings, engine template.Engine, callback domain.SentCallback) *Provider {
	return &Provider{settings: settings, engine: engine, callback: callback, client: &http.Client{Timeout: 30 * time.Second}}
}

func (p *Provider) Name() string                     { return "twilio" }
func (p *Provider) Type() domain.ProviderType         { return domain.ProviderTypeSMS }
func (p *Provider) Blocking() domain.BlockingStrategy { return domain.BlockingAsyncio }

func (p *Provider) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.settings.AccountSID == "" || p.settings.AuthToken == "" {
		return &domain.ErrAuth{Provider: p.Name(), Err: fmt.Errorf("account sid and auth token are required")}
	}
	p.connected = true
	return nil
}

func (p *Provider) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = false
	return nil
}

func phoneNumber(to domain.Recipient) (string, error) {
	actor, ok := to.(domain.Actor)
	if !ok {
		return "", &domain.ErrValidation{Reason: "twilio provider requires an actor recipient"}
	}
	for _, acct := range actor.Account {
		if len(acct.Number) > 0 {
			return acct.Number[0], nil
		}
	}
	return "", &domain.ErrValidation{Reason: fmt.Sprintf("actor %q has no phone number account", actor.Name)}
}

func (p *Provider) SendOne(ctx context.Context, to domain.Recipient, msg domain.Message, opts domain.SendOptions) (domain.SendResult, error) {
	result, err := p.sendOne(ctx, to, msg, opts)
	domain.InvokeCallback(ctx, p.callback, to, msg, result)
	return result, err
}

func (p *Provider) sendOne(ctx context.Context, to domain.Recipient, msg domain.Message, opts domain.SendOptions) (domain.SendResult, error) {
	p.mu.Lock()
	connected := p.connected
	p.mu.Unlock()
	if !connected {
		err := &domain.ErrTransport{Provider: p.Name(), Err: fmt.Errorf("not connected")}
		return domain.SendResult{Recipient: to, Err: err}, err
	}

	number, err := phoneNumber(to)
	if err != nil {
		return domain.SendResult{Recipient: to, Err: err}, err
	}

	body, err := providers.Render(ctx, p.engine, to, msg, opts.Subject, opts.Extra)
	if err != nil {
		wrapped := &domain.ErrMessage{Reason: "template render failed", Err: err}
		return domain.SendResult{Recipient: to, Err: wrapped}, wrapped
	}

	if err := p.postMessage(ctx, number, body); err != nil {
		return domain.SendResult{Recipient: to, Err: err}, err
	}
	return domain.SendResult{Recipient: to}, nil
}

func (p *Provider) postMessage(ctx context.Context, to, body string) error {
	form := url.Values{
		"To":   {to},
		"From": {p.settings.From},
		"Body": {body},
	}

	base := p.settings.BaseURL
	if base == "" {
		base = "https://api.twilio.com/2010-04-01"
	}
	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", base, p.settings.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return &domain.ErrTransport{Provider: p.Name(), Err: err}
	}
	req.SetBasicAuth(p.settings.AccountSID, p.settings.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return &domain.ErrProviderError{Provider: p.Name(), Err: err, Retryable: true}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Message string `json:"message"`
			Code    int    `json:"code"`
		}
		_ = json.Unmarshal(respBody, &apiErr)
		msg := apiErr.Message
		if msg == "" {
			msg = string(respBody)
		}
		return &domain.ErrProviderError{
			Provider:  p.Name(),
			Err:       fmt.Errorf("twilio API error (%d): %s", resp.StatusCode, msg),
			Retryable: resp.StatusCode >= 500 || resp.StatusCode == 429,
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
