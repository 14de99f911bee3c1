// Package onesignal implements push notification delivery through the
// OneSignal REST API.
package onesignal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/dispatchhq/notifyd/internal/domain"
	"github.com/dispatchhq/notifyd/internal/providers"
	"github.com/dispatchhq/notifyd/internal/template"
)

const defaultBaseURL = "https://onesignal.com/api/v1"

// Settings configures the OneSignal app used to send push notifications.
type Settings struct {
	AppID   string
	APIKey  string
	BaseURL string // overrides defaultBaseURL, for tests
}

// Provider sends push notifications to specific OneSignal player IDs,
// resolved from an Actor's Account.UserID (the player ID OneSignal assigned
// the installed app instance).
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

func (p *Provider) Name() string                     { return "onesignal" }
func (p *Provider) Type() domain.ProviderType         { return domain.ProviderTypePush }
func (p *Provider) Blocking() domain.BlockingStrategy { return domain.BlockingAsyncio }

func (p *Provider) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.settings.AppID == "" || p.settings.APIKey == "" {
		return &domain.ErrAuth{Provider: p.Name(), Err: fmt.Errorf("app id and api key are required")}
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

func playerID(to domain.Recipient) (string, error) {
	actor, ok := to.(domain.Actor)
	if !ok {
		return "", &domain.ErrValidation{Reason: "onesignal provider requires an actor recipient"}
	}
	for _, acct := range actor.Account {
		if acct.UserID != "" {
			return acct.UserID, nil
		}
	}
	return "", &domain.ErrValidation{Reason: fmt.Sprintf("actor %q has no player id account", actor.Name)}
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

	player, err := playerID(to)
	if err != nil {
		return domain.SendResult{Recipient: to, Err: err}, err
	}

	body, err := providers.Render(ctx, p.engine, to, msg, opts.Subject, opts.Extra)
	if err != nil {
		wrapped := &domain.ErrMessage{Reason: "template render failed", Err: err}
		return domain.SendResult{Recipient: to, Err: wrapped}, wrapped
	}

	if err := p.postNotification(ctx, player, opts.Subject, body); err != nil {
		return domain.SendResult{Recipient: to, Err: err}, err
	}
	return domain.SendResult{Recipient: to}, nil
}

func (p *Provider) postNotification(ctx context.Context, playerID, heading, body string) error {
	payload := map[string]any{
		"app_id":             p.settings.AppID,
		"include_player_ids": []string{playerID},
		"contents":           map[string]string{"en": body},
	}
	if heading != "" {
		payload["headings"] = map[string]string{"en": heading}
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return &domain.ErrMessage{Reason: "failed to encode notification", Err: err}
	}

	base := p.settings.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/notifications", bytes.NewReader(encoded))
	if err != nil {
		return &domain.ErrTransport{Provider: p.Name(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+p.settings.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return &domain.ErrProviderError{Provider: p.Name(), Err: err, Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return &domain.ErrProviderError{
			Provider:  p.Name(),
			Err:       fmt.Errorf("onesignal API error (%d): %s", resp.StatusCode, respBody),
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
