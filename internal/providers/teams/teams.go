// Package teams implements Microsoft Teams delivery: plain incoming-webhook
// POSTs for TeamsWebhook recipients, and Graph API channel/chat messages for
// TeamsChannel/TeamsChat recipients.
package teams

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
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const graphBaseURL = "https://graph.microsoft.com/v1.0"

// Settings configures the Teams provider. ClientID/ClientSecret/TenantID are
// only required when sending to TeamsChannel/TeamsChat recipients; a
// webhook-only deployment can leave them empty.
type Settings struct {
	ClientID       string
	ClientSecret   string
	TenantID       string
	DefaultWebhook string
}

// Provider sends TeamsCard messages either through an incoming webhook or,
// for channel/chat recipients, through the Graph API using an
// application-only (client credentials) token.
type Provider struct {
	settings Settings
	engine   template.Engine
	callback domain.SentCallback

	httpClient *http.Client

	mu        sync.Mutex
	connected bool
	tokenSrc  oauth2.TokenSource
}

func New(settings Settings, engine template.Engine, callback domain.SentCallback) *Provider {
	return &Provider{settings: settings, engine: engine, callback: callback, httpClient: &http.Client{Timeout: 30 * time.Second}}
}

func (p *Provider) Name() string                     { return "teams" }
func (p *Provider) Type() domain.ProviderType         { return domain.ProviderTypeIM }
func (p *Provider) Blocking() domain.BlockingStrategy { return domain.BlockingAsyncio }

func (p *Provider) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.connected {
		return nil
	}
	if p.settings.ClientID != "" && p.settings.ClientSecret != "" {
		cfg := &clientcredentials.Config{
			ClientID:     p.settings.ClientID,
			ClientSecret: p.settings.ClientSecret,
			TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", p.settings.TenantID),
			Scopes:       []string{"https://graph.microsoft.com/.default"},
		}
		p.tokenSrc = oauth2.ReuseTokenSource(nil, cfg.TokenSource(ctx))
	}
	p.connected = true
	return nil
}

func (p *Provider) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = false
	p.tokenSrc = nil
	return nil
}

func (p *Provider) bearerToken() (string, error) {
	p.mu.Lock()
	src := p.tokenSrc
	p.mu.Unlock()
	if src == nil {
		return "", fmt.Errorf("teams: no Graph credentials configured")
	}
	tok, err := src.Token()
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

func (p *Provider) SendOne(ctx context.Context, to domain.Recipient, msg domain.Message, opts domain.SendOptions) (domain.SendResult, error) {
	card, err := p.cardFor(ctx, to, msg, opts)
	if err != nil {
		result := domain.SendResult{Recipient: to, Err: err}
		domain.InvokeCallback(ctx, p.callback, to, msg, result)
		return result, err
	}

	var sendErr error
	switch r := to.(type) {
	case domain.TeamsWebhook:
		sendErr = p.postWebhook(ctx, r.URI, card.ToMessageCard())
	case domain.TeamsChannel:
		sendErr = p.postGraph(ctx, fmt.Sprintf("%s/teams/%s/channels/%s/messages", graphBaseURL, r.TeamID, r.ChannelID), card.ToAdaptiveCard())
	case domain.TeamsChat:
		sendErr = p.postGraph(ctx, fmt.Sprintf("%s/chats/%s/messages", graphBaseURL, r.ChatID), card.ToAdaptiveCard())
	default:
		sendErr = &domain.ErrValidation{Reason: "teams provider requires a TeamsWebhook, TeamsChannel or TeamsChat recipient"}
	}

	result := domain.SendResult{Recipient: to, Err: sendErr}
	domain.InvokeCallback(ctx, p.callback, to, msg, result)
	return result, sendErr
}

func (p *Provider) Send(ctx context.Context, recipients []domain.Recipient, msg domain.Message, opts domain.SendOptions) ([]domain.SendResult, error) {
	results := providers.FanOut(ctx, p.Blocking(), recipients, func(ctx context.Context, to domain.Recipient) (domain.SendResult, error) {
		return p.SendOne(ctx, to, msg, opts)
	})
	return results, nil
}

// cardFor renders msg into a TeamsCard: if msg.Body is already a *TeamsCard
// it's used as-is (opts.Extra/subject are ignored), otherwise the rendered
// text body becomes a card with Summary/Text set from it.
func (p *Provider) cardFor(ctx context.Context, to domain.Recipient, msg domain.Message, opts domain.SendOptions) (*domain.TeamsCard, error) {
	if card, ok := msg.Body.(*domain.TeamsCard); ok {
		return card, nil
	}

	body, err := providers.Render(ctx, p.engine, to, msg, opts.Subject, opts.Extra)
	if err != nil {
		return nil, &domain.ErrMessage{Reason: "template render failed", Err: err}
	}

	card := domain.NewTeamsCard(opts.Subject)
	card.Title = opts.Subject
	card.Text = body
	return card, nil
}

func (p *Provider) postWebhook(ctx context.Context, uri string, payload map[string]any) error {
	if uri == "" {
		uri = p.settings.DefaultWebhook
	}
	if uri == "" {
		return &domain.ErrValidation{Reason: "teams webhook recipient has no uri and no default webhook is configured"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return &domain.ErrMessage{Reason: "failed to encode MessageCard", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uri, bytes.NewReader(body))
	if err != nil {
		return &domain.ErrTransport{Provider: p.Name(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return &domain.ErrProviderError{Provider: p.Name(), Err: err, Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return &domain.ErrProviderError{
			Provider:  p.Name(),
			Err:       fmt.Errorf("teams webhook returned %d: %s", resp.StatusCode, respBody),
			Retryable: resp.StatusCode >= 500,
		}
	}
	return nil
}

func (p *Provider) postGraph(ctx context.Context, url string, payload map[string]any) error {
	token, err := p.bearerToken()
	if err != nil {
		return &domain.ErrAuth{Provider: p.Name(), Err: err}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return &domain.ErrMessage{Reason: "failed to encode adaptive card", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &domain.ErrTransport{Provider: p.Name(), Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return &domain.ErrProviderError{Provider: p.Name(), Err: err, Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return &domain.ErrProviderError{
			Provider:  p.Name(),
			Err:       fmt.Errorf("teams graph API returned %d: %s", resp.StatusCode, respBody),
			Retryable: resp.StatusCode >= 500,
		}
	}
	return nil
}
