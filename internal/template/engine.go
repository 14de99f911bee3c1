// Package template renders the Liquid templates used by every provider's
// standard context ({recipient, username, message, subject, ...extra}),
// plus the MJML block-tree compiler used by HTML mail bodies.
package template

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dispatchhq/notifyd/internal/domain"
	"github.com/osteele/liquid"
)

// Template wraps a compiled Liquid template, ready for repeated rendering.
type Template struct {
	name string
	tpl  *liquid.Template
}

// Engine renders named templates against arbitrary context data. It is
// injected into providers as a constructor argument rather than reached for
// as a global, so tests can swap in a directory of fixtures.
type Engine interface {
	Get(name string) (*Template, error)
	Render(ctx context.Context, name string, data map[string]any) (string, error)
	RenderAsync(ctx context.Context, name string, data map[string]any) <-chan RenderResult
}

// RenderResult is delivered on the channel RenderAsync returns.
type RenderResult struct {
	HTML string
	Err  error
}

// liquidEngine compiles templates from a root directory on first use and
// caches the compiled result, so a hot path never re-parses a template.
type liquidEngine struct {
	dir    string
	engine *liquid.Engine
	cache  sync.Map // name -> *Template
}

// NewEngine builds an Engine rooted at dir. dir may not exist yet (e.g. in
// tests that never render a named template); Get will error per-template
// rather than at construction time.
func NewEngine(dir string) Engine {
	return &liquidEngine{
		dir:    dir,
		engine: liquid.NewEngine(),
	}
}

func (e *liquidEngine) Get(name string) (*Template, error) {
	if cached, ok := e.cache.Load(name); ok {
		return cached.(*Template), nil
	}

	path := filepath.Join(e.dir, name)
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.ErrTemplate{Name: name, Reason: "not found", Err: err}
	}

	compiled, err := e.engine.ParseTemplate(source)
	if err != nil {
		return nil, &domain.ErrTemplate{Name: name, Reason: "compile failed", Err: err}
	}

	t := &Template{name: name, tpl: compiled}
	e.cache.Store(name, t)
	return t, nil
}

func (e *liquidEngine) Render(ctx context.Context, name string, data map[string]any) (string, error) {
	t, err := e.Get(name)
	if err != nil {
		return "", err
	}

	bindings := make(map[string]any, len(data))
	for k, v := range data {
		bindings[k] = v
	}

	out, err := t.tpl.RenderString(bindings)
	if err != nil {
		return "", &domain.ErrTemplate{Name: name, Reason: "render failed", Err: err}
	}
	return out, nil
}

func (e *liquidEngine) RenderAsync(ctx context.Context, name string, data map[string]any) <-chan RenderResult {
	out := make(chan RenderResult, 1)
	go func() {
		defer close(out)
		html, err := e.Render(ctx, name, data)
		select {
		case out <- RenderResult{HTML: html, Err: err}:
		case <-ctx.Done():
		}
	}()
	return out
}

// StandardContext builds the rendering context shared by every provider:
// {recipient, username, message, subject, ...extra}.
func StandardContext(to domain.Recipient, message string, subject string, extra map[string]any) map[string]any {
	ctx := map[string]any{
		"recipient": to,
		"username":  recipientDisplayName(to),
		"message":   message,
		"subject":   subject,
	}
	for k, v := range extra {
		ctx[k] = v
	}
	return ctx
}

func recipientDisplayName(to domain.Recipient) string {
	switch v := to.(type) {
	case domain.Actor:
		return v.Name
	case domain.Chat:
		if v.ChatName != "" {
			return v.ChatName
		}
		return v.ChatID
	case domain.Channel:
		if v.ChannelName != "" {
			return v.ChannelName
		}
		return v.ChannelID
	default:
		return fmt.Sprintf("%v", to)
	}
}
