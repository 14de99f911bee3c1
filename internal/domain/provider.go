package domain

import (
	"context"
	"fmt"
	"log"
)

// ProviderType classifies a provider by the channel it delivers over.
type ProviderType string

const (
	ProviderTypeNotify ProviderType = "notify"
	ProviderTypeEmail  ProviderType = "email"
	ProviderTypeSMS    ProviderType = "sms"
	ProviderTypePush   ProviderType = "push"
	ProviderTypeIM     ProviderType = "im"
)

// BlockingStrategy selects the fan-out implementation a provider's Send uses
// to dispatch to multiple recipients. See internal/providers/fanout.go.
type BlockingStrategy string

const (
	// BlockingAsyncio launches one goroutine per recipient; a single
	// recipient's failure never cancels its siblings.
	BlockingAsyncio BlockingStrategy = "asyncio"
	// BlockingExecutor bounds concurrency to a small worker pool.
	BlockingExecutor BlockingStrategy = "executor"
	// BlockingThread pins one OS thread per recipient, for client libraries
	// that block their calling goroutine with no cancellation hook.
	BlockingThread BlockingStrategy = "thread"
)

// SendOptions carries the per-call parameters every provider's SendOne/Send
// accepts: the subject line (email/push), arbitrary template data, and a
// level used by providers that color-code console/log output.
type SendOptions struct {
	Subject  string
	Level    string
	Template string
	Extra    map[string]any
}

// SendResult records the outcome of a single recipient's delivery attempt.
type SendResult struct {
	Recipient Recipient
	Err       error
}

// SentCallback is invoked once per recipient after a send attempt completes,
// successful or not. Implementations must not panic; InvokeCallback recovers
// and logs in case they do.
type SentCallback func(ctx context.Context, to Recipient, msg Message, result SendResult)

// Provider is the contract every notification channel implementation
// satisfies. Connect and Close must be idempotent.
type Provider interface {
	Connect(ctx context.Context) error
	Close(ctx context.Context) error
	SendOne(ctx context.Context, to Recipient, msg Message, opts SendOptions) (SendResult, error)
	Send(ctx context.Context, recipients []Recipient, msg Message, opts SendOptions) ([]SendResult, error)
	Name() string
	Type() ProviderType
	Blocking() BlockingStrategy
}

// ProviderFactory constructs a Provider instance from wrapper kwargs.
type ProviderFactory func(kwargs map[string]any) (Provider, error)

// Acquire connects p and returns a release function that closes it. Callers
// should always `defer release()` immediately after a successful Acquire so
// Close runs even if SendOne/Send panics or returns early.
func Acquire(ctx context.Context, p Provider) (Provider, func(), error) {
	if err := p.Connect(ctx); err != nil {
		return nil, func() {}, fmt.Errorf("connect provider %q: %w", p.Name(), err)
	}
	release := func() {
		_ = p.Close(ctx)
	}
	return p, release, nil
}

// InvokeCallback calls cb if non-nil, recovering from, logging and
// swallowing any panic so a misbehaving callback never takes down a worker
// goroutine.
func InvokeCallback(ctx context.Context, cb SentCallback, to Recipient, msg Message, result SendResult) {
	if cb == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("sent callback panicked: %v", r)
		}
	}()
	cb(ctx, to, msg, result)
}
