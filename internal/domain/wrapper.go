package domain

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ProviderRegistry resolves a provider name to a constructor. Implemented by
// internal/domain's compile-time Registry.
type ProviderRegistry interface {
	New(name string, kwargs map[string]any) (Provider, error)
}

// Wrapper is the job descriptor carried from ingress to a worker: a stable
// ID, the provider to dispatch through, the resolved recipients, and the
// positional/keyword arguments forwarded to the provider's Send.
type Wrapper struct {
	ID         uuid.UUID      `json:"id"`
	Provider   string         `json:"provider"`
	Recipients []Recipient    `json:"-"`
	Args       []any          `json:"args,omitempty"`
	Kwargs     map[string]any `json:"kwargs,omitempty"`

	Message Message     `json:"message"`
	Options SendOptions `json:"-"`

	// DroppedRecipients counts raw recipient entries that failed to parse
	// and were skipped rather than failing the whole wrapper.
	DroppedRecipients int `json:"-"`
}

// wrapperJSON mirrors the wire schema described in spec.md §6: a provider
// name, a list of raw recipient objects, message fields, and free-form kwargs.
type wrapperJSON struct {
	Provider   string            `json:"provider"`
	Recipients []json.RawMessage `json:"recipient"`
	Message    json.RawMessage   `json:"message"`
	Subject    string            `json:"subject,omitempty"`
	Template   string            `json:"template,omitempty"`
	Level      string            `json:"level,omitempty"`
	Args       []any             `json:"args,omitempty"`
	Kwargs     map[string]any    `json:"kwargs,omitempty"`
}

// decodeMessage splits the wire "message" field's `"<string>" | { … }` shape
// into Message.Content (string form) and Message.Body (map form), matching
// spec §3's Message.body: string|map.
func decodeMessage(raw json.RawMessage) (content string, body any, err error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil, nil
	}
	if err := json.Unmarshal(raw, &content); err == nil {
		return content, nil, nil
	}
	var m any
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", nil, fmt.Errorf("message must be a string or an object: %w", err)
	}
	return "", m, nil
}

// NewWrapperFromJSON parses an ingress payload into a Wrapper. Recipient
// entries that don't shape-sniff into a known variant are dropped with a
// counter increment rather than failing the whole wrapper, matching the
// ingress-lenient rule: a typo in one recipient shouldn't block delivery to
// the rest.
func NewWrapperFromJSON(data []byte, logDrop func(reason string)) (*Wrapper, error) {
	var raw wrapperJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ErrParse{Reason: "malformed wrapper JSON", Err: err}
	}
	if raw.Provider == "" {
		return nil, &ErrValidation{Reason: "provider is required"}
	}

	content, body, err := decodeMessage(raw.Message)
	if err != nil {
		return nil, &ErrValidation{Reason: "invalid message field", Err: err}
	}

	w := &Wrapper{
		ID:       uuid.New(),
		Provider: raw.Provider,
		Args:     raw.Args,
		Kwargs:   raw.Kwargs,
		Message:  Message{Name: uuid.NewString(), Content: content, Body: body, Template: raw.Template},
		Options: SendOptions{
			Subject:  raw.Subject,
			Level:    raw.Level,
			Template: raw.Template,
		},
	}

	for _, rawRecipient := range raw.Recipients {
		r, err := ParseRecipient(rawRecipient)
		if err != nil {
			w.DroppedRecipients++
			if logDrop != nil {
				logDrop(err.Error())
			}
			continue
		}
		w.Recipients = append(w.Recipients, r)
	}

	return w, nil
}

// Invoke resolves the wrapper's provider from the registry, acquires it for
// the duration of the send, and fans out to every recipient.
func (w *Wrapper) Invoke(ctx context.Context, registry ProviderRegistry) ([]SendResult, error) {
	provider, err := registry.New(w.Provider, w.Kwargs)
	if err != nil {
		return nil, &ErrProviderLoad{Provider: w.Provider, Err: err}
	}

	p, release, err := Acquire(ctx, provider)
	if err != nil {
		return nil, err
	}
	defer release()

	results, err := p.Send(ctx, w.Recipients, w.Message, w.Options)
	if err != nil {
		return results, fmt.Errorf("provider %q send: %w", w.Provider, err)
	}
	return results, nil
}
