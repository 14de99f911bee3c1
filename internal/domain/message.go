package domain

import (
	"time"

	"github.com/google/uuid"
)

// ContentTypes lists the wire content types a MailMessage/BlockMessage may
// declare for its body.
var ContentTypes = []string{"text/plain", "text/html"}

// Message is the base envelope carried by every provider send: a name, a
// content body (plain string or, for card-style providers, a map), and an
// optional template name to render through instead of using Content as-is.
type Message struct {
	Name     string    `json:"name"`
	Body     any       `json:"body,omitempty"`
	Content  string    `json:"content"`
	Sent     time.Time `json:"sent,omitempty"`
	Template string    `json:"template,omitempty"`
}

// NewMessage builds a Message with an auto-generated Name.
func NewMessage(content string) Message {
	return Message{Name: uuid.NewString(), Content: content}
}

// MailAttachment is a MIME part destined for an email provider: either real
// file content or, when derived from Attachment.IsQRCode, rendered on send.
type MailAttachment struct {
	Attachment
	ContentDisposition string `json:"content_disposition,omitempty"`
	Size               int64  `json:"size,omitempty"`
	Subject            string `json:"subject,omitempty"`
}

// MailMessage (alias BlockMessage for card/chat providers) extends Message
// with the sender/recipient/content-type/attachments needed to build a full
// MIME message or a structured chat payload.
type MailMessage struct {
	Message
	Sender      Actor            `json:"sender"`
	Recipient   []Recipient      `json:"-"`
	ContentType string           `json:"content_type,omitempty"`
	Attachments []MailAttachment `json:"attachments,omitempty"`
	Flags       []string         `json:"flags,omitempty"`
}

// BlockMessage is MailMessage under the name used by chat-card providers
// (Teams, Slack) where Content is a block tree rather than plain text.
type BlockMessage = MailMessage

// TeamsCard is the provider-agnostic card model, convertible to either the
// legacy MessageCard wire form or an Adaptive Card.
type TeamsCard struct {
	CardID      string         `json:"card_id"`
	Summary     string         `json:"summary"`
	Title       string         `json:"title,omitempty"`
	Text        string         `json:"text,omitempty"`
	Sections    []TeamsSection `json:"sections,omitempty"`
	Actions     []CardAction   `json:"actions,omitempty"`
	BodyObjects []map[string]any `json:"body_objects,omitempty"`
	Version     string         `json:"version,omitempty"`
}

// TeamsSection is one MessageCard section.
type TeamsSection struct {
	ActivityTitle    string            `json:"activityTitle,omitempty"`
	ActivitySubtitle string            `json:"activitySubtitle,omitempty"`
	ActivityImage    string            `json:"activityImage,omitempty"`
	Facts            map[string]string `json:"facts,omitempty"`
	Text             string            `json:"text,omitempty"`
}

// CardAction is a MessageCard "OpenUri"/"potentialAction" entry.
type CardAction struct {
	Type    string            `json:"@type"`
	Name    string            `json:"name"`
	Targets map[string]string `json:"targets,omitempty"`
}

// NewTeamsCard builds a card with an auto-generated ID and the default
// MessageCard schema version, matching the original's MessageCard default.
func NewTeamsCard(summary string) *TeamsCard {
	return &TeamsCard{
		CardID:  uuid.NewString(),
		Summary: summary,
		Version: "1.0",
	}
}

// ToMessageCard renders the card as a legacy Office 365 connector
// MessageCard payload.
func (c *TeamsCard) ToMessageCard() map[string]any {
	sections := make([]map[string]any, 0, len(c.Sections))
	for _, s := range c.Sections {
		facts := make([]map[string]string, 0, len(s.Facts))
		for k, v := range s.Facts {
			facts = append(facts, map[string]string{"name": k, "value": v})
		}
		sections = append(sections, map[string]any{
			"activityTitle":    s.ActivityTitle,
			"activitySubtitle": s.ActivitySubtitle,
			"activityImage":    s.ActivityImage,
			"text":             s.Text,
			"facts":            facts,
		})
	}

	actions := make([]map[string]any, 0, len(c.Actions))
	for _, a := range c.Actions {
		targets := make([]map[string]string, 0, len(a.Targets))
		for os, uri := range a.Targets {
			targets = append(targets, map[string]string{"os": os, "uri": uri})
		}
		actions = append(actions, map[string]any{
			"@type":   "OpenUri",
			"name":    a.Name,
			"targets": targets,
		})
	}

	version := c.Version
	if version == "" {
		version = "1.0"
	}

	return map[string]any{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"version":    version,
		"summary":    c.Summary,
		"themeColor": "0076D7",
		"title":      c.Title,
		"text":       c.Text,
		"sections":   sections,
		"potentialAction": actions,
	}
}

// ToAdaptiveCard renders the card as an Adaptive Card 1.4 payload wrapped in
// the Teams "attachments" envelope.
func (c *TeamsCard) ToAdaptiveCard() map[string]any {
	body := []map[string]any{}
	if c.Title != "" {
		body = append(body, map[string]any{
			"type": "TextBlock", "text": c.Title, "weight": "Bolder", "size": "Medium", "wrap": true,
		})
	}
	if c.Text != "" {
		body = append(body, map[string]any{"type": "TextBlock", "text": c.Text, "wrap": true})
	}
	for _, s := range c.Sections {
		facts := make([]map[string]string, 0, len(s.Facts))
		for k, v := range s.Facts {
			facts = append(facts, map[string]string{"title": k, "value": v})
		}
		if s.ActivityTitle != "" {
			body = append(body, map[string]any{"type": "TextBlock", "text": s.ActivityTitle, "weight": "Bolder", "wrap": true})
		}
		if s.Text != "" {
			body = append(body, map[string]any{"type": "TextBlock", "text": s.Text, "wrap": true})
		}
		if len(facts) > 0 {
			body = append(body, map[string]any{"type": "FactSet", "facts": facts})
		}
	}
	body = append(body, c.BodyObjects...)

	actions := make([]map[string]any, 0, len(c.Actions))
	for _, a := range c.Actions {
		for _, uri := range a.Targets {
			actions = append(actions, map[string]any{
				"type": "Action.OpenUrl", "title": a.Name, "url": uri,
			})
			break
		}
	}

	card := map[string]any{
		"type":    "AdaptiveCard",
		"$schema": "http://adaptivecards.io/schemas/adaptive-card.json",
		"version": "1.4",
		"body":    body,
		"actions": actions,
	}

	return map[string]any{
		"type": "message",
		"attachments": []map[string]any{
			{
				"contentType": "application/vnd.microsoft.card.adaptive",
				"content":     card,
			},
		},
	}
}
