package domain

import (
	"encoding/json"
	"fmt"

	"github.com/asaskevich/govalidator"
	"github.com/google/uuid"
)

// RecipientKind tags the concrete type behind a Recipient value so providers
// can type-switch without a reflect-based dispatch.
type RecipientKind string

const (
	RecipientKindActor        RecipientKind = "actor"
	RecipientKindChat         RecipientKind = "chat"
	RecipientKindChannel      RecipientKind = "channel"
	RecipientKindTeamsChannel RecipientKind = "teams_channel"
	RecipientKindTeamsChat    RecipientKind = "teams_chat"
	RecipientKindTeamsWebhook RecipientKind = "teams_webhook"
)

// Recipient is implemented by every addressable target a Wrapper can fan out
// to. Concrete types never carry behavior beyond identifying their own kind;
// providers decide how to coerce a given kind into their wire format.
type Recipient interface {
	Kind() RecipientKind
}

// Account represents one channel an Actor is reachable on (email address,
// phone number, chat handle, ...).
type Account struct {
	Provider   string         `json:"provider"`
	Enabled    bool           `json:"enabled"`
	Address    StringOrList   `json:"address,omitempty"`
	Number     StringOrList   `json:"number,omitempty"`
	UserID     string         `json:"userid,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// StringOrList accepts either a single JSON string or an array of strings,
// matching the original model's `address`/`number` fields which may carry
// one value or several.
type StringOrList []string

func (s *StringOrList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*s = nil
			return nil
		}
		*s = StringOrList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("must be a string or an array of strings: %w", err)
	}
	*s = StringOrList(many)
	return nil
}

func (s StringOrList) MarshalJSON() ([]byte, error) {
	if len(s) == 1 {
		return json.Marshal(s[0])
	}
	return json.Marshal([]string(s))
}

// Actor is a human or bot recipient/sender, reachable on one or more
// Accounts. NewActor generates UserID; UnmarshalJSON keeps a wire-supplied
// userid only when it is a valid UUID and generates one otherwise.
type Actor struct {
	UserID  uuid.UUID `json:"userid"`
	Name    string    `json:"name"`
	Account []Account `json:"account"`
}

// NewActor builds an Actor with an auto-generated UserID.
func NewActor(name string, accounts ...Account) Actor {
	return Actor{UserID: uuid.New(), Name: name, Account: accounts}
}

func (a Actor) Kind() RecipientKind { return RecipientKindActor }

// UnmarshalJSON accepts `account` as either a single object or an array,
// matching the original Python model's flexible shape. A wire-supplied
// `userid` is parsed if it's already a valid UUID; otherwise one is
// generated, matching the original's auto_uuid default-factory behavior.
func (a *Actor) UnmarshalJSON(data []byte) error {
	type alias struct {
		UserID  string          `json:"userid"`
		Name    string          `json:"name"`
		Account json.RawMessage `json:"account"`
	}
	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if id, err := uuid.Parse(raw.UserID); err == nil {
		a.UserID = id
	} else {
		a.UserID = uuid.New()
	}
	a.Name = raw.Name
	a.Account = nil

	if len(raw.Account) == 0 || string(raw.Account) == "null" {
		return nil
	}

	var list []Account
	if err := json.Unmarshal(raw.Account, &list); err == nil {
		a.Account = list
		return nil
	}

	var single Account
	if err := json.Unmarshal(raw.Account, &single); err != nil {
		return fmt.Errorf("account must be an object or an array of objects: %w", err)
	}
	a.Account = []Account{single}
	return nil
}

// Validate enforces the "every Actor has at least one Account" invariant.
func (a *Actor) Validate() error {
	if a.Name == "" {
		return &ErrValidation{Reason: "actor name is required"}
	}
	if len(a.Account) == 0 {
		return &ErrValidation{Reason: "actor must have at least one account"}
	}
	return nil
}

// Chat is a 1:1 or group message thread, keyed by ChatID.
type Chat struct {
	ChatName string `json:"chat_name,omitempty"`
	ChatID   string `json:"chat_id"`
}

func (c Chat) Kind() RecipientKind { return RecipientKindChat }

// Channel is a broadcast channel, keyed by ChannelID.
type Channel struct {
	ChannelName string `json:"channel_name,omitempty"`
	ChannelID   string `json:"channel_id"`
}

func (c Channel) Kind() RecipientKind { return RecipientKindChannel }

// TeamsChannel addresses a Microsoft Teams channel within a team.
type TeamsChannel struct {
	TeamID    string `json:"team_id"`
	ChannelID string `json:"channel_id"`
}

func (t TeamsChannel) Kind() RecipientKind { return RecipientKindTeamsChannel }

// TeamsChat addresses a Microsoft Teams 1:1 or group chat.
type TeamsChat struct {
	ChatID string `json:"chat_id"`
}

func (t TeamsChat) Kind() RecipientKind { return RecipientKindTeamsChat }

// TeamsWebhook addresses a Microsoft Teams incoming webhook connector by URI.
type TeamsWebhook struct {
	URI string `json:"uri"`
}

func (t TeamsWebhook) Kind() RecipientKind { return RecipientKindTeamsWebhook }

// Validate rejects a webhook whose uri isn't a well-formed URL.
func (t TeamsWebhook) Validate() error {
	if !govalidator.IsURL(t.URI) {
		return &ErrValidation{Reason: fmt.Sprintf("teams webhook uri %q is not a valid URL", t.URI)}
	}
	return nil
}

// ParseRecipient shape-sniffs a raw recipient object into its concrete
// Recipient type. Precedence matches the wrapper ingestion rule: team_id +
// channel_id wins first (TeamsChannel), then a chat_id with none of the
// other keys (Chat), then channel_id, then uri, falling back to Actor.
func ParseRecipient(data []byte) (Recipient, error) {
	var probe struct {
		ChatID    string `json:"chat_id"`
		TeamID    string `json:"team_id"`
		ChannelID string `json:"channel_id"`
		URI       string `json:"uri"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("not a recipient object: %w", err)
	}

	switch {
	case probe.TeamID != "" && probe.ChannelID != "":
		var tc TeamsChannel
		if err := json.Unmarshal(data, &tc); err != nil {
			return nil, err
		}
		return tc, nil
	case probe.ChatID != "" && probe.TeamID == "" && probe.ChannelID == "" && probe.URI == "":
		// ambiguous between a generic Chat and a TeamsChat; generic Chat wins
		// since it carries an optional display name the Teams variant lacks.
		var ch Chat
		if err := json.Unmarshal(data, &ch); err != nil {
			return nil, err
		}
		return ch, nil
	case probe.ChannelID != "":
		var ch Channel
		if err := json.Unmarshal(data, &ch); err != nil {
			return nil, err
		}
		return ch, nil
	case probe.URI != "":
		var tw TeamsWebhook
		if err := json.Unmarshal(data, &tw); err != nil {
			return nil, err
		}
		if err := tw.Validate(); err != nil {
			return nil, err
		}
		return tw, nil
	default:
		var a Actor
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("not a valid actor: %w", err)
		}
		if err := a.Validate(); err != nil {
			return nil, err
		}
		return a, nil
	}
}
