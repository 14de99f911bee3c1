package domain_test

import (
	"testing"

	"github.com/dispatchhq/notifyd/internal/domain"
)

func TestTeamsWebhook_ValidateRejectsMalformedURI(t *testing.T) {
	tw := domain.TeamsWebhook{URI: "not a url"}
	if err := tw.Validate(); err == nil {
		t.Fatal("expected an error for a malformed uri")
	}
}

func TestTeamsWebhook_ValidateAcceptsWellFormedURI(t *testing.T) {
	tw := domain.TeamsWebhook{URI: "https://example.webhook.office.com/webhookb2/abc"}
	if err := tw.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestParseRecipient_RejectsMalformedWebhookURI(t *testing.T) {
	_, err := domain.ParseRecipient([]byte(`{"uri":"not a url"}`))
	if err == nil {
		t.Fatal("expected an error for a malformed webhook uri")
	}
}

func TestParseRecipient_AcceptsWellFormedWebhookURI(t *testing.T) {
	r, err := domain.ParseRecipient([]byte(`{"uri":"https://example.webhook.office.com/webhookb2/abc"}`))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if r.Kind() != domain.RecipientKindTeamsWebhook {
		t.Fatalf("expected teams_webhook kind, got %v", r.Kind())
	}
}
