package mail

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestSendDisabled(t *testing.T) {
	mailer := NewSMTPMailer(SMTPSettings{Enabled: false})

	err := mailer.Send(context.Background(), Message{To: "alice@example.com"})
	if !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}

func TestSendRequiresRecipient(t *testing.T) {
	mailer := NewSMTPMailer(SMTPSettings{Enabled: true, Host: "localhost", Port: 2525})

	err := mailer.Send(context.Background(), Message{To: "  "})
	if err == nil {
		t.Fatal("expected error for empty recipient")
	}
}

func TestBuildPayloadIncludesHeadersAndBody(t *testing.T) {
	payload := string(buildPayload("noreply@teachly.dev", Message{
		To:      "bob@example.com",
		Subject: "Confirm your account",
		Body:    "Welcome aboard",
	}))

	for _, want := range []string{
		"From: noreply@teachly.dev",
		"To: bob@example.com",
		"Subject: Confirm your account",
		"Welcome aboard",
	} {
		if !strings.Contains(payload, want) {
			t.Fatalf("payload missing %q:\n%s", want, payload)
		}
	}
}

func TestNopMailerRecordsMessages(t *testing.T) {
	mailer := &NopMailer{}

	if err := mailer.Send(context.Background(), Message{To: "carol@example.com", Subject: "hi"}); err != nil {
		t.Fatalf("NopMailer returned error: %v", err)
	}
	if len(mailer.Sent) != 1 || mailer.Sent[0].To != "carol@example.com" {
		t.Fatal("expected message to be recorded")
	}
}
