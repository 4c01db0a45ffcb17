package identity

import (
	"testing"

	"teammail/internal/model"
)

func TestExtractExternalIDDirectMessageIDWins(t *testing.T) {
	got := ExtractExternalID(model.ObservedEmail{
		MessageID:  "abc123",
		MessageURL: "https://irrelevant",
	})
	if got != "abc123" {
		t.Fatalf("direct message ID should win, got %q", got)
	}
}

func TestExtractExternalIDGmailPermalink(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://mail.example.com/mail/u/0/#inbox/FMfcgzQbdrTrrf", "FMfcgzQbdrTrrf"},
		{"https://mail.google.com/mail/u/0/#sent/QgrcJHsbjCZmW", "QgrcJHsbjCZmW"},
		{"https://mail.google.com/mail/u/1/#category/promotions/KtbxLwgZZqml", "KtbxLwgZZqml"},
		{"https://mail.google.com/mail/u/0/#spam/FMfcgzQZvbqX", "FMfcgzQZvbqX"},
	}
	for _, c := range cases {
		got := ExtractExternalID(model.ObservedEmail{MessageURL: c.url})
		if got != c.want {
			t.Fatalf("ExtractExternalID(%q) = %q, want %q", c.url, got, c.want)
		}
	}
}

func TestExtractExternalIDOutlookVariants(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://outlook.live.com/mail/0/inbox/id/AQMkADAwATM0MDAAMS0yNjJk", "AQMkADAwATM0MDAAMS0yNjJk"},
		{"https://outlook.office.com/mail/inbox/id/AAMkAGI2TG93AAA%3D", "AAMkAGI2TG93AAA="},
		{"https://outlook.live.com/mail/0/deeplink/AQMkADAw", "AQMkADAw"},
	}
	for _, c := range cases {
		got := ExtractExternalID(model.ObservedEmail{MessageURL: c.url})
		if got != c.want {
			t.Fatalf("ExtractExternalID(%q) = %q, want %q", c.url, got, c.want)
		}
	}
}

func TestExtractExternalIDNoMatchReturnsEmpty(t *testing.T) {
	cases := []string{
		"",
		"://not-a-url",
		"https://example.com/some/page",
		"https://mail.google.com/mail/u/0/#settings",
	}
	for _, u := range cases {
		if got := ExtractExternalID(model.ObservedEmail{MessageURL: u}); got != "" {
			t.Fatalf("expected no external ID for %q, got %q", u, got)
		}
	}
}

func TestDebounceKeyFallsBackToComposite(t *testing.T) {
	email := model.ObservedEmail{
		SenderEmail:  "ana@example.com",
		Subject:      "Q3 numbers",
		ThreadLength: 4,
	}
	if got := DebounceKey(email); got != "ana@example.com|Q3 numbers|4" {
		t.Fatalf("unexpected composite key %q", got)
	}

	email.MessageID = "xyz"
	if got := DebounceKey(email); got != "xyz" {
		t.Fatalf("external ID should take precedence, got %q", got)
	}
}
