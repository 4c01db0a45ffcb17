package identity

import (
	"strings"
	"testing"
	"time"
)

func TestNormalizeIdempotentOnISOInput(t *testing.T) {
	inputs := []string{
		"2025-04-24T00:00:00.000Z",
		"2024-12-31T23:59:59.000Z",
		"2025-01-15T08:30:00+02:00",
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Fatalf("Normalize not idempotent: %q -> %q -> %q", in, once, twice)
		}
		if once != in {
			t.Fatalf("ISO input should pass through unchanged, got %q from %q", once, in)
		}
	}
}

func TestNormalizeStripsParentheticalKeepsYear(t *testing.T) {
	got := Normalize("Apr 24, 2025 (3 hours ago)")
	if got != "2025-04-24T00:00:00.000Z" {
		t.Fatalf("expected 2025-04-24T00:00:00.000Z, got %q", got)
	}
}

func TestNormalizeYearlessGetsCurrentYear(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	got := NormalizeAt("Apr 24 (3 hours ago)", now)
	if !strings.HasPrefix(got, "2025-04-24") {
		t.Fatalf("expected current year 2025 to be appended, got %q", got)
	}
}

func TestNormalizeEmptyFallsBackToNow(t *testing.T) {
	now := time.Date(2025, time.March, 3, 10, 30, 0, 0, time.UTC)
	got := NormalizeAt("", now)
	if got != "2025-03-03T10:30:00.000Z" {
		t.Fatalf("empty input should normalize to now, got %q", got)
	}
}

func TestNormalizeGarbageFallsBackToNow(t *testing.T) {
	now := time.Date(2025, time.March, 3, 10, 30, 0, 0, time.UTC)
	got := NormalizeAt("not a date at all", now)
	if got != "2025-03-03T10:30:00.000Z" {
		t.Fatalf("unparseable input should normalize to now, got %q", got)
	}
}

func TestNormalizeParsesCommonScrapeFormats(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"Apr 24, 2025, 3:04 PM", "2025-04-24T15:04:00.000Z"},
		{"24 Apr 2025", "2025-04-24T00:00:00.000Z"},
		{"2025-04-24", "2025-04-24T00:00:00.000Z"},
		{"Thu, 24 Apr 2025 15:04:05 +0000", "2025-04-24T15:04:05.000Z"},
	}
	for _, c := range cases {
		got := Normalize(c.raw)
		if got != c.want {
			t.Fatalf("Normalize(%q) = %q, want %q", c.raw, got, c.want)
		}
	}
}

func TestParseInstantRoundTrip(t *testing.T) {
	s := Normalize("Apr 24, 2025 (3 hours ago)")
	parsed, err := ParseInstant(s)
	if err != nil {
		t.Fatalf("ParseInstant(%q): %v", s, err)
	}
	if !parsed.Equal(time.Date(2025, time.April, 24, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected instant %v", parsed)
	}
}

// Zone-less ISO inputs pass through Normalize verbatim, so ParseInstant
// must read them back as UTC rather than erroring.
func TestParseInstantAcceptsZonelessPassthrough(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Time
	}{
		{"2025-04-24T10:00:00", time.Date(2025, time.April, 24, 10, 0, 0, 0, time.UTC)},
		{"2025-04-24T10:00:00.250", time.Date(2025, time.April, 24, 10, 0, 0, 250_000_000, time.UTC)},
	}
	for _, c := range cases {
		normalized := Normalize(c.raw)
		if normalized != c.raw {
			t.Fatalf("Normalize(%q) = %q, want pass-through", c.raw, normalized)
		}
		parsed, err := ParseInstant(normalized)
		if err != nil {
			t.Fatalf("ParseInstant(%q): %v", normalized, err)
		}
		if !parsed.Equal(c.want) {
			t.Fatalf("ParseInstant(%q) = %v, want %v", normalized, parsed, c.want)
		}
	}
}

func TestParseInstantRejectsGarbage(t *testing.T) {
	if _, err := ParseInstant("not a timestamp"); err == nil {
		t.Fatal("expected an error")
	}
}
