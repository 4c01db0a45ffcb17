package identity

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ISOMillis is the canonical instant shape every stored timestamp uses.
const ISOMillis = "2006-01-02T15:04:05.000Z07:00"

var (
	isoPrefixRe     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}`)
	parentheticalRe = regexp.MustCompile(`\s*\([^)]*\)\s*$`)
	fourDigitYearRe = regexp.MustCompile(`\b\d{4}\b`)
)

// Layouts seen in webmail scrape output, most specific first.
var scrapeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Jan 2, 2006, 3:04 PM",
	"Jan 2, 2006 3:04 PM",
	"Jan 2, 3:04 PM 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"Mon, Jan 2 2006",
	"2 Jan 2006",
	"January 2, 2006",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Normalize converts a scraped, platform-specific date string into a
// canonical ISO-8601 instant. It never fails: anything unparseable becomes
// the current instant, because a bad timestamp must not block ingestion.
func Normalize(raw string) string {
	return NormalizeAt(raw, time.Now())
}

// NormalizeAt is Normalize with an injectable clock.
//
// Rules, in order:
//   - empty input -> now
//   - already ISO (YYYY-MM-DDTHH:MM:SS prefix) -> returned unchanged
//   - a trailing parenthetical ("Apr 24 (3 hours ago)") is stripped; if no
//     4-digit year remains, the current calendar year is appended before
//     parsing. Year-less dates scraped near a year boundary therefore get
//     the wrong year; that is a known limitation of the heuristic, kept
//     deliberately.
//   - otherwise parsed against the known scrape layouts
//   - on failure -> now
func NormalizeAt(raw string, now time.Time) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now.UTC().Format(ISOMillis)
	}

	if isoPrefixRe.MatchString(raw) {
		return raw
	}

	s := strings.TrimSpace(parentheticalRe.ReplaceAllString(raw, ""))
	if !fourDigitYearRe.MatchString(s) {
		s = fmt.Sprintf("%s %d", s, now.Year())
	}

	for _, layout := range scrapeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(ISOMillis)
		}
	}

	return now.UTC().Format(ISOMillis)
}

// Instant layouts Normalize can emit. The pass-through rule keeps inputs
// with an ISO prefix verbatim, so the zone-less shape (read as UTC) must
// parse too.
var instantLayouts = []string{
	ISOMillis,
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

// ParseInstant parses a normalized ISO instant back into a time.Time.
func ParseInstant(s string) (time.Time, error) {
	var err error
	for _, layout := range instantLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}
