package identity

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"teammail/internal/model"
)

var (
	// Token after a folder segment in Gmail-style permalinks, e.g.
	// .../#inbox/FMfcgzQbdrTrrf
	gmailFolderRe = regexp.MustCompile(`(?:inbox|sent|drafts|trash|spam|starred|imp|all|category/[^/#]+)/([A-Za-z0-9_-]+)`)

	// /id/<token> segment in Outlook permalinks.
	outlookIDRe = regexp.MustCompile(`/id/([^/?#]+)`)
)

// ExtractExternalID derives a stable platform identifier for an observed
// email. A message ID supplied directly by the scraper is the highest-trust
// source and wins verbatim; otherwise the permalink URL is pattern-matched.
// Returns "" when nothing matches; the caller falls back to composite-key
// matching. Never errors: malformed URLs simply yield "".
func ExtractExternalID(email model.ObservedEmail) string {
	if email.MessageID != "" {
		return email.MessageID
	}
	if email.MessageURL == "" {
		return ""
	}

	u, err := url.Parse(email.MessageURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())

	switch {
	case strings.HasPrefix(host, "mail."):
		// Gmail keeps the message token in the fragment, after the folder.
		target := u.Fragment
		if target == "" {
			target = u.Path
		}
		if m := gmailFolderRe.FindStringSubmatch(target); m != nil {
			return m[1]
		}

	case strings.Contains(host, "outlook.live.") || strings.Contains(host, "outlook.office."):
		if m := outlookIDRe.FindStringSubmatch(u.Path); m != nil {
			return decodeSegment(m[1])
		}
		// No /id/ segment: the last path segment is the message token.
		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		if last := segments[len(segments)-1]; last != "" {
			return decodeSegment(last)
		}
	}

	return ""
}

func decodeSegment(s string) string {
	if dec, err := url.PathUnescape(s); err == nil {
		return dec
	}
	return s
}

// DebounceKey is the in-memory identity used to suppress repeated
// observations of the same still-open email: the external ID when one
// exists, else sender + subject + thread length.
func DebounceKey(email model.ObservedEmail) string {
	if id := ExtractExternalID(email); id != "" {
		return id
	}
	return fmt.Sprintf("%s|%s|%d", email.SenderEmail, email.Subject, email.ThreadLength)
}
