package model

import "time"

// Email is one stored email record, scoped to a team. At most one record per
// (team, external_id) exists when the external ID is known; emails that
// yielded no stable platform ID may only be matched heuristically.
type Email struct {
	ID           string
	TeamID       string
	ExternalID   *string
	SenderEmail  string
	SenderName   string
	Subject      string
	Body         string
	Timestamp    time.Time
	Summary      *string
	UrgencyScore *int
	HandledAt    *time.Time
	HandledBy    *string
	HandlingNote *string
	SavedBy      string
	CreatedAt    time.Time
}

// ObservedEmail is the payload the sidebar client sends when it detects an
// open email in the webmail DOM. Timestamp arrives raw, exactly as scraped.
type ObservedEmail struct {
	MessageID    string `json:"message_id"`
	MessageURL   string `json:"message_url"`
	SenderEmail  string `json:"sender_email"`
	SenderName   string `json:"sender_name"`
	Subject      string `json:"subject"`
	Body         string `json:"body"`
	Timestamp    string `json:"timestamp"`
	ThreadLength int    `json:"thread_length"`
}

// MatchKind says which strategy produced a duplicate match.
type MatchKind string

const (
	MatchExternalID   MatchKind = "external_id"
	MatchSenderWindow MatchKind = "sender_timestamp_window"
)

// DuplicateCheck is the outcome of one duplicate resolution. Computed fresh
// per observation, never cached.
type DuplicateCheck struct {
	Exists        bool
	MatchedBy     MatchKind
	Email         *Email
	SavedByName   string
	HandledByName string
}
