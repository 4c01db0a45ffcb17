package mq

import "time"

// EmailIngestedPayload is published on routing key "email.ingested" when a
// new email record wins the ingest race. The assist worker consumes it.
type EmailIngestedPayload struct {
	EmailID    string    `json:"email_id"`
	TeamID     string    `json:"team_id"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	IngestedAt time.Time `json:"ingested_at"`
}

const EmailIngestedRoutingKey = "email.ingested"
