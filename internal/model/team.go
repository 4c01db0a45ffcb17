package model

import "time"

type Team struct {
	ID         string
	Name       string
	AdminID    string
	InviteCode string
	CreatedAt  time.Time
}

type TeamMember struct {
	TeamID   string
	UserID   string
	Role     string
	JoinedAt time.Time
}

// Join request lifecycle.
const (
	JoinRequestPending  = "pending"
	JoinRequestApproved = "approved"
	JoinRequestRejected = "rejected"
)

type JoinRequest struct {
	ID        string
	TeamID    string
	UserID    string
	Status    string
	CreatedAt time.Time
	DecidedAt *time.Time
	DecidedBy *string
}
