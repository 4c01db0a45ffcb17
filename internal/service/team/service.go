package team

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"

	"teammail/internal/model"
	"teammail/pkg/rbac"
)

var (
	ErrNotMember         = errors.New("user is not a member of this team")
	ErrForbidden         = errors.New("operation not permitted for this role")
	ErrAlreadyMember     = errors.New("user already belongs to the team")
	ErrRequestPending    = errors.New("a join request is already pending")
	ErrRequestDecided    = errors.New("join request was already decided")
	ErrUnknownInviteCode = errors.New("unknown invite code")
	ErrTargetNotMember   = errors.New("target user is not a member of this team")
)

// TeamStore is the slice of team persistence the service needs.
type TeamStore interface {
	CreateTeam(ctx context.Context, t *model.Team) error
	AddMember(ctx context.Context, m *model.TeamMember) error
	FindByInviteCode(ctx context.Context, inviteCode string) (*model.Team, error)
	FindMembership(ctx context.Context, teamID, userID string) (*model.TeamMember, error)
	FindTeamForUser(ctx context.Context, userID string) (*model.Team, error)
	TransferAdmin(ctx context.Context, teamID, fromUserID, toUserID string) error
	ListMembers(ctx context.Context, teamID string) ([]model.TeamMember, error)
}

// JoinRequestStore is the slice of join-request persistence the service needs.
type JoinRequestStore interface {
	Create(ctx context.Context, jr *model.JoinRequest) error
	FindByID(ctx context.Context, id string) (*model.JoinRequest, error)
	FindPendingForUser(ctx context.Context, teamID, userID string) (*model.JoinRequest, error)
	ListPending(ctx context.Context, teamID string) ([]model.JoinRequest, error)
	Decide(ctx context.Context, id, decidedBy, status string) (bool, error)
}

// NameResolver maps user ids to display names for the roster.
type NameResolver interface {
	FindDisplayNames(ctx context.Context, ids []string) (map[string]string, error)
}

type Service struct {
	teamRepo TeamStore
	joinRepo JoinRequestStore
	userRepo NameResolver
}

func NewService(teamRepo TeamStore, joinRepo JoinRequestStore, userRepo NameResolver) *Service {
	return &Service{
		teamRepo: teamRepo,
		joinRepo: joinRepo,
		userRepo: userRepo,
	}
}

// MemberInfo is a roster entry with the member's display name attached.
type MemberInfo struct {
	UserID   string    `json:"user_id"`
	Name     string    `json:"name"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// Create makes a new team with the creator as its admin. A user belongs to
// at most one team, so a creator who already has one is refused.
func (s *Service) Create(ctx context.Context, name, creatorID string) (*model.Team, error) {
	if err := s.ensureNoTeam(ctx, creatorID); err != nil {
		return nil, err
	}

	t := &model.Team{
		ID:         uuid.NewString(),
		Name:       name,
		AdminID:    creatorID,
		InviteCode: newInviteCode(),
		CreatedAt:  time.Now(),
	}

	if err := s.teamRepo.CreateTeam(ctx, t); err != nil {
		return nil, err
	}

	member := &model.TeamMember{
		TeamID: t.ID,
		UserID: creatorID,
		Role:   rbac.RoleAdmin,
	}
	if err := s.teamRepo.AddMember(ctx, member); err != nil {
		return nil, err
	}

	return t, nil
}

// RequestJoin files a join request against the team behind an invite code.
func (s *Service) RequestJoin(ctx context.Context, inviteCode, userID string) (*model.JoinRequest, error) {
	t, err := s.teamRepo.FindByInviteCode(ctx, inviteCode)
	if err != nil {
		return nil, ErrUnknownInviteCode
	}

	if err := s.ensureNoTeam(ctx, userID); err != nil {
		return nil, err
	}

	pending, err := s.joinRepo.FindPendingForUser(ctx, t.ID, userID)
	if err != nil {
		return nil, err
	}
	if pending != nil {
		return nil, ErrRequestPending
	}

	jr := &model.JoinRequest{
		ID:     uuid.NewString(),
		TeamID: t.ID,
		UserID: userID,
		Status: model.JoinRequestPending,
	}
	if err := s.joinRepo.Create(ctx, jr); err != nil {
		return nil, err
	}

	return jr, nil
}

// ListPendingRequests returns undecided join requests; admin only.
func (s *Service) ListPendingRequests(ctx context.Context, teamID, callerID string) ([]model.JoinRequest, error) {
	if err := s.requirePermission(ctx, teamID, callerID, rbac.PermissionDecideJoinRequest); err != nil {
		return nil, err
	}
	return s.joinRepo.ListPending(ctx, teamID)
}

// DecideRequest approves or rejects a pending join request; admin only.
// Approval adds the requester as a member.
func (s *Service) DecideRequest(ctx context.Context, requestID, callerID string, approve bool) error {
	jr, err := s.joinRepo.FindByID(ctx, requestID)
	if err != nil {
		return err
	}

	if err := s.requirePermission(ctx, jr.TeamID, callerID, rbac.PermissionDecideJoinRequest); err != nil {
		return err
	}

	// The requester may have joined another team while this request sat
	// pending; approving would give them a second membership.
	if approve {
		if err := s.ensureNoTeam(ctx, jr.UserID); err != nil {
			return err
		}
	}

	status := model.JoinRequestRejected
	if approve {
		status = model.JoinRequestApproved
	}

	decided, err := s.joinRepo.Decide(ctx, requestID, callerID, status)
	if err != nil {
		return err
	}
	if !decided {
		return ErrRequestDecided
	}

	if approve {
		member := &model.TeamMember{
			TeamID: jr.TeamID,
			UserID: jr.UserID,
			Role:   rbac.RoleMember,
		}
		if err := s.teamRepo.AddMember(ctx, member); err != nil {
			return err
		}
	}

	return nil
}

// TransferAdmin hands team ownership to another member; admin only.
func (s *Service) TransferAdmin(ctx context.Context, teamID, callerID, targetUserID string) error {
	if err := s.requirePermission(ctx, teamID, callerID, rbac.PermissionTransferAdmin); err != nil {
		return err
	}

	target, err := s.teamRepo.FindMembership(ctx, teamID, targetUserID)
	if err != nil {
		return err
	}
	if target == nil {
		return ErrTargetNotMember
	}

	return s.teamRepo.TransferAdmin(ctx, teamID, callerID, targetUserID)
}

// Members returns the team roster; any member may see it.
func (s *Service) Members(ctx context.Context, teamID, callerID string) ([]MemberInfo, error) {
	if _, err := s.Membership(ctx, teamID, callerID); err != nil {
		return nil, err
	}

	members, err := s.teamRepo.ListMembers(ctx, teamID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	names, err := s.userRepo.FindDisplayNames(ctx, ids)
	if err != nil {
		return nil, err
	}

	infos := make([]MemberInfo, 0, len(members))
	for _, m := range members {
		infos = append(infos, MemberInfo{
			UserID:   m.UserID,
			Name:     names[m.UserID],
			Role:     m.Role,
			JoinedAt: m.JoinedAt,
		})
	}
	return infos, nil
}

// ActiveTeam returns the caller's team, or ErrNotMember when there is none.
func (s *Service) ActiveTeam(ctx context.Context, userID string) (*model.Team, error) {
	t, err := s.teamRepo.FindTeamForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNotMember
	}
	return t, nil
}

// Membership returns the caller's membership or ErrNotMember.
func (s *Service) Membership(ctx context.Context, teamID, userID string) (*model.TeamMember, error) {
	m, err := s.teamRepo.FindMembership(ctx, teamID, userID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrNotMember
	}
	return m, nil
}

// ensureNoTeam enforces the one-active-team rule.
func (s *Service) ensureNoTeam(ctx context.Context, userID string) error {
	existing, err := s.teamRepo.FindTeamForUser(ctx, userID)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrAlreadyMember
	}
	return nil
}

func (s *Service) requirePermission(ctx context.Context, teamID, userID, permission string) error {
	m, err := s.Membership(ctx, teamID, userID)
	if err != nil {
		return err
	}
	if err := rbac.CheckPermission(m.Role, permission); err != nil {
		return ErrForbidden
	}
	return nil
}

func newInviteCode() string {
	b := make([]byte, 4)
	rand.Read(b)
	return hex.EncodeToString(b)
}
