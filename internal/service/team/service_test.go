package team

import (
	"context"
	"errors"
	"testing"

	"teammail/internal/model"
	"teammail/pkg/rbac"
)

type stubTeamStore struct {
	teams        map[string]*model.Team // by invite code
	memberships  []model.TeamMember
	addedMembers []model.TeamMember
}

func (s *stubTeamStore) CreateTeam(ctx context.Context, t *model.Team) error { return nil }

func (s *stubTeamStore) AddMember(ctx context.Context, m *model.TeamMember) error {
	s.addedMembers = append(s.addedMembers, *m)
	s.memberships = append(s.memberships, *m)
	return nil
}

func (s *stubTeamStore) FindByInviteCode(ctx context.Context, inviteCode string) (*model.Team, error) {
	if t, ok := s.teams[inviteCode]; ok {
		return t, nil
	}
	return nil, errors.New("no rows")
}

func (s *stubTeamStore) FindMembership(ctx context.Context, teamID, userID string) (*model.TeamMember, error) {
	for i := range s.memberships {
		if s.memberships[i].TeamID == teamID && s.memberships[i].UserID == userID {
			return &s.memberships[i], nil
		}
	}
	return nil, nil
}

func (s *stubTeamStore) FindTeamForUser(ctx context.Context, userID string) (*model.Team, error) {
	for _, m := range s.memberships {
		if m.UserID == userID {
			return &model.Team{ID: m.TeamID}, nil
		}
	}
	return nil, nil
}

func (s *stubTeamStore) TransferAdmin(ctx context.Context, teamID, fromUserID, toUserID string) error {
	return nil
}

func (s *stubTeamStore) ListMembers(ctx context.Context, teamID string) ([]model.TeamMember, error) {
	var out []model.TeamMember
	for _, m := range s.memberships {
		if m.TeamID == teamID {
			out = append(out, m)
		}
	}
	return out, nil
}

type stubJoinStore struct {
	byID    map[string]*model.JoinRequest
	created []model.JoinRequest
}

func (s *stubJoinStore) Create(ctx context.Context, jr *model.JoinRequest) error {
	s.created = append(s.created, *jr)
	return nil
}

func (s *stubJoinStore) FindByID(ctx context.Context, id string) (*model.JoinRequest, error) {
	if jr, ok := s.byID[id]; ok {
		return jr, nil
	}
	return nil, errors.New("no rows")
}

func (s *stubJoinStore) FindPendingForUser(ctx context.Context, teamID, userID string) (*model.JoinRequest, error) {
	return nil, nil
}

func (s *stubJoinStore) ListPending(ctx context.Context, teamID string) ([]model.JoinRequest, error) {
	return nil, nil
}

func (s *stubJoinStore) Decide(ctx context.Context, id, decidedBy, status string) (bool, error) {
	return true, nil
}

type stubNames struct{}

func (stubNames) FindDisplayNames(ctx context.Context, ids []string) (map[string]string, error) {
	return map[string]string{}, nil
}

func TestCreateRefusesSecondTeam(t *testing.T) {
	store := &stubTeamStore{memberships: []model.TeamMember{
		{TeamID: "team-a", UserID: "u1", Role: rbac.RoleMember},
	}}
	svc := NewService(store, &stubJoinStore{}, stubNames{})

	_, err := svc.Create(context.Background(), "second team", "u1")
	if !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember, got %v", err)
	}
	if len(store.addedMembers) != 0 {
		t.Fatal("no membership should be written")
	}
}

func TestCreateMakesCreatorAdmin(t *testing.T) {
	store := &stubTeamStore{}
	svc := NewService(store, &stubJoinStore{}, stubNames{})

	created, err := svc.Create(context.Background(), "ops", "u1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(store.addedMembers) != 1 || store.addedMembers[0].Role != rbac.RoleAdmin {
		t.Fatalf("expected one admin membership, got %+v", store.addedMembers)
	}
	if created.InviteCode == "" {
		t.Fatal("expected an invite code")
	}
}

func TestRequestJoinRefusesMemberOfAnyTeam(t *testing.T) {
	store := &stubTeamStore{
		teams: map[string]*model.Team{"code-b": {ID: "team-b", InviteCode: "code-b"}},
		memberships: []model.TeamMember{
			{TeamID: "team-a", UserID: "u1", Role: rbac.RoleMember},
		},
	}
	joins := &stubJoinStore{}
	svc := NewService(store, joins, stubNames{})

	_, err := svc.RequestJoin(context.Background(), "code-b", "u1")
	if !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember, got %v", err)
	}
	if len(joins.created) != 0 {
		t.Fatal("no join request should be filed")
	}
}

func TestDecideRefusesRequesterWhoJoinedElsewhere(t *testing.T) {
	// u2 filed a request against team-a, then got approved into team-b.
	store := &stubTeamStore{memberships: []model.TeamMember{
		{TeamID: "team-a", UserID: "admin", Role: rbac.RoleAdmin},
		{TeamID: "team-b", UserID: "u2", Role: rbac.RoleMember},
	}}
	joins := &stubJoinStore{byID: map[string]*model.JoinRequest{
		"r1": {ID: "r1", TeamID: "team-a", UserID: "u2", Status: model.JoinRequestPending},
	}}
	svc := NewService(store, joins, stubNames{})

	err := svc.DecideRequest(context.Background(), "r1", "admin", true)
	if !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember, got %v", err)
	}
	if len(store.addedMembers) != 0 {
		t.Fatal("no membership should be written")
	}
}

func TestDecideApproveAddsMember(t *testing.T) {
	store := &stubTeamStore{memberships: []model.TeamMember{
		{TeamID: "team-a", UserID: "admin", Role: rbac.RoleAdmin},
	}}
	joins := &stubJoinStore{byID: map[string]*model.JoinRequest{
		"r1": {ID: "r1", TeamID: "team-a", UserID: "u2", Status: model.JoinRequestPending},
	}}
	svc := NewService(store, joins, stubNames{})

	if err := svc.DecideRequest(context.Background(), "r1", "admin", true); err != nil {
		t.Fatalf("DecideRequest: %v", err)
	}
	if len(store.addedMembers) != 1 || store.addedMembers[0].UserID != "u2" {
		t.Fatalf("expected u2 added, got %+v", store.addedMembers)
	}
	if store.addedMembers[0].Role != rbac.RoleMember {
		t.Fatalf("expected member role, got %q", store.addedMembers[0].Role)
	}
}
