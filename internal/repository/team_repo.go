package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"teammail/internal/model"
)

type TeamRepository struct {
	db *pgxpool.Pool
}

func NewTeamRepository(db *pgxpool.Pool) *TeamRepository {
	return &TeamRepository{db: db}
}

func (r *TeamRepository) CreateTeam(ctx context.Context, t *model.Team) error {
	query := `
        INSERT INTO teams (id, name, admin_id, invite_code, created_at)
        VALUES ($1, $2, $3, $4, NOW())
        RETURNING created_at
    `
	return r.db.QueryRow(ctx, query, t.ID, t.Name, t.AdminID, t.InviteCode).Scan(&t.CreatedAt)
}

func (r *TeamRepository) FindByID(ctx context.Context, id string) (*model.Team, error) {
	query := `
        SELECT id, name, admin_id, invite_code, created_at
        FROM teams
        WHERE id = $1
    `
	var t model.Team
	err := r.db.QueryRow(ctx, query, id).Scan(
		&t.ID,
		&t.Name,
		&t.AdminID,
		&t.InviteCode,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TeamRepository) FindByInviteCode(ctx context.Context, inviteCode string) (*model.Team, error) {
	query := `
        SELECT id, name, admin_id, invite_code, created_at
        FROM teams
        WHERE invite_code = $1
    `
	var t model.Team
	err := r.db.QueryRow(ctx, query, inviteCode).Scan(
		&t.ID,
		&t.Name,
		&t.AdminID,
		&t.InviteCode,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// TransferAdmin moves team ownership and swaps the member roles accordingly.
func (r *TeamRepository) TransferAdmin(ctx context.Context, teamID, fromUserID, toUserID string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
        UPDATE teams SET admin_id = $1 WHERE id = $2 AND admin_id = $3
    `, toUserID, teamID, fromUserID); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
        UPDATE team_members SET role = 'member' WHERE team_id = $1 AND user_id = $2
    `, teamID, fromUserID); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
        UPDATE team_members SET role = 'admin' WHERE team_id = $1 AND user_id = $2
    `, teamID, toUserID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *TeamRepository) AddMember(ctx context.Context, m *model.TeamMember) error {
	query := `
        INSERT INTO team_members (team_id, user_id, role, joined_at)
        VALUES ($1, $2, $3, NOW())
        ON CONFLICT (team_id, user_id) DO NOTHING
    `
	_, err := r.db.Exec(ctx, query, m.TeamID, m.UserID, m.Role)
	return err
}

// FindMembership returns the caller's membership in a team, or nil when the
// user does not belong to it.
func (r *TeamRepository) FindMembership(ctx context.Context, teamID, userID string) (*model.TeamMember, error) {
	query := `
        SELECT team_id, user_id, role, joined_at
        FROM team_members
        WHERE team_id = $1 AND user_id = $2
    `
	var m model.TeamMember
	err := r.db.QueryRow(ctx, query, teamID, userID).Scan(
		&m.TeamID,
		&m.UserID,
		&m.Role,
		&m.JoinedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *TeamRepository) ListMembers(ctx context.Context, teamID string) ([]model.TeamMember, error) {
	query := `
        SELECT team_id, user_id, role, joined_at
        FROM team_members
        WHERE team_id = $1
        ORDER BY joined_at ASC
    `
	rows, err := r.db.Query(ctx, query, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := []model.TeamMember{}
	for rows.Next() {
		var m model.TeamMember
		if err := rows.Scan(&m.TeamID, &m.UserID, &m.Role, &m.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}

	return members, rows.Err()
}

// FindTeamForUser returns the first team the user belongs to, or nil. The
// sidebar operates on a single active team per user.
func (r *TeamRepository) FindTeamForUser(ctx context.Context, userID string) (*model.Team, error) {
	query := `
        SELECT t.id, t.name, t.admin_id, t.invite_code, t.created_at
        FROM teams t
        JOIN team_members m ON m.team_id = t.id
        WHERE m.user_id = $1
        ORDER BY m.joined_at ASC
        LIMIT 1
    `
	var t model.Team
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&t.ID,
		&t.Name,
		&t.AdminID,
		&t.InviteCode,
		&t.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
