package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"teammail/internal/model"
)

type JoinRequestRepository struct {
	db *pgxpool.Pool
}

func NewJoinRequestRepository(db *pgxpool.Pool) *JoinRequestRepository {
	return &JoinRequestRepository{db: db}
}

func (r *JoinRequestRepository) Create(ctx context.Context, jr *model.JoinRequest) error {
	query := `
        INSERT INTO join_requests (id, team_id, user_id, status, created_at)
        VALUES ($1, $2, $3, $4, NOW())
        RETURNING created_at
    `
	return r.db.QueryRow(ctx, query, jr.ID, jr.TeamID, jr.UserID, jr.Status).Scan(&jr.CreatedAt)
}

func (r *JoinRequestRepository) FindByID(ctx context.Context, id string) (*model.JoinRequest, error) {
	query := `
        SELECT id, team_id, user_id, status, created_at, decided_at, decided_by
        FROM join_requests
        WHERE id = $1
    `
	var jr model.JoinRequest
	err := r.db.QueryRow(ctx, query, id).Scan(
		&jr.ID,
		&jr.TeamID,
		&jr.UserID,
		&jr.Status,
		&jr.CreatedAt,
		&jr.DecidedAt,
		&jr.DecidedBy,
	)
	if err != nil {
		return nil, err
	}
	return &jr, nil
}

// FindPendingForUser prevents duplicate requests while one is undecided.
func (r *JoinRequestRepository) FindPendingForUser(ctx context.Context, teamID, userID string) (*model.JoinRequest, error) {
	query := `
        SELECT id, team_id, user_id, status, created_at, decided_at, decided_by
        FROM join_requests
        WHERE team_id = $1 AND user_id = $2 AND status = 'pending'
    `
	var jr model.JoinRequest
	err := r.db.QueryRow(ctx, query, teamID, userID).Scan(
		&jr.ID,
		&jr.TeamID,
		&jr.UserID,
		&jr.Status,
		&jr.CreatedAt,
		&jr.DecidedAt,
		&jr.DecidedBy,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &jr, nil
}

func (r *JoinRequestRepository) ListPending(ctx context.Context, teamID string) ([]model.JoinRequest, error) {
	query := `
        SELECT id, team_id, user_id, status, created_at, decided_at, decided_by
        FROM join_requests
        WHERE team_id = $1 AND status = 'pending'
        ORDER BY created_at ASC
    `
	rows, err := r.db.Query(ctx, query, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := []model.JoinRequest{}
	for rows.Next() {
		var jr model.JoinRequest
		err := rows.Scan(
			&jr.ID,
			&jr.TeamID,
			&jr.UserID,
			&jr.Status,
			&jr.CreatedAt,
			&jr.DecidedAt,
			&jr.DecidedBy,
		)
		if err != nil {
			return nil, err
		}
		requests = append(requests, jr)
	}

	return requests, rows.Err()
}

// Decide flips a pending request to approved or rejected. Only pending
// requests can be decided; deciding twice is a no-op for the loser.
func (r *JoinRequestRepository) Decide(ctx context.Context, id, decidedBy, status string) (bool, error) {
	query := `
        UPDATE join_requests
        SET status = $1, decided_at = NOW(), decided_by = $2
        WHERE id = $3 AND status = 'pending'
    `
	tag, err := r.db.Exec(ctx, query, status, decidedBy, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
