package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"teammail/internal/model"
)

type EmailRepository struct {
	db *pgxpool.Pool
}

func NewEmailRepository(db *pgxpool.Pool) *EmailRepository {
	return &EmailRepository{db: db}
}

const emailColumns = `
        id, team_id, external_id, sender_email, sender_name, subject, body,
        timestamp, summary, urgency_score, handled_at, handled_by,
        handling_note, saved_by, created_at
`

func scanEmail(row pgx.Row) (*model.Email, error) {
	var e model.Email
	err := row.Scan(
		&e.ID,
		&e.TeamID,
		&e.ExternalID,
		&e.SenderEmail,
		&e.SenderName,
		&e.Subject,
		&e.Body,
		&e.Timestamp,
		&e.Summary,
		&e.UrgencyScore,
		&e.HandledAt,
		&e.HandledBy,
		&e.HandlingNote,
		&e.SavedBy,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// InsertTx inserts an email inside tx. The partial unique index on
// (team_id, external_id) turns a lost race between two near-simultaneous
// ingestions into a no-op; the returned bool says whether this call won.
func (r *EmailRepository) InsertTx(ctx context.Context, tx pgx.Tx, e *model.Email) (bool, error) {
	query := `
        INSERT INTO emails (id, team_id, external_id, sender_email, sender_name,
                            subject, body, timestamp, saved_by, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
        ON CONFLICT (team_id, external_id) WHERE external_id IS NOT NULL DO NOTHING
        RETURNING created_at
    `
	err := tx.QueryRow(ctx, query,
		e.ID,
		e.TeamID,
		e.ExternalID,
		e.SenderEmail,
		e.SenderName,
		e.Subject,
		e.Body,
		e.Timestamp,
		e.SavedBy,
	).Scan(&e.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// FindByExternalID returns the team's record for a platform message ID.
func (r *EmailRepository) FindByExternalID(ctx context.Context, teamID, externalID string) (*model.Email, error) {
	query := `
        SELECT ` + emailColumns + `
        FROM emails
        WHERE team_id = $1 AND external_id = $2
    `
	return scanEmail(r.db.QueryRow(ctx, query, teamID, externalID))
}

// FindBySenderWindow returns the team's records from a sender inside
// [from, to], ordered by timestamp.
func (r *EmailRepository) FindBySenderWindow(ctx context.Context, teamID, senderEmail string, from, to time.Time) ([]model.Email, error) {
	query := `
        SELECT ` + emailColumns + `
        FROM emails
        WHERE team_id = $1 AND sender_email = $2 AND timestamp BETWEEN $3 AND $4
        ORDER BY timestamp ASC
    `
	rows, err := r.db.Query(ctx, query, teamID, senderEmail, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	emails := []model.Email{}
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		emails = append(emails, *e)
	}

	return emails, rows.Err()
}

func (r *EmailRepository) FindByID(ctx context.Context, teamID, id string) (*model.Email, error) {
	query := `
        SELECT ` + emailColumns + `
        FROM emails
        WHERE team_id = $1 AND id = $2
    `
	return scanEmail(r.db.QueryRow(ctx, query, teamID, id))
}

// ListByTeam returns the team's emails, newest first.
func (r *EmailRepository) ListByTeam(ctx context.Context, teamID string, limit int) ([]model.Email, error) {
	query := `
        SELECT ` + emailColumns + `
        FROM emails
        WHERE team_id = $1
        ORDER BY timestamp DESC
        LIMIT $2
    `
	rows, err := r.db.Query(ctx, query, teamID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	emails := []model.Email{}
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		emails = append(emails, *e)
	}

	return emails, rows.Err()
}

// UpdateAssist stores the worker's summary and urgency score.
func (r *EmailRepository) UpdateAssist(ctx context.Context, id, summary string, urgencyScore int) error {
	query := `
        UPDATE emails
        SET summary = $1, urgency_score = $2
        WHERE id = $3
    `
	_, err := r.db.Exec(ctx, query, summary, urgencyScore, id)
	return err
}

// HasAssist reports whether the email already carries a summary, used for
// idempotent reprocessing.
func (r *EmailRepository) HasAssist(ctx context.Context, id string) (bool, error) {
	var hasSummary bool
	err := r.db.QueryRow(ctx, `
        SELECT summary IS NOT NULL FROM emails WHERE id = $1
    `, id).Scan(&hasSummary)
	if err != nil {
		return false, err
	}
	return hasSummary, nil
}

// MarkHandled sets the handled attribution and note.
func (r *EmailRepository) MarkHandled(ctx context.Context, teamID, id, userID, note string) error {
	query := `
        UPDATE emails
        SET handled_at = NOW(), handled_by = $1, handling_note = $2
        WHERE team_id = $3 AND id = $4
    `
	_, err := r.db.Exec(ctx, query, userID, note, teamID, id)
	return err
}

// UpdateNote replaces the handling note without touching handled status.
func (r *EmailRepository) UpdateNote(ctx context.Context, teamID, id, note string) error {
	query := `
        UPDATE emails
        SET handling_note = $1
        WHERE team_id = $2 AND id = $3
    `
	_, err := r.db.Exec(ctx, query, note, teamID, id)
	return err
}
