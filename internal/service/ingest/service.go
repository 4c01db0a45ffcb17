package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	mqcontracts "teammail/contracts/mq"
	"teammail/internal/model"
	"teammail/internal/repository"
	"teammail/pkg/outbox"
)

// Service persists new email records and queues the assist event in the
// same transaction. Implements Store for the Gate.
type Service struct {
	db         *pgxpool.Pool
	emailRepo  *repository.EmailRepository
	outboxRepo *outbox.Repository
	logger     *zap.Logger
}

func NewService(db *pgxpool.Pool, emailRepo *repository.EmailRepository, outboxRepo *outbox.Repository, logger *zap.Logger) *Service {
	return &Service{
		db:         db,
		emailRepo:  emailRepo,
		outboxRepo: outboxRepo,
		logger:     logger,
	}
}

// SaveNew inserts the record and an `email.ingested` outbox event atomically.
// When the insert loses the unique-index race to a concurrent session, the
// winner's record is re-read and returned with created=false.
func (s *Service) SaveNew(ctx context.Context, e *model.Email) (*model.Email, bool, error) {
	e.ID = uuid.NewString()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	created, err := s.emailRepo.InsertTx(ctx, tx, e)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert email: %w", err)
	}

	if !created {
		_ = tx.Rollback(ctx)

		if e.ExternalID == nil {
			// Only the unique index on external_id can reject an insert, so
			// this should be unreachable; surface it rather than guess.
			return nil, false, fmt.Errorf("insert rejected without external id")
		}
		winner, err := s.emailRepo.FindByExternalID(ctx, e.TeamID, *e.ExternalID)
		if err != nil {
			return nil, false, fmt.Errorf("failed to load winning record: %w", err)
		}
		s.logger.Info("Lost ingest race, reusing existing record",
			zap.String("team_id", e.TeamID),
			zap.String("external_id", *e.ExternalID),
			zap.String("email_id", winner.ID),
		)
		return winner, false, nil
	}

	payload := mqcontracts.EmailIngestedPayload{
		EmailID:    e.ID,
		TeamID:     e.TeamID,
		Subject:    e.Subject,
		Body:       e.Body,
		IngestedAt: time.Now(),
	}
	if err := outbox.InsertEventInTx(ctx, tx, s.outboxRepo, "email", &e.ID, mqcontracts.EmailIngestedRoutingKey, payload); err != nil {
		return nil, false, fmt.Errorf("failed to queue ingest event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("failed to commit: %w", err)
	}

	return e, true, nil
}
