package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"

	mqcontracts "teammail/contracts/mq"
	"teammail/internal/repository"
	"teammail/internal/service/assist"
	"teammail/pkg/metrics"
	"teammail/pkg/mq"
	"teammail/pkg/util"

	"go.uber.org/zap"
)

const (
	maxRetries = 5
)

// EmailIngestedAssistHandler annotates freshly ingested emails with a
// one-line summary and an urgency score. It is idempotent: a redelivered
// message for an already annotated email is acked without another
// assist call.
type EmailIngestedAssistHandler struct {
	emailRepo    *repository.EmailRepository
	assistClient *assist.Client
	retryCounter *util.RetryCounter
	deduper      *util.Deduper
	dlqPublisher *mq.Publisher
	logger       *zap.Logger
}

func NewEmailIngestedAssistHandler(
	emailRepo *repository.EmailRepository,
	assistClient *assist.Client,
	retryCounter *util.RetryCounter,
	deduper *util.Deduper,
	dlqPublisher *mq.Publisher,
	logger *zap.Logger,
) *EmailIngestedAssistHandler {
	return &EmailIngestedAssistHandler{
		emailRepo:    emailRepo,
		assistClient: assistClient,
		retryCounter: retryCounter,
		deduper:      deduper,
		dlqPublisher: dlqPublisher,
		logger:       logger,
	}
}

func (h *EmailIngestedAssistHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	// --------------------------
	// Step 1: decode payload
	// --------------------------
	var payload mqcontracts.EmailIngestedPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.logger.Error("Invalid EmailIngestedPayload, sending to DLQ",
			zap.String("raw", string(raw)),
			zap.Error(err),
		)
		h.sendToDLQ(raw, fmt.Sprintf("bad_payload: %v", err))
		return nil // ack, the payload will never parse
	}

	h.logger.Info("EmailIngestedAssistHandler: received email",
		zap.String("email_id", payload.EmailID),
		zap.String("team_id", payload.TeamID),
	)

	// --------------------------
	// Step 2: idempotency check
	// --------------------------
	annotated, err := h.emailRepo.HasAssist(ctx, payload.EmailID)
	if err != nil {
		return h.handleRepoError("HasAssist", err)
	}
	if annotated {
		h.logger.Info("Email already annotated, skip",
			zap.String("email_id", payload.EmailID),
		)
		metrics.IncrementEmailAssisted("skipped")
		return nil
	}

	// --------------------------
	// Step 3: in-flight dedup lock
	// --------------------------
	if !h.deduper.AcquireOnce(ctx, "assist", payload.EmailID) {
		h.logger.Info("Another worker holds the assist lock, skip",
			zap.String("email_id", payload.EmailID),
		)
		return nil
	}

	// --------------------------
	// Step 4: retry accounting
	// --------------------------
	retryKey := util.FormatRetryKey("assist", payload.EmailID)
	retryCount, err := h.retryCounter.IncrementAndGet(ctx, retryKey)
	if err != nil {
		h.logger.Warn("Retry counter unavailable, continuing",
			zap.String("email_id", payload.EmailID),
			zap.Error(err),
		)
		retryCount = 1
	}

	// --------------------------
	// Step 5: call assist service
	// --------------------------
	annotation, err := h.assistClient.Annotate(ctx, payload.Subject, payload.Body)
	if err != nil {
		return h.handleAssistError(ctx, err, raw, retryKey, retryCount, payload.EmailID)
	}

	// --------------------------
	// Step 6: persist annotation
	// --------------------------
	if err := h.emailRepo.UpdateAssist(ctx, payload.EmailID, annotation.Summary, annotation.UrgencyScore); err != nil {
		return h.handleRepoError("UpdateAssist", err)
	}

	// --------------------------
	// Step 7: cleanup & finish
	// --------------------------
	h.retryCounter.Reset(ctx, retryKey)
	metrics.IncrementEmailAssisted("annotated")

	h.logger.Info("Email annotated successfully",
		zap.String("email_id", payload.EmailID),
		zap.Int("urgency_score", annotation.UrgencyScore),
	)

	return nil
}

func (h *EmailIngestedAssistHandler) handleRepoError(op string, err error) error {
	isRetryable, errType := util.IsRetryableError(err)
	h.logger.Error("Repo error",
		zap.String("op", op),
		zap.String("error_type", errType),
		zap.Bool("retryable", isRetryable),
		zap.Error(err),
	)

	if isRetryable {
		return err // nack, redeliver
	}
	return nil // ack, swallow
}

func (h *EmailIngestedAssistHandler) handleAssistError(ctx context.Context, err error, raw json.RawMessage, retryKey string, retryCount int64, emailID string) error {
	isRetryable, errType := util.IsRetryableError(err)

	h.logger.Warn("Assist service error",
		zap.String("error", err.Error()),
		zap.String("type", errType),
		zap.Bool("retryable", isRetryable),
		zap.String("email_id", emailID),
		zap.Int64("retry", retryCount),
	)

	if util.ShouldRetry(retryCount, maxRetries, isRetryable) {
		return err // nack, redeliver
	}

	// Retries exhausted or permanently broken: park the message so an
	// operator can replay it once the assist service recovers.
	h.logger.Warn("Giving up on assist annotation, sending to DLQ",
		zap.String("email_id", emailID),
		zap.Int64("retry", retryCount),
	)
	h.sendToDLQ(raw, err.Error())
	h.retryCounter.Reset(ctx, retryKey)
	metrics.IncrementEmailAssisted("dead_lettered")

	return nil // ack
}

func (h *EmailIngestedAssistHandler) sendToDLQ(raw json.RawMessage, reason string) {
	if err := h.dlqPublisher.PublishToDLQ(mqcontracts.EmailIngestedRoutingKey, raw, reason); err != nil {
		h.logger.Error("Failed to publish to DLQ", zap.Error(err))
	}
}
