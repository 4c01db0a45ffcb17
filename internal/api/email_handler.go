package api

import (
	"errors"
	"net/http"
	"strconv"

	"teammail/internal/identity"
	"teammail/internal/model"
	"teammail/internal/repository"
	"teammail/internal/service/assist"
	"teammail/internal/service/ingest"
	"teammail/internal/service/team"
	"teammail/pkg/rbac"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type EmailHandler struct {
	gate         *ingest.Gate
	emailRepo    *repository.EmailRepository
	teamService  *team.Service
	assistClient *assist.Client
	logger       *zap.Logger
}

func NewEmailHandler(
	gate *ingest.Gate,
	emailRepo *repository.EmailRepository,
	teamService *team.Service,
	assistClient *assist.Client,
	logger *zap.Logger,
) *EmailHandler {
	return &EmailHandler{
		gate:         gate,
		emailRepo:    emailRepo,
		teamService:  teamService,
		assistClient: assistClient,
		logger:       logger,
	}
}

type emailView struct {
	ID           string  `json:"id"`
	ExternalID   *string `json:"external_id,omitempty"`
	SenderEmail  string  `json:"sender_email"`
	SenderName   string  `json:"sender_name"`
	Subject      string  `json:"subject"`
	Body         string  `json:"body"`
	Timestamp    string  `json:"timestamp"`
	Summary      *string `json:"summary,omitempty"`
	UrgencyScore *int    `json:"urgency_score,omitempty"`
	HandledAt    *string `json:"handled_at,omitempty"`
	HandledBy    *string `json:"handled_by,omitempty"`
	HandlingNote *string `json:"handling_note,omitempty"`
	SavedBy      string  `json:"saved_by"`
	CreatedAt    string  `json:"created_at"`
}

func viewOf(e *model.Email) emailView {
	v := emailView{
		ID:           e.ID,
		ExternalID:   e.ExternalID,
		SenderEmail:  e.SenderEmail,
		SenderName:   e.SenderName,
		Subject:      e.Subject,
		Body:         e.Body,
		Timestamp:    e.Timestamp.UTC().Format(identity.ISOMillis),
		Summary:      e.Summary,
		UrgencyScore: e.UrgencyScore,
		HandledBy:    e.HandledBy,
		HandlingNote: e.HandlingNote,
		SavedBy:      e.SavedBy,
		CreatedAt:    e.CreatedAt.UTC().Format(identity.ISOMillis),
	}
	if e.HandledAt != nil {
		at := e.HandledAt.UTC().Format(identity.ISOMillis)
		v.HandledAt = &at
	}
	return v
}

// authorize resolves the caller's team and checks the role permission.
// It writes the error response itself; callers just bail out on !ok.
func (h *EmailHandler) authorize(c *gin.Context, permission string) (userID, teamID string, ok bool) {
	uid, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return "", "", false
	}
	userID = uid.(string)

	t, err := h.teamService.ActiveTeam(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, team.ErrNotMember) {
			c.JSON(http.StatusForbidden, gin.H{"error": "join a team first"})
			return "", "", false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve team"})
		return "", "", false
	}

	m, err := h.teamService.Membership(c.Request.Context(), t.ID, userID)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "join a team first"})
		return "", "", false
	}
	if err := rbac.CheckPermission(m.Role, permission); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		return "", "", false
	}

	return userID, t.ID, true
}

// Observe handles POST /emails/observe. The sidebar client calls this every
// time it detects an open email; the response says whether the email is new,
// already saved, or was ignored as client-side churn.
func (h *EmailHandler) Observe(c *gin.Context) {
	var req model.ObservedEmail
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if req.SenderEmail == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sender_email is required"})
		return
	}

	userID, teamID, ok := h.authorize(c, rbac.PermissionObserveEmail)
	if !ok {
		return
	}

	decision, err := h.gate.Observe(c.Request.Context(), userID, teamID, req)
	if err != nil {
		h.logger.Error("Failed to process observed email",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process email"})
		return
	}

	resp := gin.H{"outcome": string(decision.Outcome)}
	if decision.Email != nil {
		resp["email"] = viewOf(decision.Email)
	}
	if decision.Existing != nil && decision.Existing.Exists {
		existing := gin.H{
			"matched_by":    string(decision.Existing.MatchedBy),
			"saved_by_name": decision.Existing.SavedByName,
		}
		if decision.Existing.Email != nil {
			existing["email"] = viewOf(decision.Existing.Email)
		}
		if decision.Existing.Email != nil && decision.Existing.Email.HandledAt != nil {
			existing["handled_by_name"] = decision.Existing.HandledByName
		}
		resp["existing"] = existing
	}

	c.JSON(http.StatusOK, resp)
}

// List handles GET /emails
func (h *EmailHandler) List(c *gin.Context) {
	_, teamID, ok := h.authorize(c, rbac.PermissionReadEmail)
	if !ok {
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 200 {
		limit = 50
	}

	emails, err := h.emailRepo.ListByTeam(c.Request.Context(), teamID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch emails"})
		return
	}

	views := make([]emailView, 0, len(emails))
	for i := range emails {
		views = append(views, viewOf(&emails[i]))
	}

	c.JSON(http.StatusOK, gin.H{"emails": views})
}

// Get handles GET /emails/:id
func (h *EmailHandler) Get(c *gin.Context) {
	_, teamID, ok := h.authorize(c, rbac.PermissionReadEmail)
	if !ok {
		return
	}

	email, err := h.findEmail(c, teamID)
	if err != nil {
		return
	}

	c.JSON(http.StatusOK, gin.H{"email": viewOf(email)})
}

// MarkHandled handles POST /emails/:id/handled
func (h *EmailHandler) MarkHandled(c *gin.Context) {
	var req struct {
		Note string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	userID, teamID, ok := h.authorize(c, rbac.PermissionAnnotateEmail)
	if !ok {
		return
	}

	email, err := h.findEmail(c, teamID)
	if err != nil {
		return
	}

	if err := h.emailRepo.MarkHandled(c.Request.Context(), teamID, email.ID, userID, req.Note); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark email handled"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "handled", "email_id": email.ID})
}

// UpdateNote handles PUT /emails/:id/note
func (h *EmailHandler) UpdateNote(c *gin.Context) {
	var req struct {
		Note string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	_, teamID, ok := h.authorize(c, rbac.PermissionAnnotateEmail)
	if !ok {
		return
	}

	email, err := h.findEmail(c, teamID)
	if err != nil {
		return
	}

	if err := h.emailRepo.UpdateNote(c.Request.Context(), teamID, email.ID, req.Note); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update note"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "updated", "email_id": email.ID})
}

// DraftReply handles POST /emails/:id/draft-reply
func (h *EmailHandler) DraftReply(c *gin.Context) {
	var req struct {
		Instructions string `json:"instructions"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	_, teamID, ok := h.authorize(c, rbac.PermissionReadEmail)
	if !ok {
		return
	}

	email, err := h.findEmail(c, teamID)
	if err != nil {
		return
	}

	draft, err := h.assistClient.DraftReply(c.Request.Context(), email.Subject, email.Body, req.Instructions)
	if err != nil {
		h.logger.Error("Failed to draft reply", zap.String("email_id", email.ID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "assist service unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"draft": draft})
}

// Ask handles POST /emails/:id/ask
func (h *EmailHandler) Ask(c *gin.Context) {
	var req struct {
		Question string `json:"question"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Question == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
		return
	}

	_, teamID, ok := h.authorize(c, rbac.PermissionReadEmail)
	if !ok {
		return
	}

	email, err := h.findEmail(c, teamID)
	if err != nil {
		return
	}

	answer, err := h.assistClient.Answer(c.Request.Context(), email.Subject, email.Body, req.Question)
	if err != nil {
		h.logger.Error("Failed to answer question", zap.String("email_id", email.ID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "assist service unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"answer": answer})
}

// findEmail loads :id scoped to the caller's team, writing the error
// response on failure.
func (h *EmailHandler) findEmail(c *gin.Context, teamID string) (*model.Email, error) {
	email, err := h.emailRepo.FindByID(c.Request.Context(), teamID, c.Param("id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "email not found"})
			return nil, err
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch email"})
		return nil, err
	}
	return email, nil
}
