package api

import (
	"errors"
	"net/http"

	"teammail/internal/service/team"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type TeamHandler struct {
	teamService *team.Service
	logger      *zap.Logger
}

func NewTeamHandler(teamService *team.Service, logger *zap.Logger) *TeamHandler {
	return &TeamHandler{
		teamService: teamService,
		logger:      logger,
	}
}

func currentUserID(c *gin.Context) (string, bool) {
	uid, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return "", false
	}
	return uid.(string), true
}

// Create handles POST /teams
func (h *TeamHandler) Create(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "team name is required"})
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	t, err := h.teamService.Create(c.Request.Context(), req.Name, userID)
	if err != nil {
		if errors.Is(err, team.ErrAlreadyMember) {
			c.JSON(http.StatusConflict, gin.H{"error": "already a member of a team"})
			return
		}
		h.logger.Error("Failed to create team", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create team"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"team_id":     t.ID,
		"name":        t.Name,
		"invite_code": t.InviteCode,
	})
}

// Me handles GET /teams/me
func (h *TeamHandler) Me(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	t, err := h.teamService.ActiveTeam(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, team.ErrNotMember) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no team"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve team"})
		return
	}

	m, err := h.teamService.Membership(c.Request.Context(), t.ID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve membership"})
		return
	}

	resp := gin.H{
		"team_id": t.ID,
		"name":    t.Name,
		"role":    m.Role,
	}
	if m.Role == "admin" {
		resp["invite_code"] = t.InviteCode
	}
	c.JSON(http.StatusOK, resp)
}

// Members handles GET /teams/members
func (h *TeamHandler) Members(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	t, err := h.teamService.ActiveTeam(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "join a team first"})
		return
	}

	members, err := h.teamService.Members(c.Request.Context(), t.ID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list members"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"members": members})
}

// RequestJoin handles POST /teams/join
func (h *TeamHandler) RequestJoin(c *gin.Context) {
	var req struct {
		InviteCode string `json:"invite_code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.InviteCode == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invite_code is required"})
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	jr, err := h.teamService.RequestJoin(c.Request.Context(), req.InviteCode, userID)
	if err != nil {
		switch {
		case errors.Is(err, team.ErrUnknownInviteCode):
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown invite code"})
		case errors.Is(err, team.ErrAlreadyMember):
			c.JSON(http.StatusConflict, gin.H{"error": "already a member of a team"})
		case errors.Is(err, team.ErrRequestPending):
			c.JSON(http.StatusConflict, gin.H{"error": "a join request is already pending"})
		default:
			h.logger.Error("Failed to create join request", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to request join"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"request_id": jr.ID,
		"status":     jr.Status,
	})
}

// ListJoinRequests handles GET /teams/requests
func (h *TeamHandler) ListJoinRequests(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	t, err := h.teamService.ActiveTeam(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "join a team first"})
		return
	}

	requests, err := h.teamService.ListPendingRequests(c.Request.Context(), t.ID, userID)
	if err != nil {
		if errors.Is(err, team.ErrForbidden) {
			c.JSON(http.StatusForbidden, gin.H{"error": "admin role required"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list join requests"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

// DecideJoinRequest handles POST /teams/requests/:id/decide
func (h *TeamHandler) DecideJoinRequest(c *gin.Context) {
	var req struct {
		Approve bool `json:"approve"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	err := h.teamService.DecideRequest(c.Request.Context(), c.Param("id"), userID, req.Approve)
	if err != nil {
		switch {
		case errors.Is(err, team.ErrForbidden):
			c.JSON(http.StatusForbidden, gin.H{"error": "admin role required"})
		case errors.Is(err, team.ErrRequestDecided):
			c.JSON(http.StatusConflict, gin.H{"error": "join request was already decided"})
		case errors.Is(err, team.ErrAlreadyMember):
			c.JSON(http.StatusConflict, gin.H{"error": "requester already joined a team"})
		default:
			h.logger.Error("Failed to decide join request", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to decide join request"})
		}
		return
	}

	status := "rejected"
	if req.Approve {
		status = "approved"
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

// TransferAdmin handles POST /teams/transfer-admin
func (h *TeamHandler) TransferAdmin(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	t, err := h.teamService.ActiveTeam(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "join a team first"})
		return
	}

	if err := h.teamService.TransferAdmin(c.Request.Context(), t.ID, userID, req.UserID); err != nil {
		switch {
		case errors.Is(err, team.ErrForbidden):
			c.JSON(http.StatusForbidden, gin.H{"error": "admin role required"})
		case errors.Is(err, team.ErrTargetNotMember):
			c.JSON(http.StatusNotFound, gin.H{"error": "target user is not a member of this team"})
		default:
			h.logger.Error("Failed to transfer admin", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to transfer admin"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "transferred"})
}
