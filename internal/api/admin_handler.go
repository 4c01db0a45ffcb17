package api

import (
	"net/http"
	"strconv"

	"teammail/internal/service/team"
	"teammail/pkg/outbox"
	"teammail/pkg/rbac"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AdminHandler struct {
	replayService *outbox.ReplayService
	teamService   *team.Service
	logger        *zap.Logger
}

func NewAdminHandler(replayService *outbox.ReplayService, teamService *team.Service, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		replayService: replayService,
		teamService:   teamService,
		logger:        logger,
	}
}

func (h *AdminHandler) requireReplayPermission(c *gin.Context) bool {
	userID, ok := currentUserID(c)
	if !ok {
		return false
	}

	t, err := h.teamService.ActiveTeam(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "join a team first"})
		return false
	}
	m, err := h.teamService.Membership(c.Request.Context(), t.ID, userID)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "join a team first"})
		return false
	}
	if err := rbac.CheckPermission(m.Role, rbac.PermissionReplayOutbox); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		return false
	}
	return true
}

// ReplayOutboxEvent handles POST /admin/outbox/replay?id=xxx
func (h *AdminHandler) ReplayOutboxEvent(c *gin.Context) {
	if !h.requireReplayPermission(c) {
		return
	}

	idStr := c.Query("id")
	if idStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing id parameter"})
		return
	}

	eventID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id parameter"})
		return
	}

	if err := h.replayService.ReplayEvent(c.Request.Context(), eventID); err != nil {
		h.logger.Error("Failed to replay event",
			zap.Int64("event_id", eventID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "failed to replay event",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "replayed",
		"event_id": eventID,
	})
}

// ReplayFailedEvents handles POST /admin/outbox/replay-failed?limit=100
func (h *AdminHandler) ReplayFailedEvents(c *gin.Context) {
	if !h.requireReplayPermission(c) {
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		limit = 100
	}

	successCount, err := h.replayService.ReplayFailedEvents(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to replay failed events", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "failed to replay failed events",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        "completed",
		"success_count": successCount,
		"limit":         limit,
	})
}
