package httpserver

import (
	"context"
	"time"

	"teammail/internal/api"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Router struct {
	Engine *gin.Engine
}

func NewRouter(
	authHandler *api.AuthHandler,
	emailHandler *api.EmailHandler,
	teamHandler *api.TeamHandler,
	adminHandler *api.AdminHandler,
	jwtSecret string,
	db *pgxpool.Pool,
) *Router {
	r := gin.Default()
	r.Use(TraceMiddleware())
	r.Use(MetricsMiddleware())

	// Health endpoints
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(200)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c, 1*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			c.JSON(500, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}

		c.JSON(200, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public
	r.POST("/register", authHandler.Register)
	r.POST("/login", authHandler.Login)

	// Protected
	auth := r.Group("/")
	auth.Use(AuthMiddleware(jwtSecret))
	{
		auth.GET("/me", authHandler.Me)

		auth.POST("/emails/observe", emailHandler.Observe)
		auth.GET("/emails", emailHandler.List)
		auth.GET("/emails/:id", emailHandler.Get)
		auth.POST("/emails/:id/handled", emailHandler.MarkHandled)
		auth.PUT("/emails/:id/note", emailHandler.UpdateNote)
		auth.POST("/emails/:id/draft-reply", emailHandler.DraftReply)
		auth.POST("/emails/:id/ask", emailHandler.Ask)

		auth.POST("/teams", teamHandler.Create)
		auth.GET("/teams/me", teamHandler.Me)
		auth.GET("/teams/members", teamHandler.Members)
		auth.POST("/teams/join", teamHandler.RequestJoin)
		auth.GET("/teams/requests", teamHandler.ListJoinRequests)
		auth.POST("/teams/requests/:id/decide", teamHandler.DecideJoinRequest)
		auth.POST("/teams/transfer-admin", teamHandler.TransferAdmin)

		auth.POST("/admin/outbox/replay", adminHandler.ReplayOutboxEvent)
		auth.POST("/admin/outbox/replay-failed", adminHandler.ReplayFailedEvents)
	}

	return &Router{Engine: r}
}

func (r *Router) Run(port string) error {
	return r.Engine.Run(port)
}
