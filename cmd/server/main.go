package main

import (
	"context"
	"log"

	"teammail/config"
	"teammail/internal/api"
	"teammail/internal/httpserver"
	"teammail/internal/repository"
	"teammail/internal/service/assist"
	"teammail/internal/service/auth"
	"teammail/internal/service/dedup"
	"teammail/internal/service/ingest"
	"teammail/internal/service/team"
	"teammail/pkg/db"
	"teammail/pkg/logger"
	"teammail/pkg/mq"
	"teammail/pkg/outbox"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	logger := logger.NewLogger()
	defer logger.Sync()

	// Init DB
	dbConn, err := db.NewConnection(cfg.DB, logger)
	if err != nil {
		logger.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	// Init Repositories
	userRepo := repository.NewUserRepository(dbConn)
	emailRepo := repository.NewEmailRepository(dbConn)
	teamRepo := repository.NewTeamRepository(dbConn)
	joinRepo := repository.NewJoinRequestRepository(dbConn)
	outboxRepo := outbox.NewRepository(dbConn)

	// Init MQ Publisher
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		logger.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	// Init Services
	authService := auth.NewService(userRepo, cfg.JWT.Secret)
	teamService := team.NewService(teamRepo, joinRepo, userRepo)
	assistClient := assist.NewClient(cfg.Assist, logger)

	resolver := dedup.NewResolver(emailRepo, userRepo, cfg.Dedup.Window(), cfg.Dedup.Timeout(), logger)
	ingestService := ingest.NewService(dbConn, emailRepo, outboxRepo, logger)
	gate := ingest.NewGate(resolver, ingestService)

	replayService := outbox.NewReplayService(outboxRepo, publisher)

	// Init Handlers
	authHandler := api.NewAuthHandler(authService)
	emailHandler := api.NewEmailHandler(gate, emailRepo, teamService, assistClient, logger)
	teamHandler := api.NewTeamHandler(teamService, logger)
	adminHandler := api.NewAdminHandler(replayService, teamService, logger)

	// Init Outbox Dispatcher
	dispatcher := outbox.NewDispatcher(outboxRepo, publisher, logger)
	go dispatcher.Start(context.Background())

	// Router
	router := httpserver.NewRouter(
		authHandler,
		emailHandler,
		teamHandler,
		adminHandler,
		cfg.JWT.Secret,
		dbConn,
	)

	logger.Info("Starting server", zap.String("port", cfg.Server.Port))
	if err := router.Run(cfg.Server.Port); err != nil {
		log.Fatalf("server start failed: %v", err)
	}
}
