package main

import (
	"time"

	"teammail/config"
	mqcontracts "teammail/contracts/mq"
	"teammail/internal/mqhandler"
	"teammail/internal/repository"
	"teammail/internal/service/assist"
	"teammail/pkg/db"
	"teammail/pkg/logger"
	"teammail/pkg/mq"
	"teammail/pkg/redis"
	"teammail/pkg/util"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	logger := logger.NewLogger()
	defer logger.Sync()

	logger.Info("Starting assist worker...")

	// Redis
	rdb := redis.NewClient(cfg.Redis)
	defer rdb.Close()

	deduper := util.NewDeduperWithLogger(rdb, time.Hour, logger)
	retryCounter := util.NewRetryCounter(rdb, time.Hour)

	// DB
	dbConn, err := db.NewConnection(cfg.DB, logger)
	if err != nil {
		logger.Fatal("DB connection failed", zap.Error(err))
	}
	defer dbConn.Close()

	logger.Info("DB ready")

	emailRepo := repository.NewEmailRepository(dbConn)
	assistClient := assist.NewClient(cfg.Assist, logger)

	// DLQ publisher for messages we give up on
	dlqPublisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		logger.Fatal("Failed to init DLQ publisher", zap.Error(err))
	}
	defer dlqPublisher.Close()

	if err := dlqPublisher.SetupDLQ(mqcontracts.EmailIngestedRoutingKey); err != nil {
		logger.Fatal("Failed to declare DLQ", zap.Error(err))
	}

	assistHandler := mqhandler.NewEmailIngestedAssistHandler(
		emailRepo, assistClient, retryCounter, deduper, dlqPublisher, logger,
	)

	logger.Info("Init consumer: email.ingested.assist.q")
	consumer, err := mq.NewConsumer(
		cfg.MQ.URL,
		"email.ingested.assist.q",
		mqcontracts.EmailIngestedRoutingKey,
		logger,
	)
	if err != nil {
		logger.Fatal("Assist consumer init failed", zap.Error(err))
	}
	consumer.SetHandler(assistHandler.Handle)

	go func() {
		if err := consumer.StartConsuming(); err != nil {
			logger.Fatal("Assist consumer crashed", zap.Error(err))
		}
	}()
	defer consumer.Close()

	logger.Info("Worker running")
	select {}
}
