// The event consumer scores action events arriving on Kafka instead of HTTP.
// It shares the full scoring pipeline with the API server, so an event scores
// identically regardless of which door it came through.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/caregrid/sentinel/internal/app"
	"github.com/caregrid/sentinel/internal/domain"
	"github.com/caregrid/sentinel/internal/infra"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("event consumer failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("event-consumer connected to postgres")

	redisClient, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Warn("redis unavailable, profile cache disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	producer := infra.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaEnabled, logger)
	defer producer.Close()

	consumer := infra.NewKafkaConsumer(cfg.KafkaBrokers, cfg.KafkaEventTopic, cfg.KafkaConsumerGroup, cfg.KafkaEnabled, logger)
	defer consumer.Close()
	if !consumer.Enabled() {
		return fmt.Errorf("kafka disabled: the event consumer needs KAFKA_ENABLED=true and brokers")
	}

	svcs := app.BuildServices(app.Deps{
		Cfg:      cfg,
		Pool:     pool,
		Redis:    redisClient,
		Producer: producer,
		Logger:   logger,
	})

	logger.Info("event-consumer starting", "topic", cfg.KafkaEventTopic, "group", cfg.KafkaConsumerGroup)

	for {
		msg, err := consumer.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Info("event-consumer shutting down")
				return nil
			}
			logger.Error("read message failed", "error", err)
			continue
		}

		var ev domain.ActionEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			logger.Warn("malformed event skipped", "offset", msg.Offset, "error", err)
			continue
		}

		assessment, _, err := svcs.Risk.Ingest(ctx, &ev)
		if err != nil {
			logger.Warn("event rejected", "actor_id", ev.ActorID, "offset", msg.Offset, "error", err)
			continue
		}
		logger.Info("event scored",
			"actor_id", ev.ActorID,
			"action", ev.Action,
			"risk_score", assessment.RiskScore,
			"risk_level", assessment.RiskLevel,
		)
	}
}
