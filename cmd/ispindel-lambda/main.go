package main

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/brewcast/ispindel/internal/config"
	"github.com/brewcast/ispindel/internal/ingest"
	"github.com/brewcast/ispindel/internal/obs"
	"github.com/brewcast/ispindel/internal/queue"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		obs.NewLogger(os.Stdout, "info").Error("config", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(os.Stdout, cfg.LogLevel)

	// Connected once per cold start and reused across invocations.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	publisher, err := queue.Open(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("publisher", "error", err)
		os.Exit(1)
	}

	handler, err := ingest.NewHandler(publisher, ingest.Options{
		ServiceName:           cfg.ServiceName,
		Topic:                 cfg.HistoryTopic,
		RejectZeroTemperature: cfg.RejectZeroTemperature,
		Logger:                logger,
	})
	if err != nil {
		logger.Error("ingest", "error", err)
		os.Exit(1)
	}

	lambda.Start(handler.APIGatewayProxy)
}
