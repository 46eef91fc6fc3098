package main

import (
	"context"
	"fmt"
	"os"
	_ "time/tzdata"

	"dompet/internal/cli"
	"dompet/internal/log"
	"dompet/internal/services"
	"dompet/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg, err := cli.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := cli.SetupLogger(cfg, log.ComponentWorker)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger.Info("Starting rollover-worker", log.FieldOperation, log.OpStartup)

	repo, err := cli.OpenStorage(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	processor := services.NewRolloverProcessor(repo, cfg.RolloverMaxWindows)

	// The broker is optional: without it the worker still runs on its ticker.
	var requests worker.RequestSource
	amqpClient, err := cli.ConnectAMQP(cfg, logger)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, continuing with the ticker only", "error", err)
	} else if amqpClient != nil {
		defer amqpClient.Close()
		processor.WithPublisher(amqpClient)
		requests = amqpClient
	}

	ctx, stop := cli.ShutdownContext(context.Background())
	defer stop()
	ctx = log.WithLogger(ctx, logger)

	logger.Info("Rollover worker configured",
		"interval", cfg.RolloverInterval,
		"max_windows", cfg.RolloverMaxWindows,
		"timezone", cfg.Timezone)

	w := worker.NewRolloverWorker(processor, requests, cfg.RolloverInterval)
	if err := w.Start(ctx); err != nil {
		logger.Error("Rollover worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Rollover-worker shutdown complete", log.FieldOperation, log.OpShutdown)
}
