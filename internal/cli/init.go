// Package cli provides common CLI initialization utilities.
// This package consolidates the bootstrapping shared by cmd/dompet and
// cmd/rollover-worker.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"dompet/internal/amqp"
	"dompet/internal/config"
	"dompet/internal/log"
	"dompet/internal/storage"

	"github.com/joho/godotenv"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadConfig loads the environment configuration and validates it.
func LoadConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetupLogger installs the process logger described by cfg.
func SetupLogger(cfg *config.Config, component string) (*log.Logger, error) {
	return log.Setup(os.Stdout, cfg.LogLevel, cfg.LogFormat, component)
}

// OpenStorage opens the SQLite repository in the configured timezone.
func OpenStorage(cfg *config.Config, logger *log.Logger) (*storage.SQLiteRepository, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, loc)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.SQLiteDBPath, err)
	}
	logger.Info("SQLite repository ready", "path", cfg.SQLiteDBPath, "timezone", loc.String())
	return repo, nil
}

// ConnectAMQP returns a broker client, or nil when AMQP_URL is not set.
func ConnectAMQP(cfg *config.Config, logger *log.Logger) (*amqp.Client, error) {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP disabled - no AMQP_URL provided")
		return nil, nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return nil, err
	}
	logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client, nil
}

// ShutdownContext returns a context cancelled on SIGINT or SIGTERM.
func ShutdownContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
