package main

import (
	"context"
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"dompet/internal/cli"
	"dompet/internal/config"
	"dompet/internal/log"
	"dompet/internal/storage"

	"github.com/spf13/cobra"
)

// app is what a command needs once the environment is loaded.
type app struct {
	cfg    *config.Config
	logger *log.Logger
	repo   *storage.SQLiteRepository
}

// now is replaced in tests.
var now = time.Now

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dompet",
		Short:         "Budget windows, money formatting and spending reports",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(seedCmd())
	root.AddCommand(budgetCmd())
	root.AddCommand(rolloverCmd())
	root.AddCommand(reportCmd())
	root.AddCommand(moneyCmd())
	root.AddCommand(methodCmd())
	root.AddCommand(txCmd())
	root.AddCommand(topUpCmd())
	root.AddCommand(requestRolloverCmd())
	return root
}

// loadApp reads the configuration, installs the logger and opens storage.
func loadApp() (*app, error) {
	cfg, err := cli.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := cli.SetupLogger(cfg, log.ComponentCLI)
	if err != nil {
		return nil, err
	}
	repo, err := cli.OpenStorage(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, repo: repo}, nil
}

func (a *app) Close() {
	if err := a.repo.Close(); err != nil {
		a.logger.Warn("Failed to close repository", "error", err)
	}
}

func main() {
	cli.LoadEnvFile()

	ctx, stop := cli.ShutdownContext(context.Background())
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
