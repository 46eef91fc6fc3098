package main

import (
	"errors"
	"fmt"
	"time"

	"dompet/internal/cli"
	"dompet/internal/core"
	"dompet/internal/log"
	"dompet/internal/services"

	"github.com/spf13/cobra"
)

func rolloverCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "rollover",
		Short: "Create every budget window missing up to now",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if dryRun {
				latest, lines, err := a.repo.LatestBudget(ctx)
				if errors.Is(err, core.ErrNotFound) {
					fmt.Fprintln(out, "No budget yet.")
					return nil
				}
				if err != nil {
					return err
				}
				plan, err := services.PlanRollover(latest, lines, now(), a.cfg.RolloverMaxWindows)
				if err != nil {
					return err
				}
				for _, w := range plan.Windows {
					fmt.Fprintf(out, "would create %s (%d lines)\n", formatWindow(w.Budget.Window()), len(w.Lines))
				}
				if plan.Truncated {
					fmt.Fprintln(out, "more windows remain after this run's cap")
				}
				return nil
			}

			processor := services.NewRolloverProcessor(a.repo, a.cfg.RolloverMaxWindows)
			if client, err := cli.ConnectAMQP(a.cfg, a.logger); err != nil {
				a.logger.Warn("AMQP unavailable, window events will not be published", "error", err)
			} else if client != nil {
				defer client.Close()
				processor.WithPublisher(client)
			}

			start := time.Now()
			res, err := processor.Run(ctx, now())
			a.logger.InfoContext(ctx, "Rollover finished", log.NewFields().
				WithOperation(log.OpRollover).
				WithRollover(log.TriggerCLI, string(res.Status), len(res.Created), time.Since(start).Milliseconds()).
				WithError(err).
				ToSlice()...)
			for _, b := range res.Created {
				fmt.Fprintf(out, "created %s\n", formatWindow(b.Window()))
			}
			fmt.Fprintf(out, "status: %s\n", res.Status)
			return err
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the windows that would be created")
	return cmd
}

func requestRolloverCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "request-rollover",
		Short: "Ask the rollover worker to run now",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig()
			if err != nil {
				return err
			}
			logger, err := cli.SetupLogger(cfg, log.ComponentCLI)
			if err != nil {
				return err
			}
			client, err := cli.ConnectAMQP(cfg, logger)
			if err != nil {
				return err
			}
			if client == nil {
				return fmt.Errorf("AMQP_URL is not set")
			}
			defer client.Close()

			if err := client.PublishRolloverRequest(cmd.Context(), reason); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Rollover requested.")
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "cli", "reason recorded with the request")
	return cmd
}
