package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"dompet/internal/core"
	"dompet/internal/services"

	"github.com/spf13/cobra"
)

func budgetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Create, inspect or delete the periodic budget",
	}
	cmd.AddCommand(createBudgetCmd())
	cmd.AddCommand(showBudgetCmd())
	cmd.AddCommand(deleteBudgetCmd())
	return cmd
}

func createBudgetCmd() *cobra.Command {
	var (
		kind   string
		limits []string
	)
	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Start the budget with the window containing today",
		Example: `  dompet budget create --kind monthly --limit "Food=1.500.000" --limit "Transport=400.000"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()

			currency, err := a.cfg.Currency()
			if err != nil {
				return err
			}
			categories, err := a.repo.ListCategories(ctx, false)
			if err != nil {
				return err
			}
			lineLimits := make([]services.LineLimit, 0, len(limits))
			for _, l := range limits {
				ll, err := parseLimit(l, categories, currency)
				if err != nil {
					return err
				}
				lineLimits = append(lineLimits, ll)
			}

			b, lines, err := services.NewBudgetService(a.repo).CreateBudget(ctx, core.PeriodKind(kind), lineLimits, now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Budget created: %s window %s with %d lines.\n",
				b.Kind, formatWindow(b.Window()), len(lines))
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", string(core.Monthly), "window length (daily, weekly, monthly)")
	cmd.Flags().StringArrayVar(&limits, "limit", nil, "category limit as Name=amount (repeatable)")
	return cmd
}

// parseLimit reads "Name=amount" against the visible categories.
func parseLimit(s string, categories []core.Category, currency core.Currency) (services.LineLimit, error) {
	name, amount, ok := strings.Cut(s, "=")
	if !ok {
		return services.LineLimit{}, fmt.Errorf("invalid limit %q: want Name=amount", s)
	}
	name = strings.TrimSpace(name)
	for _, c := range categories {
		if !strings.EqualFold(c.Name, name) {
			continue
		}
		value, err := currency.Parse(amount)
		if err != nil {
			return services.LineLimit{}, fmt.Errorf("limit for %s: %w", c.Name, err)
		}
		return services.LineLimit{CategoryID: c.ID, Limit: core.NewMoney(value, currency)}, nil
	}
	return services.LineLimit{}, fmt.Errorf("unknown category %q", name)
}

func showBudgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current window and its lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()

			b, lines, err := services.NewBudgetService(a.repo).CurrentWindow(ctx, now())
			if err != nil {
				return fmt.Errorf("current window: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s window %s (%d days elapsed)\n\n", b.Kind, formatWindow(b.Window()), core.ElapsedDays(b.Window(), now()))
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			defer w.Flush()
			fmt.Fprintln(w, "Category\tLimit\tUsed\tRemaining")
			for _, l := range lines {
				c, err := a.repo.CachedCategory(ctx, l.CategoryID)
				if err != nil {
					return err
				}
				remaining, err := l.Remaining()
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Name, l.Limit.Format(), l.Used.Format(), remaining.Format())
			}
			return nil
		},
	}
}

func deleteBudgetCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete every window and line; transactions are kept",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete the budget without --yes")
			}
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			removed, err := services.NewBudgetService(a.repo).DeleteBudget(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d windows.\n", removed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}

func formatWindow(w core.Window) string {
	return fmt.Sprintf("%s - %s", w.Start.Format(time.DateOnly), w.End.Format(time.DateOnly))
}
