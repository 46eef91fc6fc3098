package main

import (
	"fmt"
	"strings"
	"time"

	"dompet/internal/cli"
	"dompet/internal/core"
	"dompet/internal/services"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// ledger builds the ledger service, publishing transaction events when a
// broker is configured. The returned func releases the broker connection.
func (a *app) ledger() (*services.LedgerService, func()) {
	var publisher services.TransactionPublisher
	closeFn := func() {}
	client, err := cli.ConnectAMQP(a.cfg, a.logger)
	if err != nil {
		a.logger.Warn("AMQP unavailable, transaction events will not be published", "error", err)
	} else if client != nil {
		publisher = client
		closeFn = func() { client.Close() }
	}
	return services.NewLedgerService(a.repo, services.NewCategoryService(a.repo), publisher), closeFn
}

func (a *app) parseAmount(s string) (core.Money, error) {
	currency, err := a.cfg.Currency()
	if err != nil {
		return core.Money{}, err
	}
	value, err := currency.Parse(s)
	if err != nil {
		return core.Money{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return core.NewMoney(value, currency), nil
}

func (a *app) parseDate(s string) (time.Time, error) {
	if s == "" {
		return now().In(a.repo.Location()), nil
	}
	d, err := time.ParseInLocation(time.DateOnly, s, a.repo.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return d, nil
}

func methodCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "method",
		Short: "Manage payment methods",
	}
	cmd.AddCommand(addMethodCmd())
	cmd.AddCommand(listMethodsCmd())
	return cmd
}

func addMethodCmd() *cobra.Command {
	var (
		kind      string
		balance   string
		untracked bool
		digits    string
	)
	cmd := &cobra.Command{
		Use:     "add NAME",
		Short:   "Add a payment method",
		Example: `  dompet method add GoPay --kind e_wallet --balance 150.000`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			opening, err := a.parseAmount(balance)
			if err != nil {
				return err
			}
			ledger, done := a.ledger()
			defer done()

			p, err := ledger.AddPaymentMethod(cmd.Context(), core.PaymentMethod{
				Name:             args[0],
				Kind:             core.MethodKind(kind),
				Balance:          opening,
				TracksBalance:    !untracked,
				IdentifierNumber: digits,
			}, now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Payment method %s added (%s, balance %s).\n", p.Name, p.Kind, p.Balance.Format())
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", string(core.Cash), "cash, debit_card, credit_card or e_wallet")
	cmd.Flags().StringVar(&balance, "balance", "", "opening balance")
	cmd.Flags().BoolVar(&untracked, "untracked", false, "do not track the balance")
	cmd.Flags().StringVar(&digits, "digits", "", "last four digits of the card")
	return cmd
}

func listMethodsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List payment methods with their balances",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			methods, err := a.repo.ListPaymentMethods(cmd.Context())
			if err != nil {
				return err
			}
			rows := [][]any{{"Name", "Kind", "Balance"}}
			for _, p := range methods {
				balance := "-"
				if p.TracksBalance {
					balance = p.Balance.Format()
				}
				rows = append(rows, []any{p.Name, string(p.Kind), balance})
			}
			return printRows(cmd.OutOrStdout(), rows)
		},
	}
}

func (a *app) findMethod(cmd *cobra.Command, name string) (core.PaymentMethod, error) {
	methods, err := a.repo.ListPaymentMethods(cmd.Context())
	if err != nil {
		return core.PaymentMethod{}, err
	}
	for _, p := range methods {
		if strings.EqualFold(p.Name, strings.TrimSpace(name)) {
			return p, nil
		}
	}
	return core.PaymentMethod{}, fmt.Errorf("unknown payment method %q", name)
}

func (a *app) findCategory(cmd *cobra.Command, name string) (core.Category, error) {
	categories, err := a.repo.ListCategories(cmd.Context(), true)
	if err != nil {
		return core.Category{}, err
	}
	for _, c := range categories {
		if strings.EqualFold(c.Name, strings.TrimSpace(name)) {
			return c, nil
		}
	}
	return core.Category{}, fmt.Errorf("unknown category %q", name)
}

func txCmd() *cobra.Command {
	var (
		amount   string
		category string
		method   string
		date     string
		note     string
	)
	cmd := &cobra.Command{
		Use:     "tx",
		Short:   "Record a transaction against a category",
		Example: `  dompet tx --amount 25.000 --category Groceries --method Cash --date 2024-03-02`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			value, err := a.parseAmount(amount)
			if err != nil {
				return err
			}
			day, err := a.parseDate(date)
			if err != nil {
				return err
			}
			c, err := a.findCategory(cmd, category)
			if err != nil {
				return err
			}
			p, err := a.findMethod(cmd, method)
			if err != nil {
				return err
			}

			ledger, done := a.ledger()
			defer done()
			t, err := ledger.RecordTransaction(cmd.Context(), core.Transaction{
				Amount:          value,
				PaymentMethodID: p.ID,
				Date:            day,
				Note:            note,
				Entry:           core.CategoryEntry{CategoryID: c.ID},
			})
			if err != nil {
				return err
			}
			charged := "not charged to a budget"
			if entry := t.Entry.(core.CategoryEntry); entry.BudgetLineID != uuid.Nil {
				charged = "charged to the budget"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s for %s on %s, %s.\n",
				t.Amount.Format(), c.Name, t.Date.Format(time.DateOnly), charged)
			return nil
		},
	}
	cmd.Flags().StringVar(&amount, "amount", "", "amount as displayed, e.g. 25.000")
	cmd.Flags().StringVar(&category, "category", "", "category name")
	cmd.Flags().StringVar(&method, "method", "", "payment method name")
	cmd.Flags().StringVar(&date, "date", "", "date as YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&note, "note", "", "free text note")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("method")
	return cmd
}

func topUpCmd() *cobra.Command {
	var (
		amount string
		from   string
		to     string
		date   string
		note   string
	)
	cmd := &cobra.Command{
		Use:     "topup",
		Short:   "Move money from one payment method to another",
		Example: `  dompet topup --from BCA --to GoPay --amount 150.000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			value, err := a.parseAmount(amount)
			if err != nil {
				return err
			}
			day, err := a.parseDate(date)
			if err != nil {
				return err
			}
			source, err := a.findMethod(cmd, from)
			if err != nil {
				return err
			}
			target, err := a.findMethod(cmd, to)
			if err != nil {
				return err
			}

			ledger, done := a.ledger()
			defer done()
			if _, err := ledger.RecordTopUp(cmd.Context(), source.ID, target.ID, value, day, note); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Moved %s from %s to %s.\n", value.Format(), source.Name, target.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&amount, "amount", "", "amount as displayed, e.g. 150.000")
	cmd.Flags().StringVar(&from, "from", "", "source payment method")
	cmd.Flags().StringVar(&to, "to", "", "target payment method")
	cmd.Flags().StringVar(&date, "date", "", "date as YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&note, "note", "", "free text note")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
