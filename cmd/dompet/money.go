package main

import (
	"fmt"

	"dompet/internal/config"
	"dompet/internal/core"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func moneyCmd() *cobra.Command {
	var code string
	cmd := &cobra.Command{
		Use:   "money",
		Short: "Format or parse amounts with a currency's display policy",
	}
	cmd.PersistentFlags().StringVar(&code, "currency", "", "currency code (default CURRENCY_CODE)")

	currency := func() (core.Currency, error) {
		if code == "" {
			code = config.Load().CurrencyCode
		}
		return core.LookupCurrency(code)
	}

	cmd.AddCommand(&cobra.Command{
		Use:     "format <amount>",
		Short:   "Render a plain decimal amount, e.g. 1234567 -> Rp 1.234.567",
		Args:    cobra.ExactArgs(1),
		Example: "  dompet money format 1234567",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := currency()
			if err != nil {
				return err
			}
			amount, err := decimal.NewFromString(args[0])
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), core.NewMoney(amount, c).Format())
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:     "parse <text>",
		Short:   "Read typed text back into a plain decimal amount",
		Args:    cobra.ExactArgs(1),
		Example: `  dompet money parse "Rp 1.234.567"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := currency()
			if err != nil {
				return err
			}
			amount, err := c.Parse(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), amount.String())
			return nil
		},
	})
	return cmd
}
