package main

import (
	"fmt"

	"dompet/internal/log"
	"dompet/internal/services"

	"github.com/spf13/cobra"
)

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the starter categories on an empty database",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := services.NewCategoryService(a.repo).SeedDefaults(cmd.Context(), now())
			if err != nil {
				return fmt.Errorf("seed categories: %w", err)
			}
			a.logger.InfoContext(cmd.Context(), "Seed finished", log.FieldOperation, log.OpSeed, "created", n)
			if n == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Categories already exist, nothing to seed.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %d categories.\n", n)
			return nil
		},
	}
}
