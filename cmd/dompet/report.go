package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"dompet/internal/core"
	"dompet/internal/log"
	"dompet/internal/services"
	"dompet/internal/sheets"
	gsheet "dompet/internal/sheets/google"
	"dompet/internal/sheets/xlsx"

	"github.com/spf13/cobra"
)

func reportCmd() *cobra.Command {
	var (
		by     string
		period string
		at     string
		export string
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarise the transactions of one window",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()

			day := now()
			if at != "" {
				if day, err = time.ParseInLocation(time.DateOnly, at, a.repo.Location()); err != nil {
					return fmt.Errorf("invalid --at %q: %w", at, err)
				}
			}
			w, err := core.PeriodKind(period).WindowAt(day.In(a.repo.Location()))
			if err != nil {
				return err
			}

			svc := services.NewReportService(a.repo)
			if export == "" {
				rows, err := svc.Rows(ctx, services.GroupBy(by), w, now())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), services.ReportTitle(services.GroupBy(by), w))
				return printRows(cmd.OutOrStdout(), rows)
			}

			out, err := exporter(cmd, a, export)
			if err != nil {
				return err
			}
			ref, err := svc.Export(ctx, out, services.GroupBy(by), w, now())
			if err != nil {
				return err
			}
			a.logger.InfoContext(ctx, "Report exported", log.FieldOperation, log.OpExport, log.FieldGroupBy, by, log.FieldExportRef, ref)
			fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", ref)
			return nil
		},
	}
	cmd.Flags().StringVar(&by, "by", string(services.GroupByCategory), "grouping: category, payment-method, day, week, month")
	cmd.Flags().StringVar(&period, "period", string(core.Monthly), "report window length (daily, weekly, monthly)")
	cmd.Flags().StringVar(&at, "at", "", "any date inside the window, YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&export, "export", "", "export target: sheets or xlsx")
	return cmd
}

func exporter(cmd *cobra.Command, a *app, target string) (sheets.ReportWriter, error) {
	switch target {
	case "xlsx":
		return xlsx.New(a.cfg.ExportDir), nil
	case "sheets":
		if !a.cfg.HasSheets() {
			return nil, fmt.Errorf("GOOGLE_SPREADSHEET_ID is not set")
		}
		creds, err := gsheet.CredentialsOption(cmd.Context(), a.cfg.GoogleServiceAccountJSON, a.cfg.GoogleServiceAccountFile)
		if err != nil {
			return nil, err
		}
		return gsheet.New(cmd.Context(), a.cfg.GoogleSpreadsheetID, creds)
	default:
		return nil, fmt.Errorf("unknown export target %q (want sheets or xlsx)", target)
	}
}

func printRows(out io.Writer, rows [][]any) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, row := range rows {
		for i, v := range row {
			if i > 0 {
				fmt.Fprint(w, "\t")
			}
			fmt.Fprint(w, v)
		}
		fmt.Fprintln(w)
	}
	return w.Flush()
}
