package sheets

import "context"

// Ports for outbound adapters.
type (
	// ReportWriter exports a rendered report, one sheet per title.
	ReportWriter interface {
		// WriteReport replaces the sheet called title with rows and returns
		// where it was written.
		WriteReport(ctx context.Context, title string, rows [][]any) (ref string, err error)
	}
)
