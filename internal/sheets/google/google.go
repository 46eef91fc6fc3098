package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	ports "dompet/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Client writes reports into one spreadsheet, one sheet per report.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
}

// Ensure interface conformance
var _ ports.ReportWriter = (*Client)(nil)

// New creates a Sheets client for spreadsheetID. opts usually carries the
// credentials from CredentialsOption.
func New(ctx context.Context, spreadsheetID string, opts ...goption.ClientOption) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	opts = append([]goption.ClientOption{goption.WithScopes(gsheet.SpreadsheetsScope)}, opts...)
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created successfully", "spreadsheet_id", spreadsheetID)
	return &Client{svc: svc, spreadsheetID: spreadsheetID}, nil
}

// CredentialsOption resolves service account credentials from inline JSON or a
// file, falling back to GOOGLE_APPLICATION_CREDENTIALS.
func CredentialsOption(ctx context.Context, serviceAccountJSON, serviceAccountFile string) (goption.ClientOption, error) {
	serviceAccountJSON = strings.TrimSpace(serviceAccountJSON)
	serviceAccountFile = strings.TrimSpace(serviceAccountFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		return goption.WithCredentialsJSON([]byte(serviceAccountJSON)), nil
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		credentialsJSON, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return goption.WithCredentialsJSON(credentialsJSON), nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// WriteReport adds the sheet when missing, clears it and writes rows from A1.
func (c *Client) WriteReport(ctx context.Context, title string, rows [][]any) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	name := sheetTitle(title)
	if name == "" {
		return "", errors.New("report title is required")
	}

	if err := c.ensureSheet(ctx, name); err != nil {
		return "", err
	}

	rng := quoteRange(name, "A:Z")
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear %s: %w", rng, err)
	}

	start := quoteRange(name, "A1")
	resp, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, start, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to update %s: %w", start, err)
	}

	ref := resp.UpdatedRange
	if ref == "" {
		ref = start
	}
	slog.InfoContext(ctx, "Report written to Google Sheets", "sheet", name, "range", ref, "rows", len(rows))
	return ref, nil
}

func (c *Client) ensureSheet(ctx context.Context, name string) error {
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: name}},
		}},
	}
	_, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do()
	if err != nil && !strings.Contains(strings.ToLower(err.Error()), "already exists") {
		return fmt.Errorf("add sheet %q: %w", name, err)
	}
	return nil
}

// sheetTitle trims title to what Sheets accepts as a tab name.
func sheetTitle(title string) string {
	title = strings.TrimSpace(title)
	if r := []rune(title); len(r) > 100 {
		title = string(r[:100])
	}
	return title
}

// quoteRange builds an A1 range, quoting the sheet name as Sheets expects.
func quoteRange(sheet, cells string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(sheet, "'", "''"), cells)
}
