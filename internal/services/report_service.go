package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dompet/internal/core"
	"dompet/internal/report"
	"dompet/internal/sheets"
	"dompet/internal/storage"

	"github.com/google/uuid"
)

// GroupBy selects how a report partitions transactions.
type GroupBy string

const (
	GroupByCategory      GroupBy = "category"
	GroupByPaymentMethod GroupBy = "payment-method"
	GroupByDay           GroupBy = "day"
	GroupByWeek          GroupBy = "week"
	GroupByMonth         GroupBy = "month"
)

var bucketKinds = map[GroupBy]core.PeriodKind{
	GroupByDay:   core.Daily,
	GroupByWeek:  core.Weekly,
	GroupByMonth: core.Monthly,
}

// ReportService renders stored transactions into report rows and hands them to
// a ReportWriter.
type ReportService struct {
	storage *storage.SQLiteRepository
}

func NewReportService(storage *storage.SQLiteRepository) *ReportService {
	return &ReportService{storage: storage}
}

// Rows builds the report of w grouped by by, with a header and a totals row.
func (s *ReportService) Rows(ctx context.Context, by GroupBy, w core.Window, now time.Time) ([][]any, error) {
	txs, err := s.storage.ListTransactionsBetween(ctx, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	switch by {
	case GroupByCategory:
		groups, err := report.ByCategory(txs)
		if err != nil {
			return nil, err
		}
		sum, err := report.Summarize(groups, w, now, report.CompareIDs)
		if err != nil {
			return nil, err
		}
		return report.Rows(sum, s.categoryName(ctx)), nil

	case GroupByPaymentMethod:
		groups, err := report.ByPaymentMethod(txs)
		if err != nil {
			return nil, err
		}
		sum, err := report.Summarize(groups, w, now, report.CompareIDs)
		if err != nil {
			return nil, err
		}
		names, err := s.methodNames(ctx)
		if err != nil {
			return nil, err
		}
		return report.Rows(sum, func(id uuid.UUID) string { return names[id] }), nil
	}

	kind, ok := bucketKinds[by]
	if !ok {
		return nil, fmt.Errorf("unknown report grouping %q", by)
	}
	groups, err := report.ByBucket(txs, kind, s.storage.Location())
	if err != nil {
		return nil, err
	}
	sum, err := report.Summarize(groups, w, now, report.CompareTimes)
	if err != nil {
		return nil, err
	}
	return report.Rows(sum, func(t time.Time) string { return t.Format("2006-01-02") }), nil
}

// Export writes the report of w to out under a title naming the grouping and window.
func (s *ReportService) Export(ctx context.Context, out sheets.ReportWriter, by GroupBy, w core.Window, now time.Time) (string, error) {
	rows, err := s.Rows(ctx, by, w, now)
	if err != nil {
		return "", err
	}
	ref, err := out.WriteReport(ctx, ReportTitle(by, w), rows)
	if err != nil {
		return "", fmt.Errorf("export report: %w", err)
	}
	slog.InfoContext(ctx, "Report exported", "group_by", by, "ref", ref, "rows", len(rows))
	return ref, nil
}

// ReportTitle names a report, e.g. "category 2024-03-01 - 2024-03-31".
func ReportTitle(by GroupBy, w core.Window) string {
	return fmt.Sprintf("%s %s - %s", by, w.Start.Format("2006-01-02"), w.End.Format("2006-01-02"))
}

func (s *ReportService) categoryName(ctx context.Context) func(uuid.UUID) string {
	return func(id uuid.UUID) string {
		if id == report.TransfersKey {
			return "Transfers"
		}
		c, err := s.storage.CachedCategory(ctx, id)
		if err != nil {
			return id.String()
		}
		return c.Name
	}
}

func (s *ReportService) methodNames(ctx context.Context) (map[uuid.UUID]string, error) {
	methods, err := s.storage.ListPaymentMethods(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[uuid.UUID]string, len(methods))
	for _, p := range methods {
		names[p.ID] = p.Name
	}
	return names, nil
}
