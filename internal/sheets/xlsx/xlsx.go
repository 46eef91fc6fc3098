// Package xlsx exports reports as local Excel workbooks.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	ports "dompet/internal/sheets"

	"github.com/xuri/excelize/v2"
)

var _ ports.ReportWriter = (*Writer)(nil)

const defaultSheet = "Sheet1"

// Writer saves each report as <dir>/<title>.xlsx.
type Writer struct {
	dir string
}

func New(dir string) *Writer {
	return &Writer{dir: dir}
}

// WriteReport writes rows into a fresh workbook and returns its path.
func (w *Writer) WriteReport(ctx context.Context, title string, rows [][]any) (string, error) {
	name := sheetName(title)
	if name == "" {
		return "", errors.New("report title is required")
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(name)
	if err != nil {
		return "", fmt.Errorf("new sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if name != defaultSheet {
		if err := f.DeleteSheet(defaultSheet); err != nil {
			return "", fmt.Errorf("drop default sheet: %w", err)
		}
	}

	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return "", err
			}
			if err := f.SetCellValue(name, cell, v); err != nil {
				return "", fmt.Errorf("set %s: %w", cell, err)
			}
		}
	}

	path := filepath.Join(w.dir, fileName(title)+".xlsx")
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	slog.InfoContext(ctx, "Report written to workbook", "path", path, "rows", len(rows))
	return path, nil
}

const forbidden = `:\/?*[]`

// sheetName fits title to Excel's sheet name rules: at most 31 characters and
// none of : \ / ? * [ ].
func sheetName(title string) string {
	title = replaceRunes(strings.TrimSpace(title), forbidden, '-')
	if r := []rune(title); len(r) > 31 {
		title = string(r[:31])
	}
	return strings.TrimSpace(title)
}

// fileName keeps the whole title, so long titles still get distinct files.
func fileName(title string) string {
	return replaceRunes(strings.TrimSpace(title), forbidden+" ", '_')
}

func replaceRunes(s, set string, with rune) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(set, r) {
			return with
		}
		return r
	}, s)
}
