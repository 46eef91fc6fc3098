package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	ports "dompet/internal/sheets"
)

var _ ports.ReportWriter = (*Store)(nil)

// Store keeps exported reports in memory, for tests and dry runs.
type Store struct {
	mu      sync.Mutex
	titles  []string
	reports map[string][][]any
}

func New() *Store {
	return &Store{reports: map[string][][]any{}}
}

// WriteReport stores a copy of rows under title and returns a synthetic reference.
func (s *Store) WriteReport(_ context.Context, title string, rows [][]any) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", errors.New("report title is required")
	}
	cp := make([][]any, len(rows))
	for i, r := range rows {
		cp[i] = append([]any(nil), r...)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reports[title]; !ok {
		s.titles = append(s.titles, title)
	}
	s.reports[title] = cp
	return fmt.Sprintf("mem:%s", title), nil
}

// Report returns the rows last written under title.
func (s *Store) Report(title string) ([][]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.reports[title]
	return rows, ok
}

// Titles lists report titles in first-written order.
func (s *Store) Titles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.titles...)
}
