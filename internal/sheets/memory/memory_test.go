package memory

import (
	"context"
	"testing"
)

func TestMemoryStoreWriteReport(t *testing.T) {
	s := New()
	rows := [][]any{{"Group", "Total"}, {"Food", "Rp 1.000"}}

	ref, err := s.WriteReport(context.Background(), " March ", rows)
	if err != nil || ref != "mem:March" {
		t.Fatalf("unexpected write: ref=%q err=%v", ref, err)
	}
	rows[1][0] = "changed"

	got, ok := s.Report("March")
	if !ok || len(got) != 2 || got[1][0] != "Food" {
		t.Fatalf("unexpected report: %v", got)
	}

	if _, err := s.WriteReport(context.Background(), "March", rows[:1]); err != nil {
		t.Fatal(err)
	}
	got, _ = s.Report("March")
	if len(got) != 1 {
		t.Fatalf("expected report to be replaced, got %v", got)
	}
	if titles := s.Titles(); len(titles) != 1 {
		t.Fatalf("unexpected titles: %v", titles)
	}
}

func TestMemoryStoreRequiresTitle(t *testing.T) {
	if _, err := New().WriteReport(context.Background(), "  ", nil); err == nil {
		t.Fatal("expected error for empty title")
	}
}
