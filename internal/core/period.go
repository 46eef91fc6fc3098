package core

import (
	"fmt"
	"time"
)

// PeriodKind is the length of a budget window.
type PeriodKind string

const (
	Daily   PeriodKind = "daily"
	Weekly  PeriodKind = "weekly"
	Monthly PeriodKind = "monthly"
)

// Window is an inclusive time span [Start, End]. End is the last whole second of the span.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Validate rejects windows that end before they start.
func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.Before(w.Start) {
		return ErrInvalidWindow
	}
	return nil
}

// PeriodStrategy aligns instants to the windows of one period kind.
// Every computation happens in the location of the time passed in.
type PeriodStrategy interface {
	// Start returns the first instant of the window containing t.
	Start(t time.Time) time.Time
	// Next returns the first instant of the window after the one starting at start.
	Next(start time.Time) time.Time
}

// DailyStrategy aligns to local days, 00:00:00 to 23:59:59.
type DailyStrategy struct{}

func (DailyStrategy) Start(t time.Time) time.Time {
	y, m, d := t.Date()
	return startOfDay(y, m, d, t.Location())
}

func (DailyStrategy) Next(start time.Time) time.Time {
	y, m, d := start.Date()
	return startOfDay(y, m, d+1, start.Location())
}

// WeeklyStrategy aligns to ISO-8601 weeks: Monday 00:00:00 to Sunday 23:59:59,
// regardless of the host locale.
type WeeklyStrategy struct{}

func (WeeklyStrategy) Start(t time.Time) time.Time {
	y, m, d := t.Date()
	offset := (int(t.Weekday()) + 6) % 7
	return startOfDay(y, m, d-offset, t.Location())
}

func (WeeklyStrategy) Next(start time.Time) time.Time {
	y, m, d := start.Date()
	return startOfDay(y, m, d+7, start.Location())
}

// MonthlyStrategy aligns to calendar months.
type MonthlyStrategy struct{}

func (MonthlyStrategy) Start(t time.Time) time.Time {
	y, m, _ := t.Date()
	return startOfDay(y, m, 1, t.Location())
}

func (MonthlyStrategy) Next(start time.Time) time.Time {
	y, m, _ := start.Date()
	return startOfDay(y, m+1, 1, start.Location())
}

// startOfDay returns the first instant of the civil date (y, m, d) in loc.
// Where clocks jump forward at midnight, 00:00 does not exist and time.Date may
// land in the previous day; the day then starts when the new offset begins.
func startOfDay(y int, m time.Month, d int, loc *time.Location) time.Time {
	y, m, d = time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Date()
	t := time.Date(y, m, d, 0, 0, 0, 0, loc)
	if ty, tm, td := t.Date(); ty == y && tm == m && td == d {
		return t
	}
	if _, end := t.ZoneBounds(); !end.IsZero() && end.After(t) {
		return end
	}
	return t
}

var periodStrategies = map[PeriodKind]PeriodStrategy{
	Daily:   DailyStrategy{},
	Weekly:  WeeklyStrategy{},
	Monthly: MonthlyStrategy{},
}

// StrategyFor returns the alignment strategy of a period kind.
func StrategyFor(kind PeriodKind) (PeriodStrategy, error) {
	s, ok := periodStrategies[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPeriodKind, kind)
	}
	return s, nil
}

// Validate rejects kinds without a strategy.
func (k PeriodKind) Validate() error {
	_, err := StrategyFor(k)
	return err
}

// WindowAt returns the window of this kind that contains t.
func (k PeriodKind) WindowAt(t time.Time) (Window, error) {
	s, err := StrategyFor(k)
	if err != nil {
		return Window{}, err
	}
	start := s.Start(t)
	return Window{Start: start, End: s.Next(start).Add(-time.Second)}, nil
}

// WindowAfter returns the window that follows w.
func (k PeriodKind) WindowAfter(w Window) (Window, error) {
	return k.WindowAt(w.End.Add(time.Second))
}

// ElapsedDays counts the days of w that have passed at now.
//
// For a window containing now it is the number of calendar days from the start to now,
// today included. For a window entirely in the past it is the window's full length.
// For a window that has not started it is zero.
func ElapsedDays(w Window, now time.Time) int {
	now = now.In(w.Start.Location())
	switch {
	case now.Before(w.Start):
		return 0
	case now.After(w.End):
		return civilDaysBetween(w.Start, w.End) + 1
	default:
		return civilDaysBetween(w.Start, now) + 1
	}
}

func civilDaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	from := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	to := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours() / 24)
}
