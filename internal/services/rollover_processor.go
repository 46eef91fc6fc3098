package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"dompet/internal/core"
	"dompet/internal/log"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"
	"golang.org/x/sync/singleflight"
)

// DefaultMaxWindowsPerRun bounds how many missed windows a single pass creates.
const DefaultMaxWindowsPerRun = 400

// RolloverStatus summarises the outcome of one rollover pass.
type RolloverStatus string

const (
	NothingToDo RolloverStatus = "nothing_to_do"
	Completed   RolloverStatus = "completed"
	Partial     RolloverStatus = "partial"
	Failed      RolloverStatus = "failed"
)

type RolloverResult struct {
	Status  RolloverStatus
	Created []core.PeriodicBudget
}

// RolloverStore is the persistence the rollover needs.
type RolloverStore interface {
	// LatestBudget returns the window with the greatest end date and its lines,
	// or core.ErrNotFound when no budget exists.
	LatestBudget(ctx context.Context) (core.PeriodicBudget, []core.BudgetLine, error)
	// CreateBudgetWindow stores a window and its lines as one unit.
	CreateBudgetWindow(ctx context.Context, b core.PeriodicBudget, lines []core.BudgetLine) error
}

// WindowPublisher announces newly created windows.
type WindowPublisher interface {
	PublishWindowCreated(ctx context.Context, b core.PeriodicBudget, lineCount int) error
}

// PlannedWindow is a window the rollover would create.
type PlannedWindow struct {
	Budget core.PeriodicBudget
	Lines  []core.BudgetLine
}

// RolloverPlan lists the windows missing between the latest window and now.
// Truncated is set when the cap cut the list short.
type RolloverPlan struct {
	Windows   []PlannedWindow
	Truncated bool
}

var rruleFrequency = map[core.PeriodKind]rrule.Frequency{
	core.Daily:   rrule.DAILY,
	core.Weekly:  rrule.WEEKLY,
	core.Monthly: rrule.MONTHLY,
}

// PlanRollover computes the windows that follow latest up to and including the
// one containing now, at most maxWindows of them. Each planned window carries
// the lines of latest with nothing used.
func PlanRollover(latest core.PeriodicBudget, lines []core.BudgetLine, now time.Time, maxWindows int) (RolloverPlan, error) {
	if maxWindows <= 0 {
		maxWindows = DefaultMaxWindowsPerRun
	}
	if !latest.EndDate.Before(now) {
		return RolloverPlan{}, nil
	}
	freq, ok := rruleFrequency[latest.Kind]
	if !ok {
		return RolloverPlan{}, fmt.Errorf("%w: %q", core.ErrUnknownPeriodKind, latest.Kind)
	}
	first, err := latest.Kind.WindowAfter(latest.Window())
	if err != nil {
		return RolloverPlan{}, err
	}
	// Aligned in another zone than latest (TIMEZONE changed), the next window
	// may overlap it. It then starts right after latest and keeps its aligned end.
	if !first.Start.After(latest.EndDate) {
		first.Start = latest.EndDate.Add(time.Second)
	}
	if first.Start.After(now) {
		return RolloverPlan{}, nil
	}

	var plan RolloverPlan
	prev := latest.Window()
	carried := lines
	add := func(w core.Window) error {
		if !w.Start.After(prev.End) {
			return fmt.Errorf("%w: window %s does not follow %s",
				core.ErrNoProgress, w.Start.Format(time.RFC3339), prev.End.Format(time.RFC3339))
		}
		b := core.PeriodicBudget{ID: uuid.New(), Kind: latest.Kind, StartDate: w.Start, EndDate: w.End}
		nextLines := make([]core.BudgetLine, len(carried))
		for i, l := range carried {
			nextLines[i] = l.CarryForward(b.ID)
		}
		plan.Windows = append(plan.Windows, PlannedWindow{Budget: b, Lines: nextLines})
		prev = w
		carried = nextLines
		return nil
	}
	if err := add(first); err != nil {
		return RolloverPlan{}, err
	}

	second, err := latest.Kind.WindowAfter(first)
	if err != nil {
		return RolloverPlan{}, err
	}
	if second.Start.After(now) {
		return plan, nil
	}
	current, err := latest.Kind.WindowAt(now.In(second.Start.Location()))
	if err != nil {
		return RolloverPlan{}, err
	}

	// Occurrences may sit at 01:00 after a midnight clock change, so the rule
	// runs to the end of the current window rather than to now.
	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:    freq,
		Dtstart: second.Start,
		Until:   current.End,
		Wkst:    rrule.MO,
	})
	if err != nil {
		return RolloverPlan{}, fmt.Errorf("build recurrence: %w", err)
	}

	next := rule.Iterator()
	for start, ok := next(); ok; start, ok = next() {
		if len(plan.Windows) == maxWindows {
			plan.Truncated = true
			break
		}
		w, err := latest.Kind.WindowAt(start)
		if err != nil {
			return RolloverPlan{}, err
		}
		if err := add(w); err != nil {
			return RolloverPlan{}, err
		}
	}
	return plan, nil
}

// RolloverProcessor keeps the budget windows contiguous up to the present.
type RolloverProcessor struct {
	store      RolloverStore
	publisher  WindowPublisher
	maxWindows int
	group      singleflight.Group
}

func NewRolloverProcessor(store RolloverStore, maxWindows int) *RolloverProcessor {
	if maxWindows <= 0 {
		maxWindows = DefaultMaxWindowsPerRun
	}
	return &RolloverProcessor{store: store, maxWindows: maxWindows}
}

// WithPublisher sets where window-created events go. Publishing is best effort.
func (p *RolloverProcessor) WithPublisher(pub WindowPublisher) *RolloverProcessor {
	p.publisher = pub
	return p
}

// Run creates every window missing between the latest stored one and now.
// Concurrent callers share a single in-flight pass and its result.
func (p *RolloverProcessor) Run(ctx context.Context, now time.Time) (RolloverResult, error) {
	v, err, shared := p.group.Do("rollover", func() (any, error) {
		return p.run(ctx, now)
	})
	if shared {
		slog.DebugContext(ctx, "Joined in-flight rollover")
	}
	res, _ := v.(RolloverResult)
	return res, err
}

func (p *RolloverProcessor) run(ctx context.Context, now time.Time) (RolloverResult, error) {
	if p.store == nil {
		return RolloverResult{Status: Failed}, fmt.Errorf("rollover processor not properly initialized")
	}

	latest, lines, err := p.store.LatestBudget(ctx)
	if errors.Is(err, core.ErrNotFound) {
		slog.InfoContext(ctx, "No budget to roll over")
		return RolloverResult{Status: NothingToDo}, nil
	}
	if err != nil {
		return RolloverResult{Status: Failed}, fmt.Errorf("load latest budget: %w", err)
	}

	plan, err := PlanRollover(latest, lines, now, p.maxWindows)
	if err != nil {
		slog.ErrorContext(ctx, "Cannot plan rollover",
			log.FieldPeriodKind, latest.Kind,
			"latest_end", latest.EndDate.Format(time.RFC3339),
			"error", err)
		return RolloverResult{Status: Failed}, err
	}
	if len(plan.Windows) == 0 {
		return RolloverResult{Status: NothingToDo}, nil
	}

	slog.InfoContext(ctx, "Rolling over budget",
		log.FieldPeriodKind, latest.Kind,
		"latest_end", latest.EndDate.Format(time.RFC3339),
		"missing_windows", len(plan.Windows),
		"truncated", plan.Truncated)

	var res RolloverResult
	for _, w := range plan.Windows {
		if err := ctx.Err(); err != nil {
			return p.stopped(ctx, res, err)
		}
		if err := p.store.CreateBudgetWindow(ctx, w.Budget, w.Lines); err != nil {
			if errors.Is(err, core.ErrWindowExists) {
				slog.WarnContext(ctx, "Window created by another writer, next pass resumes",
					log.FieldWindowStart, w.Budget.StartDate.Format(time.RFC3339))
			}
			return p.stopped(ctx, res, fmt.Errorf("persist window starting %s: %w",
				w.Budget.StartDate.Format(time.RFC3339), err))
		}
		res.Created = append(res.Created, w.Budget)

		slog.InfoContext(ctx, "Created budget window",
			log.FieldBudgetID, w.Budget.ID,
			log.FieldWindowStart, w.Budget.StartDate.Format(time.RFC3339),
			log.FieldWindowEnd, w.Budget.EndDate.Format(time.RFC3339),
			"lines", len(w.Lines))
		p.publish(ctx, w)
	}

	res.Status = Completed
	if plan.Truncated {
		res.Status = Partial
		slog.WarnContext(ctx, "Rollover capped, remaining windows follow on the next pass",
			"created", len(res.Created),
			"max_windows", p.maxWindows)
	}
	return res, nil
}

func (p *RolloverProcessor) stopped(ctx context.Context, res RolloverResult, err error) (RolloverResult, error) {
	res.Status = Failed
	if len(res.Created) > 0 {
		res.Status = Partial
	}
	slog.ErrorContext(ctx, "Rollover stopped",
		"created", len(res.Created),
		"status", res.Status,
		"error", err)
	return res, err
}

func (p *RolloverProcessor) publish(ctx context.Context, w PlannedWindow) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.PublishWindowCreated(ctx, w.Budget, len(w.Lines)); err != nil {
		slog.WarnContext(ctx, "Failed to publish window event",
			log.FieldBudgetID, w.Budget.ID,
			"error", err)
	}
}
