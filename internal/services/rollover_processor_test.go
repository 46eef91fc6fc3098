package services

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"dompet/internal/core"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRolloverStore struct {
	mu       sync.Mutex
	budgets  []core.PeriodicBudget
	lines    map[uuid.UUID][]core.BudgetLine
	failOn   int // fail the n-th create (1-based), 0 never
	creates  int
	failWith error
	onCreate func()
}

func newFakeRolloverStore() *fakeRolloverStore {
	return &fakeRolloverStore{lines: map[uuid.UUID][]core.BudgetLine{}}
}

func (s *fakeRolloverStore) LatestBudget(_ context.Context) (core.PeriodicBudget, []core.BudgetLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.budgets) == 0 {
		return core.PeriodicBudget{}, nil, core.ErrNotFound
	}
	latest := s.budgets[0]
	for _, b := range s.budgets[1:] {
		if b.EndDate.After(latest.EndDate) {
			latest = b
		}
	}
	return latest, append([]core.BudgetLine(nil), s.lines[latest.ID]...), nil
}

func (s *fakeRolloverStore) CreateBudgetWindow(_ context.Context, b core.PeriodicBudget, lines []core.BudgetLine) error {
	if s.onCreate != nil {
		s.onCreate()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates++
	if s.failOn > 0 && s.creates == s.failOn {
		return s.failWith
	}
	for _, existing := range s.budgets {
		if existing.StartDate.Equal(b.StartDate) {
			return core.ErrWindowExists
		}
	}
	s.budgets = append(s.budgets, b)
	s.lines[b.ID] = append([]core.BudgetLine(nil), lines...)
	return nil
}

func (s *fakeRolloverStore) sorted() []core.PeriodicBudget {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]core.PeriodicBudget(nil), s.budgets...)
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	starts []time.Time
	err    error
}

func (p *recordingPublisher) PublishWindowCreated(_ context.Context, b core.PeriodicBudget, _ int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.starts = append(p.starts, b.StartDate)
	return p.err
}

func rp(n int64) core.Money {
	return core.NewMoney(decimal.NewFromInt(n), core.IDR)
}

// seedWindow stores the window of kind containing at, with two used lines.
func seedWindow(t *testing.T, s *fakeRolloverStore, kind core.PeriodKind, at time.Time) (core.PeriodicBudget, []core.BudgetLine) {
	t.Helper()
	w, err := kind.WindowAt(at)
	require.NoError(t, err)
	b := core.PeriodicBudget{ID: uuid.New(), Kind: kind, StartDate: w.Start, EndDate: w.End}
	lines := []core.BudgetLine{
		{ID: uuid.New(), PeriodicBudgetID: b.ID, CategoryID: uuid.New(), Limit: rp(1000000), Used: rp(250000), Order: 0},
		{ID: uuid.New(), PeriodicBudgetID: b.ID, CategoryID: uuid.New(), Limit: rp(3000000), Used: rp(3000000), Order: 1},
	}
	s.budgets = append(s.budgets, b)
	s.lines[b.ID] = lines
	return b, lines
}

func TestRollover_MonthlyCatchUp(t *testing.T) {
	ctx := context.Background()
	store := newFakeRolloverStore()
	jan, janLines := seedWindow(t, store, core.Monthly, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	pub := &recordingPublisher{}
	p := NewRolloverProcessor(store, 0).WithPublisher(pub)

	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	res, err := p.Run(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, Completed, res.Status)
	require.Len(t, res.Created, 2)

	all := store.sorted()
	require.Len(t, all, 3)
	assert.Equal(t, jan.ID, all[0].ID)
	assert.True(t, all[1].StartDate.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, all[1].EndDate.Equal(time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC)))
	assert.True(t, all[2].StartDate.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, all[2].EndDate.Equal(time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC)))
	assert.True(t, all[2].Window().Contains(now))

	for _, b := range all[1:] {
		lines := store.lines[b.ID]
		require.Len(t, lines, len(janLines))
		for i, l := range lines {
			assert.Equal(t, b.ID, l.PeriodicBudgetID)
			assert.Equal(t, janLines[i].CategoryID, l.CategoryID)
			assert.Equal(t, janLines[i].Order, l.Order)
			assert.True(t, l.Limit.Equal(janLines[i].Limit), "limit preserved")
			assert.True(t, l.Used.IsZero(), "usage reset")
		}
	}

	assert.Len(t, pub.starts, 2)
}

func TestRollover_SecondRunIsNoop(t *testing.T) {
	ctx := context.Background()
	store := newFakeRolloverStore()
	seedWindow(t, store, core.Weekly, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC))
	p := NewRolloverProcessor(store, 10)
	now := time.Date(2024, 3, 27, 0, 0, 0, 0, time.UTC)

	first, err := p.Run(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, Completed, first.Status)
	assert.Len(t, first.Created, 3)

	second, err := p.Run(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, NothingToDo, second.Status)
	assert.Empty(t, second.Created)
	assert.Len(t, store.sorted(), 4)
}

func TestRollover_NoBudget(t *testing.T) {
	res, err := NewRolloverProcessor(newFakeRolloverStore(), 0).Run(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, NothingToDo, res.Status)
}

func TestRollover_CurrentWindowIsNoop(t *testing.T) {
	store := newFakeRolloverStore()
	now := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	seedWindow(t, store, core.Monthly, now)

	res, err := NewRolloverProcessor(store, 0).Run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, NothingToDo, res.Status)
	assert.Len(t, store.sorted(), 1)
}

func TestRollover_CapResumesNextRun(t *testing.T) {
	ctx := context.Background()
	store := newFakeRolloverStore()
	seedWindow(t, store, core.Daily, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	p := NewRolloverProcessor(store, 5)
	now := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)

	res, err := p.Run(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, Partial, res.Status)
	assert.Len(t, res.Created, 5)

	res, err = p.Run(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, Completed, res.Status)
	assert.Len(t, res.Created, 3)

	all := store.sorted()
	require.Len(t, all, 9)
	for i := 1; i < len(all); i++ {
		assert.True(t, all[i].StartDate.Equal(all[i-1].EndDate.Add(time.Second)), "windows must be contiguous")
	}
}

func TestRollover_PersistenceFailure(t *testing.T) {
	ctx := context.Background()
	store := newFakeRolloverStore()
	seedWindow(t, store, core.Monthly, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	diskFull := errors.New("disk full")
	store.failOn = 2
	store.failWith = diskFull
	p := NewRolloverProcessor(store, 0)
	now := time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)

	res, err := p.Run(ctx, now)
	require.Error(t, err)
	assert.ErrorIs(t, err, diskFull)
	assert.Equal(t, Partial, res.Status)
	require.Len(t, res.Created, 1)
	assert.Len(t, store.sorted(), 2, "committed windows stay committed")

	res, err = p.Run(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, Completed, res.Status)
	assert.Len(t, res.Created, 2)
	assert.Len(t, store.sorted(), 4)
}

func TestRollover_FailureBeforeAnyWindow(t *testing.T) {
	store := newFakeRolloverStore()
	seedWindow(t, store, core.Monthly, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	store.failOn = 1
	store.failWith = errors.New("locked")

	res, err := NewRolloverProcessor(store, 0).Run(context.Background(), time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.Equal(t, Failed, res.Status)
	assert.Empty(t, res.Created)
}

func TestRollover_WindowCreatedElsewhere(t *testing.T) {
	store := newFakeRolloverStore()
	seedWindow(t, store, core.Monthly, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	store.failOn = 1
	store.failWith = core.ErrWindowExists

	_, err := NewRolloverProcessor(store, 0).Run(context.Background(), time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, core.ErrWindowExists)
}

func TestRollover_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := newFakeRolloverStore()
	seedWindow(t, store, core.Daily, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	store.onCreate = func() {
		if store.creates == 1 {
			cancel()
		}
	}

	res, err := NewRolloverProcessor(store, 0).Run(ctx, time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Partial, res.Status)
	assert.Len(t, res.Created, 2)
}

func TestRollover_UnknownKind(t *testing.T) {
	store := newFakeRolloverStore()
	store.budgets = []core.PeriodicBudget{{
		ID:        uuid.New(),
		Kind:      core.PeriodKind("fortnightly"),
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 14, 23, 59, 59, 0, time.UTC),
	}}

	res, err := NewRolloverProcessor(store, 0).Run(context.Background(), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, core.ErrUnknownPeriodKind)
	assert.Equal(t, Failed, res.Status)
	assert.Len(t, store.sorted(), 1)
}

func TestRollover_PublishFailureIsIgnored(t *testing.T) {
	store := newFakeRolloverStore()
	seedWindow(t, store, core.Monthly, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	pub := &recordingPublisher{err: errors.New("broker down")}

	res, err := NewRolloverProcessor(store, 0).WithPublisher(pub).Run(context.Background(), time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, Completed, res.Status)
	assert.Len(t, pub.starts, 1)
}

func TestRollover_ConcurrentRunsDoNotDuplicate(t *testing.T) {
	store := newFakeRolloverStore()
	seedWindow(t, store, core.Weekly, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	p := NewRolloverProcessor(store, 0)
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = p.Run(context.Background(), now)
		}()
	}
	wg.Wait()

	// Weeks starting 2024-01-08 through 2024-02-26.
	all := store.sorted()
	assert.Len(t, all, 9)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].StartDate.Equal(all[i-1].StartDate), "duplicate window")
	}
}

func TestPlanRollover(t *testing.T) {
	wib := time.FixedZone("WIB", 7*60*60)

	tests := []struct {
		name       string
		kind       core.PeriodKind
		latestAt   time.Time
		now        time.Time
		max        int
		wantStarts []time.Time
		truncated  bool
	}{
		{
			name:     "monthly over a leap february",
			kind:     core.Monthly,
			latestAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			now:      time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			wantStarts: []time.Time{
				time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
				time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			},
		},
		{
			name:     "weekly across a year boundary starts on mondays",
			kind:     core.Weekly,
			latestAt: time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC),
			now:      time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC),
			wantStarts: []time.Time{
				time.Date(2024, 12, 23, 0, 0, 0, 0, time.UTC),
				time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC),
				time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
			},
		},
		{
			name:     "daily in a fixed zone",
			kind:     core.Daily,
			latestAt: time.Date(2024, 3, 1, 8, 0, 0, 0, wib),
			now:      time.Date(2024, 3, 2, 18, 0, 0, 0, time.UTC), // 3 March 01:00 WIB
			wantStarts: []time.Time{
				time.Date(2024, 3, 2, 0, 0, 0, 0, wib),
				time.Date(2024, 3, 3, 0, 0, 0, 0, wib),
			},
		},
		{
			name:     "capped",
			kind:     core.Daily,
			latestAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			now:      time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
			max:      2,
			wantStarts: []time.Time{
				time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
				time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC),
			},
			truncated: true,
		},
		{
			name:     "not yet over",
			kind:     core.Monthly,
			latestAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			now:      time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := tt.kind.WindowAt(tt.latestAt)
			require.NoError(t, err)
			latest := core.PeriodicBudget{ID: uuid.New(), Kind: tt.kind, StartDate: w.Start, EndDate: w.End}

			plan, err := PlanRollover(latest, nil, tt.now, tt.max)
			require.NoError(t, err)
			assert.Equal(t, tt.truncated, plan.Truncated)
			require.Len(t, plan.Windows, len(tt.wantStarts))
			for i, want := range tt.wantStarts {
				got := plan.Windows[i].Budget
				assert.True(t, got.StartDate.Equal(want), "window %d starts %v, want %v", i, got.StartDate, want)
				assert.Equal(t, tt.kind, got.Kind)
			}
		})
	}
}

func TestRollover_DailyAcrossMidnightClockChange(t *testing.T) {
	// Clocks in Santiago jumped from 00:00 to 01:00 on 2024-09-08.
	santiago, err := time.LoadLocation("America/Santiago")
	require.NoError(t, err)
	store := newFakeRolloverStore()
	seedWindow(t, store, core.Daily, time.Date(2024, 9, 6, 12, 0, 0, 0, santiago))
	p := NewRolloverProcessor(store, 0)
	now := time.Date(2024, 9, 10, 0, 30, 0, 0, santiago)

	res, err := p.Run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, Completed, res.Status)
	require.Len(t, res.Created, 4)

	all := store.sorted()
	require.Len(t, all, 5)
	for i := 1; i < len(all); i++ {
		assert.True(t, all[i].StartDate.Equal(all[i-1].EndDate.Add(time.Second)), "window %d must follow the previous one", i)
		_, _, day := all[i].StartDate.In(santiago).Date()
		assert.Equal(t, 6+i, day)
	}
	assert.True(t, all[2].StartDate.Equal(time.Date(2024, 9, 8, 4, 0, 0, 0, time.UTC)))
	assert.True(t, all[4].Window().Contains(now))

	again, err := p.Run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, NothingToDo, again.Status)
}

func TestPlanRollover_ZoneChangedAfterLatest(t *testing.T) {
	jakarta, err := time.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)
	newYork, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	w, err := core.Monthly.WindowAt(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	tests := []struct {
		name       string
		loc        *time.Location
		wantSecond time.Time
	}{
		{"ahead of utc", jakarta, time.Date(2024, 3, 1, 0, 0, 0, 0, jakarta)},
		{"behind utc", newYork, time.Date(2024, 2, 1, 0, 0, 0, 0, newYork)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Stored times are read back in the configured zone.
			latest := core.PeriodicBudget{ID: uuid.New(), Kind: core.Monthly, StartDate: w.Start.In(tt.loc), EndDate: w.End.In(tt.loc)}

			plan, err := PlanRollover(latest, nil, time.Date(2024, 3, 15, 0, 0, 0, 0, tt.loc), 0)
			require.NoError(t, err)
			require.GreaterOrEqual(t, len(plan.Windows), 2)

			first := plan.Windows[0].Budget
			assert.True(t, first.StartDate.Equal(latest.EndDate.Add(time.Second)), "first window starts right after latest")
			assert.True(t, first.EndDate.After(first.StartDate))
			assert.True(t, plan.Windows[1].Budget.StartDate.Equal(tt.wantSecond))
			last := plan.Windows[len(plan.Windows)-1].Budget
			assert.True(t, last.Window().Contains(time.Date(2024, 3, 15, 0, 0, 0, 0, tt.loc)))
		})
	}
}

func TestRollover_LogsWindowFields(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	store := newFakeRolloverStore()
	seedWindow(t, store, core.Monthly, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	res, err := NewRolloverProcessor(store, 0).Run(context.Background(), time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, res.Created, 1)

	out := buf.String()
	assert.Contains(t, out, "period_kind=monthly")
	assert.Contains(t, out, "budget_id="+res.Created[0].ID.String())
	assert.Contains(t, out, "window_start=2024-02-01T00:00:00Z")
	assert.Contains(t, out, "window_end=2024-02-29T23:59:59Z")
}
