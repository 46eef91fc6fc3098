// Package report groups and sums already fetched transactions. Nothing here
// touches storage.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"time"

	"dompet/internal/core"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrMixedCurrency is returned when one report would add up different currencies.
var ErrMixedCurrency = errors.New("report mixes currencies")

// TransfersKey is the category group that collects top-up legs, which have no
// category of their own.
var TransfersKey = uuid.Nil

// Group is the transactions sharing one key and their total.
type Group[K comparable] struct {
	Key          K
	Total        core.Money
	Transactions []core.Transaction
}

type grouper[K comparable] struct {
	groups   map[K]*Group[K]
	currency string
}

func newGrouper[K comparable]() *grouper[K] {
	return &grouper[K]{groups: map[K]*Group[K]{}}
}

func (g *grouper[K]) add(key K, t core.Transaction) error {
	if g.currency == "" {
		g.currency = t.Amount.Currency.Code
	} else if t.Amount.Currency.Code != g.currency {
		return fmt.Errorf("%w: %s and %s", ErrMixedCurrency, g.currency, t.Amount.Currency.Code)
	}
	grp, ok := g.groups[key]
	if !ok {
		grp = &Group[K]{Key: key, Total: core.Zero(t.Amount.Currency)}
		g.groups[key] = grp
	}
	total, err := grp.Total.Add(t.Amount)
	if err != nil {
		return err
	}
	grp.Total = total
	grp.Transactions = append(grp.Transactions, t)
	return nil
}

// ByCategory partitions transactions by category. Transfer legs land in the
// TransfersKey group.
func ByCategory(txs []core.Transaction) (map[uuid.UUID]*Group[uuid.UUID], error) {
	g := newGrouper[uuid.UUID]()
	for _, t := range txs {
		key := TransfersKey
		if id, ok := t.CategoryID(); ok {
			key = id
		}
		if err := g.add(key, t); err != nil {
			return nil, err
		}
	}
	return g.groups, nil
}

// ByPaymentMethod partitions transactions by payment method.
func ByPaymentMethod(txs []core.Transaction) (map[uuid.UUID]*Group[uuid.UUID], error) {
	g := newGrouper[uuid.UUID]()
	for _, t := range txs {
		if err := g.add(t.PaymentMethodID, t); err != nil {
			return nil, err
		}
	}
	return g.groups, nil
}

// ByBucket partitions transactions into the windows of kind, keyed by window
// start in loc.
func ByBucket(txs []core.Transaction, kind core.PeriodKind, loc *time.Location) (map[time.Time]*Group[time.Time], error) {
	if loc == nil {
		loc = time.UTC
	}
	g := newGrouper[time.Time]()
	for _, t := range txs {
		w, err := kind.WindowAt(t.Date.In(loc))
		if err != nil {
			return nil, err
		}
		if err := g.add(w.Start, t); err != nil {
			return nil, err
		}
	}
	return g.groups, nil
}

// Line is the summary of one group.
type Line[K comparable] struct {
	Key       K
	Total     core.Money
	Count     int
	Percent   decimal.Decimal // share of the report total, two decimals
	AvgPerTx  core.Money
	AvgPerDay core.Money
}

// Summary is a whole report over one window.
type Summary[K comparable] struct {
	Window      core.Window
	ElapsedDays int
	Total       core.Money
	Count       int
	AvgPerDay   core.Money
	Lines       []Line[K]
}

var hundred = decimal.NewFromInt(100)

// Summarize derives shares and averages from groups. Averages per day divide by
// the days of w elapsed at now, so a running window is averaged over the days
// so far and a finished one over its whole length. Lines are sorted by total,
// largest first, ties broken by compareKeys.
func Summarize[K comparable](groups map[K]*Group[K], w core.Window, now time.Time, compareKeys func(a, b K) int) (Summary[K], error) {
	s := Summary[K]{Window: w, ElapsedDays: core.ElapsedDays(w, now)}

	first := true
	for _, g := range groups {
		if first {
			s.Total = core.Zero(g.Total.Currency)
			first = false
		}
		total, err := s.Total.Add(g.Total)
		if err != nil {
			return Summary[K]{}, fmt.Errorf("%w: %v", ErrMixedCurrency, err)
		}
		s.Total = total
		s.Count += len(g.Transactions)
	}
	s.AvgPerDay = divide(s.Total, s.ElapsedDays)

	s.Lines = make([]Line[K], 0, len(groups))
	for _, g := range groups {
		l := Line[K]{
			Key:       g.Key,
			Total:     g.Total,
			Count:     len(g.Transactions),
			Percent:   decimal.Zero,
			AvgPerTx:  divide(g.Total, len(g.Transactions)),
			AvgPerDay: divide(g.Total, s.ElapsedDays),
		}
		if !s.Total.IsZero() {
			l.Percent = g.Total.Amount.Mul(hundred).Div(s.Total.Amount).Round(2)
		}
		s.Lines = append(s.Lines, l)
	}

	sort.Slice(s.Lines, func(i, j int) bool {
		if c := s.Lines[i].Total.Amount.Cmp(s.Lines[j].Total.Amount); c != 0 {
			return c > 0
		}
		return compareKeys(s.Lines[i].Key, s.Lines[j].Key) < 0
	})
	return s, nil
}

func divide(m core.Money, n int) core.Money {
	if n == 0 {
		return core.Zero(m.Currency)
	}
	return core.NewMoney(m.Amount.Div(decimal.NewFromInt(int64(n))).Round(m.Currency.DecimalPlaces), m.Currency)
}

// CompareIDs orders uuid keys bytewise.
func CompareIDs(a, b uuid.UUID) int {
	return bytes.Compare(a[:], b[:])
}

// CompareTimes orders time keys chronologically.
func CompareTimes(a, b time.Time) int {
	return a.Compare(b)
}

// Header is the first row of an exported report.
var Header = []any{"Group", "Total", "Transactions", "Share %", "Avg / transaction", "Avg / day"}

// Rows renders a summary as a header, one row per line and a totals row.
// name turns a group key into its display label.
func Rows[K comparable](s Summary[K], name func(K) string) [][]any {
	rows := make([][]any, 0, len(s.Lines)+2)
	rows = append(rows, Header)
	for _, l := range s.Lines {
		rows = append(rows, []any{
			name(l.Key),
			l.Total.Format(),
			l.Count,
			l.Percent.StringFixed(2),
			l.AvgPerTx.Format(),
			l.AvgPerDay.Format(),
		})
	}
	rows = append(rows, []any{
		"Total",
		s.Total.Format(),
		s.Count,
		"100.00",
		divide(s.Total, s.Count).Format(),
		s.AvgPerDay.Format(),
	})
	return rows
}
