// Package ledger reduces entry lists into summaries, groupings, averages and
// goal progress, and filters them for the history view. Everything here is a
// pure function of its inputs.
package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"taxiledger/internal/core"
)

// LastDays is how many of the newest entries make up the rolling average.
const LastDays = 7

// Bucket groups the entries sharing a month or year key.
type Bucket struct {
	Key     string       `json:"key"`
	Entries []core.Entry `json:"entries"`
}

// PeriodSummary is the summary of one month or year bucket.
type PeriodSummary struct {
	Key     string       `json:"key"`
	Summary core.Summary `json:"summary"`
}

// GoalProgress describes how the current month stands against its goal.
type GoalProgress struct {
	Goal           decimal.Decimal `json:"goal"`
	MonthTotal     decimal.Decimal `json:"monthTotal"`
	Remaining      decimal.Decimal `json:"remaining"`
	RemainingDays  int             `json:"remainingDays"`
	RequiredPerDay decimal.Decimal `json:"requiredPerDay"`
	ProgressPct    int64           `json:"progressPct"`
}

// Summarize sums every numeric field over list. Days counts entries.
func Summarize(list []core.Entry) core.Summary {
	var s core.Summary
	for _, e := range list {
		s = s.AddEntry(e)
	}
	return s
}

// GroupByMonth buckets entries by YYYY-MM in first-encounter order.
func GroupByMonth(list []core.Entry) []Bucket {
	return group(list, core.MonthKey)
}

// GroupByYear buckets entries by YYYY in first-encounter order.
func GroupByYear(list []core.Entry) []Bucket {
	return group(list, core.YearKey)
}

func group(list []core.Entry, key func(string) string) []Bucket {
	index := map[string]int{}
	var out []Bucket
	for _, e := range list {
		k := key(e.Date)
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, Bucket{Key: k})
		}
		out[i].Entries = append(out[i].Entries, e)
	}
	return out
}

// Find returns the entries of the bucket with key k, or nil.
func Find(buckets []Bucket, k string) []core.Entry {
	for _, b := range buckets {
		if b.Key == k {
			return b.Entries
		}
	}
	return nil
}

// Breakdown summarizes each bucket, newest key first.
func Breakdown(buckets []Bucket) []PeriodSummary {
	out := make([]PeriodSummary, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, PeriodSummary{Key: b.Key, Summary: Summarize(b.Entries)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Key > out[j].Key })
	return out
}

// MonthKeys returns the distinct YYYY-MM keys, descending.
func MonthKeys(list []core.Entry) []string {
	return distinctDesc(list, core.MonthKey)
}

// YearKeys returns the distinct YYYY keys, descending.
func YearKeys(list []core.Entry) []string {
	return distinctDesc(list, core.YearKey)
}

func distinctDesc(list []core.Entry, key func(string) string) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, e := range list {
		k := key(e.Date)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out
}

// SortByDateDesc orders entries newest date first. The sort is stable, so
// entries on the same day keep their processing order.
func SortByDateDesc(list []core.Entry) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].Date > list[j].Date })
}

// Last7 takes the LastDays newest entries of a date-descending list and
// returns them oldest first.
func Last7(sorted []core.Entry) []core.Entry {
	n := len(sorted)
	if n > LastDays {
		n = LastDays
	}
	out := make([]core.Entry, n)
	for i := 0; i < n; i++ {
		out[i] = sorted[n-1-i]
	}
	return out
}

// Average returns the mean total per entry, or zero for an empty list.
func Average(list []core.Entry) decimal.Decimal {
	if len(list) == 0 {
		return decimal.Zero
	}
	return Summarize(list).Total.Div(decimal.NewFromInt(int64(len(list))))
}

// DaysInMonth returns the number of days of the month containing t.
func DaysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

// ComputeGoalProgress measures a month-to-date total against goal. Remaining
// days count today through the last day of the month.
func ComputeGoalProgress(goal, monthTotal decimal.Decimal, today time.Time) GoalProgress {
	p := GoalProgress{
		Goal:           goal,
		MonthTotal:     monthTotal,
		Remaining:      decimal.Max(decimal.Zero, goal.Sub(monthTotal)),
		RemainingDays:  DaysInMonth(today) - today.Day() + 1,
		RequiredPerDay: decimal.Zero,
	}
	if p.RemainingDays < 0 {
		p.RemainingDays = 0
	}
	if p.RemainingDays > 0 {
		p.RequiredPerDay = p.Remaining.Div(decimal.NewFromInt(int64(p.RemainingDays)))
	}
	if goal.IsPositive() {
		pct := monthTotal.Mul(decimal.NewFromInt(100)).Div(goal).Round(0).IntPart()
		if pct > 100 {
			pct = 100
		}
		if pct < 0 {
			pct = 0
		}
		p.ProgressPct = pct
	}
	return p
}
