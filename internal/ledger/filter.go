package ledger

import (
	"strings"
	"time"

	"taxiledger/internal/core"
)

// Filter narrows the history view. Month and Year are mutually exclusive;
// use SetMonth and SetYear to keep it that way.
type Filter struct {
	Month string `json:"month"`
	Year  string `json:"year"`
	Query string `json:"query"`
}

// DefaultFilter shows the month containing now.
func DefaultFilter(now time.Time) Filter {
	return Filter{Month: now.Format("2006-01")}
}

// SetMonth selects a month and clears the year.
func (f *Filter) SetMonth(month string) {
	f.Month = month
	f.Year = ""
}

// SetYear selects a year and clears the month.
func (f *Filter) SetYear(year string) {
	f.Year = year
	f.Month = ""
}

// Reset restores the current month with no year or text query.
func (f *Filter) Reset(now time.Time) {
	*f = DefaultFilter(now)
}

// Match reports whether e passes both the date and the text condition.
func (f Filter) Match(e core.Entry) bool {
	return f.matchDate(e) && f.matchText(e)
}

func (f Filter) matchDate(e core.Entry) bool {
	switch {
	case f.Month != "":
		return strings.HasPrefix(e.Date, f.Month)
	case f.Year != "":
		return strings.HasPrefix(e.Date, f.Year)
	default:
		return true
	}
}

func (f Filter) matchText(e core.Entry) bool {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	if q == "" {
		return true
	}
	text := e.Date + " " + strings.ToLower(e.Note)
	return strings.Contains(text, q)
}

// Apply returns the matching entries in source order.
func (f Filter) Apply(list []core.Entry) []core.Entry {
	out := []core.Entry{}
	for _, e := range list {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}
