package services

import (
	"github.com/shopspring/decimal"

	"taxiledger/internal/core"
	"taxiledger/internal/ledger"
)

// Dashboard is the at-a-glance view of the current month.
type Dashboard struct {
	License      string              `json:"license"`
	Today        string              `json:"today"`
	Month        string              `json:"month"`
	DriverPct    decimal.Decimal     `json:"driverPct"`
	MonthSummary core.Summary        `json:"monthSummary"`
	Expenses     decimal.Decimal     `json:"expenses"`
	OwnerProfit  decimal.Decimal     `json:"ownerProfit"`
	Last7        []core.Entry        `json:"last7"`
	Last7Average decimal.Decimal     `json:"last7Average"`
	MonthAverage decimal.Decimal     `json:"monthAverage"`
	Goal         ledger.GoalProgress `json:"goal"`
}

// Overview gathers the summary view: current month and year, and the
// per-month and per-year breakdowns.
type Overview struct {
	Month        string                 `json:"month"`
	Year         string                 `json:"year"`
	MonthSummary core.Summary           `json:"monthSummary"`
	YearSummary  core.Summary           `json:"yearSummary"`
	MonthKeys    []string               `json:"monthKeys"`
	YearKeys     []string               `json:"yearKeys"`
	Monthly      []ledger.PeriodSummary `json:"monthly"`
	Yearly       []ledger.PeriodSummary `json:"yearly"`
}

// History is the filtered entry list with its summary.
type History struct {
	Filter  ledger.Filter `json:"filter"`
	Entries []core.Entry  `json:"entries"`
	Summary core.Summary  `json:"summary"`
}

// Dashboard computes the dashboard, memoized per data revision and day.
func (s *Session) Dashboard() (Dashboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireApp(); err != nil {
		return Dashboard{}, err
	}

	now := s.svc.now()
	today := now.Format(core.DateLayout)
	key := viewKey(s.gate.License(), s.revision, today)
	if s.svc.dashboards != nil {
		if d, ok := s.svc.dashboards.Get(key); ok {
			return d, nil
		}
	}

	month := now.Format("2006-01")
	monthEntries := ledger.Find(ledger.GroupByMonth(s.entries), month)
	summary := ledger.Summarize(monthEntries)
	last7 := ledger.Last7(s.entries)

	d := Dashboard{
		License:      s.gate.License(),
		Today:        today,
		Month:        month,
		DriverPct:    s.settings.DriverPct,
		MonthSummary: summary,
		Expenses:     summary.Expenses(),
		OwnerProfit:  summary.OwnerProfit(),
		Last7:        last7,
		Last7Average: ledger.Average(last7),
		MonthAverage: ledger.Average(monthEntries),
		Goal:         ledger.ComputeGoalProgress(s.settings.GoalFor(month), summary.Total, now),
	}

	if s.svc.dashboards != nil {
		s.svc.dashboards.Set(key, d)
	}
	return d, nil
}

// Overview computes the summary view, memoized like Dashboard.
func (s *Session) Overview() (Overview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireApp(); err != nil {
		return Overview{}, err
	}

	now := s.svc.now()
	key := viewKey(s.gate.License(), s.revision, now.Format(core.DateLayout))
	if s.svc.overviews != nil {
		if o, ok := s.svc.overviews.Get(key); ok {
			return o, nil
		}
	}

	month, year := now.Format("2006-01"), now.Format("2006")
	byMonth := ledger.GroupByMonth(s.entries)
	byYear := ledger.GroupByYear(s.entries)

	o := Overview{
		Month:        month,
		Year:         year,
		MonthSummary: ledger.Summarize(ledger.Find(byMonth, month)),
		YearSummary:  ledger.Summarize(ledger.Find(byYear, year)),
		MonthKeys:    ledger.MonthKeys(s.entries),
		YearKeys:     ledger.YearKeys(s.entries),
		Monthly:      ledger.Breakdown(byMonth),
		Yearly:       ledger.Breakdown(byYear),
	}

	if s.svc.overviews != nil {
		s.svc.overviews.Set(key, o)
	}
	return o, nil
}

// History applies the current filter.
func (s *Session) History() (History, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireApp(); err != nil {
		return History{}, err
	}

	visible := s.filter.Apply(s.entries)
	return History{
		Filter:  s.filter,
		Entries: visible,
		Summary: ledger.Summarize(visible),
	}, nil
}
