package core

import "github.com/shopspring/decimal"

// Summary holds field-wise sums over a list of entries. Days counts entries,
// not distinct calendar days.
type Summary struct {
	Total         decimal.Decimal `json:"total"`
	Card          decimal.Decimal `json:"card"`
	Cash          decimal.Decimal `json:"cash"`
	ExpCash       decimal.Decimal `json:"expCash"`
	ExpCard       decimal.Decimal `json:"expCard"`
	EfectivoTotal decimal.Decimal `json:"efectivoTotal"`
	DriverShare   decimal.Decimal `json:"driverShare"`
	Diff          decimal.Decimal `json:"diff"`
	Km            int64           `json:"km"`
	Days          int             `json:"days"`
}

// AddEntry folds one entry into the summary.
func (s Summary) AddEntry(e Entry) Summary {
	s.Total = s.Total.Add(e.Total)
	s.Card = s.Card.Add(e.Card)
	s.Cash = s.Cash.Add(e.Cash)
	s.ExpCash = s.ExpCash.Add(e.ExpCash)
	s.ExpCard = s.ExpCard.Add(e.ExpCard)
	s.EfectivoTotal = s.EfectivoTotal.Add(e.EfectivoTotal)
	s.DriverShare = s.DriverShare.Add(e.DriverShare)
	s.Diff = s.Diff.Add(e.Diff)
	s.Km += e.Km
	s.Days++
	return s
}

// Add returns the field-wise sum of two summaries.
func (s Summary) Add(o Summary) Summary {
	return Summary{
		Total:         s.Total.Add(o.Total),
		Card:          s.Card.Add(o.Card),
		Cash:          s.Cash.Add(o.Cash),
		ExpCash:       s.ExpCash.Add(o.ExpCash),
		ExpCard:       s.ExpCard.Add(o.ExpCard),
		EfectivoTotal: s.EfectivoTotal.Add(o.EfectivoTotal),
		DriverShare:   s.DriverShare.Add(o.DriverShare),
		Diff:          s.Diff.Add(o.Diff),
		Km:            s.Km + o.Km,
		Days:          s.Days + o.Days,
	}
}

// Expenses is the sum of cash and card expenses.
func (s Summary) Expenses() decimal.Decimal {
	return s.ExpCash.Add(s.ExpCard)
}

// OwnerProfit estimates what the owner keeps after the driver share and expenses.
func (s Summary) OwnerProfit() decimal.Decimal {
	return s.Total.Sub(s.DriverShare).Sub(s.ExpCash).Sub(s.ExpCard)
}

// Equal reports whether two summaries hold the same values.
func (s Summary) Equal(o Summary) bool {
	return s.Total.Equal(o.Total) &&
		s.Card.Equal(o.Card) &&
		s.Cash.Equal(o.Cash) &&
		s.ExpCash.Equal(o.ExpCash) &&
		s.ExpCard.Equal(o.ExpCard) &&
		s.EfectivoTotal.Equal(o.EfectivoTotal) &&
		s.DriverShare.Equal(o.DriverShare) &&
		s.Diff.Equal(o.Diff) &&
		s.Km == o.Km &&
		s.Days == o.Days
}
