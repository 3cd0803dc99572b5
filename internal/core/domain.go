package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar day format used for Entry.Date.
const DateLayout = "2006-01-02"

// DefaultDriverPct is the driver percentage applied when a license has no settings yet.
var DefaultDriverPct = decimal.NewFromInt(40)

func init() {
	// Persisted documents carry amounts as plain JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

type (
	// Entry is one recorded day for a license. Cash, EfectivoTotal, DriverShare and
	// Diff are derived and always recomputed through Derive.
	Entry struct {
		ID            int64           `json:"id"`
		Date          string          `json:"date"`
		Total         decimal.Decimal `json:"total"`
		Card          decimal.Decimal `json:"card"`
		Cash          decimal.Decimal `json:"cash"`
		ExpCash       decimal.Decimal `json:"expCash"`
		ExpCard       decimal.Decimal `json:"expCard"`
		EfectivoTotal decimal.Decimal `json:"efectivoTotal"`
		DriverPct     decimal.Decimal `json:"driverPct"` // fraction in [0,1]
		DriverShare   decimal.Decimal `json:"driverShare"`
		Diff          decimal.Decimal `json:"diff"`
		Km            int64           `json:"km,omitempty"`
		Note          string          `json:"note,omitempty"`
	}

	// EntryInput carries the raw text of the entry form. Every numeric field goes
	// through a parse-or-default helper, so no input is ever rejected for being
	// non-numeric.
	EntryInput struct {
		Date      string
		Total     string
		Card      string
		ExpCash   string
		ExpCard   string
		DriverPct string // percent, e.g. "40"
		Km        string
		Note      string
	}

	// Settings holds the per-license goals and the default driver percentage.
	Settings struct {
		MonthlyGoals map[string]decimal.Decimal `json:"monthlyGoals"`
		DriverPct    decimal.Decimal            `json:"driverPct"` // plain percent, 0-100
	}

	// Credential is the stored login record of one license.
	Credential struct {
		Password   string `json:"password"`
		MustChange bool   `json:"mustChange"`
	}

	// Credentials maps a license to its credential record.
	Credentials map[string]Credential
)

var ErrInvalidDate = errors.New("invalid date")

// NewEntry builds an entry from raw form input. The input date must already be
// resolved; the numeric fields are coerced to zero when blank or malformed.
func NewEntry(id int64, in EntryInput) Entry {
	e := Entry{
		ID:        id,
		Date:      strings.TrimSpace(in.Date),
		Total:     ParseAmount(in.Total),
		Card:      ParseAmount(in.Card),
		ExpCash:   ParseAmount(in.ExpCash),
		ExpCard:   ParseAmount(in.ExpCard),
		DriverPct: Fraction(ParsePercent(in.DriverPct)),
		Km:        ParseKm(in.Km),
		Note:      in.Note,
	}
	e.Derive()
	return e
}

// Derive recomputes the derived fields from the raw ones.
func (e *Entry) Derive() {
	e.Cash = decimal.Max(decimal.Zero, e.Total.Sub(e.Card))
	e.EfectivoTotal = decimal.Max(decimal.Zero, e.Total.Sub(e.Card).Sub(e.ExpCash))
	e.DriverShare = e.Total.Mul(e.DriverPct)
	e.Diff = e.DriverShare.Sub(e.EfectivoTotal)
}

// MonthKey returns the YYYY-MM prefix of the entry date.
func (e Entry) MonthKey() string { return MonthKey(e.Date) }

// YearKey returns the YYYY prefix of the entry date.
func (e Entry) YearKey() string { return YearKey(e.Date) }

// MonthKey returns the first 7 characters of a date string.
func MonthKey(date string) string {
	if len(date) < 7 {
		return date
	}
	return date[:7]
}

// YearKey returns the first 4 characters of a date string.
func YearKey(date string) string {
	if len(date) < 4 {
		return date
	}
	return date[:4]
}

// ValidateDate reports whether s is a YYYY-MM-DD calendar day.
func ValidateDate(s string) error {
	if _, err := time.Parse(DateLayout, s); err != nil {
		return ErrInvalidDate
	}
	return nil
}

// NextID returns a creation-time identifier that is strictly greater than every
// ID already in use, so identifiers are never reused.
func NextID(now time.Time, existing []Entry) int64 {
	id := now.UnixMilli()
	for _, e := range existing {
		if e.ID >= id {
			id = e.ID + 1
		}
	}
	return id
}

// DefaultSettings returns the settings installed for a license on first login.
func DefaultSettings() Settings {
	return Settings{
		MonthlyGoals: map[string]decimal.Decimal{},
		DriverPct:    DefaultDriverPct,
	}
}

// GoalFor returns the goal configured for month, or zero.
func (s Settings) GoalFor(month string) decimal.Decimal {
	return s.MonthlyGoals[month]
}

// Clone returns a copy that does not share the goals map.
func (s Settings) Clone() Settings {
	out := Settings{MonthlyGoals: make(map[string]decimal.Decimal, len(s.MonthlyGoals)), DriverPct: s.DriverPct}
	for k, v := range s.MonthlyGoals {
		out.MonthlyGoals[k] = v
	}
	return out
}
