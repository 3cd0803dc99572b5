package storage

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"taxiledger/internal/core"
)

const (
	DemoLicense  = "TAXI123"
	DemoPassword = "demo"
	demoDays     = 6
)

var demoGoal = decimal.NewFromInt(6000)

// Rand is the source of the demo figures. *math/rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// Seed installs the demo license with six days of fabricated entries, unless
// the license already exists. It reports whether anything was written.
func (r *Repository) Seed(ctx context.Context, now time.Time, rng Rand) (bool, error) {
	creds, err := r.LoadCredentials(ctx)
	if err != nil {
		return false, fmt.Errorf("load credentials: %w", err)
	}
	if _, ok := creds[DemoLicense]; ok {
		return false, nil
	}

	creds[DemoLicense] = core.Credential{Password: DemoPassword, MustChange: false}
	if err := r.SaveCredentials(ctx, creds); err != nil {
		return false, fmt.Errorf("seed credentials: %w", err)
	}

	entries := DemoEntries(now, rng)
	if err := r.SaveEntries(ctx, DemoLicense, entries); err != nil {
		return false, fmt.Errorf("seed entries: %w", err)
	}

	settings := core.Settings{
		MonthlyGoals: map[string]decimal.Decimal{now.Format("2006-01"): demoGoal},
		DriverPct:    core.DefaultDriverPct,
	}
	if err := r.SaveSettings(ctx, DemoLicense, settings); err != nil {
		return false, fmt.Errorf("seed settings: %w", err)
	}

	slog.InfoContext(ctx, "Demo license seeded", "license", DemoLicense, "entries", len(entries))
	return true, nil
}

// DemoEntries fabricates one entry for today and each of the five previous
// days, newest first.
func DemoEntries(now time.Time, rng Rand) []core.Entry {
	entries := make([]core.Entry, 0, demoDays)
	for i := 0; i < demoDays; i++ {
		total := 180 + round(rng.Float64()*140)
		card := round(float64(total) * (0.55 + rng.Float64()*0.25))
		expCash := round(rng.Float64() * 15)
		expCard := round(rng.Float64() * 20)
		km := 50 + round(rng.Float64()*80)

		note := "Turno día"
		if i%2 == 1 {
			note = "Turno noche"
		}

		entries = append(entries, core.NewEntry(now.UnixMilli()+int64(i), core.EntryInput{
			Date:      now.AddDate(0, 0, -i).Format(core.DateLayout),
			Total:     itoa(total),
			Card:      itoa(card),
			ExpCash:   itoa(expCash),
			ExpCard:   itoa(expCard),
			DriverPct: core.DefaultDriverPct.String(),
			Km:        itoa(km),
			Note:      note,
		}))
	}
	return entries
}

func round(f float64) int64 { return int64(math.Round(f)) }

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
