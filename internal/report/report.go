// Package report renders a plain-text ledger report for one license.
package report

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"taxiledger/internal/core"
	"taxiledger/internal/ledger"
)

// Options selects what the report covers. Blank Month and Year mean the
// month and year containing Now.
type Options struct {
	License string
	Month   string
	Year    string
	Now     time.Time
}

// Render writes the month and year summaries, the goal progress of the
// current month and the per-month and per-year breakdowns.
func Render(w io.Writer, entries []core.Entry, settings core.Settings, opts Options) error {
	month := opts.Month
	if month == "" {
		month = opts.Now.Format("2006-01")
	}
	year := opts.Year
	if year == "" {
		year = opts.Now.Format("2006")
	}

	sorted := append([]core.Entry(nil), entries...)
	ledger.SortByDateDesc(sorted)

	monthly := ledger.GroupByMonth(sorted)
	yearly := ledger.GroupByYear(sorted)
	monthSum := ledger.Summarize(ledger.Find(monthly, month))
	yearSum := ledger.Summarize(ledger.Find(yearly, year))

	p := &printer{w: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)}

	p.printf("Licencia %s\t%s\n\n", opts.License, opts.Now.Format(core.DateLayout))
	p.summary("Mes "+month, monthSum)
	p.summary("Año "+year, yearSum)

	if month == opts.Now.Format("2006-01") {
		if goal := settings.GoalFor(month); goal.IsPositive() {
			gp := ledger.ComputeGoalProgress(goal, monthSum.Total, opts.Now)
			p.printf("Objetivo\t%s\n", core.FormatEuros(gp.Goal))
			p.printf("Progreso\t%d %%\n", gp.ProgressPct)
			p.printf("Restante\t%s\n", core.FormatEuros(gp.Remaining))
			p.printf("Por día (%d días)\t%s\n\n", gp.RemainingDays, core.FormatEuros(gp.RequiredPerDay))
		}
	}
	p.flush()

	p.table("Mes", ledger.Breakdown(monthly))
	p.printf("\n")
	p.table("Año", ledger.Breakdown(yearly))
	p.flush()
	return p.err
}

// printer keeps the first write error so the layout code stays linear.
type printer struct {
	w   *tabwriter.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

// flush ends the current column block.
func (p *printer) flush() {
	if p.err != nil {
		return
	}
	p.err = p.w.Flush()
}

func (p *printer) summary(title string, s core.Summary) {
	p.printf("%s\n", title)
	p.printf("  Total\t%s\n", core.FormatEuros(s.Total))
	p.printf("  Tarjeta\t%s\n", core.FormatEuros(s.Card))
	p.printf("  Efectivo\t%s\n", core.FormatEuros(s.Cash))
	p.printf("  Gastos\t%s\n", core.FormatEuros(s.Expenses()))
	p.printf("  Conductor\t%s\n", core.FormatEuros(s.DriverShare))
	p.printf("  Diferencia\t%s\n", core.FormatEuros(s.Diff))
	p.printf("  Beneficio\t%s\n", core.FormatEuros(s.OwnerProfit()))
	p.printf("  Km\t%d\n", s.Km)
	p.printf("  Días\t%d\n\n", s.Days)
}

func (p *printer) table(keyTitle string, rows []ledger.PeriodSummary) {
	p.printf("%s\tDías\tTotal\tTarjeta\tEfectivo\tGastos\tConductor\tDiferencia\tKm\n", keyTitle)
	for _, r := range rows {
		s := r.Summary
		p.printf("%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
			r.Key, s.Days,
			core.FormatEuros(s.Total),
			core.FormatEuros(s.Card),
			core.FormatEuros(s.Cash),
			core.FormatEuros(s.Expenses()),
			core.FormatEuros(s.DriverShare),
			core.FormatEuros(s.Diff),
			s.Km)
	}
	p.flush()
}
