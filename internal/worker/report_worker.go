package worker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"taxiledger/internal/amqp"
	"taxiledger/internal/core"
	"taxiledger/internal/report"
)

// Reader is the slice of the repository the worker needs.
type Reader interface {
	LoadEntries(ctx context.Context, license string) ([]core.Entry, error)
	LoadSettings(ctx context.Context, license string) (core.Settings, bool, error)
}

// ReportWorker prints the report of one license and reprints it whenever an
// entry event for that license is consumed.
type ReportWorker struct {
	repo    Reader
	out     io.Writer
	options report.Options
	now     func() time.Time

	mu      sync.Mutex
	printed int
}

// NewReportWorker reports on opts.License; opts.Now is ignored and taken from
// now at every print.
func NewReportWorker(repo Reader, out io.Writer, opts report.Options, now func() time.Time) *ReportWorker {
	if now == nil {
		now = time.Now
	}
	return &ReportWorker{
		repo:    repo,
		out:     out,
		options: opts,
		now:     now,
	}
}

// Print loads the license data and writes the report.
func (w *ReportWorker) Print(ctx context.Context) error {
	license := w.options.License

	entries, err := w.repo.LoadEntries(ctx, license)
	if err != nil {
		return fmt.Errorf("load entries: %w", err)
	}
	settings, _, err := w.repo.LoadSettings(ctx, license)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	opts := w.options
	opts.Now = w.now()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.printed > 0 {
		if _, err := fmt.Fprintln(w.out); err != nil {
			return err
		}
	}
	if err := report.Render(w.out, entries, settings, opts); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	w.printed++
	return nil
}

// HandleEntryEvent processes a single entry event from AMQP. Events of other
// licenses are acknowledged and ignored.
func (w *ReportWorker) HandleEntryEvent(ctx context.Context, ev *amqp.EntryEvent) error {
	if ev.License != w.options.License {
		slog.DebugContext(ctx, "Ignoring event of another license",
			"license", ev.License,
			"type", ev.Type)
		return nil
	}

	slog.InfoContext(ctx, "Processing entry event",
		"type", ev.Type,
		"id", ev.ID,
		"date", ev.Date)

	return w.Print(ctx)
}

// Prints returns how many reports were written.
func (w *ReportWorker) Prints() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.printed
}
