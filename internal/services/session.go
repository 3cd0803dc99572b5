package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"taxiledger/internal/amqp"
	"taxiledger/internal/auth"
	"taxiledger/internal/core"
	"taxiledger/internal/ledger"
)

// Session is one user's view of the ledger: the login gate plus, once in the
// app stage, the license's entries, settings and history filter. Methods are
// safe for concurrent use.
type Session struct {
	svc *LedgerService

	mu       sync.Mutex
	gate     *auth.Gate
	entries  []core.Entry
	settings core.Settings
	filter   ledger.Filter
	revision int64
}

func newSession(svc *LedgerService) *Session {
	return &Session{svc: svc, gate: auth.NewGate(svc.repo)}
}

func (s *Session) Stage() auth.Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gate.Stage()
}

func (s *Session) License() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gate.License()
}

// Message returns the text of the last gate failure.
func (s *Session) Message() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gate.Message()
}

// Login runs the gate and, when it lets the user straight in, loads the
// license data.
func (s *Session) Login(ctx context.Context, license, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.gate.Login(ctx, license, password); err != nil {
		s.svc.observer.ObserveLogin("failed")
		return err
	}
	if s.gate.Stage() == auth.StageChange {
		s.svc.observer.ObserveLogin("change_required")
		return nil
	}
	s.svc.observer.ObserveLogin("ok")
	return s.enterApp(ctx)
}

// ChangePassword completes a first login.
func (s *Session) ChangePassword(ctx context.Context, newPass, confirm string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.gate.ChangePassword(ctx, newPass, confirm); err != nil {
		return err
	}
	return s.enterApp(ctx)
}

// Logout clears the session and returns it to the login stage.
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gate.Logout()
	s.entries = nil
	s.settings = core.Settings{}
	s.filter = ledger.Filter{}
	s.revision = 0
}

// enterApp loads entries and settings and writes both back, which creates
// them for a license seen for the first time.
func (s *Session) enterApp(ctx context.Context) error {
	license := s.gate.License()
	unlock := s.svc.lockLicense(license)
	defer unlock()

	entries, err := s.svc.repo.LoadEntries(ctx, license)
	if err != nil {
		return fmt.Errorf("load entries: %w", err)
	}
	ledger.SortByDateDesc(entries)

	settings, _, err := s.svc.repo.LoadSettings(ctx, license)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if err := s.svc.repo.SaveEntries(ctx, license, entries); err != nil {
		return fmt.Errorf("save entries: %w", err)
	}
	if err := s.svc.repo.SaveSettings(ctx, license, settings); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}

	s.entries = entries
	s.settings = settings
	s.filter = ledger.DefaultFilter(s.svc.now())
	s.touch()

	slog.InfoContext(ctx, "Session opened", "license", license, "entries", len(entries))
	return nil
}

func (s *Session) requireApp() error {
	if s.gate.Stage() != auth.StageApp {
		return ErrNotLoggedIn
	}
	return nil
}

// touch marks the session data as changed.
func (s *Session) touch() {
	s.revision = s.svc.nextRevision()
	s.svc.invalidate(s.gate.License())
}

// AddEntry records a day from raw form input. A blank date means today and a
// blank driver percentage means the settings default. The new entry is
// returned with its derived fields.
//
// The stored list is reloaded under the license lock, so entries written by
// another session of the same license are kept and their IDs are not reused.
func (s *Session) AddEntry(ctx context.Context, in core.EntryInput) (core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireApp(); err != nil {
		return core.Entry{}, err
	}

	now := s.svc.now()
	in.Date = strings.TrimSpace(in.Date)
	if in.Date == "" {
		in.Date = now.Format(core.DateLayout)
	}
	if err := core.ValidateDate(in.Date); err != nil {
		return core.Entry{}, err
	}
	if strings.TrimSpace(in.DriverPct) == "" {
		in.DriverPct = s.settings.DriverPct.String()
	}

	license := s.gate.License()
	unlock := s.svc.lockLicense(license)
	defer unlock()

	current, err := s.svc.repo.LoadEntries(ctx, license)
	if err != nil {
		return core.Entry{}, fmt.Errorf("load entries: %w", err)
	}

	entry := core.NewEntry(core.NextID(now, current), in)

	next := make([]core.Entry, 0, len(current)+1)
	next = append(next, entry)
	next = append(next, current...)
	ledger.SortByDateDesc(next)

	if err := s.svc.repo.SaveEntries(ctx, license, next); err != nil {
		return core.Entry{}, fmt.Errorf("save entries: %w", err)
	}
	s.entries = next
	s.touch()
	s.svc.observer.ObserveEntry("created")

	slog.InfoContext(ctx, "Entry added", "license", license, "id", entry.ID, "date", entry.Date, "total", entry.Total)
	s.svc.publish(ctx, amqp.EntryCreated, license, entry)
	return entry, nil
}

// DeleteEntry removes the entry with id. Nothing happens unless confirmed.
func (s *Session) DeleteEntry(ctx context.Context, id int64, confirmed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireApp(); err != nil {
		return err
	}
	if !confirmed {
		return ErrConfirmationRequired
	}

	license := s.gate.License()
	unlock := s.svc.lockLicense(license)
	defer unlock()

	current, err := s.svc.repo.LoadEntries(ctx, license)
	if err != nil {
		return fmt.Errorf("load entries: %w", err)
	}
	ledger.SortByDateDesc(current)

	idx := -1
	for i, e := range current {
		if e.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.entries = current
		s.touch()
		return ErrEntryNotFound
	}

	removed := current[idx]
	next := make([]core.Entry, 0, len(current)-1)
	next = append(next, current[:idx]...)
	next = append(next, current[idx+1:]...)

	if err := s.svc.repo.SaveEntries(ctx, license, next); err != nil {
		return fmt.Errorf("save entries: %w", err)
	}
	s.entries = next
	s.touch()
	s.svc.observer.ObserveEntry("deleted")

	slog.InfoContext(ctx, "Entry deleted", "license", license, "id", id)
	s.svc.publish(ctx, amqp.EntryDeleted, license, removed)
	return nil
}

// Entries returns a copy of the full list, newest first.
func (s *Session) Entries() ([]core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireApp(); err != nil {
		return nil, err
	}
	return append([]core.Entry{}, s.entries...), nil
}

// Settings returns a copy of the current settings.
func (s *Session) Settings() (core.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireApp(); err != nil {
		return core.Settings{}, err
	}
	return s.settings.Clone(), nil
}

// SetDefaultDriverPct parses text as a percentage and persists it at once.
func (s *Session) SetDefaultDriverPct(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireApp(); err != nil {
		return err
	}
	pct := core.ParsePercent(text)
	return s.updateSettings(ctx, func(next *core.Settings) { next.DriverPct = pct })
}

// SetMonthlyGoal sets the goal of month (YYYY-MM, blank for the current
// month) and persists the settings.
func (s *Session) SetMonthlyGoal(ctx context.Context, month, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireApp(); err != nil {
		return err
	}
	month = strings.TrimSpace(month)
	if month == "" {
		month = s.svc.now().Format("2006-01")
	}
	if _, err := time.Parse("2006-01", month); err != nil {
		return ErrInvalidMonth
	}

	goal := core.ParseAmount(text)
	return s.updateSettings(ctx, func(next *core.Settings) { next.MonthlyGoals[month] = goal })
}

// SaveSettings writes the stored settings back unchanged and refreshes the
// session copy.
func (s *Session) SaveSettings(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireApp(); err != nil {
		return err
	}
	return s.updateSettings(ctx, func(*core.Settings) {})
}

// updateSettings applies fn to the stored settings under the license lock and
// persists the result.
func (s *Session) updateSettings(ctx context.Context, fn func(*core.Settings)) error {
	license := s.gate.License()
	unlock := s.svc.lockLicense(license)
	defer unlock()

	current, _, err := s.svc.repo.LoadSettings(ctx, license)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	next := current.Clone()
	fn(&next)
	return s.saveSettings(ctx, next)
}

func (s *Session) saveSettings(ctx context.Context, next core.Settings) error {
	if err := s.svc.repo.SaveSettings(ctx, s.gate.License(), next); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	s.settings = next
	s.touch()
	return nil
}

func (s *Session) SetFilterMonth(month string) error {
	return s.updateFilter(func(f *ledger.Filter) { f.SetMonth(strings.TrimSpace(month)) })
}

func (s *Session) SetFilterYear(year string) error {
	return s.updateFilter(func(f *ledger.Filter) { f.SetYear(strings.TrimSpace(year)) })
}

func (s *Session) SetQuery(query string) error {
	return s.updateFilter(func(f *ledger.Filter) { f.Query = query })
}

// ResetFilter goes back to the current month with no text query.
func (s *Session) ResetFilter() error {
	now := s.svc.now()
	return s.updateFilter(func(f *ledger.Filter) { f.Reset(now) })
}

func (s *Session) updateFilter(fn func(*ledger.Filter)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireApp(); err != nil {
		return err
	}
	fn(&s.filter)
	return nil
}
