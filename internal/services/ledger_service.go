// Package services holds the application model: login sessions over the
// per-license ledger, with persistence, event publishing and memoized views.
package services

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"taxiledger/internal/amqp"
	"taxiledger/internal/cache"
	"taxiledger/internal/core"
)

var (
	ErrNotLoggedIn          = errors.New("not logged in")
	ErrConfirmationRequired = errors.New("deletion must be confirmed")
	ErrEntryNotFound        = errors.New("entry not found")
	ErrInvalidMonth         = errors.New("invalid month")
)

// Repository is the persistence the service needs.
type Repository interface {
	LoadCredentials(ctx context.Context) (core.Credentials, error)
	SaveCredentials(ctx context.Context, creds core.Credentials) error
	LoadEntries(ctx context.Context, license string) ([]core.Entry, error)
	SaveEntries(ctx context.Context, license string, entries []core.Entry) error
	LoadSettings(ctx context.Context, license string) (core.Settings, bool, error)
	SaveSettings(ctx context.Context, license string, s core.Settings) error
}

// Publisher announces entry changes. *amqp.Client satisfies it.
type Publisher interface {
	PublishEntryEvent(ctx context.Context, ev *amqp.EntryEvent) error
}

// Observer receives counts of user actions. *metrics.Metrics satisfies it.
type Observer interface {
	ObserveLogin(outcome string)
	ObserveEntry(op string)
}

type noopObserver struct{}

func (noopObserver) ObserveLogin(string) {}
func (noopObserver) ObserveEntry(string) {}

// Options configures a LedgerService. Zero values are usable.
type Options struct {
	Publisher  Publisher
	Observer   Observer
	Dashboards cache.Cache[Dashboard]
	Overviews  cache.Cache[Overview]
	Location   *time.Location
	Now        func() time.Time
}

// LedgerService opens sessions and owns everything they share.
type LedgerService struct {
	repo       Repository
	publisher  Publisher
	observer   Observer
	dashboards cache.Cache[Dashboard]
	overviews  cache.Cache[Overview]
	location   *time.Location
	clock      func() time.Time
	revision   atomic.Int64

	// licenses holds one *sync.Mutex per license. Sessions of the same
	// license serialize their read-modify-write of the stored documents on it.
	licenses sync.Map
}

func NewLedgerService(repo Repository, opts Options) *LedgerService {
	s := &LedgerService{
		repo:       repo,
		publisher:  opts.Publisher,
		observer:   opts.Observer,
		dashboards: opts.Dashboards,
		overviews:  opts.Overviews,
		location:   opts.Location,
		clock:      opts.Now,
	}
	if s.observer == nil {
		s.observer = noopObserver{}
	}
	if s.location == nil {
		s.location = time.Local
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	return s
}

// NewSession returns a session at the login stage.
func (s *LedgerService) NewSession() *Session {
	return newSession(s)
}

func (s *LedgerService) now() time.Time {
	return s.clock().In(s.location)
}

func (s *LedgerService) nextRevision() int64 {
	return s.revision.Add(1)
}

// lockLicense locks license's documents and returns the unlock func.
func (s *LedgerService) lockLicense(license string) func() {
	v, _ := s.licenses.LoadOrStore(license, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// invalidate drops every memoized view of license.
func (s *LedgerService) invalidate(license string) {
	prefix := license + ":"
	if s.dashboards != nil {
		s.dashboards.DeletePrefix(prefix)
	}
	if s.overviews != nil {
		s.overviews.DeletePrefix(prefix)
	}
}

func viewKey(license string, revision int64, day string) string {
	return license + ":" + strconv.FormatInt(revision, 10) + ":" + day
}

// publish sends an entry event. Failures are logged and never fail the
// calling operation: the entry is already persisted.
func (s *LedgerService) publish(ctx context.Context, eventType, license string, e core.Entry) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "No event publisher configured, skipping event", "type", eventType)
		return
	}
	ev := amqp.NewEntryEvent(eventType, license, e.ID, e.Date)
	if err := s.publisher.PublishEntryEvent(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish entry event",
			"type", eventType, "license", license, "id", e.ID, "error", err)
	}
}
