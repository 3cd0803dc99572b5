package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"taxiledger/internal/core"
)

// Repository reads and writes the typed documents. Reads are tolerant: a
// missing or unreadable document yields the empty or default value and is
// logged, never returned as an error. Only store failures surface.
type Repository struct {
	store Store
}

func NewRepository(store Store) *Repository {
	return &Repository{store: store}
}

// LoadCredentials implements auth.CredentialStore.
func (r *Repository) LoadCredentials(ctx context.Context) (core.Credentials, error) {
	creds, _, err := loadDoc[core.Credentials](ctx, r.store, usersKey)
	if err != nil {
		return nil, err
	}
	if creds == nil {
		creds = core.Credentials{}
	}
	return creds, nil
}

// SaveCredentials implements auth.CredentialStore.
func (r *Repository) SaveCredentials(ctx context.Context, creds core.Credentials) error {
	return r.save(ctx, usersKey, creds)
}

// LoadEntries returns the stored entries of license with derived fields
// recomputed.
func (r *Repository) LoadEntries(ctx context.Context, license string) ([]core.Entry, error) {
	entries, _, err := loadDoc[[]core.Entry](ctx, r.store, EntriesKey(license))
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []core.Entry{}
	}
	for i := range entries {
		entries[i].Derive()
	}
	return entries, nil
}

func (r *Repository) SaveEntries(ctx context.Context, license string, entries []core.Entry) error {
	if entries == nil {
		entries = []core.Entry{}
	}
	return r.save(ctx, EntriesKey(license), entries)
}

// LoadSettings returns the stored settings of license, or the defaults. The
// boolean reports whether a readable document was found.
func (r *Repository) LoadSettings(ctx context.Context, license string) (core.Settings, bool, error) {
	s, found, err := loadDoc[core.Settings](ctx, r.store, SettingsKey(license))
	if err != nil {
		return core.Settings{}, false, err
	}
	if !found {
		return core.DefaultSettings(), false, nil
	}
	if s.MonthlyGoals == nil {
		s.MonthlyGoals = map[string]decimal.Decimal{}
	}
	return s, true, nil
}

func (r *Repository) SaveSettings(ctx context.Context, license string, s core.Settings) error {
	return r.save(ctx, SettingsKey(license), s)
}

func (r *Repository) save(ctx context.Context, key string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := r.store.Put(ctx, key, body); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// loadDoc decodes the document at key. found is false when the document is
// missing or corrupt; in both cases the zero value is returned.
func loadDoc[T any](ctx context.Context, store Store, key string) (v T, found bool, err error) {
	body, ok, err := store.Get(ctx, key)
	if err != nil {
		return v, false, err
	}
	if !ok {
		return v, false, nil
	}

	var decoded T
	if err := json.Unmarshal(body, &decoded); err != nil {
		slog.WarnContext(ctx, "Corrupt document, using default value", "key", key, "error", err)
		return v, false, nil
	}
	return decoded, true, nil
}
