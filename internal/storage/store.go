// Package storage persists credentials, entries and settings as JSON documents
// in a key-value store.
package storage

import "context"

// Store is a string-keyed document store. Put overwrites the whole value.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
}

const usersKey = "taxi_users_v1"

// EntriesKey returns the document key holding a license's entries.
func EntriesKey(license string) string { return "taxi_entries_" + license }

// SettingsKey returns the document key holding a license's settings.
func SettingsKey(license string) string { return "taxi_settings_" + license }

// UsersKey returns the document key of the credential table.
func UsersKey() string { return usersKey }
