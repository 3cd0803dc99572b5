package worker

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxiledger/internal/amqp"
	"taxiledger/internal/core"
	"taxiledger/internal/report"
	"taxiledger/internal/storage"
	"taxiledger/internal/storage/memory"
)

var fixedNow = time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

func newWorker(t *testing.T) (*ReportWorker, *storage.Repository, *bytes.Buffer) {
	t.Helper()
	repo := storage.NewRepository(memory.New())
	var buf bytes.Buffer
	w := NewReportWorker(repo, &buf, report.Options{License: "LIC1"}, func() time.Time { return fixedNow })
	return w, repo, &buf
}

func TestHandleEntryEvent(t *testing.T) {
	ctx := context.Background()
	w, repo, buf := newWorker(t)

	require.NoError(t, w.Print(ctx))
	assert.Contains(t, buf.String(), "Licencia LIC1")
	assert.Contains(t, buf.String(), "Mes 2024-03")

	entry := core.NewEntry(1, core.EntryInput{Date: "2024-03-09", Total: "321", DriverPct: "40"})
	require.NoError(t, repo.SaveEntries(ctx, "LIC1", []core.Entry{entry}))

	require.NoError(t, w.HandleEntryEvent(ctx, amqp.NewEntryEvent(amqp.EntryCreated, "LIC1", 1, "2024-03-09")))
	assert.Equal(t, 2, w.Prints())
	assert.Equal(t, 2, strings.Count(buf.String(), "Licencia LIC1"))
	assert.Contains(t, buf.String(), "321,00 €")
}

func TestHandleEntryEventOtherLicense(t *testing.T) {
	w, _, buf := newWorker(t)

	require.NoError(t, w.HandleEntryEvent(context.Background(), amqp.NewEntryEvent(amqp.EntryDeleted, "OTHER", 7, "2024-03-01")))
	assert.Zero(t, w.Prints())
	assert.Empty(t, buf.String())
}

type brokenReader struct{}

func (brokenReader) LoadEntries(context.Context, string) ([]core.Entry, error) {
	return nil, errors.New("database is locked")
}

func (brokenReader) LoadSettings(context.Context, string) (core.Settings, bool, error) {
	return core.Settings{}, false, nil
}

func TestPrintLoadError(t *testing.T) {
	w := NewReportWorker(brokenReader{}, &bytes.Buffer{}, report.Options{License: "LIC1"}, nil)

	err := w.HandleEntryEvent(context.Background(), amqp.NewEntryEvent(amqp.EntryCreated, "LIC1", 1, "2024-03-09"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load entries")
}
