package services_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxiledger/internal/services"
)

func TestSessionStore(t *testing.T) {
	f := newFixture(t)
	store := services.NewSessionStore(f.svc, 2, time.Hour)

	tok1, s1 := store.Create()
	tok2, _ := store.Create()
	assert.NotEqual(t, tok1, tok2)
	assert.Len(t, tok1, 36)

	got, ok := store.Get(tok1)
	require.True(t, ok)
	assert.Same(t, s1, got)

	_, ok = store.Get("")
	assert.False(t, ok)

	tok3, _ := store.Create()
	_, ok = store.Get(tok2)
	assert.False(t, ok, "least recently used session evicted")
	_, ok = store.Get(tok3)
	assert.True(t, ok)

	store.Drop(tok1)
	_, ok = store.Get(tok1)
	assert.False(t, ok)
	assert.Equal(t, 1, store.Len())
	assert.NotNil(t, store.Cache())
}
