package services

import (
	"time"

	"github.com/google/uuid"

	"taxiledger/internal/cache"
)

// SessionStore maps opaque tokens to sessions. Idle sessions expire after
// the cache TTL; every lookup renews it.
type SessionStore struct {
	svc      *LedgerService
	sessions *cache.LRUCache[*Session]
	idle     time.Duration
}

func NewSessionStore(svc *LedgerService, maxSessions int, idle time.Duration) *SessionStore {
	return &SessionStore{
		svc:      svc,
		sessions: cache.NewLRUCache[*Session](maxSessions, idle),
		idle:     idle,
	}
}

// Cache exposes the backing cache so it can be registered for cleanup.
func (st *SessionStore) Cache() *cache.LRUCache[*Session] { return st.sessions }

// Create opens a new session and returns its token.
func (st *SessionStore) Create() (string, *Session) {
	token := uuid.NewString()
	sess := st.svc.NewSession()
	st.sessions.Set(token, sess)
	return token, sess
}

// Get returns the session for token and renews its idle timer.
func (st *SessionStore) Get(token string) (*Session, bool) {
	if token == "" {
		return nil, false
	}
	sess, ok := st.sessions.Get(token)
	if ok {
		st.sessions.Set(token, sess)
	}
	return sess, ok
}

// Drop forgets token.
func (st *SessionStore) Drop(token string) {
	st.sessions.Delete(token)
}

func (st *SessionStore) Len() int { return st.sessions.Size() }

// IdleTimeout is how long an unused session survives.
func (st *SessionStore) IdleTimeout() time.Duration { return st.idle }
