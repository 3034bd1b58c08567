package tracker

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is the per-caller state of the fetch cycle. The reload counter is
// part of the cache key, so bumping it makes the next fetch bypass cached data.
type Session struct {
	mu            sync.Mutex
	id            string
	reload        uint64
	lastRefreshed time.Time
	lastSeen      time.Time
}

// NewSession creates a session with a fresh id.
func NewSession() *Session {
	return RestoreSession(uuid.NewString())
}

// RestoreSession creates a session for a caller-supplied id.
func RestoreSession(id string) *Session {
	return &Session{id: id, lastSeen: time.Now()}
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// ReloadCounter returns the current reload counter.
func (s *Session) ReloadCounter() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reload
}

// LastRefreshed returns when this session last received data read from the
// spreadsheet. Zero until the first fetch.
func (s *Session) LastRefreshed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRefreshed
}

// Bump increments the reload counter and returns the new value.
func (s *Session) Bump() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reload++
	return s.reload
}

func (s *Session) markRefreshed(t time.Time) {
	s.mu.Lock()
	if t.After(s.lastRefreshed) {
		s.lastRefreshed = t
	}
	s.mu.Unlock()
}

func (s *Session) touch(t time.Time) {
	s.mu.Lock()
	s.lastSeen = t
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// SessionStore keeps sessions by id for callers that cannot hold them, such
// as HTTP clients sending a session header.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewSessionStore creates an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session), now: time.Now}
}

// Get returns the session for id, creating it when unknown. A blank or
// malformed id yields a new session with a generated id.
func (st *SessionStore) Get(id string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}
	sess, ok := st.sessions[id]
	if !ok {
		sess = RestoreSession(id)
		st.sessions[id] = sess
	}
	sess.touch(st.now())
	return sess
}

// Prune drops sessions idle for longer than maxIdle and returns how many were dropped.
func (st *SessionStore) Prune(maxIdle time.Duration) int {
	st.mu.Lock()
	defer st.mu.Unlock()

	cutoff := st.now().Add(-maxIdle)
	dropped := 0
	for id, sess := range st.sessions {
		if sess.idleSince().Before(cutoff) {
			delete(st.sessions, id)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of stored sessions.
func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
