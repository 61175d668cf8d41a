// Package memory holds short-lived per-user conversation state used to
// ground ambiguous follow-up messages.
//
// One session exists per active user for the lifetime of the process. A
// session is read, used as interpretation context, and overwritten within a
// single turn, so access to the same user's session is serialized; turns for
// different users proceed concurrently.
package memory

import (
	"sync"

	"github.com/teemow/yoteibot/internal/intent"
)

// EventRef is a cached reference to the most recently created or updated
// event. The calendar provider stays authoritative; this only biases target
// selection on the next turn.
type EventRef struct {
	ID      string
	Summary string
	Date    string // YYYY-MM-DD
	Time    string // HH:mm
}

// Session is the conversation memory for one user.
type Session struct {
	LastRawText      string
	LastIntent       *intent.CalendarIntent
	LastTouchedEvent *EventRef
}

// Store maps user IDs to sessions with per-user locking.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*entry
}

type entry struct {
	mu      sync.Mutex
	session Session
}

// NewStore creates an empty conversation memory store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*entry)}
}

// Acquire locks the user's session for the duration of a turn and returns it
// together with a release function. The caller must call release when the
// turn is finished; until then other turns for the same user block.
func (s *Store) Acquire(userID string) (*Session, func()) {
	s.mu.Lock()
	e, ok := s.sessions[userID]
	if !ok {
		e = &entry{}
		s.sessions[userID] = e
	}
	s.mu.Unlock()

	e.mu.Lock()
	return &e.session, e.mu.Unlock
}
