package workflow

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Sessions is the in-memory registry of open entry sessions, keyed by
// user id. Eviction is explicit: the caller removes a session the moment
// it reaches a terminal state, so the map never grows past the number of
// users with an entry actually in flight.
type Sessions struct {
	mu   sync.Mutex
	open map[int64]*Session
}

func NewSessions() *Sessions {
	return &Sessions{open: make(map[int64]*Session)}
}

// Begin opens a fresh session for the user, snapshotting the given rate
// table. A session already open for the same user is superseded, not
// queued: starting over always wins.
func (r *Sessions) Begin(userID int64, snapshot map[string]decimal.Decimal) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := &Session{
		UserID:   userID,
		State:    StateAwaitingProduct,
		Snapshot: snapshot,
	}
	r.open[userID] = s
	return s
}

func (r *Sessions) Get(userID int64) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.open[userID]
	return s, ok
}

// Evict drops the user's session, if any. Safe to call twice.
func (r *Sessions) Evict(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.open, userID)
}

// Len reports how many sessions are currently open.
func (r *Sessions) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.open)
}
