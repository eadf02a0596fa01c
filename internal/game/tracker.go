package game

import (
	"sync"
	"sync/atomic"
)

// Session is the transient state of one spawned character in one chat.
// A chat has at most one unclaimed session at a time; the Claimed flag is
// the single point of claim arbitration.
type Session struct {
	Name      string
	ImageURL  string
	Rarity    string
	Origin    string
	MessageID int
	Claimed   bool

	// pending marks a spawn reservation whose character is still being
	// fetched; it blocks concurrent spawn attempts the same way an
	// unclaimed session does, but is not claimable.
	pending bool
}

// chatState holds the per-chat message counter and spawn session. Each chat
// has its own lock so unrelated chats never serialize on each other.
type chatState struct {
	mu      sync.Mutex
	count   int
	session *Session
}

// Tracker owns the in-memory spawn state for all chats: message counters,
// active sessions, and the spawn threshold. All state is process-local;
// spawn state is intentionally not persisted (single-process design).
type Tracker struct {
	mu        sync.Mutex
	chats     map[int64]*chatState
	threshold atomic.Int64
}

// NewTracker creates a tracker with the given spawn threshold.
func NewTracker(threshold int) *Tracker {
	t := &Tracker{chats: make(map[int64]*chatState)}
	if threshold <= 0 {
		threshold = 100
	}
	t.threshold.Store(int64(threshold))
	return t
}

// Threshold returns the current spawn threshold.
func (t *Tracker) Threshold() int { return int(t.threshold.Load()) }

// SetThreshold changes the spawn threshold at runtime. Counters already in
// flight keep their progress and fire against the new value.
func (t *Tracker) SetThreshold(n int) {
	if n > 0 {
		t.threshold.Store(int64(n))
	}
}

// state returns the chat's state, creating it on first sight.
func (t *Tracker) state(chatID int64) *chatState {
	t.mu.Lock()
	defer t.mu.Unlock()
	cs, ok := t.chats[chatID]
	if !ok {
		cs = &chatState{}
		t.chats[chatID] = cs
	}
	return cs
}

// Bump increments the chat's message counter. When the counter reaches the
// threshold it resets to zero and Bump reports true; the reset happens
// regardless of whether the spawn attempt that follows succeeds, so a failed
// attempt consumes the threshold cycle.
func (t *Tracker) Bump(chatID int64) bool {
	cs := t.state(chatID)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.count++
	if cs.count >= t.Threshold() {
		cs.count = 0
		return true
	}
	return false
}

// Count returns the chat's current counter value.
func (t *Tracker) Count(chatID int64) int {
	cs := t.state(chatID)
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.count
}

// BeginSpawn reserves the chat's spawn slot. It reports false when an
// unclaimed session (or an in-flight reservation) already exists: an
// unclaimed spawn blocks further spawns for the chat until claimed; sessions
// never expire.
func (t *Tracker) BeginSpawn(chatID int64) bool {
	cs := t.state(chatID)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.session != nil && !cs.session.Claimed {
		return false
	}
	cs.session = &Session{pending: true}
	return true
}

// CompleteSpawn installs the fetched character into the reserved slot,
// making the session claimable.
func (t *Tracker) CompleteSpawn(chatID int64, s Session) {
	cs := t.state(chatID)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	s.Claimed = false
	s.pending = false
	cs.session = &s
}

// AbortSpawn releases a reservation after a failed fetch or publish; the
// chat becomes spawnable again on the next threshold hit.
func (t *Tracker) AbortSpawn(chatID int64) {
	cs := t.state(chatID)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.session != nil && cs.session.pending {
		cs.session = nil
	}
}

// WithSession runs fn with the chat's session under the chat lock. fn
// receives nil when no claimable session exists. The lock is held for the
// whole call, so a claim's check-and-mutate is atomic with respect to every
// other claim attempt on the same chat; fn flips Claimed only after its
// side effects succeed.
func (t *Tracker) WithSession(chatID int64, fn func(s *Session) error) error {
	cs := t.state(chatID)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.session != nil && cs.session.pending {
		return fn(nil)
	}
	return fn(cs.session)
}

// ActiveSession returns a copy of the chat's unclaimed session, if any.
func (t *Tracker) ActiveSession(chatID int64) (Session, bool) {
	cs := t.state(chatID)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.session == nil || cs.session.Claimed || cs.session.pending {
		return Session{}, false
	}
	return *cs.session, true
}
