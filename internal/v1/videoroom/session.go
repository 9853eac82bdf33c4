package videoroom

import (
	"sync"
	"time"

	"k8s.io/utils/set"
)

// TransportID identifies a transport-level connection (a WebSocket) that has
// adopted a session; HTTP requests pass the empty id and adopt none. It is
// distinct from
// an Identifier: transport ids are never looked up by clients and never
// appear on the wire.
type TransportID string

// Role is the state a handle occupies within a room it has joined.
type Role int

const (
	RoleNone Role = iota
	RoleControlling
	RolePublisher
	RoleSubscriber
)

// Handle is a per-plugin participant slot, owned by exactly one Session.
type Handle struct {
	ID        Identifier
	SessionID Identifier
	RoomID    Identifier // 0 meaning "not joined"
	Role      Role
}

// Session is the client's login context. It owns its handles exclusively;
// the registry holds only a shared pointer to it. last_activity and handles
// are guarded by mu, and so is the transports set.
type Session struct {
	ID Identifier

	mu           sync.Mutex
	lastActivity time.Time
	handles      map[Identifier]*Handle

	transports set.Set[TransportID]
}

func newSession(id Identifier) *Session {
	return &Session{
		ID:           id,
		lastActivity: time.Now(),
		handles:      make(map[Identifier]*Handle),
		transports:   set.New[TransportID](),
	}
}

// Touch updates last_activity. Called on every request that resolves this
// session, and by keepalive.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// AddTransport records t so asynchronous events may be routed to it later.
// Duplicate insertion is a no-op.
func (s *Session) AddTransport(t TransportID) {
	s.mu.Lock()
	s.transports.Insert(t)
	s.mu.Unlock()
}

// RemoveTransport drops t from the adopting set. It does not destroy the
// session; an idle, transport-less session is only evicted by the reaper.
func (s *Session) RemoveTransport(t TransportID) {
	s.mu.Lock()
	s.transports.Delete(t)
	s.mu.Unlock()
}

func (s *Session) hasTransports() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transports.Len() > 0
}

func (s *Session) addHandle(h *Handle) {
	s.mu.Lock()
	s.handles[h.ID] = h
	s.mu.Unlock()
}

func (s *Session) getHandle(id Identifier) (*Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.handles[id]
	return h, ok
}

// Lock and Unlock expose the session mutex to the dispatcher so a
// message/trickle dispatch can hold it across the entire operation,
// including any blocking media-engine calls, not just the handle lookup.
// This is what serializes concurrent operations on the same handle per
// spec.md's "serialization is enforced by the session mutex" guarantee,
// mirroring the original source's session-lock-for-the-whole-call
// discipline. Callers holding the lock must use getHandleLocked instead of
// getHandle to avoid self-deadlock.
func (s *Session) Lock() {
	s.mu.Lock()
}

func (s *Session) Unlock() {
	s.mu.Unlock()
}

// getHandleLocked is getHandle's lock-free variant for callers already
// holding the session lock via Lock().
func (s *Session) getHandleLocked(id Identifier) (*Handle, bool) {
	h, ok := s.handles[id]
	return h, ok
}

// handleIDs returns a snapshot of this session's handle ids, used by the
// reaper to walk owned handles without holding the session lock across
// room/registry work.
func (s *Session) handleIDs() []Identifier {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]Identifier, 0, len(s.handles))
	for id := range s.handles {
		ids = append(ids, id)
	}
	return ids
}
