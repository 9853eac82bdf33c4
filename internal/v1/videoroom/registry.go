package videoroom

import (
	"sync"

	"github.com/nullcaster/videoroom-gateway/internal/v1/metrics"
)

// registry is the process-wide state holding the global mappings described
// by the data model: sessions, handles (presence only), rooms, and feeds.
// The admin token table lives in the tokenstore package instead, since it
// needs to survive a restart and be shared across replicas. All mutation
// here happens under mu. The registry holds shared pointers, not exclusive
// ownership, and must never be held across a media-engine call or a
// transport write.
type registry struct {
	mu sync.Mutex

	sessions map[Identifier]*Session
	handles  map[Identifier]struct{} // presence only; owning session holds the *Handle
	rooms    map[Identifier]*Room
	feeds    map[Identifier]Identifier // feed_id -> publisher handle_id
}

func newRegistry() *registry {
	return &registry{
		sessions: make(map[Identifier]*Session),
		handles:  make(map[Identifier]struct{}),
		rooms:    make(map[Identifier]*Room),
		feeds:    make(map[Identifier]Identifier),
	}
}

// --- sessions ---

func (r *registry) insertSession(s *Session) {
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	metrics.ActiveSessions.Inc()
}

// lookupSession returns a shared reference and bumps last_activity. Per the
// lock hierarchy, the session's own lock is taken only after the registry
// lock has been released.
func (r *registry) lookupSession(id Identifier) (*Session, bool) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if ok {
		s.Touch()
	}
	return s, ok
}

func (r *registry) removeSession(id Identifier) {
	r.mu.Lock()
	_, existed := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if existed {
		metrics.ActiveSessions.Dec()
	}
}

func (r *registry) sessionExists(id Identifier) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[id]
	return ok
}

// snapshotSessions returns every currently-registered session, for reaper
// scanning. The snapshot is taken under the registry lock but the sessions
// themselves are inspected and evicted outside it.
func (r *registry) snapshotSessions() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// --- handles (presence) ---

func (r *registry) insertHandleID(id Identifier) {
	r.mu.Lock()
	r.handles[id] = struct{}{}
	r.mu.Unlock()
}

func (r *registry) handleIDTaken(id Identifier) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.handles[id]
	return ok
}

func (r *registry) removeHandleID(id Identifier) {
	r.mu.Lock()
	delete(r.handles, id)
	r.mu.Unlock()
}

// --- rooms ---

func (r *registry) insertRoom(room *Room) {
	r.mu.Lock()
	r.rooms[room.ID] = room
	r.mu.Unlock()
	metrics.ActiveRooms.Inc()
}

func (r *registry) roomTaken(id Identifier) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rooms[id]
	return ok
}

func (r *registry) lookupRoom(id Identifier) (*Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	return room, ok
}

func (r *registry) removeRoom(id Identifier) {
	r.mu.Lock()
	_, existed := r.rooms[id]
	delete(r.rooms, id)
	r.mu.Unlock()
	if existed {
		metrics.ActiveRooms.Dec()
	}
}

// --- feeds ---

func (r *registry) insertFeed(feedID, handleID Identifier) {
	r.mu.Lock()
	r.feeds[feedID] = handleID
	r.mu.Unlock()
	metrics.ActiveFeeds.Inc()
}

func (r *registry) feedTaken(id Identifier) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.feeds[id]
	return ok
}

func (r *registry) lookupFeed(feedID Identifier) (Identifier, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	handleID, ok := r.feeds[feedID]
	return handleID, ok
}

func (r *registry) removeFeed(feedID Identifier) {
	r.mu.Lock()
	_, existed := r.feeds[feedID]
	delete(r.feeds, feedID)
	r.mu.Unlock()
	if existed {
		metrics.ActiveFeeds.Dec()
	}
}
