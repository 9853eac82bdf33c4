package videoroom

import (
	"fmt"
	"sync"

	"github.com/nullcaster/videoroom-gateway/internal/v1/mediaengine"
)

const defaultMaxPublishers = 3

// Room is a videoroom instance. It maps 1:1 to a call in the media engine.
// Its publishers and subscribers maps are guarded by the Room's own mu; the
// registry mutex guards only the rooms table that holds the Room.
type Room struct {
	ID            Identifier
	CallID        string // opaque, "janus <id>", passed to the media engine
	MaxPublishers int

	// ControllerSession is a weak (identity-only) reference: it is never
	// dereferenced to extend the session's lifetime and is compared only
	// with ==. If the session it points to has since been reaped, the room
	// has no valid controller and is itself reaper-eligible.
	ControllerSession  *Session
	ControllerHandleID Identifier

	callRef mediaengine.CallRef

	mu          sync.Mutex
	publishers  map[Identifier]Identifier // handle_id -> feed_id
	subscribers map[Identifier]Identifier // handle_id -> feed_id
}

func newRoom(id Identifier, callID string, maxPublishers int, controller *Session, controllerHandle Identifier, call mediaengine.CallRef) *Room {
	if maxPublishers <= 0 {
		maxPublishers = defaultMaxPublishers
	}
	return &Room{
		ID:                 id,
		CallID:             callID,
		MaxPublishers:      maxPublishers,
		ControllerSession:  controller,
		ControllerHandleID: controllerHandle,
		callRef:            call,
		publishers:         make(map[Identifier]Identifier),
		subscribers:        make(map[Identifier]Identifier),
	}
}

func callIDFor(roomID Identifier) string {
	return fmt.Sprintf("janus %d", roomID)
}

// ownedBy reports whether session is this room's controller, by identity.
func (r *Room) ownedBy(session *Session) bool {
	return r.ControllerSession == session
}

// call returns the shared reference to this room's backing media-engine
// call, taken once at room-creation time and never re-fetched.
func (r *Room) call() mediaengine.CallRef {
	return r.callRef
}

func (r *Room) addPublisher(handleID, feedID Identifier) {
	r.mu.Lock()
	r.publishers[handleID] = feedID
	r.mu.Unlock()
}

func (r *Room) removePublisher(handleID Identifier) {
	r.mu.Lock()
	delete(r.publishers, handleID)
	r.mu.Unlock()
}

func (r *Room) hasPublisherHandle(handleID Identifier) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.publishers[handleID]
	return ok
}

// otherPublisherFeeds returns every publisher's feed id except self's.
func (r *Room) otherPublisherFeeds(self Identifier) []Identifier {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Identifier, 0, len(r.publishers))
	for handleID, feedID := range r.publishers {
		if handleID == self {
			continue
		}
		out = append(out, feedID)
	}
	return out
}

func (r *Room) addSubscriber(handleID, feedID Identifier) {
	r.mu.Lock()
	r.subscribers[handleID] = feedID
	r.mu.Unlock()
}

func (r *Room) removeSubscriber(handleID Identifier) {
	r.mu.Lock()
	delete(r.subscribers, handleID)
	r.mu.Unlock()
}

// publisherHandleIDs is a snapshot used on room destruction to know which
// global feed-table entries must be reclaimed.
func (r *Room) publisherHandleIDs() []Identifier {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]Identifier, 0, len(r.publishers))
	for handleID := range r.publishers {
		ids = append(ids, handleID)
	}
	return ids
}
