package videoroom

import "testing"

func TestRegistry_SessionCRUD(t *testing.T) {
	r := newRegistry()
	s := newSession(42)

	if r.sessionExists(s.ID) {
		t.Fatal("session should not exist before insertion")
	}
	r.insertSession(s)
	if !r.sessionExists(s.ID) {
		t.Fatal("session should exist after insertion")
	}

	got, ok := r.lookupSession(s.ID)
	if !ok || got != s {
		t.Fatalf("lookupSession returned %v, %v; want %v, true", got, ok, s)
	}

	r.removeSession(s.ID)
	if r.sessionExists(s.ID) {
		t.Fatal("session should not exist after removal")
	}
	if _, ok := r.lookupSession(s.ID); ok {
		t.Fatal("lookupSession should report false after removal")
	}
}

func TestRegistry_RemoveSession_Idempotent(t *testing.T) {
	r := newRegistry()
	r.removeSession(999) // never inserted; must not panic
}

func TestRegistry_HandlePresence(t *testing.T) {
	r := newRegistry()
	id := Identifier(7)

	if r.handleIDTaken(id) {
		t.Fatal("handle should not be taken before insertion")
	}
	r.insertHandleID(id)
	if !r.handleIDTaken(id) {
		t.Fatal("handle should be taken after insertion")
	}
	r.removeHandleID(id)
	if r.handleIDTaken(id) {
		t.Fatal("handle should be free after removal")
	}
}

func TestRegistry_RoomCRUD(t *testing.T) {
	r := newRegistry()
	room := newRoom(1, callIDFor(1), 0, nil, 0, nil)

	if r.roomTaken(room.ID) {
		t.Fatal("room should not be taken before insertion")
	}
	r.insertRoom(room)
	if !r.roomTaken(room.ID) {
		t.Fatal("room should be taken after insertion")
	}

	got, ok := r.lookupRoom(room.ID)
	if !ok || got != room {
		t.Fatalf("lookupRoom returned %v, %v; want %v, true", got, ok, room)
	}

	r.removeRoom(room.ID)
	if r.roomTaken(room.ID) {
		t.Fatal("room should be free after removal")
	}
}

func TestRegistry_FeedCRUD(t *testing.T) {
	r := newRegistry()
	feedID, handleID := Identifier(10), Identifier(20)

	if r.feedTaken(feedID) {
		t.Fatal("feed should not be taken before insertion")
	}
	r.insertFeed(feedID, handleID)
	if !r.feedTaken(feedID) {
		t.Fatal("feed should be taken after insertion")
	}

	got, ok := r.lookupFeed(feedID)
	if !ok || got != handleID {
		t.Fatalf("lookupFeed returned %v, %v; want %v, true", got, ok, handleID)
	}

	r.removeFeed(feedID)
	if r.feedTaken(feedID) {
		t.Fatal("feed should be free after removal")
	}
	if _, ok := r.lookupFeed(feedID); ok {
		t.Fatal("lookupFeed should report false after removal")
	}
}

func TestRegistry_SnapshotSessions(t *testing.T) {
	r := newRegistry()
	s1, s2 := newSession(1), newSession(2)
	r.insertSession(s1)
	r.insertSession(s2)

	snap := r.snapshotSessions()
	if len(snap) != 2 {
		t.Fatalf("expected 2 sessions in snapshot, got %d", len(snap))
	}
}
