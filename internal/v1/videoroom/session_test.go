package videoroom

import "testing"

func TestSession_HandleLifecycle(t *testing.T) {
	s := newSession(1)
	h := &Handle{ID: 100, SessionID: s.ID, Role: RoleNone}

	if _, ok := s.getHandle(h.ID); ok {
		t.Fatal("handle should not exist before it is added")
	}
	s.addHandle(h)
	got, ok := s.getHandle(h.ID)
	if !ok || got != h {
		t.Fatalf("getHandle returned %v, %v; want %v, true", got, ok, h)
	}

	ids := s.handleIDs()
	if len(ids) != 1 || ids[0] != h.ID {
		t.Fatalf("handleIDs returned %v; want [%d]", ids, h.ID)
	}
}

func TestSession_TransportTracking(t *testing.T) {
	s := newSession(1)
	if s.hasTransports() {
		t.Fatal("fresh session should have no transports")
	}

	s.AddTransport("t1")
	if !s.hasTransports() {
		t.Fatal("session should have a transport after AddTransport")
	}

	// duplicate insertion is a no-op
	s.AddTransport("t1")
	s.AddTransport("t2")

	s.RemoveTransport("t1")
	if !s.hasTransports() {
		t.Fatal("session should still have t2")
	}
	s.RemoveTransport("t2")
	if s.hasTransports() {
		t.Fatal("session should have no transports left")
	}
}

func TestSession_Touch(t *testing.T) {
	s := newSession(1)
	before := s.idleSince()
	s.Touch()
	after := s.idleSince()
	if after.Before(before) {
		t.Fatal("Touch should never move last_activity backwards")
	}
}
