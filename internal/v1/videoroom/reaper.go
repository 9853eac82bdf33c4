package videoroom

import (
	"context"
	"time"

	"github.com/nullcaster/videoroom-gateway/internal/v1/metrics"
)

// runReaper answers the original source's unimplemented "timer thread to
// clean up orphaned sessions" TODO. It ticks at cfg.ReaperInterval and
// evicts any session whose transports set is empty and whose last activity
// predates cfg.IdleTimeout, destroying every room that session controlled
// through the same path an explicit destroy would take, and reclaiming the
// feeds owned by its publisher handles.
func (e *Engine) runReaper() {
	ticker := time.NewTicker(e.cfg.ReaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopReaper:
			return
		case <-ticker.C:
			e.reapOnce()
		}
	}
}

func (e *Engine) reapOnce() {
	cutoff := time.Now().Add(-e.cfg.IdleTimeout)

	for _, session := range e.reg.snapshotSessions() {
		if session.hasTransports() {
			continue
		}
		if session.idleSince().After(cutoff) {
			continue
		}
		e.evictSession(session)
	}
}

func (e *Engine) evictSession(session *Session) {
	ctx := context.Background()

	for _, handleID := range session.handleIDs() {
		handle, ok := session.getHandle(handleID)
		if !ok {
			continue
		}
		switch handle.Role {
		case RoleControlling:
			if room, ok := e.reg.lookupRoom(handle.RoomID); ok && room.ownedBy(session) {
				e.reg.removeRoom(room.ID)
				for _, h := range room.publisherHandleIDs() {
					for feedID := range e.feedsOwnedBy(h) {
						e.reg.removeFeed(feedID)
					}
				}
				if err := e.media.CallDestroy(ctx, room.call()); err != nil {
					e.logger.Error("reaper: call destroy failed", "room", room.ID, "error", err)
				}
			}
		case RolePublisher:
			for feedID := range e.feedsOwnedBy(handle.ID) {
				e.reg.removeFeed(feedID)
			}
		}
		e.reg.removeHandleID(handleID)
	}

	e.reg.removeSession(session.ID)
	metrics.ReaperEvictions.Inc()
	e.logger.Info("reaper: evicted idle session", "session_id", session.ID)
}
