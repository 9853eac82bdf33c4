package videoroom

import (
	"context"
	"fmt"

	"github.com/nullcaster/videoroom-gateway/internal/v1/mediaengine"
)

// handleMessage is 4.F's routing of a "message" request into the videoroom
// state machine (4.E). It parses the plugin body, sends the early ack for
// the three operations that may block on the media engine, runs the
// operation, and wraps the result in the plugindata/jsep envelope.
func (e *Engine) handleMessage(ctx context.Context, req *Request, session *Session, handle *Handle, ackWriter func(*Reply)) (*Reply, *ProtocolError) {
	body, perr := parseBody(req.Body)
	if perr != nil {
		return nil, perr
	}
	if body.Request == "" {
		return nil, errMissingKey("request")
	}

	sendAck := func() {
		if ackWriter != nil {
			ackWriter(&Reply{Janus: "ack", Transaction: req.Transaction, SessionID: session.ID})
		}
	}

	var data map[string]any
	var jsepOut *Jsep

	switch body.Request {
	case "create":
		data, perr = e.create(ctx, session, handle, body)

	case "destroy":
		data, perr = e.destroy(ctx, session, body)

	case "join":
		sendAck()
		data, jsepOut, perr = e.join(ctx, session, handle, body, req.Jsep)

	case "configure":
		sendAck()
		data, jsepOut, perr = e.configure(ctx, session, handle, body, req.Jsep)

	case "start":
		sendAck()
		data, perr = e.start(ctx, session, handle, body, req.Jsep)

	default:
		perr = newErr(ErrUnknownRequest, "Unknown request '%s'", body.Request)
	}

	if perr != nil {
		return nil, perr
	}

	reply := &Reply{
		Janus:       "success",
		Transaction: req.Transaction,
		SessionID:   session.ID,
		Sender:      handle.ID,
		Plugindata:  &Plugindata{Plugin: videoroomPlugin, Data: data},
	}
	if jsepOut != nil {
		reply.Jsep = jsepOut
	}
	return reply, nil
}

// create implements 4.E's "create": handle.role must be none. Allocates a
// room id by rejection, then attempts call_get_or_create(must_be_new=true)
// against the media engine; a collision (should not happen given id
// uniqueness, but defended against per the original source) causes a
// retry with a freshly allocated id.
func (e *Engine) create(ctx context.Context, session *Session, handle *Handle, body *messageBody) (map[string]any, *ProtocolError) {
	if handle.Role != RoleNone {
		return nil, errAlreadyInRoom()
	}

	for {
		roomID := allocate(e.reg.roomTaken)
		callID := callIDFor(roomID)
		call, err := e.media.CallGetOrCreate(ctx, callID, true)
		if err != nil {
			// call already existed under this (freshly minted, collision-free)
			// id: extremely unlikely, but retry with a new id rather than
			// adopting a call we did not mint, exactly as the original source
			// does.
			continue
		}

		room := newRoom(roomID, callID, body.Publishers, session, handle.ID, call)
		e.reg.insertRoom(room)
		handle.Role = RoleControlling
		handle.RoomID = roomID

		return map[string]any{
			"videoroom": "created",
			"room":      roomID,
			"permanent": false,
		}, nil
	}
}

// destroy implements 4.E's "destroy": pre-condition is room exists and is
// owned by the caller's session. The 426 "No such room" error is reused for
// both "does not exist" and "exists but not owned", matching the original's
// non-disclosing behavior.
func (e *Engine) destroy(ctx context.Context, session *Session, body *messageBody) (map[string]any, *ProtocolError) {
	if body.Room == 0 {
		return nil, errMissingKey("room")
	}
	room, ok := e.reg.lookupRoom(body.Room)
	if !ok || !room.ownedBy(session) {
		return nil, errNoSuchRoom()
	}

	e.reg.removeRoom(room.ID)
	for _, handleID := range room.publisherHandleIDs() {
		for feedID := range e.feedsOwnedBy(handleID) {
			e.reg.removeFeed(feedID)
		}
	}
	if err := e.media.CallDestroy(ctx, room.call()); err != nil {
		e.logger.Error("call destroy failed", "room", room.ID, "error", err)
	}

	return map[string]any{
		"videoroom": "destroyed",
		"room":      room.ID,
	}, nil
}

// feedsOwnedBy is a small helper used by destroy and by the reaper to find which global
// feed-table entries point at handleID, since the feeds table is keyed by
// feed id, not handle id.
func (e *Engine) feedsOwnedBy(handleID Identifier) map[Identifier]Identifier {
	e.reg.mu.Lock()
	defer e.reg.mu.Unlock()
	out := make(map[Identifier]Identifier)
	for feedID, owner := range e.reg.feeds {
		if owner == handleID {
			out[feedID] = owner
		}
	}
	return out
}

// join implements 4.E's "join". Step 2's validation order (ptype before
// room/role checks) matches the original source's retcode-setting order.
func (e *Engine) join(ctx context.Context, session *Session, handle *Handle, body *messageBody, jsep *Jsep) (map[string]any, *Jsep, *ProtocolError) {
	if body.Ptype != "publisher" && body.Ptype != "subscriber" && body.Ptype != "listener" {
		return nil, nil, errInvalidPtype(body.Ptype)
	}
	if body.Room == 0 {
		return nil, nil, errMissingKey("room")
	}
	room, ok := e.reg.lookupRoom(body.Room)
	if !ok || !room.ownedBy(session) {
		return nil, nil, errNoSuchRoom()
	}
	if handle.Role != RoleNone {
		return nil, nil, errAlreadyInRoom()
	}

	if body.Ptype == "publisher" {
		feedID := allocate(e.reg.feedTaken)
		// Commit-on-success: nothing is inserted until here, and there is no
		// further fallible step for a publisher join, so the insertion is
		// the commit point itself.
		e.reg.insertFeed(feedID, handle.ID)
		room.addPublisher(handle.ID, feedID)

		handle.Role = RolePublisher
		handle.RoomID = room.ID

		return map[string]any{
			"videoroom":  "joined",
			"room":       room.ID,
			"id":         feedID,
			"publishers": room.otherPublisherFeeds(handle.ID),
		}, nil, nil
	}

	// subscriber / listener
	if body.Feed == 0 {
		return nil, nil, errMissingKey("feed")
	}
	publisherHandleID, ok := e.reg.lookupFeed(body.Feed)
	if !ok {
		return nil, nil, errMediaEngine("No such feed (%d) exists", body.Feed)
	}
	if !room.hasPublisherHandle(publisherHandleID) {
		return nil, nil, errMediaEngine("No such feed (%d) exists", body.Feed)
	}

	// Tentative: insert the subscriber entry, then roll back if the media
	// engine work below fails, per the commit-on-success discipline adopted
	// for the error-path leak the original source has here.
	room.addSubscriber(handle.ID, body.Feed)
	rollback := func() { room.removeSubscriber(handle.ID) }

	call, err := e.media.CallGet(ctx, room.CallID)
	if err != nil {
		rollback()
		return nil, nil, errMediaEngine("%v", err)
	}

	sourceML, found, err := e.media.MonologueGet(ctx, call, fmt.Sprint(publisherHandleID))
	if err != nil || !found {
		rollback()
		return nil, nil, errMediaEngine("No such feed exists")
	}
	destML, err := e.media.MonologueGetOrCreate(ctx, call, fmt.Sprint(handle.ID))
	if err != nil {
		rollback()
		return nil, nil, errMediaEngine("%v", err)
	}

	flags := mediaengine.NgFlags{Operation: mediaengine.OpRequest}
	if err := e.media.SubscribeRequest(ctx, sourceML, destML, flags); err != nil {
		rollback()
		return nil, nil, errMediaEngine("%v", err)
	}

	lastSDP := e.lastSDP(publisherHandleID)
	chopper := e.media.NewChopper(lastSDP)
	offerSDP, err := e.media.SDPReplace(ctx, chopper, lastSDP, destML, flags)
	if err != nil {
		rollback()
		return nil, nil, errMediaEngine("%v", err)
	}

	handle.Role = RoleSubscriber
	handle.RoomID = room.ID

	return map[string]any{
			"videoroom": "attached",
			"room":      room.ID,
			"id":        body.Feed,
		}, &Jsep{Type: "offer", SDP: offerSDP}, nil
}

// configure implements 4.E's "configure".
func (e *Engine) configure(ctx context.Context, session *Session, handle *Handle, body *messageBody, jsep *Jsep) (map[string]any, *Jsep, *ProtocolError) {
	if body.Feed == 0 {
		return nil, nil, errMissingKey("feed")
	}
	if body.Room == 0 {
		return nil, nil, errMissingKey("room")
	}
	if handle.Role != RolePublisher || handle.RoomID != body.Room {
		return nil, nil, errMediaEngine("Not a publisher in this room")
	}
	if jsep == nil || jsep.Type != "offer" || jsep.SDP == "" {
		return nil, nil, errMediaEngine("Not an offer")
	}

	doc, err := e.media.SDPParse(jsep.SDP)
	if err != nil {
		return nil, nil, errMediaEngine("SDP parse failed: %v", err)
	}
	streams, err := e.media.SDPStreams(doc)
	if err != nil {
		return nil, nil, errMediaEngine("SDP streams failed: %v", err)
	}

	room, ok := e.reg.lookupRoom(body.Room)
	if !ok {
		return nil, nil, errNoSuchRoom()
	}
	call, err := e.media.CallGet(ctx, room.CallID)
	if err != nil {
		return nil, nil, errMediaEngine("%v", err)
	}

	ml, err := e.media.MonologueGetOrCreate(ctx, call, fmt.Sprint(handle.ID))
	if err != nil {
		return nil, nil, errMediaEngine("%v", err)
	}

	flags := mediaengine.NgFlags{Operation: mediaengine.OpPublish}
	if err := e.media.Publish(ctx, ml, streams, flags); err != nil {
		return nil, nil, errMediaEngine("%v", err)
	}

	answerSDP, err := e.media.SDPCreate(ctx, ml, flags)
	if err != nil {
		return nil, nil, errMediaEngine("SDP generation failed: %v", err)
	}
	e.media.SaveLastSDP(ml, doc)
	e.setLastSDP(handle.ID, doc)

	data := map[string]any{
		"videoroom":  "event",
		"room":       room.ID,
		"configured": "ok",
	}
	for _, s := range streams {
		if len(s.CodecPrefs) == 0 {
			continue
		}
		switch s.Type {
		case "audio":
			data["audio_codec"] = s.CodecPrefs[0]
		case "video":
			data["video_codec"] = s.CodecPrefs[0]
		}
	}

	return data, &Jsep{Type: "answer", SDP: answerSDP}, nil
}

// start implements 4.E's "start".
func (e *Engine) start(ctx context.Context, session *Session, handle *Handle, body *messageBody, jsep *Jsep) (map[string]any, *ProtocolError) {
	if body.Feed == 0 {
		return nil, errMissingKey("feed")
	}
	if body.Room == 0 {
		return nil, errMissingKey("room")
	}
	if handle.Role != RoleSubscriber || handle.RoomID != body.Room {
		return nil, errMediaEngine("Not a subscriber in this room")
	}
	if jsep == nil || jsep.Type != "answer" || jsep.SDP == "" {
		return nil, errMediaEngine("Not an answer")
	}

	doc, err := e.media.SDPParse(jsep.SDP)
	if err != nil {
		return nil, errMediaEngine("SDP parse failed: %v", err)
	}
	streams, err := e.media.SDPStreams(doc)
	if err != nil {
		return nil, errMediaEngine("SDP streams failed: %v", err)
	}

	room, ok := e.reg.lookupRoom(body.Room)
	if !ok {
		return nil, errNoSuchRoom()
	}
	publisherHandleID, ok := e.reg.lookupFeed(body.Feed)
	if !ok {
		return nil, errMediaEngine("No such feed exists")
	}
	call, err := e.media.CallGet(ctx, room.CallID)
	if err != nil {
		return nil, errMediaEngine("%v", err)
	}

	sourceML, found, err := e.media.MonologueGet(ctx, call, fmt.Sprint(publisherHandleID))
	if err != nil || !found {
		return nil, errMediaEngine("No such feed exists")
	}
	// The destination monologue must already exist: it was created during
	// join. A miss here means "Subscriber not found", not a get-or-create.
	destML, found, err := e.media.MonologueGet(ctx, call, fmt.Sprint(handle.ID))
	if err != nil || !found {
		return nil, errMediaEngine("Subscriber not found")
	}

	flags := mediaengine.NgFlags{Operation: mediaengine.OpPublish}
	if err := e.media.SubscribeAnswer(ctx, sourceML, destML, flags, streams); err != nil {
		return nil, errMediaEngine("%v", err)
	}

	return map[string]any{
		"videoroom": "event",
		"room":      room.ID,
		"started":   "ok",
	}, nil
}
