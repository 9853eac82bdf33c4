package videoroom

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nullcaster/videoroom-gateway/internal/v1/mediaengine"
)

type trickleCandidate struct {
	Candidate     string `json:"candidate"`
	SdpMid        string `json:"sdpMid"`
	SdpMLineIndex *int   `json:"sdpMLineIndex"`
}

// trickle implements 4.G: resolve the handle's room, the room's call, the
// caller's monologue, and the matching media section, then forward the
// parsed candidate to the media engine's ICE agent.
func (e *Engine) trickle(ctx context.Context, session *Session, handle *Handle, raw json.RawMessage) *ProtocolError {
	if len(raw) == 0 {
		return errMissingKey("candidate")
	}
	var cand trickleCandidate
	if err := json.Unmarshal(raw, &cand); err != nil {
		return newErr(ErrMissingMandatoryKey, "Invalid candidate object")
	}
	if cand.Candidate == "" {
		return errMissingKey("candidate")
	}
	if cand.SdpMid == "" && cand.SdpMLineIndex == nil {
		return newErr(ErrMissingMandatoryKey, "Neither sdpMid nor sdpMLineIndex given")
	}

	roomID := handle.RoomID
	room, ok := e.reg.lookupRoom(roomID)
	if !ok || !room.ownedBy(session) {
		return errNoSuchRoom()
	}
	call := room.call()

	ml, found, err := e.media.MonologueGet(ctx, call, fmt.Sprint(handle.ID))
	if err != nil || !found {
		return newErr(ErrICEOrMedia, "No matching media")
	}

	mlineIndex := -1
	if cand.SdpMLineIndex != nil {
		mlineIndex = *cand.SdpMLineIndex
	}
	section, ok := e.media.FindMedia(ml, cand.SdpMid, mlineIndex)
	if !ok {
		return newErr(ErrICEOrMedia, "No matching media")
	}

	candidateStr := strings.TrimPrefix(cand.Candidate, "candidate:")

	sp := mediaengine.StreamParams{
		IceUfrag:      section.SectionUfrag(),
		Index:         section.SectionIndex(),
		IceCandidates: []string{candidateStr},
	}
	if err := e.media.ICEUpdate(ctx, section, sp); err != nil {
		return newErr(ErrICEOrMedia, "ICE update failed: %v", err)
	}
	return nil
}
