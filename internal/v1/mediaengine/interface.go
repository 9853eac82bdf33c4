// Package mediaengine specifies the boundary between the videoroom protocol
// core and the media engine: a call registry keyed by a textual call-id,
// producing call objects with a master read/write lock, monologues keyed by
// a textual handle id, and media sections with an attached ICE agent. The
// engine itself is out of scope; this package specifies only the interface
// and provides the adapters (HTTP/JSON client, gRPC health check, in-memory
// fake) that let the rest of the codebase talk to it without knowing
// whether it is real or faked.
package mediaengine

import "context"

// CallRef, MonologueRef and MediaSectionRef are opaque handles returned by
// the engine and passed back on subsequent calls. The videoroom package
// never inspects their contents.
type CallRef interface{ callRef() }
type MonologueRef interface{ monologueRef() }

// MediaSectionRef is opaque beyond the two fields the trickle handler (4.G)
// needs to build stream_params: the section's index within its monologue
// and its ICE ufrag, both required alongside the candidate itself.
type MediaSectionRef interface {
	mediaSectionRef()
	SectionIndex() int
	SectionUfrag() string
}

// NgFlags mirrors the media engine's sdp_ng_flags: the operation being
// requested (publish vs. request/answer of a subscription).
type NgFlags struct {
	Operation Operation
}

type Operation int

const (
	OpPublish Operation = iota
	OpRequest
	OpAnswer
)

// MediaStream is one parsed SDP media section (m= line) plus its codec
// preference list, as produced by SDPStreams.
type MediaStream struct {
	Index      int
	Type       string // "audio" | "video" | "application"
	CodecPrefs []string
}

// SDPDoc is a parsed SDP document, opaque to this core beyond what
// SDPStreams extracts from it.
type SDPDoc struct {
	Raw string
}

// SDPChopper is the engine's incremental SDP-rewriting context, built from a
// monologue's last inbound SDP and consumed by SDPReplace.
type SDPChopper interface{ sdpChopper() }

// StreamParams carries a trickled ICE candidate to the engine's ICE agent.
type StreamParams struct {
	IceUfrag      string
	Index         int
	IceCandidates []string
}

// Engine is the interface the videoroom state machine depends on. Every
// method takes a context so callers can cancel on transport disconnect and
// so tracing spans can be attached; the engine itself decides how (or
// whether) to honor cancellation.
type Engine interface {
	CallGetOrCreate(ctx context.Context, callID string, mustBeNew bool) (CallRef, error)
	CallGet(ctx context.Context, callID string) (CallRef, error)
	CallDestroy(ctx context.Context, call CallRef) error

	MonologueGet(ctx context.Context, call CallRef, monologueID string) (MonologueRef, bool, error)
	MonologueGetOrCreate(ctx context.Context, call CallRef, monologueID string) (MonologueRef, error)

	Publish(ctx context.Context, ml MonologueRef, streams []MediaStream, flags NgFlags) error
	SubscribeRequest(ctx context.Context, source, dest MonologueRef, flags NgFlags) error
	SubscribeAnswer(ctx context.Context, source, dest MonologueRef, flags NgFlags, streams []MediaStream) error

	SDPParse(raw string) (SDPDoc, error)
	SDPStreams(doc SDPDoc) ([]MediaStream, error)
	SDPCreate(ctx context.Context, ml MonologueRef, flags NgFlags) (string, error)
	SDPReplace(ctx context.Context, chopper SDPChopper, lastSDP SDPDoc, dest MonologueRef, flags NgFlags) (string, error)
	NewChopper(lastSDP SDPDoc) SDPChopper
	SaveLastSDP(ml MonologueRef, doc SDPDoc)

	ICEUpdate(ctx context.Context, media MediaSectionRef, params StreamParams) error

	// FindMedia resolves a media section within ml, first by sdpMid then by
	// falling back to the nth entry of the monologue's media list, matching
	// the trickle handler's lookup order. ok is false if neither resolves.
	FindMedia(ml MonologueRef, sdpMid string, sdpMLineIndex int) (section MediaSectionRef, ok bool)
}
