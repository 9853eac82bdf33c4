package mediaengine

import (
	"context"
	"fmt"
	"sync"
)

// Fake is an in-memory Engine used by videoroom package tests. It performs
// no real SDP or ICE work: SDPParse/SDPCreate/SDPReplace just thread opaque
// strings through so tests can assert on sequencing and error propagation
// without depending on a real media engine.
type Fake struct {
	mu         sync.Mutex
	calls      map[string]bool
	monologues map[string]map[string]bool // callID -> monologueID -> exists

	// Hooks let a test force a failure from a specific call without
	// reaching into Fake's internals.
	FailPublish          func(monologueID string) error
	FailSubscribeRequest func(source, dest string) error
	FailSubscribeAnswer  func(source, dest string) error
	FailSDPCreate        func() error

	PublishCalls []string
}

func NewFake() *Fake {
	return &Fake{
		calls:      make(map[string]bool),
		monologues: make(map[string]map[string]bool),
	}
}

type fakeCallRef struct{ id string }

func (fakeCallRef) callRef() {}

type fakeMonologueRef struct {
	callID string
	id     string
}

func (fakeMonologueRef) monologueRef() {}

type fakeMediaSectionRef struct {
	index int
	ufrag string
}

func (fakeMediaSectionRef) mediaSectionRef() {}
func (r fakeMediaSectionRef) SectionIndex() int    { return r.index }
func (r fakeMediaSectionRef) SectionUfrag() string { return r.ufrag }

type fakeChopper struct{}

func (fakeChopper) sdpChopper() {}

func (f *Fake) CallGetOrCreate(ctx context.Context, callID string, mustBeNew bool) (CallRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls[callID] && mustBeNew {
		return nil, fmt.Errorf("call %s already exists", callID)
	}
	f.calls[callID] = true
	if f.monologues[callID] == nil {
		f.monologues[callID] = make(map[string]bool)
	}
	return fakeCallRef{id: callID}, nil
}

func (f *Fake) CallGet(ctx context.Context, callID string) (CallRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.calls[callID] {
		return nil, fmt.Errorf("no such call %s", callID)
	}
	return fakeCallRef{id: callID}, nil
}

func (f *Fake) CallDestroy(ctx context.Context, call CallRef) error {
	ref := call.(fakeCallRef)
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.calls, ref.id)
	delete(f.monologues, ref.id)
	return nil
}

func (f *Fake) MonologueGet(ctx context.Context, call CallRef, monologueID string) (MonologueRef, bool, error) {
	ref := call.(fakeCallRef)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.monologues[ref.id] == nil || !f.monologues[ref.id][monologueID] {
		return nil, false, nil
	}
	return fakeMonologueRef{callID: ref.id, id: monologueID}, true, nil
}

func (f *Fake) MonologueGetOrCreate(ctx context.Context, call CallRef, monologueID string) (MonologueRef, error) {
	ref := call.(fakeCallRef)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.monologues[ref.id] == nil {
		f.monologues[ref.id] = make(map[string]bool)
	}
	f.monologues[ref.id][monologueID] = true
	return fakeMonologueRef{callID: ref.id, id: monologueID}, nil
}

func (f *Fake) Publish(ctx context.Context, ml MonologueRef, streams []MediaStream, flags NgFlags) error {
	ref := ml.(fakeMonologueRef)
	if f.FailPublish != nil {
		if err := f.FailPublish(ref.id); err != nil {
			return err
		}
	}
	f.mu.Lock()
	f.PublishCalls = append(f.PublishCalls, ref.id)
	f.mu.Unlock()
	return nil
}

func (f *Fake) SubscribeRequest(ctx context.Context, source, dest MonologueRef, flags NgFlags) error {
	s, d := source.(fakeMonologueRef), dest.(fakeMonologueRef)
	if f.FailSubscribeRequest != nil {
		return f.FailSubscribeRequest(s.id, d.id)
	}
	return nil
}

func (f *Fake) SubscribeAnswer(ctx context.Context, source, dest MonologueRef, flags NgFlags, streams []MediaStream) error {
	s, d := source.(fakeMonologueRef), dest.(fakeMonologueRef)
	if f.FailSubscribeAnswer != nil {
		return f.FailSubscribeAnswer(s.id, d.id)
	}
	return nil
}

func (f *Fake) SDPParse(raw string) (SDPDoc, error) {
	if raw == "" {
		return SDPDoc{}, fmt.Errorf("empty sdp")
	}
	return SDPDoc{Raw: raw}, nil
}

func (f *Fake) SDPStreams(doc SDPDoc) ([]MediaStream, error) {
	return []MediaStream{
		{Index: 0, Type: "audio", CodecPrefs: []string{"opus"}},
		{Index: 1, Type: "video", CodecPrefs: []string{"vp8"}},
	}, nil
}

func (f *Fake) SDPCreate(ctx context.Context, ml MonologueRef, flags NgFlags) (string, error) {
	if f.FailSDPCreate != nil {
		if err := f.FailSDPCreate(); err != nil {
			return "", err
		}
	}
	return "v=0\r\no=- 0 0 IN IP4 127.0.0.1\r\ns=-\r\n", nil
}

func (f *Fake) SDPReplace(ctx context.Context, chopper SDPChopper, lastSDP SDPDoc, dest MonologueRef, flags NgFlags) (string, error) {
	return lastSDP.Raw, nil
}

func (f *Fake) NewChopper(lastSDP SDPDoc) SDPChopper { return fakeChopper{} }

func (f *Fake) SaveLastSDP(ml MonologueRef, doc SDPDoc) {}

func (f *Fake) ICEUpdate(ctx context.Context, media MediaSectionRef, params StreamParams) error {
	return nil
}

func (f *Fake) FindMedia(ml MonologueRef, sdpMid string, sdpMLineIndex int) (MediaSectionRef, bool) {
	if sdpMLineIndex < 0 || sdpMLineIndex > 1 {
		return nil, false
	}
	return fakeMediaSectionRef{index: sdpMLineIndex, ufrag: fmt.Sprintf("ufrag%d", sdpMLineIndex)}, true
}
