package videoroom

import "encoding/json"

// Request is the outer JSON envelope a transport hands the dispatcher. It is
// deliberately loose (json.RawMessage body) since the shape of "body" is
// plugin-specific and only interpreted once a handle has resolved to the
// videoroom plugin.
type Request struct {
	Janus       string          `json:"janus"`
	Transaction string          `json:"transaction"`
	AdminSecret string          `json:"admin_secret,omitempty"`
	SessionID   Identifier      `json:"session_id,omitempty"`
	HandleID    Identifier      `json:"handle_id,omitempty"`
	Plugin      string          `json:"plugin,omitempty"`
	Token       string          `json:"token,omitempty"`
	Body        json.RawMessage `json:"body,omitempty"`
	Jsep        *Jsep           `json:"jsep,omitempty"`
	Candidate   json.RawMessage `json:"candidate,omitempty"`
}

// Jsep is the {type, sdp} envelope carrying offers and answers.
type Jsep struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// Reply is the uniform top-level wire reply. Janus is one of success, ack,
// pong, event, server_info, error.
type Reply struct {
	Janus       string      `json:"janus"`
	Transaction string      `json:"transaction"`
	SessionID   Identifier  `json:"session_id,omitempty"`
	Sender      Identifier  `json:"sender,omitempty"`
	Error       *WireError  `json:"error,omitempty"`
	Data        any         `json:"data,omitempty"`
	Plugindata  *Plugindata `json:"plugindata,omitempty"`
	Jsep        *Jsep       `json:"jsep,omitempty"`
}

type WireError struct {
	Code   int    `json:"code"`
	Reason string `json:"reason"`
}

type Plugindata struct {
	Plugin string `json:"plugin"`
	Data   any    `json:"data"`
}

const videoroomPlugin = "janus.plugin.videoroom"

func errorReply(transaction string, sessionID, handleID Identifier, pe *ProtocolError) *Reply {
	r := &Reply{
		Janus:       "error",
		Transaction: transaction,
		Error:       &WireError{Code: pe.Code, Reason: pe.Reason},
	}
	if sessionID != 0 {
		r.SessionID = sessionID
	}
	if handleID != 0 {
		r.Sender = handleID
	}
	return r
}

func asProtocolError(err error) *ProtocolError {
	if pe, ok := err.(*ProtocolError); ok {
		return pe
	}
	return errMediaEngine("%v", err)
}
