// Package transport carries whole JSON request/reply documents between
// clients and the videoroom dispatcher, either as WebSocket text frames or
// as HTTP request/response bodies, per the protocol's transport dualism
// requirement. It is deliberately thin: parsing and validating the JSON
// envelope itself is the dispatcher's job (internal/v1/videoroom); this
// package only owns connection lifecycle, frame carriage, and the
// single-writer-per-connection discipline the ack-then-reply protocol
// depends on.
package transport

import "time"

// wsConnection abstracts the subset of *websocket.Conn this package uses,
// so tests can substitute a mock connection without a real socket.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetWriteDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20 // 1 MiB, generous for an SDP-bearing JSON frame
)
