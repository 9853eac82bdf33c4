package transport

import "github.com/google/uuid"

// newTransportID mints an opaque identifier for a newly adopted transport
// (a WebSocket connection). It is unrelated to the protocol's own
// Identifier namespace and never appears on the wire.
func newTransportID() string {
	return uuid.NewString()
}
