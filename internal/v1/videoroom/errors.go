package videoroom

import "fmt"

// Error codes carried in the wire-level error.code field. These mirror the
// numeric codes the original Janus videoroom plugin returns; clients key
// their error handling off the integer, not the message, so the values
// themselves are part of the wire contract.
const (
	ErrMissingAdminSecret  = 403
	ErrUnknownRequest      = 423
	ErrNoSuchRoom          = 426
	ErrInvalidPtype        = 430
	ErrAlreadyInRoom       = 436
	ErrJSONParse           = 454
	ErrNotAnObject         = 455
	ErrMissingMandatoryKey = 456
	ErrUnhandledRequest    = 457
	ErrNoSuchSession       = 458
	ErrUnsupportedPlugin   = 460
	ErrICEOrMedia          = 466
	ErrMediaEngine         = 512
)

// ProtocolError is the (code, reason) pair a handler returns. The dispatcher
// turns it into the wire-level error envelope; it never causes the process
// to exit or affects any session but the one that produced it.
type ProtocolError struct {
	Code   int
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("videoroom: %d %s", e.Code, e.Reason)
}

func newErr(code int, format string, args ...any) *ProtocolError {
	return &ProtocolError{Code: code, Reason: fmt.Sprintf(format, args...)}
}

func errNoSuchRoom() *ProtocolError {
	return newErr(ErrNoSuchRoom, "No such room")
}

func errMissingKey(key string) *ProtocolError {
	return newErr(ErrMissingMandatoryKey, "Missing mandatory element (%s)", key)
}

func errAlreadyInRoom() *ProtocolError {
	return newErr(ErrAlreadyInRoom, "Already in as a publisher/controller/subscriber on this room")
}

func errInvalidPtype(ptype string) *ProtocolError {
	return newErr(ErrInvalidPtype, "Invalid element (ptype %s)", ptype)
}

func errMediaEngine(format string, args ...any) *ProtocolError {
	return newErr(ErrMediaEngine, format, args...)
}

func errNoSuchSession() *ProtocolError {
	return newErr(ErrNoSuchSession, "Session not found")
}

func errUnhandledRequest() *ProtocolError {
	return newErr(ErrUnhandledRequest, "Unhandled request method")
}
