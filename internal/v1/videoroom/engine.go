package videoroom

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/nullcaster/videoroom-gateway/internal/v1/mediaengine"
	"github.com/nullcaster/videoroom-gateway/internal/v1/metrics"
	"github.com/nullcaster/videoroom-gateway/internal/v1/tokenstore"
)

const serverVersion = "0.1.0"

// Config carries the operational knobs the protocol core needs at runtime.
// Loading these from the environment is the config package's job (ambient
// stack); Engine only consumes the resolved values.
type Config struct {
	AdminSecret    string
	IdleTimeout    time.Duration
	ReaperInterval time.Duration
}

// Engine is the top-level dispatcher (4.F): it owns the registry, the media
// engine client, and the reaper, and is the single entry point transports
// call into. It corresponds to component F in the design, with the
// subcommand handlers (E, G) implemented as its methods in videoroomops.go
// and trickle.go.
type Engine struct {
	reg    *registry
	media  mediaengine.Engine
	tokens tokenstore.Store
	cfg    Config
	logger *slog.Logger

	stopReaper chan struct{}

	// lastSDPMu/lastSDPs cache each publisher's last-offered SDP, keyed by
	// the publishing handle id stringified the same way the media engine
	// keys monologues. The media engine's own SaveLastSDP persists this for
	// its own use; this local cache is what join(subscriber) reads to build
	// the SDP chopper, so this core never needs a "fetch last SDP" call on
	// the engine interface.
	lastSDPMu sync.Mutex
	lastSDPs  map[Identifier]mediaengine.SDPDoc
}

func NewEngine(media mediaengine.Engine, tokens tokenstore.Store, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if tokens == nil {
		tokens = tokenstore.NewMemoryStore()
	}
	e := &Engine{
		reg:        newRegistry(),
		media:      media,
		tokens:     tokens,
		cfg:        cfg,
		logger:     logger,
		stopReaper: make(chan struct{}),
		lastSDPs:   make(map[Identifier]mediaengine.SDPDoc),
	}
	if cfg.ReaperInterval > 0 {
		go e.runReaper()
	}
	return e
}

func (e *Engine) Close() {
	close(e.stopReaper)
}

func (e *Engine) setLastSDP(handleID Identifier, doc mediaengine.SDPDoc) {
	e.lastSDPMu.Lock()
	e.lastSDPs[handleID] = doc
	e.lastSDPMu.Unlock()
}

func (e *Engine) lastSDP(handleID Identifier) mediaengine.SDPDoc {
	e.lastSDPMu.Lock()
	defer e.lastSDPMu.Unlock()
	return e.lastSDPs[handleID]
}

// Dispatch parses and routes a single request, per 4.F. ackWriter is
// non-nil only on transports that can carry more than one reply per
// request (WebSocket); Engine checks it is non-nil before attempting the
// early-ack write for message requests that route to join/configure/start,
// so HTTP carriage (ackWriter == nil) silently gets only the final reply,
// per §6's transport dualism clause.
func (e *Engine) Dispatch(ctx context.Context, transportID TransportID, req *Request, ackWriter func(*Reply)) *Reply {
	start := time.Now()
	command := req.Janus

	if req.Janus == "" || req.Transaction == "" {
		metrics.DispatchRequests.WithLabelValues("unknown", "error").Inc()
		return errorReply(req.Transaction, 0, 0, errMissingKey("janus/transaction"))
	}

	authorised := e.cfg.AdminSecret != "" && req.AdminSecret == e.cfg.AdminSecret

	// trickle is the sole exception to "include sender when applicable":
	// the original source clears handle_id before building the reply for
	// trickle specifically, so its error (and ack) envelopes never carry one.
	errHandleID := req.HandleID
	if req.Janus == "trickle" {
		errHandleID = 0
	}

	var session *Session
	if req.SessionID != 0 {
		s, ok := e.reg.lookupSession(req.SessionID)
		if !ok {
			metrics.DispatchRequests.WithLabelValues(command, "error").Inc()
			return errorReply(req.Transaction, req.SessionID, errHandleID, errNoSuchSession())
		}
		session = s
	}

	reply, pe := e.route(ctx, transportID, req, session, authorised, ackWriter)
	metrics.DispatchDuration.WithLabelValues(command).Observe(time.Since(start).Seconds())
	if pe != nil {
		metrics.DispatchRequests.WithLabelValues(command, "error").Inc()
		metrics.DispatchErrors.WithLabelValues(strconv.Itoa(pe.Code)).Inc()
		e.logger.Warn("videoroom request failed",
			"janus", req.Janus, "transaction", req.Transaction,
			"session_id", req.SessionID, "handle_id", req.HandleID, "code", pe.Code)
		return errorReply(req.Transaction, req.SessionID, errHandleID, pe)
	}
	metrics.DispatchRequests.WithLabelValues(command, "ok").Inc()
	return reply
}

func (e *Engine) route(ctx context.Context, transportID TransportID, req *Request, session *Session, authorised bool, ackWriter func(*Reply)) (*Reply, *ProtocolError) {
	switch req.Janus {
	case "ping":
		return &Reply{Janus: "pong", Transaction: req.Transaction}, nil

	case "keepalive":
		if session == nil {
			return nil, errNoSuchSession()
		}
		return &Reply{Janus: "ack", Transaction: req.Transaction, SessionID: session.ID}, nil

	case "info":
		return &Reply{
			Janus:       "server_info",
			Transaction: req.Transaction,
			Data: map[string]any{
				"name":    "videoroom-signaling",
				"version": serverVersion,
				"plugins": []string{videoroomPlugin},
			},
		}, nil

	case "add_token":
		if !authorised {
			return nil, newErr(ErrMissingAdminSecret, "Unauthorized request (wrong or missing secret)")
		}
		if req.Token == "" {
			return nil, errMissingKey("token")
		}
		if err := e.tokens.AddToken(ctx, req.Token); err != nil {
			return nil, errMediaEngine("token store unavailable")
		}
		return &Reply{
			Janus: "success", Transaction: req.Transaction,
			Data: map[string]any{"plugins": []string{videoroomPlugin}},
		}, nil

	case "create":
		s := e.createSession(transportID)
		return &Reply{
			Janus: "success", Transaction: req.Transaction,
			Data: map[string]any{"id": s.ID},
		}, nil

	case "attach":
		if session == nil {
			return nil, errNoSuchSession()
		}
		if req.Plugin != videoroomPlugin {
			return nil, newErr(ErrUnsupportedPlugin, "No such plugin '%s'", req.Plugin)
		}
		h := e.attach(session)
		return &Reply{
			Janus: "success", Transaction: req.Transaction, SessionID: session.ID,
			Data: map[string]any{"id": h.ID},
		}, nil

	case "message":
		if session == nil {
			return nil, errNoSuchSession()
		}
		if req.HandleID == 0 {
			return nil, newErr(ErrUnhandledRequest, "No plugin handle given")
		}
		// Held for the entire operation, including the blocking media-engine
		// work handleMessage may perform, so concurrent requests on this
		// handle are serialized rather than just the lookup below.
		session.Lock()
		defer session.Unlock()
		handle, ok := session.getHandleLocked(req.HandleID)
		if !ok {
			return nil, newErr(ErrUnhandledRequest, "No plugin handle given")
		}
		return e.handleMessage(ctx, req, session, handle, ackWriter)

	case "trickle":
		if session == nil {
			return nil, errNoSuchSession()
		}
		if req.HandleID == 0 {
			return nil, errUnhandledRequest()
		}
		session.Lock()
		defer session.Unlock()
		handle, ok := session.getHandleLocked(req.HandleID)
		if !ok {
			return nil, errUnhandledRequest()
		}
		if err := e.trickle(ctx, session, handle, req.Candidate); err != nil {
			return nil, err
		}
		return &Reply{Janus: "ack", Transaction: req.Transaction, SessionID: session.ID}, nil

	default:
		return nil, errUnhandledRequest()
	}
}

// createSession allocates a session id by rejection (each probe takes the
// registry lock), adopts transportID into its transports set unless it is
// the empty id HTTP carriage passes, and registers it.
func (e *Engine) createSession(transportID TransportID) *Session {
	id := allocate(e.reg.sessionExists)
	s := newSession(id)
	if transportID != "" {
		s.AddTransport(transportID)
	}
	e.reg.insertSession(s)
	return s
}

// attach allocates a handle id (presence only, in the global handles table)
// and inserts the handle into the session under the session lock; the
// handle is thereafter owned exclusively by the session.
func (e *Engine) attach(session *Session) *Handle {
	id := allocate(e.reg.handleIDTaken)
	e.reg.insertHandleID(id)
	h := &Handle{ID: id, SessionID: session.ID, Role: RoleNone}
	session.addHandle(h)
	return h
}
