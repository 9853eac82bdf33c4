package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/nullcaster/videoroom-gateway/internal/v1/auth"
	"github.com/nullcaster/videoroom-gateway/internal/v1/health"
	"github.com/nullcaster/videoroom-gateway/internal/v1/logging"
	"github.com/nullcaster/videoroom-gateway/internal/v1/metrics"
	"github.com/nullcaster/videoroom-gateway/internal/v1/middleware"
	"github.com/nullcaster/videoroom-gateway/internal/v1/ratelimit"
	"github.com/nullcaster/videoroom-gateway/internal/v1/videoroom"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// tokenValidator is the subset of auth.Validator this package depends on, so
// a transport-level bearer-auth gate can be swapped for auth.MockValidator
// in dev mode without this package importing anything dev-specific.
type tokenValidator interface {
	ValidateToken(tokenString string) (*auth.CustomClaims, error)
}

// Server wires the gin router for the protocol's two carriers — the
// WebSocket upgrade and the HTTP carriage of individual requests — plus the
// ambient /metrics and /healthz|/readyz endpoints. It does not interpret a
// single byte of the Janus wire format itself; that is entirely the
// dispatcher's job (internal/v1/videoroom).
type Server struct {
	engine         *videoroom.Engine
	validator      tokenValidator // nil disables the optional bearer-auth gate
	allowedOrigins []string
	rateLimiter    *ratelimit.RateLimiter
	health         *health.Handler

	router *gin.Engine
}

// NewServer builds the gin router. validator may be nil to run with the
// transport-level bearer gate disabled (the protocol's own admin_secret
// check in videoroom.Engine still applies regardless).
func NewServer(engine *videoroom.Engine, validator tokenValidator, allowedOrigins []string, rl *ratelimit.RateLimiter, healthHandler *health.Handler) *Server {
	s := &Server{
		engine:         engine,
		validator:      validator,
		allowedOrigins: allowedOrigins,
		rateLimiter:    rl,
		health:         healthHandler,
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("videoroom-signaling"))
	r.Use(middleware.CorrelationID())
	r.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return validateOrigin(origin, s.allowedOrigins) == nil
		},
		AllowMethods:     []string{"GET", "POST"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Sec-WebSocket-Protocol"},
		AllowCredentials: true,
	}))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if s.health != nil {
		r.GET("/healthz", s.health.Liveness)
		r.GET("/readyz", s.health.Readiness)
	}

	janus := r.Group("/")
	if s.rateLimiter != nil {
		janus.Use(s.rateLimiter.GlobalMiddleware())
	}
	janus.GET("/ws", s.serveWS)
	janus.POST("/janus", s.serveHTTP)

	return r
}

// serveHTTP implements the HTTP carriage half of the protocol's transport
// dualism: one JSON request body in, one JSON reply body out, with ackWriter
// nil since an HTTP response can only ever carry a single document.
func (s *Server) serveHTTP(c *gin.Context) {
	if s.validator != nil {
		if _, err := s.authenticate(c); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
	}

	var req videoroom.Request
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		c.JSON(http.StatusBadRequest, videoroom.Reply{
			Janus: "error",
			Error: &videoroom.WireError{Code: videoroom.ErrJSONParse, Reason: "JSON parse failed"},
		})
		return
	}

	reply := s.engine.Dispatch(c.Request.Context(), "", &req, nil)
	c.JSON(http.StatusOK, reply)
}

// serveWS adopts one WebSocket connection as a long-lived transport and
// hands it to a wsClient, which owns the connection for its lifetime.
func (s *Server) serveWS(c *gin.Context) {
	if s.validator != nil {
		if _, err := s.authenticate(c); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
	}

	if s.rateLimiter != nil && !s.rateLimiter.CheckWebSocket(c) {
		return
	}

	conn, err := s.upgrade(c)
	if err != nil {
		return
	}

	metrics.IncConnection()
	client := newWSClient(conn, s.engine)
	go func() {
		defer metrics.DecConnection()
		client.serve()
	}()
}

// authenticate extracts a bearer token from the Sec-WebSocket-Protocol
// header or the Authorization header and validates it. It is independent of
// the protocol's own admin_secret, which videoroom.Engine checks itself.
func (s *Server) authenticate(c *gin.Context) (*auth.CustomClaims, error) {
	token := extractBearerToken(c.Request)
	if token == "" {
		return nil, fmt.Errorf("missing bearer token")
	}
	claims, err := s.validator.ValidateToken(token)
	if err != nil {
		logging.Warn(c.Request.Context(), "token validation failed", zap.Error(err))
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	return claims, nil
}

func extractBearerToken(r *http.Request) string {
	if proto := r.Header.Get("Sec-WebSocket-Protocol"); proto != "" {
		for _, p := range strings.Split(proto, ",") {
			p = strings.TrimSpace(p)
			if p != "" && p != "access_token" {
				return p
			}
		}
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// validateOrigin checks the Origin header's scheme+host against the
// allowlist. An empty origin (non-browser clients) is allowed through.
func validateOrigin(origin string, allowedOrigins []string) error {
	if origin == "" {
		return nil
	}
	originURL, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("invalid origin URL: %w", err)
	}
	for _, allowed := range allowedOrigins {
		allowedURL, err := url.Parse(allowed)
		if err != nil {
			continue
		}
		if originURL.Scheme == allowedURL.Scheme && originURL.Host == allowedURL.Host {
			return nil
		}
	}
	return fmt.Errorf("origin not allowed: %s", origin)
}

var wsBufferPool = &sync.Pool{
	New: func() any { return make([]byte, 4096) },
}

func (s *Server) upgrade(c *gin.Context) (wsConnection, error) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  maxMessageSize,
		WriteBufferSize: maxMessageSize,
		CheckOrigin: func(r *http.Request) bool {
			return validateOrigin(r.Header.Get("Origin"), s.allowedOrigins) == nil
		},
		WriteBufferPool: wsBufferPool,
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Error(context.Background(), "websocket upgrade failed", zap.Error(err))
		return nil, err
	}
	conn.SetReadLimit(maxMessageSize)
	return conn, nil
}
