package health

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nullcaster/videoroom-gateway/internal/v1/logging"
	"github.com/nullcaster/videoroom-gateway/internal/v1/mediaengine"
	"github.com/nullcaster/videoroom-gateway/internal/v1/tokenstore"
	"go.uber.org/zap"
)

// Handler manages health check endpoints
type Handler struct {
	tokens       tokenstore.Store
	mediaEngine  mediaengine.Checker
	mediaAddr    string
	mediaEnabled bool
}

// NewHandler creates a new health check handler. tokens may be nil in
// single-instance mode with no token store configured.
func NewHandler(tokens tokenstore.Store, mediaEngineAddr string) *Handler {
	enabled := os.Getenv("MEDIA_ENGINE_HEALTH_CHECK_ENABLED") != "false"

	return &Handler{
		tokens:       tokens,
		mediaEngine:  &mediaengine.GRPCHealthChecker{},
		mediaAddr:    mediaEngineAddr,
		mediaEnabled: enabled,
	}
}

// LivenessResponse represents the liveness probe response
type LivenessResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadinessResponse represents the readiness probe response
type ReadinessResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Liveness handles the liveness probe endpoint.
// GET /healthz. Returns 200 if the process is alive (no dependency checks).
func (h *Handler) Liveness(c *gin.Context) {
	response := LivenessResponse{
		Status:    "alive",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	c.JSON(http.StatusOK, response)
}

// Readiness handles the readiness probe endpoint.
// GET /readyz. Returns 200 only if all critical dependencies are healthy,
// 503 if any dependency is unhealthy.
func (h *Handler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	tokenStatus := h.checkTokenStore(ctx)
	checks["tokenstore"] = tokenStatus
	if tokenStatus != "healthy" {
		allHealthy = false
	}

	if h.mediaEnabled {
		mediaStatus := h.checkMediaEngine(ctx)
		checks["media_engine"] = mediaStatus
		if mediaStatus != "healthy" {
			allHealthy = false
		}
	}

	status := "ready"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "unavailable"
		statusCode = http.StatusServiceUnavailable
	}

	response := ReadinessResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	c.JSON(statusCode, response)
}

// checkTokenStore verifies the admin token table is reachable.
func (h *Handler) checkTokenStore(ctx context.Context) string {
	if h.tokens == nil {
		return "healthy"
	}
	if err := h.tokens.Ping(ctx); err != nil {
		logging.Error(ctx, "token store health check failed", zap.Error(err))
		return "unhealthy"
	}
	return "healthy"
}

// checkMediaEngine verifies gRPC connectivity to the media engine using the
// standard health check protocol.
func (h *Handler) checkMediaEngine(ctx context.Context) string {
	if h.mediaEngine == nil {
		return "unhealthy"
	}
	if err := h.mediaEngine.Check(ctx, h.mediaAddr); err != nil {
		logging.Error(ctx, "media engine health check failed", zap.Error(err), zap.String("addr", h.mediaAddr))
		return "unhealthy"
	}
	return "healthy"
}

// HealthCheckResponse is a generic health check response for backward compatibility
type HealthCheckResponse struct {
	Status string         `json:"status"`
	Data   map[string]any `json:"data,omitempty"`
}

// MarshalJSON implements custom JSON marshaling for better formatting
func (r ReadinessResponse) MarshalJSON() ([]byte, error) {
	type Alias ReadinessResponse
	return json.Marshal(&struct {
		*Alias
	}{
		Alias: (*Alias)(&r),
	})
}
