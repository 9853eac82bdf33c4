package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/nullcaster/videoroom-gateway/internal/v1/auth"
	"github.com/nullcaster/videoroom-gateway/internal/v1/config"
	"github.com/nullcaster/videoroom-gateway/internal/v1/health"
	"github.com/nullcaster/videoroom-gateway/internal/v1/logging"
	"github.com/nullcaster/videoroom-gateway/internal/v1/mediaengine"
	"github.com/nullcaster/videoroom-gateway/internal/v1/ratelimit"
	"github.com/nullcaster/videoroom-gateway/internal/v1/tokenstore"
	"github.com/nullcaster/videoroom-gateway/internal/v1/tracing"
	"github.com/nullcaster/videoroom-gateway/internal/v1/transport"
	"github.com/nullcaster/videoroom-gateway/internal/v1/videoroom"
)

func main() {
	envPaths := []string{".env", "../../../.env", "../../.env"}
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			slog.Info("loaded environment from", "path", path)
			break
		}
	}

	cfg, err := config.ValidateEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := logging.Initialize(cfg.DevelopmentMode); err != nil {
		slog.Error("failed to initialize logger", "error", err)
		os.Exit(1)
	}

	if collectorAddr := os.Getenv("OTEL_COLLECTOR_ADDR"); collectorAddr != "" {
		tp, err := tracing.InitTracer(context.Background(), "videoroom-signaling", collectorAddr)
		if err != nil {
			logging.Warn(context.Background(), "tracing disabled: failed to initialize tracer")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = tp.Shutdown(ctx)
			}()
		}
	}

	media := mediaengine.NewHTTPClient(cfg.MediaEngineAddr)

	var redisClient *redis.Client
	var tokens tokenstore.Store
	if cfg.RedisEnabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		rs, err := tokenstore.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			slog.Error("failed to connect to redis token store", "error", err)
			os.Exit(1)
		}
		tokens = rs
		defer rs.Close()
	} else {
		tokens = tokenstore.NewMemoryStore()
	}

	rateLimiter, err := ratelimit.NewRateLimiter(cfg, redisClient)
	if err != nil {
		slog.Error("failed to initialize rate limiter", "error", err)
		os.Exit(1)
	}

	var validator interface {
		ValidateToken(tokenString string) (*auth.CustomClaims, error)
	}
	switch {
	case cfg.SkipAuth:
		slog.Warn("authentication DISABLED for development - do not use in production")
		validator = nil
	case cfg.DevelopmentMode:
		slog.Warn("running with MockValidator - development mode only")
		validator = &auth.MockValidator{}
	default:
		if cfg.Auth0Domain == "" || cfg.Auth0Audience == "" {
			slog.Error("AUTH0_DOMAIN and AUTH0_AUDIENCE must be set when SKIP_AUTH=false and DEVELOPMENT_MODE=false")
			os.Exit(1)
		}
		v, err := auth.NewValidator(context.Background(), cfg.Auth0Domain, cfg.Auth0Audience)
		if err != nil {
			slog.Error("failed to create auth validator", "error", err)
			os.Exit(1)
		}
		validator = v
	}

	allowedOrigins := auth.GetAllowedOriginsFromEnv("ALLOWED_ORIGINS", []string{"http://localhost:3000"})
	if cfg.AllowedOrigins != "" {
		allowedOrigins = strings.Split(cfg.AllowedOrigins, ",")
	}

	healthHandler := health.NewHandler(tokens, cfg.MediaEngineAddr)

	logger := slog.Default()
	engine := videoroom.NewEngine(media, tokens, videoroom.Config{
		AdminSecret:    cfg.AdminSecret,
		IdleTimeout:    cfg.SessionIdleTimeout,
		ReaperInterval: cfg.ReaperInterval,
	}, logger)
	defer engine.Close()

	server := transport.NewServer(engine, validator, allowedOrigins, rateLimiter, healthHandler)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.Handler(),
	}

	go func() {
		slog.Info("videoroom signaling server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("server exiting")
}
