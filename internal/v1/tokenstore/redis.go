package tokenstore

import (
	"context"
	"fmt"
	"time"

	"github.com/nullcaster/videoroom-gateway/internal/v1/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

const tokensKey = "janus:tokens"

// RedisStore keeps the token table in a single Redis set, shared across every
// replica of this service. A circuit breaker protects against a wedged Redis
// from blocking every request on the admin_secret-gated paths.
type RedisStore struct {
	client *redis.Client
	cb     *gobreaker.CircuitBreaker
}

// NewRedisStore dials addr and verifies connectivity before returning.
func NewRedisStore(addr, password string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	st := gobreaker.Settings{
		Name:        "tokenstore",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     15 * time.Second,
		OnStateChange: func(name string, from, to gobreaker.State) {
			var stateVal float64
			switch to {
			case gobreaker.StateClosed:
				stateVal = 0
			case gobreaker.StateOpen:
				stateVal = 1
			case gobreaker.StateHalfOpen:
				stateVal = 2
			}
			metrics.CircuitBreakerState.WithLabelValues("tokenstore").Set(stateVal)
		},
	}

	return &RedisStore{client: client, cb: gobreaker.NewCircuitBreaker(st)}, nil
}

func (s *RedisStore) AddToken(ctx context.Context, token string) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.SAdd(ctx, tokensKey, token).Err()
	})
	if err == gobreaker.ErrOpenState {
		metrics.CircuitBreakerFailures.WithLabelValues("tokenstore").Inc()
		metrics.TokenStoreOperations.WithLabelValues("add", "circuit_open").Inc()
		return fmt.Errorf("tokenstore: circuit open")
	}
	if err != nil {
		metrics.TokenStoreOperations.WithLabelValues("add", "error").Inc()
		return fmt.Errorf("tokenstore: add token: %w", err)
	}
	metrics.TokenStoreOperations.WithLabelValues("add", "ok").Inc()
	return nil
}

func (s *RedisStore) TokenSeen(ctx context.Context, token string) (bool, error) {
	res, err := s.cb.Execute(func() (interface{}, error) {
		return s.client.SIsMember(ctx, tokensKey, token).Result()
	})
	if err == gobreaker.ErrOpenState {
		metrics.CircuitBreakerFailures.WithLabelValues("tokenstore").Inc()
		metrics.TokenStoreOperations.WithLabelValues("check", "circuit_open").Inc()
		return false, fmt.Errorf("tokenstore: circuit open")
	}
	if err != nil {
		metrics.TokenStoreOperations.WithLabelValues("check", "error").Inc()
		return false, fmt.Errorf("tokenstore: check token: %w", err)
	}
	metrics.TokenStoreOperations.WithLabelValues("check", "ok").Inc()
	return res.(bool), nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
