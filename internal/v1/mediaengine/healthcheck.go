package mediaengine

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Checker probes the media engine's liveness independently of the RPC calls
// in httpclient.go: a process can be up but not accepting signaling work
// (still loading), which the readiness probe needs to distinguish from a
// hard outage.
type Checker interface {
	Check(ctx context.Context, addr string) error
}

// GRPCHealthChecker dials the media engine's gRPC health endpoint, mirroring
// the codebase's existing SFU health-check adapter.
type GRPCHealthChecker struct{}

func (GRPCHealthChecker) Check(ctx context.Context, addr string) error {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	client := healthpb.NewHealthClient(conn)
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return err
	}
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		return errNotServing
	}
	return nil
}

var errNotServing = grpcNotServingError{}

type grpcNotServingError struct{}

func (grpcNotServingError) Error() string { return "media engine not serving" }
