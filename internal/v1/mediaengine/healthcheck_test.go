package mediaengine

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func startHealthServer(t *testing.T, status healthpb.HealthCheckResponse_ServingStatus) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	hs := health.NewServer()
	hs.SetServingStatus("", status)

	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	return lis.Addr().String()
}

func TestGRPCHealthChecker_ServingIsHealthy(t *testing.T) {
	addr := startHealthServer(t, healthpb.HealthCheckResponse_SERVING)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := (GRPCHealthChecker{}).Check(ctx, addr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGRPCHealthChecker_NotServingIsUnhealthy(t *testing.T) {
	addr := startHealthServer(t, healthpb.HealthCheckResponse_NOT_SERVING)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := (GRPCHealthChecker{}).Check(ctx, addr); err == nil {
		t.Fatal("expected error when the media engine reports NOT_SERVING")
	}
}

func TestGRPCHealthChecker_UnreachableAddrErrors(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := (GRPCHealthChecker{}).Check(ctx, "127.0.0.1:1"); err == nil {
		t.Fatal("expected error dialing an address with nothing listening")
	}
}
