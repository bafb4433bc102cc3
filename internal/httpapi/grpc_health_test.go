package httpapi

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

const bufSize = 1024 * 1024

type toggleProbe struct{ down atomic.Bool }

func (p *toggleProbe) Check(context.Context) error {
	if p.down.Load() {
		return errors.New("db down")
	}
	return nil
}

func startBufGRPC(t *testing.T, hs *HealthServer) (*grpc.ClientConn, func()) {
	t.Helper()

	listener := bufconn.Listen(bufSize)
	server := grpc.NewServer()
	hs.Register(server)

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			t.Logf("grpc serve error: %v", err)
		}
	}()

	dialer := func(ctx context.Context, _ string) (net.Conn, error) {
		return listener.Dial()
	}
	conn, err := grpc.DialContext(
		context.Background(),
		"bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial bufnet: %v", err)
	}

	cleanup := func() {
		server.GracefulStop()
		_ = conn.Close()
		_ = listener.Close()
	}
	return conn, cleanup
}

func TestHealthServerFollowsReadiness(t *testing.T) {
	probe := &toggleProbe{}
	hs := NewHealthServer(probe)
	conn, cleanup := startBufGRPC(t, hs)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client := healthpb.NewHealthClient(conn)

	check := func(service string) healthpb.HealthCheckResponse_ServingStatus {
		t.Helper()
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
		if err != nil {
			t.Fatalf("Check(%q) error: %v", service, err)
		}
		return resp.GetStatus()
	}

	if got := check(serviceName); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING before first probe, got %s", got)
	}

	if !hs.Refresh(ctx) {
		t.Fatal("expected probe to pass")
	}
	if got := check(""); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %s", got)
	}

	probe.down.Store(true)
	if hs.Refresh(ctx) {
		t.Fatal("expected probe to fail")
	}
	if got := check(serviceName); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING, got %s", got)
	}
}

func TestHealthServerRunStopsWithContext(t *testing.T) {
	hs := NewHealthServer(nil)
	conn, cleanup := startBufGRPC(t, hs)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hs.Run(ctx, time.Hour) }()

	client := healthpb.NewHealthClient(conn)
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{})
		if err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never became SERVING: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}

	resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING after shutdown, got %s", resp.GetStatus())
	}
}
