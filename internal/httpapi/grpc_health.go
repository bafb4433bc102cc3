package httpapi

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"scholarportal.org/internal/obs"
)

// HealthServer exposes readiness through the standard gRPC health service, both for
// the overall server ("") and for the portal-api service name.
type HealthServer struct {
	srv   *health.Server
	ready Readiness
}

func NewHealthServer(ready Readiness) *HealthServer {
	if ready == nil {
		ready = ReadyProbe{}
	}
	h := &HealthServer{srv: health.NewServer(), ready: ready}
	h.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// Register attaches the health service to s.
func (h *HealthServer) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.srv)
}

// Refresh runs the readiness probe once and publishes the result.
func (h *HealthServer) Refresh(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := h.ready.Check(ctx); err != nil {
		obs.Warn("readiness check failed", map[string]any{"error": err})
		h.set(healthpb.HealthCheckResponse_NOT_SERVING)
		obs.SetReady(false)
		return false
	}
	h.set(healthpb.HealthCheckResponse_SERVING)
	obs.SetReady(true)
	return true
}

// Run refreshes readiness every interval until ctx is done, then marks the server as
// shutting down so watchers see NOT_SERVING.
func (h *HealthServer) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	h.Refresh(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.srv.Shutdown()
			return nil
		case <-ticker.C:
			h.Refresh(ctx)
		}
	}
}

func (h *HealthServer) set(status healthpb.HealthCheckResponse_ServingStatus) {
	h.srv.SetServingStatus("", status)
	h.srv.SetServingStatus(serviceName, status)
}
