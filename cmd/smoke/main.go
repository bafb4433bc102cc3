// Command smoke checks a running portal API: gRPC health, HTTP health and the
// rejection paths of the auth endpoints.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protojson"

	"scholarportal.org/internal/session"
)

func main() {
	grpcAddr := os.Getenv("PORTAL_GRPC_ADDR")
	if grpcAddr == "" {
		grpcAddr = "localhost:9090"
	}
	apiBase := os.Getenv("PORTAL_API_BASE")
	if apiBase == "" {
		apiBase = "http://localhost:8080"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := grpc.NewClient(grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("dial portal-api at %s: %v", grpcAddr, err)
	}
	defer conn.Close()

	health, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: "portal-api"})
	if err != nil {
		log.Fatalf("grpc health: %v", err)
	}
	if health.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		log.Fatalf("portal-api not serving: %s", protojson.Format(health))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiBase+"/healthz", nil)
	if err != nil {
		log.Fatalf("build healthz request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("healthz: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("healthz status %d", resp.StatusCode)
	}

	store, err := session.New(apiBase)
	if err != nil {
		log.Fatalf("session store: %v", err)
	}
	defer store.Close()

	if id, err := store.CheckSession(ctx); err != nil || id != nil {
		log.Fatalf("fresh client must have no session: %+v %v", id, err)
	}

	email := fmt.Sprintf("smoke-%d@example.invalid", rand.Int())
	_, err = store.Login(ctx, email, "not-a-password")
	var aerr *session.AuthError
	if !errors.As(err, &aerr) || aerr.Status != http.StatusUnauthorized {
		log.Fatalf("login with unknown account: expected 401, got %v", err)
	}
	if _, ok := store.Identity(); ok {
		log.Fatal("failed login left an identity behind")
	}

	if _, err := store.VerifyCode(ctx, email, "000000"); err == nil {
		log.Fatal("verify without a code must fail")
	} else if !errors.As(err, &aerr) || aerr.Status != http.StatusNotFound {
		log.Fatalf("verify without a code: expected 404, got %v", err)
	}

	fmt.Printf("✅ portal-api smoke test passed: grpc=%s http=%s\n", grpcAddr, apiBase)
}
