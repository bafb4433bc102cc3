//go:build integration

package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"scholarportal.org/internal/auth"
	"scholarportal.org/internal/migrate"
)

type recordingSender struct{ last auth.Delivery }

func (r *recordingSender) Send(ctx context.Context, d auth.Delivery) error {
	r.last = d
	return nil
}

func newContainerStore(t *testing.T) *Store {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("portal"),
		postgres.WithUsername("portal"),
		postgres.WithPassword("portal"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("resolve connection string: %v", err)
	}
	store, err := Open(dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if _, err := migrate.NewManager(store.DB(), nil).Up(ctx); err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	return store
}

func TestAuthFlowAgainstPostgres(t *testing.T) {
	store := newContainerStore(t)
	sender := &recordingSender{}
	svc, err := auth.NewService(store, auth.WithSessionSecret("integration"), auth.WithCodeSender(sender))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	ctx := context.Background()

	if _, err := svc.SendVerification(ctx, "ada@example.com"); err != nil {
		t.Fatalf("SendVerification: %v", err)
	}
	if err := svc.VerifyCode(ctx, "ada@example.com", sender.last.Code); err != nil {
		t.Fatalf("VerifyCode: %v", err)
	}
	reg, err := svc.Register(ctx, auth.Registration{
		Surname: "Lovelace", GivenName: "Ada", Nationality: "British",
		Email: "ada@example.com", Password: "analytical", ConfirmPassword: "analytical",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Register(ctx, auth.Registration{
		Surname: "Lovelace", GivenName: "Ada", Nationality: "British",
		Email: "ada@example.com", Password: "analytical", ConfirmPassword: "analytical",
	}); !errors.Is(err, auth.ErrEmailNotVerified) {
		t.Fatalf("second registration should need a new code, got %v", err)
	}

	user, _, err := svc.Authenticate(ctx, reg.Token)
	if err != nil || user.Email != "ada@example.com" {
		t.Fatalf("Authenticate = %+v, %v", user, err)
	}

	if err := svc.ForgotPassword(ctx, "ada@example.com"); err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}
	if err := svc.ResetPassword(ctx, "ada@example.com", sender.last.Code, "new-password"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if _, _, err := svc.Authenticate(ctx, reg.Token); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("expected revoked session, got %v", err)
	}
	if _, err := svc.Login(ctx, "ada@example.com", "new-password"); err != nil {
		t.Fatalf("Login: %v", err)
	}
}
