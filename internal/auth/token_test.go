package auth

import (
	"errors"
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	signer, err := NewTokenSigner("secret", func() time.Time { return now })
	if err != nil {
		t.Fatalf("NewTokenSigner: %v", err)
	}
	sess := &Session{ID: "01HSESSION", UserID: "01HUSER", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	token, err := signer.Sign(sess, RoleAdmin)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	claims, err := signer.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "01HUSER" || claims.ID != "01HSESSION" || claims.Role != RoleAdmin {
		t.Fatalf("unexpected claims %+v", claims)
	}

	other, _ := NewTokenSigner("other", func() time.Time { return now })
	if _, err := other.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected signature mismatch, got %v", err)
	}

	later, _ := NewTokenSigner("secret", func() time.Time { return now.Add(2 * time.Hour) })
	if _, err := later.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func TestTokenSignerRejectsBadInput(t *testing.T) {
	if _, err := NewTokenSigner("  ", nil); err == nil {
		t.Fatal("expected empty secret to fail")
	}
	signer, _ := NewTokenSigner("secret", nil)
	if _, err := signer.Sign(&Session{ID: "x"}, RoleCustomer); err == nil {
		t.Fatal("expected missing user to fail")
	}
	for _, tok := range []string{"", "a.b.c", "not-a-token"} {
		if _, err := signer.Parse(tok); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("Parse(%q) = %v", tok, err)
		}
	}
}
