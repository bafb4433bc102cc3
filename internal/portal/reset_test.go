package portal

import (
	"context"
	"errors"
	"testing"

	"scholarportal.org/internal/session"
	"scholarportal.org/internal/toast"
)

type fakeResetter struct {
	forgot  []string
	resets  []string
	failErr error
}

func (f *fakeResetter) ForgotPassword(ctx context.Context, email string) (session.Ack, error) {
	f.forgot = append(f.forgot, email)
	return session.Ack{}, nil
}

func (f *fakeResetter) ResetPassword(ctx context.Context, email, code, password string) (session.Ack, error) {
	f.resets = append(f.resets, email+"/"+code+"/"+password)
	if f.failErr != nil {
		return session.Ack{}, f.failErr
	}
	return session.Ack{Message: "ok"}, nil
}

func TestPasswordResetFlow(t *testing.T) {
	auth := &fakeResetter{}
	toasts := newToasts(t)
	r := NewPasswordReset(auth, toasts)
	ctx := context.Background()

	if err := r.Complete(ctx, "123456", "newpassword", "newpassword"); !errors.Is(err, ErrResetNotRequested) {
		t.Fatalf("expected ErrResetNotRequested, got %v", err)
	}
	if err := r.Request(ctx, "ada@example.com"); err != nil {
		t.Fatalf("Request: %v", err)
	}
	if !r.Requested() {
		t.Fatal("expected requested")
	}
	if err := r.Complete(ctx, "123456", "short", "short"); err == nil {
		t.Fatal("expected local guard to fail")
	}
	if len(auth.resets) != 0 {
		t.Fatal("guard failure must not call the server")
	}
	if err := r.Complete(ctx, "123456", "newpassword", "newpassword"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !r.Done() || len(auth.resets) != 1 || auth.resets[0] != "ada@example.com/123456/newpassword" {
		t.Fatalf("unexpected resets %v", auth.resets)
	}

	var kinds []toast.Kind
	for _, tt := range toasts.List() {
		kinds = append(kinds, tt.Kind)
	}
	want := []toast.Kind{toast.KindInfo, toast.KindError, toast.KindSuccess}
	if len(kinds) != len(want) {
		t.Fatalf("toast kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("toast kinds = %v, want %v", kinds, want)
		}
	}
}

func TestPasswordResetServerFailure(t *testing.T) {
	auth := &fakeResetter{failErr: &session.AuthError{Status: 400, Message: "Invalid reset code: code mismatch", Err: session.ErrRejected}}
	toasts := newToasts(t)
	r := NewPasswordReset(auth, toasts)
	ctx := context.Background()

	if err := r.Request(ctx, "ada@example.com"); err != nil {
		t.Fatalf("Request: %v", err)
	}
	if err := r.Complete(ctx, "000000", "newpassword", "newpassword"); err == nil {
		t.Fatal("expected failure")
	}
	if r.Done() {
		t.Fatal("must not be done")
	}
	list := toasts.List()
	if last := list[len(list)-1]; last.Kind != toast.KindError || last.Text != "Invalid reset code: code mismatch" {
		t.Fatalf("unexpected last toast %+v", last)
	}
}

func TestPasswordResetRejectsBadEmail(t *testing.T) {
	auth := &fakeResetter{}
	r := NewPasswordReset(auth, newToasts(t))
	if err := r.Request(context.Background(), "nope"); err == nil {
		t.Fatal("expected validation error")
	}
	if len(auth.forgot) != 0 {
		t.Fatal("no call expected")
	}
}
