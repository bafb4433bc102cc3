package portal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"scholarportal.org/internal/clock"
	"scholarportal.org/internal/session"
	"scholarportal.org/internal/toast"
)

func newStore(t *testing.T, role session.Role, loginStatus int) *session.Store {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(loginStatus)
		if loginStatus != http.StatusOK {
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Invalid credentials"})
			return
		}
		_ = json.NewEncoder(w).Encode(session.Identity{ID: "01HUSER", Email: "u@example.com", Role: role})
	})
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	s, err := session.New(srv.URL)
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newToasts(t *testing.T) *toast.Channel {
	t.Helper()
	ch := toast.New(toast.WithClock(clock.NewFake(time.Unix(1_700_000_000, 0))))
	t.Cleanup(ch.Close)
	return ch
}

func TestPortalAccepts(t *testing.T) {
	cases := []struct {
		portal Portal
		role   session.Role
		want   bool
	}{
		{Student, session.RoleCustomer, true},
		{Student, session.RoleAdmin, false},
		{Student, session.RoleManager, false},
		{Admin, session.RoleAdmin, true},
		{Admin, session.RoleManager, true},
		{Admin, session.RoleCustomer, false},
		{Portal("other"), session.RoleAdmin, false},
	}
	for _, tc := range cases {
		if got := tc.portal.Accepts(tc.role); got != tc.want {
			t.Errorf("%s.Accepts(%s) = %v, want %v", tc.portal, tc.role, got, tc.want)
		}
	}
}

func TestLoginWrongPortal(t *testing.T) {
	cases := []struct {
		name   string
		portal Portal
		role   session.Role
		msg    string
	}{
		{"admin on student portal", Student, session.RoleAdmin, "Use Admin Portal"},
		{"manager on student portal", Student, session.RoleManager, "Use Admin Portal"},
		{"customer on admin portal", Admin, session.RoleCustomer, "Use Student Portal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newStore(t, tc.role, http.StatusOK)
			toasts := newToasts(t)
			form := NewLoginForm(tc.portal, store, toasts)

			_, err := form.Submit(context.Background(), "u@example.com", "secret123")
			var werr *WrongPortalError
			if !errors.As(err, &werr) || !errors.Is(err, ErrWrongPortal) || err.Error() != tc.msg {
				t.Fatalf("err = %v, want %q", err, tc.msg)
			}
			if _, ok := store.Identity(); ok {
				t.Fatal("identity must be none after wrong-portal login")
			}
			list := toasts.List()
			if len(list) != 1 || list[0].Kind != toast.KindError || list[0].Text != tc.msg {
				t.Fatalf("unexpected toasts %+v", list)
			}
		})
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	store := newStore(t, session.RoleCustomer, http.StatusUnauthorized)
	toasts := newToasts(t)
	form := NewLoginForm(Student, store, toasts)

	_, err := form.Submit(context.Background(), "u@example.com", "wrong")
	var aerr *session.AuthError
	if !errors.As(err, &aerr) || aerr.Message != "Invalid credentials" {
		t.Fatalf("err = %v", err)
	}
	if _, ok := store.Identity(); ok {
		t.Fatal("identity must stay none")
	}
	list := toasts.List()
	if len(list) != 1 || list[0].Text != "Invalid credentials" {
		t.Fatalf("unexpected toasts %+v", list)
	}
}

func TestLoginSuccess(t *testing.T) {
	store := newStore(t, session.RoleManager, http.StatusOK)
	toasts := newToasts(t)
	form := NewLoginForm(Admin, store, toasts)

	id, err := form.Submit(context.Background(), " u@example.com ", "secret123")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if id.Role != session.RoleManager {
		t.Fatalf("role = %s", id.Role)
	}
	if got, ok := store.Identity(); !ok || got.ID != id.ID {
		t.Fatalf("store identity = %+v, %v", got, ok)
	}
	list := toasts.List()
	if len(list) != 1 || list[0].Kind != toast.KindSuccess {
		t.Fatalf("unexpected toasts %+v", list)
	}
}

func TestLoginRequiresFields(t *testing.T) {
	toasts := newToasts(t)
	form := NewLoginForm(Student, nil, toasts)
	if _, err := form.Submit(context.Background(), "", ""); err == nil {
		t.Fatal("expected error")
	}
	if toasts.Len() != 1 {
		t.Fatalf("expected one toast, got %+v", toasts.List())
	}
}
