package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeAPI struct {
	t   *testing.T
	mux *http.ServeMux
	srv *httptest.Server

	mu    sync.Mutex
	calls map[string]int
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{t: t, mux: http.NewServeMux(), calls: make(map[string]int)}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.calls[r.Method+" "+r.URL.Path]++
		f.mu.Unlock()
		f.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAPI) handle(pattern string, h http.HandlerFunc) { f.mux.HandleFunc(pattern, h) }

func (f *fakeAPI) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func (f *fakeAPI) store(opts ...Option) *Store {
	f.t.Helper()
	s, err := New(f.srv.URL, opts...)
	if err != nil {
		f.t.Fatalf("New: %v", err)
	}
	f.t.Cleanup(func() { _ = s.Close() })
	return s
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

var student = Identity{ID: "01HSTUDENT", Email: "a@b.com", Role: RoleCustomer, Name: "Ada"}

func TestNewRejectsInvalidBase(t *testing.T) {
	for _, base := range []string{"", "not a url", "/relative"} {
		if _, err := New(base); err == nil {
			t.Fatalf("expected error for base %q", base)
		}
	}
}

func TestCheckSession(t *testing.T) {
	t.Parallel()

	t.Run("authenticated", func(t *testing.T) {
		api := newFakeAPI(t)
		api.handle("GET /auth/me", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, student)
		})
		s := api.store()

		id, err := s.CheckSession(context.Background())
		if err != nil || id == nil {
			t.Fatalf("CheckSession() = %v, %v", id, err)
		}
		got, ok := s.Identity()
		if !ok || got != student {
			t.Fatalf("identity = %+v, %v", got, ok)
		}
		if s.Loading() {
			t.Fatal("loading must be cleared after the probe")
		}
	})

	t.Run("unauthenticated clears identity", func(t *testing.T) {
		api := newFakeAPI(t)
		var authed atomic.Bool
		authed.Store(true)
		api.handle("GET /auth/me", func(w http.ResponseWriter, r *http.Request) {
			if authed.Load() {
				writeJSON(w, http.StatusOK, student)
				return
			}
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Not authenticated"})
		})
		s := api.store()
		if _, err := s.CheckSession(context.Background()); err != nil {
			t.Fatalf("first probe: %v", err)
		}
		authed.Store(false)
		id, err := s.CheckSession(context.Background())
		if err != nil || id != nil {
			t.Fatalf("CheckSession() = %v, %v; want nil, nil", id, err)
		}
		if _, ok := s.Identity(); ok {
			t.Fatal("identity should be cleared on 401")
		}
	})

	t.Run("network failure clears identity", func(t *testing.T) {
		api := newFakeAPI(t)
		s := api.store()
		s.setIdentity(&student)
		api.srv.Close()

		id, err := s.CheckSession(context.Background())
		if id != nil || !IsNetwork(err) {
			t.Fatalf("CheckSession() = %v, %v; want network error", id, err)
		}
		if _, ok := s.Identity(); ok {
			t.Fatal("identity should be cleared on network failure")
		}
		if s.Loading() {
			t.Fatal("loading must be cleared after a failed probe")
		}
	})
}

func TestOpenProbesOnce(t *testing.T) {
	api := newFakeAPI(t)
	api.handle("GET /auth/me", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, student)
	})
	s, err := Open(context.Background(), api.srv.URL)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	if api.count("GET /auth/me") != 1 {
		t.Fatalf("expected exactly one probe, got %d", api.count("GET /auth/me"))
	}
	if _, ok := s.Identity(); !ok {
		t.Fatal("expected identity after probe")
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	api := newFakeAPI(t)
	api.handle("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
	})
	s := api.store()

	_, err := s.Login(context.Background(), "a@b.com", "secret")
	var aerr *AuthError
	if !errors.As(err, &aerr) {
		t.Fatalf("expected *AuthError, got %T %v", err, err)
	}
	if aerr.Error() != "Invalid credentials" || aerr.Status != http.StatusUnauthorized {
		t.Fatalf("unexpected error: %+v", aerr)
	}
	if !errors.Is(err, ErrRejected) || IsNetwork(err) {
		t.Fatalf("expected rejection classification, got %v", err)
	}
	if _, ok := s.Identity(); ok {
		t.Fatal("identity must remain none after failed login")
	}
}

func TestFailedAuthLeavesIdentityUnchanged(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   any
		want   string
		invoke func(*Store) error
	}{
		{
			name:   "login without message",
			status: http.StatusInternalServerError,
			body:   map[string]string{},
			want:   "Failed to login",
			invoke: func(s *Store) error {
				_, err := s.Login(context.Background(), "a@b.com", "pw")
				return err
			},
		},
		{
			name:   "register conflict",
			status: http.StatusConflict,
			body:   map[string]string{"error": "Email already registered"},
			want:   "Email already registered",
			invoke: func(s *Store) error {
				_, err := s.Register(context.Background(), Draft{Email: "a@b.com"})
				return err
			},
		},
		{
			name:   "register non-json body",
			status: http.StatusBadGateway,
			body:   "upstream down",
			want:   "Failed to register",
			invoke: func(s *Store) error {
				_, err := s.Register(context.Background(), Draft{})
				return err
			},
		},
		{
			name:   "profile rejected",
			status: http.StatusBadRequest,
			body:   map[string]string{"error": "Nothing to update"},
			want:   "Nothing to update",
			invoke: func(s *Store) error {
				_, err := s.UpdateProfile(context.Background(), ProfileUpdate{})
				return err
			},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			api := newFakeAPI(t)
			api.handle("/", func(w http.ResponseWriter, r *http.Request) {
				if s, ok := tc.body.(string); ok {
					w.WriteHeader(tc.status)
					_, _ = w.Write([]byte(s))
					return
				}
				writeJSON(w, tc.status, tc.body)
			})
			s := api.store()
			before := Identity{ID: "prev", Email: "prev@example.com", Role: RoleCustomer}
			s.setIdentity(&before)

			err := tc.invoke(s)
			if err == nil || err.Error() != tc.want {
				t.Fatalf("error = %v, want %q", err, tc.want)
			}
			after, ok := s.Identity()
			if !ok || after != before {
				t.Fatalf("identity changed: %+v", after)
			}
		})
	}
}

func TestLoginSuccessCarriesSessionCookie(t *testing.T) {
	api := newFakeAPI(t)
	api.handle("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("missing JSON content type")
		}
		var body credentials
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Email != "a@b.com" || body.Password != "secret" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "portal_session", Value: "tok", Path: "/", HttpOnly: true})
		writeJSON(w, http.StatusOK, student)
	})
	api.handle("GET /auth/me", func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("portal_session")
		if err != nil || c.Value != "tok" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Not authenticated"})
			return
		}
		writeJSON(w, http.StatusOK, student)
	})
	s := api.store()

	got, err := s.Login(context.Background(), " a@b.com ", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got != student {
		t.Fatalf("Login() = %+v", got)
	}
	if id, err := s.CheckSession(context.Background()); err != nil || id == nil {
		t.Fatalf("session cookie not carried: %v %v", id, err)
	}
	if len(s.Cookies()) != 1 {
		t.Fatalf("expected jar to hold the session cookie, got %v", s.Cookies())
	}
}

func TestWithCookiesRestoresSession(t *testing.T) {
	api := newFakeAPI(t)
	api.handle("GET /auth/me", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("portal_session"); err == nil && c.Value == "saved" {
			writeJSON(w, http.StatusOK, student)
			return
		}
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Not authenticated"})
	})
	s := api.store(WithCookies([]*http.Cookie{{Name: "portal_session", Value: "saved"}}))
	if id, _ := s.CheckSession(context.Background()); id == nil {
		t.Fatal("expected restored cookie to authenticate")
	}
}

func TestMalformedSuccessBodyIsNetworkClass(t *testing.T) {
	api := newFakeAPI(t)
	api.handle("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("{not json"))
	})
	s := api.store()
	_, err := s.Login(context.Background(), "a@b.com", "pw")
	if !IsNetwork(err) {
		t.Fatalf("expected network-class error, got %v", err)
	}
	if err.Error() != NetworkMessage {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if _, ok := s.Identity(); ok {
		t.Fatal("identity must not be set from an undecodable body")
	}
}

func TestLogoutIsOptimistic(t *testing.T) {
	api := newFakeAPI(t)
	release := make(chan struct{})
	var hits atomic.Int32
	api.handle("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "boom"})
	})
	s := api.store()
	s.setIdentity(&student)

	s.Logout()
	if _, ok := s.Identity(); ok {
		t.Fatal("identity must be cleared synchronously")
	}

	close(release)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected one server logout call, got %d", hits.Load())
	}
	if _, ok := s.Identity(); ok {
		t.Fatal("failed cleanup must not restore identity")
	}
}

func TestLogoutWithUnreachableServer(t *testing.T) {
	api := newFakeAPI(t)
	s := api.store(WithCleanupTimeout(time.Second))
	s.setIdentity(&student)
	api.srv.Close()

	s.Logout()
	if _, ok := s.Identity(); ok {
		t.Fatal("identity must be cleared even when the API is down")
	}
	_ = s.Close()
}

func TestSendVerificationCodeJoinsDetails(t *testing.T) {
	cases := []struct {
		name string
		body map[string]any
		want string
	}{
		{name: "error and details", body: map[string]any{"error": "Failed to send verification code", "details": "smtp timeout"}, want: "Failed to send verification code: smtp timeout"},
		{name: "error only", body: map[string]any{"error": "Email already registered"}, want: "Email already registered"},
		{name: "structured details", body: map[string]any{"error": "Too many requests", "details": map[string]int{"retryIn": 12}}, want: `Too many requests: {"retryIn":12}`},
		{name: "nothing", body: map[string]any{}, want: "Failed to send verification code"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			api := newFakeAPI(t)
			api.handle("POST /auth/send-verification", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusBadRequest, tc.body)
			})
			s := api.store()
			_, err := s.SendVerificationCode(context.Background(), "a@b.com")
			if err == nil || err.Error() != tc.want {
				t.Fatalf("error = %v, want %q", err, tc.want)
			}
		})
	}
}

func TestVerifyCode(t *testing.T) {
	api := newFakeAPI(t)
	api.handle("POST /auth/verify-code", func(w http.ResponseWriter, r *http.Request) {
		var body codeRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		switch body.Code {
		case "123456":
			writeJSON(w, http.StatusOK, map[string]string{"message": "Email verified"})
		case "":
			writeJSON(w, http.StatusBadRequest, map[string]any{"details": "code missing"})
		default:
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid verification code"})
		}
	})
	s := api.store()

	ack, err := s.VerifyCode(context.Background(), "a@b.com", " 123456 ")
	if err != nil || ack.Message != "Email verified" {
		t.Fatalf("VerifyCode() = %+v, %v", ack, err)
	}
	if _, err := s.VerifyCode(context.Background(), "a@b.com", "000000"); err == nil || err.Error() != "Invalid verification code" {
		t.Fatalf("unexpected error %v", err)
	}
	if _, err := s.VerifyCode(context.Background(), "a@b.com", ""); err == nil || err.Error() != "Failed to verify code" {
		t.Fatalf("details must not be appended for verify: %v", err)
	}
}

func TestAcknowledgementAcceptsEmptyBody(t *testing.T) {
	api := newFakeAPI(t)
	api.handle("POST /auth/forgot-password", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	s := api.store()
	if _, err := s.ForgotPassword(context.Background(), "a@b.com"); err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}
}

func TestResetPasswordDoesNotTouchIdentity(t *testing.T) {
	api := newFakeAPI(t)
	api.handle("POST /auth/reset-password", func(w http.ResponseWriter, r *http.Request) {
		var body resetRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Password == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid reset request", "details": "password required"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated"})
	})
	s := api.store()
	s.setIdentity(&student)

	if _, err := s.ResetPassword(context.Background(), "a@b.com", "111111", ""); err == nil || err.Error() != "Invalid reset request: password required" {
		t.Fatalf("unexpected error %v", err)
	}
	if _, err := s.ResetPassword(context.Background(), "a@b.com", "111111", "new-password"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if got, ok := s.Identity(); !ok || got != student {
		t.Fatalf("identity changed: %+v", got)
	}
}

func TestUpdateProfileReplacesIdentity(t *testing.T) {
	api := newFakeAPI(t)
	api.handle("PUT /auth/profile", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if _, ok := body["surname"]; ok {
			t.Errorf("nil fields must be omitted, got %v", body)
		}
		updated := student
		updated.Name, _ = body["name"].(string)
		writeJSON(w, http.StatusOK, updated)
	})
	s := api.store()
	s.setIdentity(&student)

	name := "Ada Lovelace"
	got, err := s.UpdateProfile(context.Background(), ProfileUpdate{Name: &name})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	current, _ := s.Identity()
	if got.Name != name || current.Name != name {
		t.Fatalf("identity not replaced: %+v / %+v", got, current)
	}
}

func TestLoadingDuringInflightCall(t *testing.T) {
	api := newFakeAPI(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	api.handle("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		writeJSON(w, http.StatusOK, student)
	})
	s := api.store()

	done := make(chan error, 1)
	go func() {
		_, err := s.Login(context.Background(), "a@b.com", "pw")
		done <- err
	}()
	<-entered
	if !s.Loading() {
		t.Fatal("expected loading while login is in flight")
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Login: %v", err)
	}
	if s.Loading() {
		t.Fatal("expected loading cleared")
	}
}

func TestSubscribeSeesIdentityChanges(t *testing.T) {
	api := newFakeAPI(t)
	api.handle("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, student)
	})
	api.handle("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{})
	})
	s := api.store()
	ctx, cancel := context.WithCancel(context.Background())
	changes := s.Subscribe(ctx)

	if _, err := s.Login(context.Background(), "a@b.com", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	s.Logout()
	cancel()

	var got []Change
	for c := range changes {
		got = append(got, c)
	}
	if len(got) != 2 || got[0].Identity == nil || got[1].Identity != nil {
		t.Fatalf("unexpected changes: %+v", got)
	}
}

func TestClosedStoreRejectsCalls(t *testing.T) {
	api := newFakeAPI(t)
	s := api.store()
	_ = s.Close()
	if _, err := s.Login(context.Background(), "a@b.com", "pw"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if api.count("POST /auth/login") != 0 {
		t.Fatal("closed store must not reach the network")
	}
}

func TestMessageHelper(t *testing.T) {
	if got := Message(&AuthError{Message: "Invalid credentials"}, "fallback"); got != "Invalid credentials" {
		t.Fatalf("Message() = %q", got)
	}
	if got := Message(errors.New("raw"), "fallback"); got != "fallback" {
		t.Fatalf("Message() = %q", got)
	}
}
