// Package session holds the client-side view of who is logged in, kept in sync with
// the server's cookie session.
package session

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"scholarportal.org/internal/obs"
)

const defaultCleanupTimeout = 10 * time.Second

// Store is the single source of truth for the current identity of one client context.
// Construct one per application instance and pass it to the components that need it.
type Store struct {
	base           string
	baseURL        *url.URL
	client         *http.Client
	userAgent      string
	cleanupTimeout time.Duration

	mu       sync.RWMutex
	identity *Identity
	inflight int
	closed   bool

	cleanup sync.WaitGroup

	subMu sync.RWMutex
	subs  map[int]chan Change
	next  int
}

// Change is delivered to subscribers whenever the identity is set or cleared.
type Change struct {
	Identity *Identity
}

// Option configures a Store.
type Option func(*Store) error

// WithHTTPClient replaces the HTTP client. A client without a cookie jar gets one.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Store) error {
		if c != nil {
			s.client = c
		}
		return nil
	}
}

// WithCookies preloads session cookies for the API base, e.g. from a saved session file.
func WithCookies(cookies []*http.Cookie) Option {
	return func(s *Store) error {
		if len(cookies) == 0 {
			return nil
		}
		if s.client.Jar == nil {
			jar, err := newJar()
			if err != nil {
				return err
			}
			s.client.Jar = jar
		}
		s.client.Jar.SetCookies(s.baseURL, cookies)
		return nil
	}
}

// WithUserAgent sets the User-Agent header on every request.
func WithUserAgent(ua string) Option {
	return func(s *Store) error {
		s.userAgent = strings.TrimSpace(ua)
		return nil
	}
}

// WithCleanupTimeout bounds the detached logout request.
func WithCleanupTimeout(d time.Duration) Option {
	return func(s *Store) error {
		if d > 0 {
			s.cleanupTimeout = d
		}
		return nil
	}
}

// New constructs a Store for the API rooted at baseURL without contacting it.
func New(baseURL string, opts ...Option) (*Store, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("session: invalid API base %q", baseURL)
	}
	s := &Store{
		base:           base,
		baseURL:        parsed,
		client:         &http.Client{},
		cleanupTimeout: defaultCleanupTimeout,
		subs:           make(map[int]chan Change),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.client.Jar == nil {
		jar, err := newJar()
		if err != nil {
			return nil, fmt.Errorf("session: cookie jar: %w", err)
		}
		s.client.Jar = jar
	}
	return s, nil
}

// Open constructs a Store and runs the initial session probe.
func Open(ctx context.Context, baseURL string, opts ...Option) (*Store, error) {
	s, err := New(baseURL, opts...)
	if err != nil {
		return nil, err
	}
	_, _ = s.CheckSession(ctx)
	return s, nil
}

// Identity returns the current identity, if any.
func (s *Store) Identity() (Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return Identity{}, false
	}
	return *s.identity, true
}

// Loading reports whether the session probe or an auth call is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inflight > 0
}

// Cookies returns the cookies the jar holds for the API base.
func (s *Store) Cookies() []*http.Cookie {
	if s.client.Jar == nil {
		return nil
	}
	return s.client.Jar.Cookies(s.baseURL)
}

// Base is the API root requests are sent to.
func (s *Store) Base() string { return s.base }

func (s *Store) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.inflight++
	return nil
}

func (s *Store) end() {
	s.mu.Lock()
	s.inflight--
	s.mu.Unlock()
}

func (s *Store) setIdentity(id *Identity) {
	s.mu.Lock()
	if id != nil {
		cp := *id
		id = &cp
	}
	s.identity = id
	s.mu.Unlock()
	s.publish(Change{Identity: id})
}

// CheckSession asks the server who is logged in. Any non-2xx answer or network failure
// clears the identity. A nil identity with a nil error means "no session".
func (s *Store) CheckSession(ctx context.Context) (*Identity, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.end()

	var id Identity
	err := s.do(ctx, call{op: "check_session", method: http.MethodGet, path: "/auth/me", fallback: "Failed to check session"}, &id)
	if err != nil {
		s.setIdentity(nil)
		if IsNetwork(err) {
			return nil, err
		}
		return nil, nil
	}
	s.setIdentity(&id)
	return &id, nil
}

// Login posts credentials and, on success, replaces the identity with the answer.
func (s *Store) Login(ctx context.Context, email, password string) (Identity, error) {
	return s.authenticate(ctx, call{
		op:       "login",
		method:   http.MethodPost,
		path:     "/auth/login",
		body:     credentials{Email: strings.TrimSpace(email), Password: password},
		fallback: "Failed to login",
	})
}

// Register posts the full draft and, on success, replaces the identity with the answer.
func (s *Store) Register(ctx context.Context, draft Draft) (Identity, error) {
	draft.Email = strings.TrimSpace(draft.Email)
	return s.authenticate(ctx, call{
		op:       "register",
		method:   http.MethodPost,
		path:     "/auth/register",
		body:     draft,
		fallback: "Failed to register",
	})
}

// UpdateProfile sends a partial profile and replaces the identity with the returned one.
func (s *Store) UpdateProfile(ctx context.Context, update ProfileUpdate) (Identity, error) {
	return s.authenticate(ctx, call{
		op:       "update_profile",
		method:   http.MethodPut,
		path:     "/auth/profile",
		body:     update,
		fallback: "Failed to update profile",
	})
}

func (s *Store) authenticate(ctx context.Context, c call) (Identity, error) {
	if err := s.begin(); err != nil {
		return Identity{}, err
	}
	defer s.end()

	var id Identity
	if err := s.do(ctx, c, &id); err != nil {
		return Identity{}, err
	}
	s.setIdentity(&id)
	return id, nil
}

// Logout clears the identity before returning and dispatches the server-side
// invalidation as a detached task. Cleanup failures are logged only.
func (s *Store) Logout() {
	s.setIdentity(nil)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.cleanup.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.cleanup.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.cleanupTimeout)
		defer cancel()
		err := s.do(ctx, call{op: "logout", method: http.MethodPost, path: "/auth/logout", fallback: "Failed to logout"}, nil)
		if err != nil && !IsNetwork(err) {
			// network failures are already logged by do
			obs.Warn("logout cleanup failed", map[string]any{"error": err, "base": s.base})
		}
	}()
}

// Close waits for dispatched logout tasks and rejects further calls.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cleanup.Wait()
	return nil
}

// Subscribe registers a subscriber for identity changes. The channel is closed when
// ctx ends.
func (s *Store) Subscribe(ctx context.Context) <-chan Change {
	ch := make(chan Change, 8)

	s.subMu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.subMu.Unlock()

	go func() {
		<-ctx.Done()
		s.subMu.Lock()
		delete(s.subs, id)
		close(ch)
		s.subMu.Unlock()
	}()
	return ch
}

func (s *Store) publish(c Change) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- c:
		default:
		}
	}
}
