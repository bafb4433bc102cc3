package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"scholarportal.org/internal/auth"
	"scholarportal.org/internal/obs"
)

const serviceName = "portal-api"

// Readiness reports whether dependencies are usable.
type Readiness interface {
	Check(ctx context.Context) error
}

// ReadyProbe pings the database.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the portal HTTP layer.
type API struct {
	mux     *http.ServeMux
	auth    *auth.Service
	ready   Readiness
	version string

	origins      []string
	cookieSecure bool
	rateBurst    int
	ratePerSec   float64
	maxBody      int64
}

// Option configures the API.
type Option func(*API)

func WithReadiness(r Readiness) Option {
	return func(a *API) {
		if r != nil {
			a.ready = r
		}
	}
}

func WithVersion(v string) Option { return func(a *API) { a.version = v } }

// WithAllowedOrigins sets the CORS origins allowed to send credentials.
func WithAllowedOrigins(origins []string) Option {
	return func(a *API) { a.origins = append([]string(nil), origins...) }
}

// WithCookieSecure marks the session cookie Secure.
func WithCookieSecure(secure bool) Option { return func(a *API) { a.cookieSecure = secure } }

// WithRateLimit configures the per-IP token bucket.
func WithRateLimit(burst int, perSecond float64) Option {
	return func(a *API) {
		if burst > 0 && perSecond > 0 {
			a.rateBurst, a.ratePerSec = burst, perSecond
		}
	}
}

func New(svc *auth.Service, opts ...Option) *API {
	a := &API{
		mux:        http.NewServeMux(),
		auth:       svc,
		ready:      ReadyProbe{},
		version:    "dev",
		rateBurst:  20,
		ratePerSec: 10,
		maxBody:    1 << 20,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.mux.HandleFunc("GET /healthz", a.Healthz)
	a.mux.HandleFunc("GET /readyz", a.Ready)
	a.mux.Handle("GET /metrics", obs.Handler())

	a.mux.HandleFunc("POST /auth/send-verification", a.handleSendVerification)
	a.mux.HandleFunc("POST /auth/verify-code", a.handleVerifyCode)
	a.mux.HandleFunc("POST /auth/register", a.handleRegister)
	a.mux.HandleFunc("POST /auth/login", a.handleLogin)
	a.mux.HandleFunc("POST /auth/logout", a.handleLogout)
	a.mux.Handle("GET /auth/me", a.withSession(http.HandlerFunc(a.handleMe)))
	a.mux.Handle("PUT /auth/profile", a.withSession(http.HandlerFunc(a.handleProfile)))
	a.mux.HandleFunc("POST /auth/forgot-password", a.handleForgotPassword)
	a.mux.HandleFunc("POST /auth/reset-password", a.handleResetPassword)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "Not found", "")
	})
	return a
}

// Handler returns the mux wrapped in the middleware chain.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = MaxBodyBytes(h, a.maxBody)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(a.origins)(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.ready.Check(ctx); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg, details string) {
	payload := map[string]any{
		"error": msg,
	}
	if details != "" {
		payload["details"] = details
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errors.New("request body too large")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func trimmed(s string) string { return strings.TrimSpace(s) }
