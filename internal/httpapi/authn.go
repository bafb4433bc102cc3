package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"scholarportal.org/internal/auth"
	"scholarportal.org/internal/obs"
)

// SessionCookie carries the signed session token.
const SessionCookie = "portal_session"

type userKey struct{}

func userFromContext(ctx context.Context) (*auth.User, bool) {
	u, ok := ctx.Value(userKey{}).(*auth.User)
	return u, ok && u != nil
}

// withSession resolves the session cookie and rejects requests without a live session.
func (a *API) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookie)
		if err != nil || cookie.Value == "" {
			writeError(w, r, http.StatusUnauthorized, "Not authenticated", "")
			return
		}
		user, _, err := a.auth.Authenticate(r.Context(), cookie.Value)
		if err != nil {
			if errors.Is(err, auth.ErrUnauthorized) {
				a.clearSession(w)
				writeError(w, r, http.StatusUnauthorized, "Not authenticated", "")
				return
			}
			obs.Error("session lookup failed", map[string]any{
				"request_id": RequestIDFromContext(r.Context()),
				"error":      err,
			})
			writeError(w, r, http.StatusInternalServerError, "authentication error", "")
			return
		}
		ctx := auth.ContextWithUser(r.Context(), user.ID, user.Role)
		ctx = context.WithValue(ctx, userKey{}, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *API) setSession(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(a.auth.SessionTTL() / time.Second),
		HttpOnly: true,
		Secure:   a.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *API) clearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
