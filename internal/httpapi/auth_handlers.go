package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"scholarportal.org/internal/audit"
	"scholarportal.org/internal/auth"
	"scholarportal.org/internal/obs"
)

type identityResponse struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	Role           string `json:"role"`
	Name           string `json:"name,omitempty"`
	Surname        string `json:"surname,omitempty"`
	GivenName      string `json:"givenName,omitempty"`
	MiddleName     string `json:"middleName,omitempty"`
	Nationality    string `json:"nationality,omitempty"`
	PassportNumber string `json:"passportNumber,omitempty"`
}

func identityOf(u *auth.User) identityResponse {
	return identityResponse{
		ID:             u.ID,
		Email:          u.Email,
		Role:           string(u.Role),
		Name:           u.Name,
		Surname:        u.Surname,
		GivenName:      u.GivenName,
		MiddleName:     u.MiddleName,
		Nationality:    u.Nationality,
		PassportNumber: u.PassportNumber,
	}
}

type emailRequest struct {
	Email string `json:"email"`
}

type codeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Surname         string `json:"surname"`
	GivenName       string `json:"givenName"`
	MiddleName      string `json:"middleName"`
	HasPassport     string `json:"hasPassport"`
	PassportNumber  string `json:"passportNumber"`
	Nationality     string `json:"nationality"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type profileRequest struct {
	Name           *string `json:"name"`
	Surname        *string `json:"surname"`
	GivenName      *string `json:"givenName"`
	MiddleName     *string `json:"middleName"`
	Nationality    *string `json:"nationality"`
	PassportNumber *string `json:"passportNumber"`
}

type resetRequest struct {
	Email    string `json:"email"`
	Code     string `json:"code"`
	Password string `json:"password"`
}

type ackResponse struct {
	Message   string     `json:"message"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

const forgotAck = "If an account exists for this email, a reset code has been sent"

func (a *API) handleSendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	expires, err := a.auth.SendVerification(r.Context(), req.Email)
	if err != nil {
		a.fail(w, r, "send_verification", err)
		return
	}
	obs.AuthEvent("send_verification", "ok")
	_ = audit.LogEvent(r.Context(), audit.EventVerificationSent, map[string]any{"email": trimmed(req.Email)})
	writeJSON(w, http.StatusOK, ackResponse{Message: "Verification code sent", ExpiresAt: &expires})
}

func (a *API) handleVerifyCode(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	if err := a.auth.VerifyCode(r.Context(), req.Email, req.Code); err != nil {
		a.fail(w, r, "verify_code", err)
		return
	}
	obs.AuthEvent("verify_code", "ok")
	_ = audit.LogEvent(r.Context(), audit.EventCodeVerified, map[string]any{"email": trimmed(req.Email)})
	writeJSON(w, http.StatusOK, ackResponse{Message: "Email verified"})
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	res, err := a.auth.Register(r.Context(), auth.Registration{
		Surname:         req.Surname,
		GivenName:       req.GivenName,
		MiddleName:      req.MiddleName,
		HasPassport:     req.HasPassport == "yes",
		PassportNumber:  req.PassportNumber,
		Nationality:     req.Nationality,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		a.fail(w, r, "register", err)
		return
	}
	a.setSession(w, res.Token)
	obs.AuthEvent("register", "ok")
	ctx := auth.ContextWithUser(r.Context(), res.User.ID, res.User.Role)
	_ = audit.LogEvent(ctx, audit.EventRegister, map[string]any{"session_id": res.Session.ID})
	writeJSON(w, http.StatusCreated, identityOf(res.User))
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	res, err := a.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			_ = audit.LogEvent(r.Context(), audit.EventLoginFailed, map[string]any{"email": trimmed(req.Email)})
		}
		a.fail(w, r, "login", err)
		return
	}
	a.setSession(w, res.Token)
	obs.AuthEvent("login", "ok")
	ctx := auth.ContextWithUser(r.Context(), res.User.ID, res.User.Role)
	_ = audit.LogEvent(ctx, audit.EventLogin, map[string]any{"session_id": res.Session.ID})
	writeJSON(w, http.StatusOK, identityOf(res.User))
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		if err := a.auth.Logout(r.Context(), cookie.Value); err != nil {
			obs.Warn("session revoke failed", map[string]any{
				"request_id": RequestIDFromContext(r.Context()),
				"error":      err,
			})
		}
	}
	a.clearSession(w)
	obs.AuthEvent("logout", "ok")
	_ = audit.LogEvent(r.Context(), audit.EventLogout, nil)
	writeJSON(w, http.StatusOK, ackResponse{Message: "Logged out"})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	writeJSON(w, http.StatusOK, identityOf(user))
}

func (a *API) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	updated, err := a.auth.UpdateProfile(r.Context(), user.ID, auth.ProfileUpdate{
		Name:           req.Name,
		Surname:        req.Surname,
		GivenName:      req.GivenName,
		MiddleName:     req.MiddleName,
		Nationality:    req.Nationality,
		PassportNumber: req.PassportNumber,
	})
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			err = auth.ErrUnauthorized
		}
		a.fail(w, r, "update_profile", err)
		return
	}
	obs.AuthEvent("update_profile", "ok")
	_ = audit.LogEvent(r.Context(), audit.EventProfileUpdated, nil)
	writeJSON(w, http.StatusOK, identityOf(updated))
}

func (a *API) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	if err := a.auth.ForgotPassword(r.Context(), req.Email); err != nil {
		a.fail(w, r, "forgot_password", err)
		return
	}
	obs.AuthEvent("forgot_password", "ok")
	_ = audit.LogEvent(r.Context(), audit.EventResetRequested, map[string]any{"email": trimmed(req.Email)})
	writeJSON(w, http.StatusOK, ackResponse{Message: forgotAck})
}

func (a *API) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	if err := a.auth.ResetPassword(r.Context(), req.Email, req.Code, req.Password); err != nil {
		a.fail(w, r, "reset_password", err)
		return
	}
	a.clearSession(w)
	obs.AuthEvent("reset_password", "ok")
	_ = audit.LogEvent(r.Context(), audit.EventPasswordReset, map[string]any{"email": trimmed(req.Email)})
	writeJSON(w, http.StatusOK, ackResponse{Message: "Password updated. Please log in."})
}

// fail maps service errors onto statuses and records the outcome.
func (a *API) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	code, msg, details := statusFor(err)
	var cooldown *auth.CooldownError
	if errors.As(err, &cooldown) {
		w.Header().Set("Retry-After", strconv.Itoa(cooldown.Seconds()))
	}
	outcome := "rejected"
	if code >= http.StatusInternalServerError {
		outcome = "error"
		obs.Error("auth operation failed", map[string]any{
			"request_id": RequestIDFromContext(r.Context()),
			"op":         op,
			"error":      err,
		})
	}
	obs.AuthEvent(op, outcome)
	writeError(w, r, code, msg, details)
}

func statusFor(err error) (int, string, string) {
	var (
		verr     *auth.ValidationError
		cooldown *auth.CooldownError
		delivery *auth.DeliveryError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Message, ""
	case errors.Is(err, auth.ErrWeakPassword):
		return http.StatusBadRequest, "Password must be at least " + strconv.Itoa(auth.MinPasswordLength) + " characters", ""
	case errors.Is(err, auth.ErrAlreadyExists):
		return http.StatusConflict, "An account with this email already exists", ""
	case errors.As(err, &cooldown):
		return http.StatusTooManyRequests, "Please wait before requesting another code", "retry in " + strconv.Itoa(cooldown.Seconds()) + "s"
	case errors.As(err, &delivery):
		return http.StatusBadGateway, "Failed to send verification code", delivery.Err.Error()
	case errors.Is(err, auth.ErrNotFound):
		return http.StatusNotFound, "No verification code found for this email", ""
	case errors.Is(err, auth.ErrCodeExpired):
		return http.StatusGone, "Verification code expired", ""
	case errors.Is(err, auth.ErrCodeInvalid):
		return http.StatusBadRequest, "Invalid verification code", ""
	case errors.Is(err, auth.ErrEmailNotVerified):
		return http.StatusForbidden, "Email not verified", ""
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid credentials", ""
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, "Not authenticated", ""
	default:
		return http.StatusInternalServerError, "Internal error", ""
	}
}
