package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"scholarportal.org/internal/auth"
	"scholarportal.org/internal/obs"
)

// Event names emitted by the auth API.
const (
	EventLogin            = "auth.login"
	EventLoginFailed      = "auth.login.failed"
	EventRegister         = "auth.register"
	EventLogout           = "auth.logout"
	EventVerificationSent = "auth.verification.sent"
	EventCodeVerified     = "auth.verification.verified"
	EventProfileUpdated   = "auth.profile.updated"
	EventResetRequested   = "auth.password.reset_requested"
	EventPasswordReset    = "auth.password.reset"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request id attached by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes an audit log entry enriched with request and user context.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	entry := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"type":  "audit",
		"event": event,
	}
	if rid := RequestIDFromContext(ctx); rid != "" {
		entry["request_id"] = rid
	}
	if userID, ok := auth.UserIDFromContext(ctx); ok {
		entry["user_id"] = userID
	}
	if role, ok := auth.RoleFromContext(ctx); ok {
		entry["role"] = string(role)
	}
	copyFields := make(map[string]any, len(fields))
	for k, v := range fields {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		copyFields[k] = v
	}
	entry["fields"] = copyFields

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	obs.Logger().Println(string(data))
	return nil
}
