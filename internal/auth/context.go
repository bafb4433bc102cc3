package auth

import (
	"context"
	"strings"
)

type ctxKey string

const (
	userIDKey ctxKey = "auth_user_id"
	roleKey   ctxKey = "auth_role"
)

// ContextWithUser stores user identity in the context.
func ContextWithUser(ctx context.Context, userID string, role Role) context.Context {
	ctx = context.WithValue(ctx, userIDKey, strings.TrimSpace(userID))
	if role != "" {
		ctx = context.WithValue(ctx, roleKey, role)
	}
	return ctx
}

// UserIDFromContext extracts the authenticated user ID from context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(userIDKey).(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// RoleFromContext returns the role stored alongside the user id.
func RoleFromContext(ctx context.Context) (Role, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(roleKey).(Role)
	return v, ok && v != ""
}
