package middleware

import (
	"context"
	"errors"
	"net/http"
	"slices"
)

const roleKey contextKey = "role"

// ErrRoleUnavailable is returned by resolvers that cannot determine a role.
var ErrRoleUnavailable = errors.New("middleware: role unavailable")

// RoleResolver returns the caller's clinic role, e.g. by asking the backend.
type RoleResolver func(ctx context.Context) (string, error)

// RequireRole admits only callers whose resolved role is one of roles. The
// role is stored in the context for handlers.
func RequireRole(resolve RoleResolver, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, err := resolve(r.Context())
			if err != nil {
				unauthorized(w, "role lookup failed")
				return
			}
			if !slices.Contains(roles, role) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"forbidden"}`))
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), roleKey, role)))
		})
	}
}

// RoleFromContext returns the role resolved by RequireRole.
func RoleFromContext(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(roleKey).(string)
	return role, ok && role != ""
}
