package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const (
	claimsKey      contextKey = "authClaims"
	bearerTokenKey contextKey = "bearerToken"
)

// Claims are the identity claims the booking service relies on. Both OIDC
// and shared-secret tokens decode into this shape.
type Claims struct {
	jwt.RegisteredClaims
	Email             string `json:"email"`
	EmailVerified     *bool  `json:"email_verified,omitempty"`
	Name              string `json:"name,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
}

// EmailUnverified reports whether the provider explicitly marked the email
// as not verified. Tokens without the claim are trusted as issued.
func (c *Claims) EmailUnverified() bool {
	return c.EmailVerified != nil && !*c.EmailVerified
}

// WithClaims stores verified claims and the raw bearer token in ctx.
func WithClaims(ctx context.Context, claims *Claims, token string) context.Context {
	ctx = context.WithValue(ctx, claimsKey, claims)
	return context.WithValue(ctx, bearerTokenKey, token)
}

// ClaimsFromContext returns the caller's verified claims.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok && claims != nil
}

// BearerTokenFromContext returns the verified bearer token so it can be
// forwarded to the clinic backend.
func BearerTokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(bearerTokenKey).(string)
	return token, ok && token != ""
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	return token, token != ""
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
