package middleware

import (
	"net/http"

	"github.com/golang-jwt/jwt/v5"
)

// SharedSecretJWT verifies HMAC-signed tokens, such as those minted by the
// clinic backend with its signing secret.
func SharedSecretJWT(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				unauthorized(w, "shared secret auth disabled")
				return
			}
			tokenString, ok := bearerToken(r)
			if !ok {
				unauthorized(w, "missing authorization header")
				return
			}
			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			}, jwt.WithExpirationRequired())
			if err != nil || !token.Valid {
				unauthorized(w, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims, tokenString)))
		})
	}
}

// Authenticate prefers OIDC when an issuer is configured and falls back to
// the shared secret otherwise.
func Authenticate(oidc OIDCConfig, secret string) func(http.Handler) http.Handler {
	if oidc.Issuer != "" {
		return OIDCJWT(oidc)
	}
	return SharedSecretJWT(secret)
}
