package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gunjansamrit/GuardianVault01/internal/token"
)

// ClaimsContextKey is the context key for the authenticated party's claims.
type ClaimsContextKey struct{}

// Auth returns middleware that authenticates requests using Bearer tokens.
func Auth(tokens *token.Manager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				jsonError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				jsonError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid authorization header format")
				return
			}

			claims, err := tokens.Verify(parts[1])
			if err != nil {
				jsonError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClaims returns the authenticated claims from the context, or nil.
func GetClaims(ctx context.Context) *token.Claims {
	if claims, ok := ctx.Value(ClaimsContextKey{}).(*token.Claims); ok {
		return claims
	}
	return nil
}
