package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/umarmf343/PhantomViews/internal/auth"
)

type claimsKey struct{}

// ClaimsFromContext returns the validated token claims, or nil on unauthenticated requests.
func ClaimsFromContext(ctx context.Context) *auth.Claims {
	c, _ := ctx.Value(claimsKey{}).(*auth.Claims)
	return c
}

// WithClaims stores claims in ctx. Tests use it to stand in for RequireRole.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// RequireRole rejects requests without a valid bearer token carrying at
// least the given role: 401 for a missing or bad token, 403 for a weak role.
func RequireRole(svc *auth.JWTService, role auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if header == "" || !ok || token == "" {
				writeError(w, r.Context(), http.StatusUnauthorized, "auth_failed", "Authorization required")
				return
			}

			claims, err := svc.ValidateToken(token)
			if err != nil {
				msg := "Invalid token"
				if errors.Is(err, auth.ErrExpiredToken) {
					msg = "Token has expired"
				}
				writeError(w, r.Context(), http.StatusUnauthorized, "auth_failed", msg)
				return
			}

			user := claims.Email
			if user == "" {
				user = claims.Subject
			}
			ctx := SetUser(r.Context(), user)

			if !claims.Role.Allows(role) {
				writeError(w, ctx, http.StatusForbidden, "forbidden", "You are not allowed to do this")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(ctx, claims)))
		})
	}
}
