package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/swaraj/complaints-backend/internal/auth"
	"github.com/swaraj/complaints-backend/internal/infrastructure/logging"
)

// contextKey is a private type for context keys so values set here cannot
// collide with keys from other packages.
type contextKey string

// UserClaimsKey is the context key under which JWTMiddleware stores the
// authenticated claims.
const UserClaimsKey contextKey = "userClaims"

// JWTMiddleware rejects requests that do not carry a valid bearer token.
// Validated claims are stored in the request context for handlers to read
// via ClaimsFromContext.
func JWTMiddleware(tm *auth.TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				http.Error(w, "Authorization header must be of the form: Bearer {token}", http.StatusUnauthorized)
				return
			}

			claims, err := tm.ValidateToken(token)
			if err != nil {
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserClaimsKey, claims)
			ctx = logging.WithUserID(ctx, claims.UserID.String())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from an "Authorization: Bearer {token}"
// header. The second return is false when the header is missing or malformed.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}

// ClaimsFromContext retrieves the authenticated claims placed by JWTMiddleware.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(UserClaimsKey).(*auth.Claims)
	return claims, ok
}
