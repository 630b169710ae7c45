package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	id "surasmart/pkg/domain"
)

// JWTValidator defines the interface for validating JWT tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator.
type JWTClaims struct {
	UserID string
	Role   string
}

type contextKeyUserID struct{}
type contextKeyRole struct{}

// GetUserID retrieves the authenticated user ID from the context.
func GetUserID(ctx context.Context) id.UserID {
	if userID, ok := ctx.Value(contextKeyUserID{}).(id.UserID); ok {
		return userID
	}
	return id.UserID{}
}

// GetRole retrieves the authenticated actor's role from the context.
func GetRole(ctx context.Context) id.Role {
	if role, ok := ctx.Value(contextKeyRole{}).(id.Role); ok {
		return role
	}
	return ""
}

// WithActor injects an authenticated actor into a context. Useful for service
// unit tests that don't run the full HTTP middleware chain.
func WithActor(ctx context.Context, userID id.UserID, role id.Role) context.Context {
	ctx = context.WithValue(ctx, contextKeyUserID{}, userID)
	return context.WithValue(ctx, contextKeyRole{}, role)
}

// RequireAuth validates the bearer token and injects the actor identity and
// role into the request context. Token issuance is an external concern; this
// service only validates.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			claims, err := validator.ValidateToken(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				logger.WarnContext(r.Context(), "token validation failed",
					"request_id", GetRequestID(r.Context()),
					"error", err.Error(),
				)
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			userID, err := id.ParseUserID(claims.UserID)
			if err != nil {
				http.Error(w, "invalid token subject", http.StatusUnauthorized)
				return
			}
			role, err := id.ParseRole(claims.Role)
			if err != nil {
				http.Error(w, "invalid token role", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), userID, role)))
		})
	}
}
