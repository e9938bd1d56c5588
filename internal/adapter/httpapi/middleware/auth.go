package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/andriizakutkodev/AutoMarketplace/internal/platform/logger"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

const (
	// UserIDCtxKey stores the authenticated user's ID in the request context.
	UserIDCtxKey = ContextKey("user_id")
	// UserRoleCtxKey stores the authenticated user's role in the request context.
	UserRoleCtxKey = ContextKey("user_role")
)

// Claims defines the JWT claims issued by the auth service.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// JWTAuth validates the Bearer token and puts the caller's identity on the
// request context. Token issuance belongs to the auth service; this only
// verifies.
func JWTAuth(jwtSecret string, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				log.Warn("JWTAuth: missing Authorization header", zap.String("path", r.URL.Path))
				http.Error(w, "authorization token is not provided", http.StatusUnauthorized)
				return
			}

			parts := strings.Fields(authHeader)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				log.Warn("JWTAuth: invalid Authorization header format", zap.String("path", r.URL.Path))
				http.Error(w, "authorization token format is invalid, expected 'Bearer <token>'", http.StatusUnauthorized)
				return
			}
			tokenString := parts[1]

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !token.Valid {
				log.Warn("JWTAuth: token validation failed", zap.String("path", r.URL.Path), zap.Error(err))
				http.Error(w, "authorization token is invalid or expired", http.StatusUnauthorized)
				return
			}
			if claims.UserID == "" {
				log.Warn("JWTAuth: token has no user_id claim", zap.String("path", r.URL.Path))
				http.Error(w, "authorization token is invalid", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDCtxKey, claims.UserID)
			ctx = context.WithValue(ctx, UserRoleCtxKey, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
