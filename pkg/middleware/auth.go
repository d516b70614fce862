package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"workflow-collab-backend/pkg/config"
	"workflow-collab-backend/pkg/models"
	"workflow-collab-backend/pkg/utils"
)

// ContextKey namespaces values this package stores on the request context.
type ContextKey string

const (
	PrincipalContextKey ContextKey = "principal"
)

// AuthMiddleware validates the bearer token and stores the resolved
// Principal on the request context. Only access tokens are accepted.
func AuthMiddleware(cfg *config.Config) func(http.Handler) http.Handler {
	jwtService := utils.NewJWTService(cfg.JWTSecret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				utils.WriteUnauthorizedResponse(w, "Missing authorization header")
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				utils.WriteUnauthorizedResponse(w, "Invalid authorization header format")
				return
			}

			claims, err := jwtService.ValidateToken(tokenString)
			if err != nil {
				utils.WriteUnauthorizedResponse(w, "Invalid token")
				return
			}
			if claims.Type != "access" {
				utils.WriteUnauthorizedResponse(w, "Invalid token type")
				return
			}

			principal := &models.Principal{
				UserID:        claims.UserID,
				Email:         claims.Email,
				IsSystemAdmin: claims.IsSystemAdmin,
			}

			ctx := context.WithValue(r.Context(), PrincipalContextKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPrincipalFromContext returns the authenticated caller, if any.
func GetPrincipalFromContext(ctx context.Context) (*models.Principal, bool) {
	p, ok := ctx.Value(PrincipalContextKey).(*models.Principal)
	return p, ok
}

// RequirePrincipal returns the authenticated caller or an error for
// handlers reached without the auth middleware.
func RequirePrincipal(ctx context.Context) (*models.Principal, error) {
	p, ok := GetPrincipalFromContext(ctx)
	if !ok || p == nil {
		return nil, fmt.Errorf("caller not authenticated")
	}
	return p, nil
}
