package auth

import (
	"context"
	"fmt"
	"net/http"

	"ms-sorteos/internal/logger"
	"ms-sorteos/internal/utils"
)

type contextKey string

const userIDKey contextKey = "user_id"

// Middleware admits requests bearing a valid admin token.
func Middleware(secret, issuer string, log *logger.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logger.Discard()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", err.Error()))
				return
			}

			claims, err := ParseAdminToken(rawToken, secret, issuer)
			if err != nil {
				log.LogSecurity("ADMIN_AUTH", fmt.Sprintf("%s %s rejected: %v", r.Method, r.URL.Path, err))
				utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", "invalid token"))
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Helper to extract user ID in handlers
func UserID(ctx context.Context) string {
	if uid, ok := ctx.Value(userIDKey).(string); ok {
		return uid
	}
	return ""
}
