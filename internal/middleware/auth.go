package middleware

import (
	"context"
	"net/http"
	"strings"

	"app/internal/util"

	"github.com/rs/zerolog"
)

// Injected key type to avoid context collisions
type contextKey string

const AccountContextKey = contextKey("account")

// AccountID returns the authenticated account email from the request
// context, or "" for anonymous callers.
func AccountID(ctx context.Context) string {
	id, _ := ctx.Value(AccountContextKey).(string)
	return id
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

// AuthMiddleware rejects requests without a valid session token.
func AuthMiddleware(jwtSecret string, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				http.Error(w, "Authorization header missing or malformed", http.StatusUnauthorized)
				return
			}
			claims, err := util.ValidateSessionJWT(token, jwtSecret)
			if err != nil {
				logger.Debug().Err(err).Msg("Rejected invalid session token")
				http.Error(w, "Invalid token: "+err.Error(), http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), AccountContextKey, util.NormalizeEmail(claims.Subject))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuthMiddleware attaches the account when a valid session token is
// present and lets the request through anonymously otherwise. The analyze
// endpoint uses this: anonymous callers go through the free preview guard.
func OptionalAuthMiddleware(jwtSecret string, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := util.ValidateSessionJWT(token, jwtSecret)
			if err != nil {
				// A present-but-invalid token is rejected rather than
				// silently treated as anonymous, so an expired session
				// never burns the caller's free preview.
				logger.Debug().Err(err).Msg("Rejected invalid session token on optional-auth route")
				http.Error(w, "Invalid token: "+err.Error(), http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), AccountContextKey, util.NormalizeEmail(claims.Subject))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminMiddleware gates privileged endpoints behind a static API key.
func AdminMiddleware(adminKey string, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminKey == "" || r.Header.Get("X-Admin-Key") != adminKey {
				logger.Warn().Str("path", r.URL.Path).Msg("Rejected privileged request")
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
