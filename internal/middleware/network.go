package middleware

import (
	"context"
	"net/http"

	"app/internal/util"
)

const NetworkContextKey = contextKey("network")

// NetworkID returns the canonical caller network identifier extracted by
// NetworkIDMiddleware. Throttling and abuse guards must key off this value
// so every call site scopes the same caller identically.
func NetworkID(ctx context.Context) string {
	id, _ := ctx.Value(NetworkContextKey).(string)
	return id
}

// NetworkIDMiddleware resolves the client network identifier once per
// request and stores it in the context.
func NetworkIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), NetworkContextKey, util.ClientIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
