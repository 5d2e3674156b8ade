package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AdminAuthMiddleware checks the bearer token against a bcrypt hash.
// An empty hash disables every route behind it.
func AdminAuthMiddleware(tokenHash string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tokenHash == "" {
			WriteAPIError(w, http.StatusForbidden, CodeDisabled, "Admin API is disabled")
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			WriteAPIError(w, http.StatusUnauthorized, CodeUnauthorized, "Authorization header required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
			WriteAPIError(w, http.StatusUnauthorized, CodeUnauthorized, "Authorization header format must be Bearer {token}")
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(tokenHash), []byte(parts[1])); err != nil {
			WriteAPIError(w, http.StatusUnauthorized, CodeUnauthorized, "Invalid token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequestLogger logs one line per request through zap.
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("http request",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("took", time.Since(start)),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
