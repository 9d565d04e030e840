package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// WithRecovery catches panics from downstream handlers and converts them to
// 500 responses instead of tearing down the connection.
func WithRecovery(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						slog.Any("panic", rec),
						slog.String("path", r.URL.Path),
						slog.String("stack", string(debug.Stack())),
					)
					writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "unexpected server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
