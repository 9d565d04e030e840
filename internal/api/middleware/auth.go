package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// WithBearerAuth enforces a static bearer token on protected endpoints.
// When token is empty, auth is disabled entirely. Paths listed in exempt
// (e.g. health checks) always pass.
//
// A missing or malformed Authorization header yields 401; a present but
// wrong token yields 403. The comparison is constant-time.
func WithBearerAuth(token string, logger *slog.Logger, exempt ...string) Middleware {
	exemptSet := make(map[string]struct{}, len(exempt))
	for _, p := range exempt {
		exemptSet[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptSet[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			presented, ok := extractBearer(r)
			if !ok {
				writeProblem(w, http.StatusUnauthorized, "Unauthorized", "missing bearer token")
				return
			}

			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				logger.Warn("rejected request with invalid token", slog.String("path", r.URL.Path))
				writeProblem(w, http.StatusForbidden, "Forbidden", "invalid token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractBearer pulls the token out of an "Authorization: Bearer ..." header.
// Keys containing newlines are rejected outright.
func extractBearer(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}

	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" || strings.ContainsAny(token, "\r\n") {
		return "", false
	}
	return token, true
}

// writeProblem writes a minimal RFC 7807 problem response. The api package
// carries the full problem type; middleware only ever emits these few fields.
func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"title":  title,
		"status": status,
		"detail": detail,
	})
}
