// Package api provides the HTTP serving layer: filtered paginated reads of
// the modeled outage view and the refresh endpoint.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ProblemDetail is an RFC 7807 problem response body.
type ProblemDetail struct {
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// NewProblemDetail creates a problem response body.
func NewProblemDetail(status int, title, detail string) *ProblemDetail {
	return &ProblemDetail{Title: title, Status: status, Detail: detail}
}

// BadRequest creates a 400 Bad Request problem.
func BadRequest(detail string) *ProblemDetail {
	return NewProblemDetail(http.StatusBadRequest, "Bad Request", detail)
}

// NotFound creates a 404 Not Found problem.
func NotFound(detail string) *ProblemDetail {
	return NewProblemDetail(http.StatusNotFound, "Not Found", detail)
}

// Conflict creates a 409 Conflict problem.
func Conflict(detail string) *ProblemDetail {
	return NewProblemDetail(http.StatusConflict, "Conflict", detail)
}

// BadGateway creates a 502 Bad Gateway problem.
func BadGateway(detail string) *ProblemDetail {
	return NewProblemDetail(http.StatusBadGateway, "Bad Gateway", detail)
}

// InternalServerError creates a 500 Internal Server Error problem.
func InternalServerError(detail string) *ProblemDetail {
	return NewProblemDetail(http.StatusInternalServerError, "Internal Server Error", detail)
}

// writeError writes an RFC 7807 error response.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, problem *ProblemDetail) {
	if problem.Instance == "" {
		problem.Instance = r.URL.Path
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(problem.Status)

	if err := json.NewEncoder(w).Encode(problem); err != nil {
		logger.Error("encode error response",
			slog.String("path", r.URL.Path),
			slog.Int("status", problem.Status),
			slog.Any("error", err),
		)
	}
}

// writeJSON writes a 200 JSON response.
func writeJSON(w http.ResponseWriter, logger *slog.Logger, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("encode response", slog.Any("error", err))
	}
}
