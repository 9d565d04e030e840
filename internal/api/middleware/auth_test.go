package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func authHandler(token string, exempt ...string) http.Handler {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return WithBearerAuth(token, slog.Default(), exempt...)(next)
}

func doAuth(t *testing.T, h http.Handler, header string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/data", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestBearerAuthDisabledWhenTokenEmpty(t *testing.T) {
	if got := doAuth(t, authHandler(""), ""); got != http.StatusOK {
		t.Errorf("status = %d, want 200 with auth disabled", got)
	}
}

func TestBearerAuthMissingToken(t *testing.T) {
	h := authHandler("secret")
	if got := doAuth(t, h, ""); got != http.StatusUnauthorized {
		t.Errorf("missing header status = %d, want 401", got)
	}
	if got := doAuth(t, h, "Basic secret"); got != http.StatusUnauthorized {
		t.Errorf("wrong scheme status = %d, want 401", got)
	}
	if got := doAuth(t, h, "Bearer "); got != http.StatusUnauthorized {
		t.Errorf("empty token status = %d, want 401", got)
	}
}

func TestBearerAuthWrongToken(t *testing.T) {
	if got := doAuth(t, authHandler("secret"), "Bearer nope"); got != http.StatusForbidden {
		t.Errorf("wrong token status = %d, want 403", got)
	}
}

func TestBearerAuthValidToken(t *testing.T) {
	if got := doAuth(t, authHandler("secret"), "Bearer secret"); got != http.StatusOK {
		t.Errorf("valid token status = %d, want 200", got)
	}
}

func TestBearerAuthExemptPath(t *testing.T) {
	h := authHandler("secret", "/healthz")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("exempt path status = %d, want 200 without token", rec.Code)
	}
}
