// Package middleware provides HTTP middleware components for the outages API.
package middleware

import "net/http"

// Middleware wraps an http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Apply wraps handler with the given middleware. The first middleware listed
// is the outermost: it sees the request first and the response last.
func Apply(handler http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}
