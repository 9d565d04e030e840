// Package errors consolidates sentinel errors for the outages pipeline.
//
// Each pipeline stage wraps these with context via fmt.Errorf("...: %w", ...)
// so callers can classify failures with errors.Is without depending on the
// stage packages.
package errors

import (
	"errors"
	"fmt"
)

var (
	// Extraction errors
	ErrExtraction  = errors.New("extraction failed")
	ErrCredentials = errors.New("invalid API credentials")

	// Build errors
	ErrBuild  = errors.New("model build failed")
	ErrNoData = errors.New("no raw data to model")

	// Store errors
	ErrSwap           = errors.New("atomic swap failed")
	ErrModeledMissing = errors.New("modeled store not found")

	// Refresh errors
	ErrRefreshInFlight = errors.New("refresh already in flight")

	// Query errors
	ErrQuery = errors.New("invalid query parameters")

	// Auth errors
	ErrNotAuthenticated = errors.New("missing bearer token")
	ErrInvalidToken     = errors.New("invalid token")
)

// Wrap adds context to an error, preserving the sentinel chain.
// Returns nil if err is nil.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// New returns an error that formats as the given text.
func New(text string) error {
	return errors.New(text)
}
