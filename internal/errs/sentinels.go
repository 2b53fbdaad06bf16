// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across gateway/session/tracker layers.
var (
	// ErrAuthentication indicates the backend rejected the supplied credentials.
	ErrAuthentication = errors.New("authentication failed")

	// ErrNetwork indicates the backend could not be reached or timed out.
	ErrNetwork = errors.New("network error")

	// ErrUpdate indicates a request status update was rejected.
	ErrUpdate = errors.New("update rejected")

	// ErrRestoration indicates a persisted session was partial or corrupt.
	// It is logged by the session manager and never returned to callers.
	ErrRestoration = errors.New("session restoration failed")

	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates invalid input rejected before any I/O.
	ErrValidation = errors.New("validation failed")

	// ErrNotAuthenticated indicates an operation that needs a session was called without one.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrLoginInProgress indicates another login is still in flight.
	ErrLoginInProgress = errors.New("login already in progress")

	// ErrAdvanceInProgress indicates a status advance for the same request is still in flight.
	ErrAdvanceInProgress = errors.New("advance already in progress")

	// ErrMalformedResponse indicates a backend payload failed boundary validation.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrUnauthorized indicates failed authentication on the dev backend.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., email taken).
	ErrAlreadyExists = errors.New("already exists")
)
