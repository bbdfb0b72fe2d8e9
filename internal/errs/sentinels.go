// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist (or is not visible to the caller).
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates failed authentication: bad credentials or an invalid/expired token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates a valid identity whose token lacks a required scope.
	ErrForbidden = errors.New("not enough permissions")

	// ErrInactive indicates a disabled account.
	ErrInactive = errors.New("inactive user")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., username taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrStorageNotEmpty indicates a storage unit that still holds cellar entries.
	ErrStorageNotEmpty = errors.New("storage unit is not empty")

	// ErrInsufficientQuantity indicates a withdrawal larger than the stored quantity.
	ErrInsufficientQuantity = errors.New("insufficient quantity")

	// ErrValidation indicates malformed or out-of-range input.
	ErrValidation = errors.New("invalid input")
)
