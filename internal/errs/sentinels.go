// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Storage sentinels.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., email taken).
	ErrAlreadyExists = errors.New("already exists")
)

// Authentication and authorization sentinels.
var (
	// ErrInvalidCredentials is returned for an unknown email and a wrong password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountInactive indicates the identity exists but was deactivated.
	ErrAccountInactive = errors.New("account inactive")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrMissingToken indicates the request carries no bearer credential.
	ErrMissingToken = errors.New("missing token")

	// ErrInvalidToken collapses every token decode failure (signature, format, expiry).
	ErrInvalidToken = errors.New("invalid token")

	// ErrForbidden indicates an authenticated caller lacks the administrator role.
	ErrForbidden = errors.New("forbidden")

	// ErrNoClaims indicates an authorization check ran without a preceding authentication
	// step. It is an internal wiring error, never a client error.
	ErrNoClaims = errors.New("no claims in context")
)

// ErrValidation marks malformed client input.
var ErrValidation = errors.New("validation")
