// Package errs contains sentinel and typed errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across identity/repository/service layers.
var (
	// ErrNotFound indicates the requested product does not exist on the backend.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates the backend rejected the bearer credential.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates a temporary sign-in lock, local or provider side.
	ErrRateLimited = errors.New("rate limited")

	// ErrInvalidCredentials indicates the identity provider rejected email/password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUserDisabled indicates the account exists but was disabled by an administrator.
	ErrUserDisabled = errors.New("user disabled")

	// ErrTokenRevoked indicates the refresh credential is no longer accepted by the provider.
	ErrTokenRevoked = errors.New("token revoked")

	// ErrNoSession indicates an operation that needs an authenticated session ran without one.
	ErrNoSession = errors.New("no session")

	// ErrSuperseded indicates a response was discarded because a newer request was issued.
	ErrSuperseded = errors.New("superseded by newer request")

	// ErrClosed indicates the component was torn down.
	ErrClosed = errors.New("closed")
)
