package session

import "errors"

var (
	// ErrPrincipalNotFound: no user matches the submitted handle or email.
	ErrPrincipalNotFound = errors.New("principal not found")
	// ErrInvalidCredentials: user exists, password does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized is the umbrella for all refresh-path failures: missing,
	// malformed, expired or already-rotated tokens. The client is told only
	// to log in again, never which case it hit.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrStoreUnavailable: the backing store failed or timed out. The only
	// kind a caller may meaningfully retry.
	ErrStoreUnavailable = errors.New("session store unavailable")
)
