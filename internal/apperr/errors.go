// Package apperr defines the closed set of business error kinds returned by
// the access-control services. Callers match them with errors.Is; the HTTP
// layer maps each kind to a status code. New failure modes must be added
// here rather than invented ad hoc at call sites.
package apperr

import "errors"

var (
	// ErrInvalidCredentials covers both an unknown username and a token
	// digest mismatch so responses cannot be used to enumerate usernames.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrForbidden is returned for revoked principals, insufficient role
	// authority, and any attempt to modify or delete the master admin.
	ErrForbidden = errors.New("forbidden")

	// ErrSessionExpired is returned for unknown or stale session ids and
	// for principals past their token expiry.
	ErrSessionExpired = errors.New("session expired")

	// ErrRateLimit aborts an action before any state mutation when the
	// actor or destination budget for the current window is spent.
	ErrRateLimit = errors.New("rate limit exceeded")

	// ErrBootstrapComplete rejects a second bootstrap attempt.
	ErrBootstrapComplete = errors.New("bootstrap already completed")

	// ErrValidation covers malformed input such as an unparseable phone
	// number or a missing required field.
	ErrValidation = errors.New("validation failed")

	ErrRequestNotFound         = errors.New("token request not found")
	ErrRequestAlreadyProcessed = errors.New("token request already processed")

	// ErrProviderDown is surfaced when the delivery gateway reports a
	// failure to the direct caller of a send operation.
	ErrProviderDown = errors.New("delivery provider unavailable")

	// ErrNotBootstrapped is returned when an operation requires the system
	// to have a master admin and none has been created yet.
	ErrNotBootstrapped = errors.New("system not bootstrapped")
)
