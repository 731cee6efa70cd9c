package auth

import "errors"

var (
	// ErrFailedToLockToken is returned by a TokenRetriever when the token is
	// being updated concurrently. Callers may retry.
	ErrFailedToLockToken = errors.New("unable to get token lock")

	// ErrNoTokenPresent is returned by a TokenRetriever before a login
	// completes.
	ErrNoTokenPresent = errors.New("no token present")

	// ErrStateMismatch is returned when a callback carries a state value that
	// does not match the pending one.
	ErrStateMismatch = errors.New("oauth state param doesn't match")

	// ErrAlreadyAuthenticated is returned by any transition out of the
	// authenticated phase.
	ErrAlreadyAuthenticated = errors.New("can only authenticate once")

	// ErrNoStatePresent is returned when a state value is requested but the
	// flow has already completed.
	ErrNoStatePresent = errors.New("no state value is present, are you already authenticated?")

	// ErrLaunchFailed is returned by OAuthProvider.Provide when the loopback
	// listener could not be started.
	ErrLaunchFailed = errors.New("failed to launch loopback listener")
)
