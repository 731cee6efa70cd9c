package auth

// TokenReceiver is the write side of a login, used by the loopback listener.
type TokenReceiver interface {
	// State returns the pending anti-CSRF value, or ErrNoStatePresent once
	// the login has completed.
	State() (int16, error)
	// TokenReceived records token if state matches the pending value.
	TokenReceived(token string, state int16) error
}

// TokenRetriever is the read side of a login, used by the rest of the
// application once the token has arrived.
type TokenRetriever interface {
	// Token returns the access token. It fails with ErrNoTokenPresent before
	// the login completes and with ErrFailedToLockToken while the state is
	// being updated.
	Token() (string, error)
}
