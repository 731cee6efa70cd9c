// Package auth implements an OAuth implicit-grant login for clients that
// cannot receive inbound connections.
//
// A login is driven by a Machine, which is either pending (holding the
// anti-CSRF state value sent to the provider) or authenticated (holding the
// access token). AuthState owns the machine for the lifetime of the process
// and hands out two narrow capabilities: a TokenReceiver for the loopback
// listener and a TokenRetriever for the rest of the application.
//
// OAuthProvider ties these together: it builds the authorization URL, starts
// the loopback listener and returns the URL for the caller to open.
package auth

import "fmt"

// Phase identifies which variant a Machine holds.
type Phase int

const (
	PhasePending Phase = iota
	PhaseAuthenticated
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseAuthenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Machine is the login state machine. It is an immutable value: transitions
// return a new Machine and leave the receiver unchanged.
//
// The zero value is Pending(0).
type Machine struct {
	phase Phase
	state int16
	token string
}

// NewMachine returns a pending machine seeded with gen().
func NewMachine(gen func() int16) Machine {
	return Pending(gen())
}

// Pending returns a machine waiting for a callback carrying state.
func Pending(state int16) Machine {
	return Machine{phase: PhasePending, state: state}
}

// Authenticated returns a terminal machine holding token.
func Authenticated(token string) Machine {
	return Machine{phase: PhaseAuthenticated, token: token}
}

// Phase reports the current variant.
func (m Machine) Phase() Phase {
	return m.phase
}

// IsAuthenticated reports whether the machine holds a token.
func (m Machine) IsAuthenticated() bool {
	return m.phase == PhaseAuthenticated
}

// PendingState returns the state value, if the machine is pending.
func (m Machine) PendingState() (int16, bool) {
	if m.phase != PhasePending {
		return 0, false
	}
	return m.state, true
}

// Token returns the access token, if the machine is authenticated.
func (m Machine) Token() (string, bool) {
	if m.phase != PhaseAuthenticated {
		return "", false
	}
	return m.token, true
}

// Receive applies a callback to the machine.
//
// A pending machine whose state equals state becomes Authenticated(token).
// Any other combination fails and yields the zero Machine; callers must keep
// the previous value in that case.
func (m Machine) Receive(token string, state int16) (Machine, error) {
	switch m.phase {
	case PhasePending:
		if m.state != state {
			return Machine{}, ErrStateMismatch
		}
		return Authenticated(token), nil
	case PhaseAuthenticated:
		return Machine{}, ErrAlreadyAuthenticated
	default:
		return Machine{}, fmt.Errorf("auth: unknown phase %v", m.phase)
	}
}

// String never includes the token.
func (m Machine) String() string {
	if m.phase == PhasePending {
		return fmt.Sprintf("pending(%d)", m.state)
	}
	return m.phase.String()
}
