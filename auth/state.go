package auth

import "sync"

// AuthState owns the login Machine for the lifetime of a process.
//
// All access goes through the TokenReceiver and TokenRetriever views, which
// share one mutex. A zero AuthState holds Pending(0); use NewAuthState to seed
// it with a random value.
type AuthState struct {
	mu      sync.Mutex
	machine Machine
}

// NewAuthState returns an AuthState holding m.
func NewAuthState(m Machine) *AuthState {
	return &AuthState{machine: m}
}

// Initialize replaces the held machine with m.
func (s *AuthState) Initialize(m Machine) {
	s.mu.Lock()
	s.machine = m
	s.mu.Unlock()
}

// Snapshot returns a copy of the held machine.
func (s *AuthState) Snapshot() Machine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine
}

// Receiver returns the write capability for the loopback listener.
func (s *AuthState) Receiver() TokenReceiver {
	return receiverView{s}
}

// Retriever returns the read capability for the rest of the application.
func (s *AuthState) Retriever() TokenRetriever {
	return retrieverView{s}
}

type receiverView struct{ s *AuthState }

func (v receiverView) State() (int16, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	state, ok := v.s.machine.PendingState()
	if !ok {
		return 0, ErrNoStatePresent
	}
	return state, nil
}

// TokenReceived holds the lock only for the read-transition-write of the
// machine, so concurrent callbacks serialize.
func (v receiverView) TokenReceived(token string, state int16) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	next, err := v.s.machine.Receive(token, state)
	if err != nil {
		return err
	}
	v.s.machine = next
	return nil
}

type retrieverView struct{ s *AuthState }

// Token does not block. Contention is reported as ErrFailedToLockToken.
func (v retrieverView) Token() (string, error) {
	if !v.s.mu.TryLock() {
		return "", ErrFailedToLockToken
	}
	defer v.s.mu.Unlock()
	token, ok := v.s.machine.Token()
	if !ok {
		return "", ErrNoTokenPresent
	}
	return token, nil
}

var (
	_ TokenReceiver  = receiverView{}
	_ TokenRetriever = retrieverView{}
)
