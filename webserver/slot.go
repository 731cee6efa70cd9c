package webserver

import "sync"

// shutdownSlot holds the stop function of a running listener. It is filled
// once at launch and emptied by the first successful callback.
type shutdownSlot struct {
	mu   sync.Mutex
	stop func()
}

func (s *shutdownSlot) put(stop func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return false
	}
	s.stop = stop
	return true
}

// take empties the slot and returns its content, or nil if it was empty.
func (s *shutdownSlot) take() func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	stop := s.stop
	s.stop = nil
	return stop
}

// fire calls the stop function if the slot still holds one.
func (s *shutdownSlot) fire() bool {
	stop := s.take()
	if stop == nil {
		return false
	}
	stop()
	return true
}
