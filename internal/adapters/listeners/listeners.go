// Package listeners holds provider event subscriptions shared by the identity adapters.
package listeners

import (
	"sync"

	"github.com/sudheendra1210/Citycycle/internal/ports"
)

// Set is a concurrency-safe set of event callbacks. The zero value is ready to use.
type Set struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(ports.ProviderEvent)
}

// Add registers fn and returns a function that removes it. Calling the remover twice is harmless.
func (s *Set) Add(fn func(ports.ProviderEvent)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fns == nil {
		s.fns = make(map[int]func(ports.ProviderEvent))
	}
	id := s.next
	s.next++
	s.fns[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.fns, id)
	}
}

// Emit calls every registered callback with ev. Callbacks run outside the lock,
// so they may subscribe or unsubscribe.
func (s *Set) Emit(ev ports.ProviderEvent) {
	s.mu.Lock()
	fns := make([]func(ports.ProviderEvent), 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Len reports the number of registered callbacks.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fns)
}
