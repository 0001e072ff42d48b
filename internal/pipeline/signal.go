// Package pipeline holds the moving parts of the matching pipeline: the
// bounded in-memory queues between stages, the stop signals tasks poll, the
// task supervisor driven by the control API, and the task functions
// themselves. Stage adapters (mail source, extraction pool, matching engine,
// outbound composer, document store) plug in through the interfaces on
// Runtime.
package pipeline

import "sync"

// Signal is a resettable stop flag. Tasks poll IsSet between units of work
// and select on Done while sleeping, so a stop request lands within one unit
// or one tick, whichever comes first.
type Signal struct {
	mu  sync.Mutex
	set bool
	ch  chan struct{}
}

// NewSignal returns a cleared signal.
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{})}
}

// Set raises the signal. Idempotent.
func (s *Signal) Set() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.set {
		return
	}
	s.set = true
	close(s.ch)
}

// Clear lowers the signal so the owner can be started again. Idempotent.
func (s *Signal) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set {
		return
	}
	s.set = false
	s.ch = make(chan struct{})
}

// IsSet reports whether the signal is raised.
func (s *Signal) IsSet() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set
}

// Done returns a channel closed while the signal is raised. The channel is
// replaced on Clear, so callers re-read it per select.
func (s *Signal) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch
}
