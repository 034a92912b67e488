package recovery

import (
	"fmt"
	"sync"
)

// StrictStrategy implements a fail-fast recovery strategy.
type StrictStrategy struct{}

func NewStrictStrategy() *StrictStrategy {
	return &StrictStrategy{}
}

func (s *StrictStrategy) OnError(err error, location Location) Action {
	return ActionFail
}

// LenientStrategy implements a best-effort recovery strategy. Every problem
// it tolerates is kept so callers can report them afterwards.
type LenientStrategy struct {
	mu     sync.Mutex
	errors []error
}

func NewLenientStrategy() *LenientStrategy {
	return &LenientStrategy{}
}

func (s *LenientStrategy) OnError(err error, location Location) Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, fmt.Errorf("[%s] offset %d: %w", location.Component, location.ByteOffset, err))
	return ActionWarn
}

// Errors returns the problems tolerated so far.
func (s *LenientStrategy) Errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.errors...)
}
