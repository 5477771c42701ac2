// Package lifecycle provides the disposable stack the runtime drains at
// shutdown. Resources register in acquisition order and are released in
// reverse, so an executor never outlives anything it depends on.
package lifecycle

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// DisposeFunc releases one resource.
type DisposeFunc func(ctx context.Context) error

// Stack is an append-only LIFO collection of disposers. Defer may be called
// concurrently; Dispose drains the stack exactly once.
type Stack struct {
	mu        sync.Mutex
	disposers []DisposeFunc
	disposed  bool
}

func NewStack() *Stack {
	return &Stack{}
}

// Defer registers a disposer. Registering after Dispose panics: a resource
// acquired during shutdown would never be released.
func (s *Stack) Defer(fn DisposeFunc) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		panic("lifecycle: Defer called after Dispose")
	}
	s.disposers = append(s.disposers, fn)
}

// Len returns the number of registered disposers.
func (s *Stack) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.disposers)
}

// Dispose runs all disposers in LIFO order. Every disposer runs even when an
// earlier one fails; failures are aggregated. Subsequent calls are no-ops.
func (s *Stack) Dispose(ctx context.Context) error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil
	}
	s.disposed = true
	disposers := s.disposers
	s.disposers = nil
	s.mu.Unlock()

	var result *multierror.Error
	for i := len(disposers) - 1; i >= 0; i-- {
		if err := disposers[i](ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
