package a

import (
	"errors"

	"corostack"
)

func deferred(s *corostack.Stack, h *corostack.Handle) {
	s.Push(h)
	defer s.Pop()
}

func deferredClosure(s *corostack.Stack, h *corostack.Handle) {
	s.Push(h)
	defer func() {
		s.Pop()
	}()
}

func notDeferred(s *corostack.Stack, h *corostack.Handle) error {
	s.Push(h) // want "coroutine handle pushed without a deferred pop"
	if h == nil {
		return errors.New("early return")
	}
	s.Pop()
	return nil
}

func local(h *corostack.Handle) {
	corostack.PushCoroutineStack(h)
	defer corostack.PopCoroutineStack()
}

func localMissingPop(h *corostack.Handle) {
	corostack.PushCoroutineStack(h) // want "coroutine handle pushed without a deferred pop"
}

func nested(s *corostack.Stack, a, b *corostack.Handle) {
	s.Push(a)
	defer s.Pop()
	s.Push(b) // want "coroutine handle pushed without a deferred pop"
}

func chained(s *corostack.Stack, h *corostack.Handle) *corostack.Handle {
	defer s.Pop()
	return s.Push(h)
}

func closure(s *corostack.Stack, h *corostack.Handle) func() {
	s.Push(h)
	defer s.Pop()
	return func() {
		s.Push(h) // want "coroutine handle pushed without a deferred pop"
	}
}

func enter(s *corostack.Stack, h *corostack.Handle) {
	defer s.Enter(h)()
}

func enterDiscarded(s *corostack.Stack, h *corostack.Handle) {
	s.Enter(h) // want "exit function returned by Enter is discarded"
}

func enterKept(s *corostack.Stack, h *corostack.Handle) {
	exit := s.Enter(h)
	defer exit()
}
