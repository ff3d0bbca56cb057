package corostack

import "github.com/dispatchrun/corostack/internal/gls"

// This file exposes the execution context stack bound to the calling
// goroutine. These are the entry points used by runtime code which has no
// Stack at hand, such as completion callbacks that need to know which
// coroutine is running.

// Local returns the stack bound to the calling goroutine, or nil if there is
// none.
func Local() *Stack {
	s, _ := gls.Context().Load().(*Stack)
	return s
}

// Bind binds s to the calling goroutine, and returns a function which restores
// the previous binding. The returned function must be called on the same
// goroutine.
//
//	defer corostack.Bind(&worker.stack)()
func Bind(s *Stack) (unbind func()) {
	g := gls.Context()
	var prev any
	if s == nil {
		prev = g.Swap(nil)
	} else {
		prev = g.Swap(s)
	}
	return func() { g.Swap(prev) }
}

// CurrentCoroutine returns the coroutine running on the calling goroutine, or
// nil if there is none.
func CurrentCoroutine() *Handle {
	if s := Local(); s != nil {
		return s.Current()
	}
	return nil
}

// HasCoroutine returns true if a coroutine is running on the calling
// goroutine.
func HasCoroutine() bool {
	s := Local()
	return s != nil && s.HasCurrent()
}

// PushCoroutineStack pushes h on the stack bound to the calling goroutine and
// returns it. If no stack is bound, one is created and bound until the
// matching PopCoroutineStack empties it.
func PushCoroutineStack(h *Handle) *Handle {
	g := gls.Context()
	s, _ := g.Load().(*Stack)
	if s == nil {
		s = &Stack{auto: true}
		g.Store(s)
	}
	return s.Push(h)
}

// PopCoroutineStack pops the stack bound to the calling goroutine and returns
// the handle that was removed, or nil if the stack was empty.
func PopCoroutineStack() *Handle {
	g := gls.Context()
	s, _ := g.Load().(*Stack)
	if s == nil {
		return nil
	}
	h := s.Pop()
	if s.auto && !s.HasCurrent() {
		g.Clear()
	}
	return h
}
